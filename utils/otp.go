package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTP returns a fresh 3-digit zero-padded code. The code a former
// guest holds must never open the next session, so the previous value is
// excluded.
func GenerateOTP(previous string) (string, error) {
	for {
		n, err := rand.Int(rand.Reader, big.NewInt(1000))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		code := fmt.Sprintf("%03d", n.Int64())
		if code != previous {
			return code, nil
		}
	}
}
