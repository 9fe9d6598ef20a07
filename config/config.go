package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitDB opens the database connection based on environment variables.
// DB_DRIVER=sqlite is meant for local development; production runs MySQL.
func InitDB() (*gorm.DB, error) {
	driver := os.Getenv("DB_DRIVER")
	if driver == "sqlite" {
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = "restaurant_ops.db"
		}
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		user := os.Getenv("DB_USER")
		pass := os.Getenv("DB_PASSWORD")
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "127.0.0.1"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "3306"
		}
		name := os.Getenv("DB_NAME")
		if name == "" {
			name = "restaurant_ops"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			user, pass, host, port, name)
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// Policy holds the tunable operational heuristics. The observed defaults
// (10 minute urgency, drink-ish category names) are policy, not invariants.
type Policy struct {
	// UrgentAfter is how long an order may wait before the kitchen display
	// flags it urgent.
	UrgentAfter time.Duration
	// BarCategories is the category-name allow-list used to route untagged
	// menu items to the bar.
	BarCategories []string
	// StreamHeartbeat is the ping interval for streaming subscribers.
	StreamHeartbeat time.Duration
	// OTPHelpAfter is how long a scanned-but-unverified session may sit
	// before waiters get an OTP-help nudge.
	OTPHelpAfter time.Duration
}

func LoadPolicy() Policy {
	p := Policy{
		UrgentAfter:     10 * time.Minute,
		BarCategories:   []string{"beverage", "beverages", "drinks", "coffee", "tea", "juice", "cocktails", "beer", "wine"},
		StreamHeartbeat: 30 * time.Second,
		OTPHelpAfter:    3 * time.Minute,
	}

	if v := envMinutes("KITCHEN_URGENT_AFTER_MINUTES"); v > 0 {
		p.UrgentAfter = v
	}
	if raw := os.Getenv("BAR_CATEGORY_NAMES"); raw != "" {
		var names []string
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(strings.ToLower(n)); n != "" {
				names = append(names, n)
			}
		}
		if len(names) > 0 {
			p.BarCategories = names
		}
	}
	if raw := os.Getenv("STREAM_HEARTBEAT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			p.StreamHeartbeat = time.Duration(secs) * time.Second
		}
	}
	if v := envMinutes("OTP_HELP_AFTER_MINUTES"); v > 0 {
		p.OTPHelpAfter = v
	}

	return p
}

func envMinutes(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	mins, err := strconv.Atoi(raw)
	if err != nil || mins <= 0 {
		return 0
	}
	return time.Duration(mins) * time.Minute
}
