package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yeremiapane/restaurant-ops/apperr"
)

// StockService is the client for the external inventory service. Deduction
// is always best-effort: callers log failures and move on.
type StockService struct {
	baseURL    string
	httpClient *http.Client
}

// NewStockService reads STOCK_SERVICE_URL from the environment. An empty
// URL disables deduction entirely.
func NewStockService() *StockService {
	return NewStockServiceWithURL(os.Getenv("STOCK_SERVICE_URL"))
}

func NewStockServiceWithURL(baseURL string) *StockService {
	return &StockService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Deduct asks the inventory service to take qty units of a menu item out
// of stock.
func (s *StockService) Deduct(menuItemID uint, qty int) error {
	if s.baseURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"menu_item_id": menuItemID,
		"quantity":     qty,
	})
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(s.baseURL+"/stock/deduct", "application/json", bytes.NewReader(payload))
	if err != nil {
		return apperr.ExternalService("stock service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.ExternalService(fmt.Sprintf("stock service returned %d", resp.StatusCode), nil)
	}
	return nil
}
