package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownSymbol is returned when a provider has no data for a ticker.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Quote is a point-in-time price snapshot for one ticker.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previous_close"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Provider fetches live quotes.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// NormalizeSymbol uppercases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol rejects empty or implausible tickers before hitting a
// provider.
func ValidateSymbol(symbol string) error {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(s) > 10 {
		return fmt.Errorf("symbol %q too long", s)
	}
	return nil
}
