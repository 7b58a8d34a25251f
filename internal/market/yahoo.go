package market

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/quote"
)

// YahooProvider fetches quotes from Yahoo Finance. It needs no API key and
// is the default provider.
type YahooProvider struct{}

// NewYahooProvider creates a Yahoo Finance quote provider.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{}
}

// GetQuote fetches the current market quote for symbol.
func (yp *YahooProvider) GetQuote(_ context.Context, symbol string) (*Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	return &Quote{
		Symbol:        symbol,
		Price:         q.RegularMarketPrice,
		Open:          q.RegularMarketOpen,
		High:          q.RegularMarketDayHigh,
		Low:           q.RegularMarketDayLow,
		PreviousClose: q.RegularMarketPreviousClose,
		FetchedAt:     time.Now().UTC(),
	}, nil
}
