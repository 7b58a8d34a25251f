package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// FinnhubProvider fetches quotes from the Finnhub REST API. It is used when
// an API key is configured, falling back to Yahoo otherwise.
type FinnhubProvider struct {
	client *resty.Client
	apiKey string
}

// NewFinnhubProvider creates a Finnhub quote provider.
func NewFinnhubProvider(baseURL, apiKey string) *FinnhubProvider {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubProvider{client: client, apiKey: apiKey}
}

// finnhubQuote mirrors Finnhub's /quote response shape.
type finnhubQuote struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote fetches the current market quote for symbol.
func (fp *FinnhubProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if fp.apiKey == "" {
		return nil, fmt.Errorf("Finnhub API key not configured")
	}
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	resp, err := fp.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"token":  fp.apiKey,
		}).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
	}

	var fq finnhubQuote
	if err := json.Unmarshal(resp.Body(), &fq); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}
	// Finnhub returns an all-zero body for symbols it does not know.
	if fq.Current == 0 && fq.Timestamp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	return &Quote{
		Symbol:        symbol,
		Price:         fq.Current,
		Open:          fq.Open,
		High:          fq.High,
		Low:           fq.Low,
		PreviousClose: fq.PreviousClose,
		FetchedAt:     time.Now().UTC(),
	}, nil
}
