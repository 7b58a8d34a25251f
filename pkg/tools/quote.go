package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fincoach/fincoach-go/internal/market"
)

// StockQuoteTool fetches a live market quote for a ticker.
type StockQuoteTool struct {
	provider market.Provider
}

// NewStockQuoteTool creates a quote tool over the given provider.
func NewStockQuoteTool(provider market.Provider) *StockQuoteTool {
	return &StockQuoteTool{provider: provider}
}

func (t *StockQuoteTool) Name() string { return "get_stock_quote" }

func (t *StockQuoteTool) Description() string {
	return "Gets the live market price for a stock ticker. ALWAYS call this before buy_stock or sell_stock so the user sees the current price."
}

func (t *StockQuoteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {"type": "string", "description": "Stock ticker symbol, e.g. AAPL"}
		},
		"required": ["symbol"]
	}`)
}

func (t *StockQuoteTool) Run(ctx context.Context, args string) (string, error) {
	var in struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	q, err := t.provider.GetQuote(ctx, in.Symbol)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
