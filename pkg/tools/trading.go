package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/market"
)

// NewTradingTools builds the paper-trading tool set bound to one session's
// portfolio. Trades execute at the live quote unless the caller pins a price.
func NewTradingTools(store *ledger.Store, provider market.Provider, sessionID string) []Tool {
	return []Tool{
		&BuyStockTool{store: store, provider: provider, sessionID: sessionID},
		&SellStockTool{store: store, provider: provider, sessionID: sessionID},
		&ViewHoldingsTool{store: store, sessionID: sessionID},
		&ViewTradesTool{store: store, sessionID: sessionID},
	}
}

type tradeArgs struct {
	Symbol string  `json:"symbol"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price,omitempty"`
}

const tradeArgsSchema = `{
	"type": "object",
	"properties": {
		"symbol": {"type": "string", "description": "Stock ticker symbol, e.g. AAPL"},
		"shares": {"type": "number", "description": "Number of shares, fractional allowed"},
		"price": {"type": "number", "description": "Optional price per share; omitted means execute at the live quote"}
	},
	"required": ["symbol", "shares"]
}`

// resolvePrice returns the pinned price or fetches the live quote.
func resolvePrice(ctx context.Context, provider market.Provider, symbol string, pinned float64) (float64, error) {
	if pinned > 0 {
		return pinned, nil
	}
	q, err := provider.GetQuote(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("could not price %s: %w", symbol, err)
	}
	return q.Price, nil
}

// BuyStockTool records a simulated purchase in the session portfolio.
type BuyStockTool struct {
	store     *ledger.Store
	provider  market.Provider
	sessionID string
}

func (t *BuyStockTool) Name() string { return "buy_stock" }

func (t *BuyStockTool) Description() string {
	return "Records a paper (simulated) purchase of shares at the live market price. No real money is involved."
}

func (t *BuyStockTool) Schema() json.RawMessage { return json.RawMessage(tradeArgsSchema) }

func (t *BuyStockTool) Run(ctx context.Context, args string) (string, error) {
	var in tradeArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	price, err := resolvePrice(ctx, t.provider, in.Symbol, in.Price)
	if err != nil {
		return "", err
	}
	result, err := t.store.Buy(ctx, t.sessionID, in.Symbol, in.Shares, price)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SellStockTool records a simulated sale in the session portfolio.
type SellStockTool struct {
	store     *ledger.Store
	provider  market.Provider
	sessionID string
}

func (t *SellStockTool) Name() string { return "sell_stock" }

func (t *SellStockTool) Description() string {
	return "Records a paper (simulated) sale of shares at the live market price, realising P&L against the average cost. Fails if the session owns fewer shares than requested."
}

func (t *SellStockTool) Schema() json.RawMessage { return json.RawMessage(tradeArgsSchema) }

func (t *SellStockTool) Run(ctx context.Context, args string) (string, error) {
	var in tradeArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	price, err := resolvePrice(ctx, t.provider, in.Symbol, in.Price)
	if err != nil {
		return "", err
	}
	result, err := t.store.Sell(ctx, t.sessionID, in.Symbol, in.Shares, price)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ViewHoldingsTool lists the session's current positions.
type ViewHoldingsTool struct {
	store     *ledger.Store
	sessionID string
}

func (t *ViewHoldingsTool) Name() string { return "view_holdings" }

func (t *ViewHoldingsTool) Description() string {
	return "Lists current paper-portfolio positions: shares owned and average cost per ticker. Call this before selling 'all' or 'half' of a position to get exact share counts."
}

func (t *ViewHoldingsTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ViewHoldingsTool) Run(ctx context.Context, _ string) (string, error) {
	holdings, err := t.store.GetHoldings(ctx, t.sessionID)
	if err != nil {
		return "", err
	}
	if len(holdings) == 0 {
		return "The portfolio is empty.", nil
	}
	out, err := json.Marshal(holdings)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ViewTradesTool lists the session's recent trade log.
type ViewTradesTool struct {
	store     *ledger.Store
	sessionID string
}

func (t *ViewTradesTool) Name() string { return "view_trades" }

func (t *ViewTradesTool) Description() string {
	return "Lists the most recent paper trades for this session, newest first."
}

func (t *ViewTradesTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "description": "Maximum number of trades to return, default 50"}
		}
	}`)
}

func (t *ViewTradesTool) Run(ctx context.Context, args string) (string, error) {
	var in struct {
		Limit int `json:"limit"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &in); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	trades, err := t.store.GetTrades(ctx, t.sessionID, in.Limit)
	if err != nil {
		return "", err
	}
	if len(trades) == 0 {
		return "No trades recorded yet.", nil
	}
	out, err := json.Marshal(trades)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
