// Package ledger provides SQLite-based persistence for per-session paper
// trading: current holdings with weighted-average-cost accounting plus an
// immutable trade log. Holdings reflect the open position; the trade log is
// the audit trail and is never mutated.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fincoach/fincoach-go/internal/logger"
)

// epsilon absorbs floating-point drift when comparing share quantities.
const epsilon = 1e-9

const schema = `
CREATE TABLE IF NOT EXISTS holdings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	ticker     TEXT    NOT NULL,
	shares     REAL    NOT NULL,
	avg_cost   REAL    NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(session_id, ticker)
);

CREATE INDEX IF NOT EXISTS idx_holdings_session ON holdings(session_id);

CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT    NOT NULL,
	ticker      TEXT    NOT NULL,
	action      TEXT    NOT NULL CHECK(action IN ('buy', 'sell')),
	shares      REAL    NOT NULL,
	price       REAL    NOT NULL,
	total_value REAL    NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id);
`

// Holding is one open position within a session.
type Holding struct {
	Ticker    string    `json:"ticker"`
	Shares    float64   `json:"shares"`
	AvgCost   float64   `json:"avg_cost"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Trade is one immutable buy or sell record.
type Trade struct {
	ID         int64     `json:"id"`
	Ticker     string    `json:"ticker"`
	Action     string    `json:"action"`
	Shares     float64   `json:"shares"`
	Price      float64   `json:"price"`
	TotalValue float64   `json:"total_value"`
	CreatedAt  time.Time `json:"created_at"`
}

// Position is the share count and average cost of a holding after a trade.
type Position struct {
	Shares  float64 `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
}

// BuyResult reports a completed buy.
type BuyResult struct {
	Ticker       string   `json:"ticker"`
	SharesBought float64  `json:"shares_bought"`
	Price        float64  `json:"price"`
	TotalCost    float64  `json:"total_cost"`
	NewPosition  Position `json:"new_position"`
}

// SellResult reports a completed sell.
type SellResult struct {
	Ticker          string  `json:"ticker"`
	SharesSold      float64 `json:"shares_sold"`
	Price           float64 `json:"price"`
	Proceeds        float64 `json:"proceeds"`
	RealizedPnL     float64 `json:"realized_pnl"`
	RemainingShares float64 `json:"remaining_shares"`
}

// Store persists paper-trading state in SQLite. Buy and sell each run as a
// single transaction: the sufficiency check, the holding mutation, and the
// trade insert happen-or-fail together.
type Store struct {
	db *sql.DB
}

// New creates the ledger tables if needed and returns a Store.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Buy records a paper buy: the holding is upserted with a quantity-weighted
// average cost and a trade row is appended.
func (s *Store) Buy(ctx context.Context, sessionID, ticker string, shares, price float64) (*BuyResult, error) {
	ticker, err := validate(ticker, shares, price)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The upsert arithmetic sees the pre-update row on both sides, so the
	// weighted average uses the old share count.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO holdings (session_id, ticker, shares, avg_cost, updated_at)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(session_id, ticker) DO UPDATE SET
		   avg_cost   = (holdings.avg_cost*holdings.shares + excluded.avg_cost*excluded.shares)
		                / (holdings.shares + excluded.shares),
		   shares     = holdings.shares + excluded.shares,
		   updated_at = excluded.updated_at`,
		sessionID, ticker, shares, price, now,
	); err != nil {
		return nil, err
	}

	var pos Position
	if err := tx.QueryRowContext(ctx,
		`SELECT shares, avg_cost FROM holdings WHERE session_id = ? AND ticker = ?`,
		sessionID, ticker,
	).Scan(&pos.Shares, &pos.AvgCost); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trades (session_id, ticker, action, shares, price, total_value, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		sessionID, ticker, "buy", shares, price, shares*price, now,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.L.Info("paper buy", "session_id", sessionID, "ticker", ticker, "shares", shares, "price", price)
	return &BuyResult{
		Ticker:       ticker,
		SharesBought: roundShares(shares),
		Price:        roundMoney(price),
		TotalCost:    roundMoney(shares * price),
		NewPosition: Position{
			Shares:  roundShares(pos.Shares),
			AvgCost: roundMoney(pos.AvgCost),
		},
	}, nil
}

// Sell records a paper sell. Realized P&L is computed against the average
// cost before the sell; selling never changes the average cost of the
// remaining position. A sell that exactly exhausts the position deletes the
// holding row. Selling more than is owned fails without mutating anything.
func (s *Store) Sell(ctx context.Context, sessionID, ticker string, shares, price float64) (*SellResult, error) {
	ticker, err := validate(ticker, shares, price)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var owned, avgCost float64
	row := tx.QueryRowContext(ctx,
		`SELECT shares, avg_cost FROM holdings WHERE session_id = ? AND ticker = ?`,
		sessionID, ticker,
	)
	switch err := row.Scan(&owned, &avgCost); err {
	case nil:
	case sql.ErrNoRows:
		return nil, &InsufficientSharesError{Ticker: ticker, Owned: 0, Requested: shares}
	default:
		return nil, err
	}
	if owned < shares-epsilon {
		return nil, &InsufficientSharesError{Ticker: ticker, Owned: owned, Requested: shares}
	}

	// The guard on shares re-checks sufficiency inside the write, so two
	// concurrent sells cannot both succeed against a stale read.
	res, err := tx.ExecContext(ctx,
		`UPDATE holdings SET shares = shares - ?, updated_at = ?
		 WHERE session_id = ? AND ticker = ? AND shares + ? >= ?`,
		shares, now, sessionID, ticker, epsilon, shares,
	)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, &InsufficientSharesError{Ticker: ticker, Owned: owned, Requested: shares}
	}

	remaining := owned - shares
	if remaining < epsilon {
		remaining = 0
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE session_id = ? AND ticker = ?`,
			sessionID, ticker,
		); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trades (session_id, ticker, action, shares, price, total_value, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		sessionID, ticker, "sell", shares, price, shares*price, now,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logger.L.Info("paper sell", "session_id", sessionID, "ticker", ticker, "shares", shares, "price", price)
	return &SellResult{
		Ticker:          ticker,
		SharesSold:      roundShares(shares),
		Price:           roundMoney(price),
		Proceeds:        roundMoney(shares * price),
		RealizedPnL:     roundMoney((price - avgCost) * shares),
		RemainingShares: roundShares(remaining),
	}, nil
}

// GetHoldings returns all current holdings for a session, most recently
// updated first.
func (s *Store) GetHoldings(ctx context.Context, sessionID string) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, shares, avg_cost, updated_at
		 FROM holdings WHERE session_id = ?
		 ORDER BY updated_at DESC, ticker`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Ticker, &h.Shares, &h.AvgCost, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Shares = roundShares(h.Shares)
		h.AvgCost = roundMoney(h.AvgCost)
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetTrades returns the most recent lastN trades for a session, newest first.
func (s *Store) GetTrades(ctx context.Context, sessionID string, lastN int) ([]Trade, error) {
	if lastN <= 0 {
		lastN = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticker, action, shares, price, total_value, created_at
		 FROM trades WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, lastN,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Ticker, &t.Action, &t.Shares, &t.Price, &t.TotalValue, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Shares = roundShares(t.Shares)
		t.Price = roundMoney(t.Price)
		t.TotalValue = roundMoney(t.TotalValue)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ClearHoldings deletes all holdings for a session and returns the number of
// rows removed. The trade log is preserved as the audit trail.
func (s *Store) ClearHoldings(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func validate(ticker string, shares, price float64) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", fmt.Errorf("%w: ticker must not be empty", ErrInvalidInput)
	}
	if !(shares > 0) || math.IsInf(shares, 0) {
		return "", fmt.Errorf("%w: shares must be positive, got %v", ErrInvalidInput, shares)
	}
	if !(price >= 0) || math.IsInf(price, 0) {
		return "", fmt.Errorf("%w: price must not be negative, got %v", ErrInvalidInput, price)
	}
	return ticker, nil
}

// Rounding happens only at the API boundary; internal computation keeps full
// float precision so repeated buys do not compound rounding error.
func roundMoney(v float64) float64  { return math.Round(v*100) / 100 }
func roundShares(v float64) float64 { return math.Round(v*1e6) / 1e6 }
