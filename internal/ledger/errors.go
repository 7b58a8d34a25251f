package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for non-positive share counts, negative prices,
// or blank tickers; it always fires before any mutation.
var ErrInvalidInput = errors.New("invalid ledger input")

// InsufficientSharesError reports a sell that exceeds the owned quantity.
// The failed sell leaves holdings and trades untouched.
type InsufficientSharesError struct {
	Ticker    string
	Owned     float64
	Requested float64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: you own %.4f %s, but tried to sell %.4f",
		e.Owned, e.Ticker, e.Requested)
}
