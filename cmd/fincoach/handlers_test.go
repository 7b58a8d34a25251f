package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/market"
	"github.com/fincoach/fincoach-go/internal/pipeline"
	"github.com/fincoach/fincoach-go/internal/store"

	"github.com/stretchr/testify/require"
)

type stubDispatcher struct{}

func (stubDispatcher) Respond(_ context.Context, name, _ string, _ *pipeline.ResponderContext) (string, error) {
	return "stub answer from " + name, nil
}

type stubProvider struct {
	price float64
}

func (s *stubProvider) GetQuote(_ context.Context, symbol string) (*market.Quote, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "NOPE" {
		return nil, market.ErrUnknownSymbol
	}
	return &market.Quote{Symbol: symbol, Price: s.price, FetchedAt: time.Now().UTC()}, nil
}

func newTestAPI(t *testing.T) *api {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hs, err := history.New(db)
	require.NoError(t, err)
	ls, err := ledger.New(db)
	require.NoError(t, err)

	return &api{
		pipeline: pipeline.New(hs, ls, stubDispatcher{}),
		history:  hs,
		ledger:   ls,
		provider: &stubProvider{price: 150},
	}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec, body := doJSON(t, mux, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}

func TestAskAndHistory(t *testing.T) {
	mux := newTestAPI(t).mux()

	rec, body := doJSON(t, mux, http.MethodPost, "/ask", `{"question": "what is an ETF?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, body["session_id"])
	require.Contains(t, body["answer"], "stub answer")

	sessionID := body["session_id"].(string)
	rec, body = doJSON(t, mux, http.MethodGet, "/history/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)

	rec, body = doJSON(t, mux, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, body["sessions"], sessionID)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec, _ := doJSON(t, mux, http.MethodPost, "/ask", `{"question": "  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskRejectsBadJSON(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec, _ := doJSON(t, mux, http.MethodPost, "/ask", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioBuySellFlow(t *testing.T) {
	mux := newTestAPI(t).mux()

	rec, body := doJSON(t, mux, http.MethodPost, "/portfolio/buy/sess-1", `{"symbol": "AAPL", "shares": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "AAPL", body["ticker"])
	require.Equal(t, 150.0, body["price"])

	rec, body = doJSON(t, mux, http.MethodGet, "/portfolio/holdings/sess-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["holdings"], 1)

	rec, body = doJSON(t, mux, http.MethodPost, "/portfolio/sell/sess-1", `{"symbol": "AAPL", "shares": 4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 6.0, body["remaining_shares"])

	rec, body = doJSON(t, mux, http.MethodGet, "/portfolio/trades/sess-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["trades"], 2)
}

func TestHistoryLastNParam(t *testing.T) {
	mux := newTestAPI(t).mux()

	_, body := doJSON(t, mux, http.MethodPost, "/ask", `{"question": "what is a bond?"}`)
	sessionID := body["session_id"].(string)
	for _, q := range []string{"and a stock?", "and an ETF?"} {
		rec, _ := doJSON(t, mux, http.MethodPost, "/ask", `{"question": "`+q+`", "session_id": "`+sessionID+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Three turns stored as six messages; last_n narrows the window.
	rec, body := doJSON(t, mux, http.MethodGet, "/history/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["messages"], 6)

	rec, body = doJSON(t, mux, http.MethodGet, "/history/"+sessionID+"?last_n=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["messages"], 2)
}

func TestTradesLastNParam(t *testing.T) {
	mux := newTestAPI(t).mux()

	for i := 0; i < 3; i++ {
		rec, _ := doJSON(t, mux, http.MethodPost, "/portfolio/buy/sess-1", `{"symbol": "AAPL", "shares": 1}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := doJSON(t, mux, http.MethodGet, "/portfolio/trades/sess-1?last_n=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["trades"], 2)

	// Absent or malformed last_n falls back to the default window.
	rec, body = doJSON(t, mux, http.MethodGet, "/portfolio/trades/sess-1?last_n=bogus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["trades"], 3)
}

func TestSellInsufficientReturnsConflict(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec, body := doJSON(t, mux, http.MethodPost, "/portfolio/sell/sess-1", `{"symbol": "AAPL", "shares": 5}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, body["error"], "insufficient shares")
}

func TestInvalidTradeReturnsBadRequest(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec, _ := doJSON(t, mux, http.MethodPost, "/portfolio/buy/sess-1", `{"symbol": "AAPL", "shares": -1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSymbolReturnsNotFound(t *testing.T) {
	mux := newTestAPI(t).mux()

	rec, _ := doJSON(t, mux, http.MethodGet, "/quote/NOPE", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPost, "/portfolio/buy/sess-1", `{"symbol": "NOPE", "shares": 1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	mux := newTestAPI(t).mux()
	rec, body := doJSON(t, mux, http.MethodGet, "/quote/msft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "MSFT", body["symbol"])
	require.Equal(t, 150.0, body["price"])
}

func TestClearHoldings(t *testing.T) {
	mux := newTestAPI(t).mux()

	_, _ = doJSON(t, mux, http.MethodPost, "/portfolio/buy/sess-1", `{"symbol": "AAPL", "shares": 1}`)
	rec, body := doJSON(t, mux, http.MethodDelete, "/portfolio/holdings/sess-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1.0, body["cleared"])

	rec, body = doJSON(t, mux, http.MethodGet, "/portfolio/holdings/sess-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body["holdings"])
}
