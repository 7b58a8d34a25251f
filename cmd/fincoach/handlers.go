package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/logger"
	"github.com/fincoach/fincoach-go/internal/market"
	"github.com/fincoach/fincoach-go/internal/pipeline"
)

type api struct {
	pipeline *pipeline.Pipeline
	history  *history.Store
	ledger   *ledger.Store
	provider market.Provider
}

func (a *api) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", a.handleAsk)
	mux.HandleFunc("GET /sessions", a.handleSessions)
	mux.HandleFunc("GET /history/{id}", a.handleHistory)
	mux.HandleFunc("GET /portfolio/holdings/{id}", a.handleHoldings)
	mux.HandleFunc("DELETE /portfolio/holdings/{id}", a.handleClearHoldings)
	mux.HandleFunc("GET /portfolio/trades/{id}", a.handleTrades)
	mux.HandleFunc("POST /portfolio/buy/{id}", a.handleBuy)
	mux.HandleFunc("POST /portfolio/sell/{id}", a.handleSell)
	mux.HandleFunc("GET /quote/{symbol}", a.handleQuote)
	mux.HandleFunc("GET /health", a.handleHealth)
	return mux
}

type askRequest struct {
	Question      string `json:"question"`
	SessionID     string `json:"session_id"`
	MemorySummary string `json:"memory_summary"`
}

func (a *api) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := a.pipeline.Process(r.Context(), pipeline.Request{
		SessionID:     req.SessionID,
		Message:       req.Question,
		MemorySummary: req.MemorySummary,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.L.Error("ask failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process question")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.history.ListSessions(r.Context())
	if err != nil {
		logger.L.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// lastNParam reads the optional last_n query parameter, falling back to def
// when it is absent or not a positive integer.
func lastNParam(r *http.Request, def int) int {
	if raw := r.URL.Query().Get("last_n"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	messages, err := a.history.GetHistory(r.Context(), sessionID, lastNParam(r, 20))
	if err != nil {
		logger.L.Error("get history failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": messages})
}

func (a *api) handleHoldings(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	holdings, err := a.ledger.GetHoldings(r.Context(), sessionID)
	if err != nil {
		logger.L.Error("get holdings failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load holdings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "holdings": holdings})
}

func (a *api) handleClearHoldings(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	cleared, err := a.ledger.ClearHoldings(r.Context(), sessionID)
	if err != nil {
		logger.L.Error("clear holdings failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear holdings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "cleared": cleared})
}

func (a *api) handleTrades(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	trades, err := a.ledger.GetTrades(r.Context(), sessionID, lastNParam(r, 50))
	if err != nil {
		logger.L.Error("get trades failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "trades": trades})
}

type tradeRequest struct {
	Symbol string  `json:"symbol"`
	Shares float64 `json:"shares"`
}

// priceTradeRequest decodes a trade body and prices it at the live quote.
// A false return means the response has already been written.
func (a *api) priceTradeRequest(w http.ResponseWriter, r *http.Request) (req tradeRequest, price float64, ok bool) {
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, 0, false
	}
	quote, err := a.provider.GetQuote(r.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, market.ErrUnknownSymbol) {
			writeError(w, http.StatusNotFound, err.Error())
			return req, 0, false
		}
		logger.L.Error("quote for trade failed", "symbol", req.Symbol, "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch live quote")
		return req, 0, false
	}
	return req, quote.Price, true
}

// writeTradeError maps ledger failures onto HTTP statuses.
func writeTradeError(w http.ResponseWriter, sessionID string, err error) {
	var insufficient *ledger.InsufficientSharesError
	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, insufficient.Error())
	case errors.Is(err, ledger.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.L.Error("trade failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to execute trade")
	}
}

func (a *api) handleBuy(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	req, price, ok := a.priceTradeRequest(w, r)
	if !ok {
		return
	}
	result, err := a.ledger.Buy(r.Context(), sessionID, req.Symbol, req.Shares, price)
	if err != nil {
		writeTradeError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleSell(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	req, price, ok := a.priceTradeRequest(w, r)
	if !ok {
		return
	}
	result, err := a.ledger.Sell(r.Context(), sessionID, req.Symbol, req.Shares, price)
	if err != nil {
		writeTradeError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (a *api) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	quote, err := a.provider.GetQuote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, market.ErrUnknownSymbol) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.L.Error("get quote failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch quote")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
