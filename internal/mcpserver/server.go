// Package mcpserver exposes the assistant and the paper-trading ledger as
// MCP tools over stdio, so MCP-capable clients can drive them directly.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/market"
	"github.com/fincoach/fincoach-go/internal/pipeline"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wires the pipeline, ledger and quote provider into MCP tools.
type Server struct {
	pipeline *pipeline.Pipeline
	ledger   *ledger.Store
	provider market.Provider
	mcp      *server.MCPServer
}

// New builds the MCP server and registers its tool set.
func New(p *pipeline.Pipeline, ls *ledger.Store, provider market.Provider, version string) *Server {
	s := &Server{
		pipeline: p,
		ledger:   ls,
		provider: provider,
		mcp:      server.NewMCPServer("fincoach", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("ask_finance_assistant",
		mcp.WithDescription("Asks the finance assistant a question. Routes to the right responder and keeps per-session conversation history."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question")),
		mcp.WithString("session_id", mcp.Description("Session to continue; omitted starts a new session")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("paper_buy",
		mcp.WithDescription("Records a paper (simulated) purchase at the live market price."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Portfolio session id")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Stock ticker symbol, e.g. AAPL")),
		mcp.WithNumber("shares", mcp.Required(), mcp.Description("Number of shares, fractional allowed")),
	), s.handleBuy)

	s.mcp.AddTool(mcp.NewTool("paper_sell",
		mcp.WithDescription("Records a paper (simulated) sale at the live market price, realising P&L."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Portfolio session id")),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Stock ticker symbol, e.g. AAPL")),
		mcp.WithNumber("shares", mcp.Required(), mcp.Description("Number of shares, fractional allowed")),
	), s.handleSell)

	s.mcp.AddTool(mcp.NewTool("get_portfolio",
		mcp.WithDescription("Lists the session's current paper-portfolio positions."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Portfolio session id")),
	), s.handlePortfolio)

	s.mcp.AddTool(mcp.NewTool("get_trade_history",
		mcp.WithDescription("Lists the session's recent paper trades, newest first."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Portfolio session id")),
	), s.handleTrades)

	s.mcp.AddTool(mcp.NewTool("get_stock_quote",
		mcp.WithDescription("Gets the live market price for a stock ticker."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Stock ticker symbol, e.g. AAPL")),
	), s.handleQuote)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sessionID := request.GetString("session_id", "")

	result, err := s.pipeline.Process(ctx, pipeline.Request{SessionID: sessionID, Message: question})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleBuy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, symbol, shares, errResult := s.tradeArgs(request)
	if errResult != nil {
		return errResult, nil
	}
	quote, err := s.provider.GetQuote(ctx, symbol)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.ledger.Buy(ctx, sessionID, symbol, shares, quote.Price)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, symbol, shares, errResult := s.tradeArgs(request)
	if errResult != nil {
		return errResult, nil
	}
	quote, err := s.provider.GetQuote(ctx, symbol)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.ledger.Sell(ctx, sessionID, symbol, shares, quote.Price)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handlePortfolio(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	holdings, err := s.ledger.GetHoldings(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(holdings)
}

func (s *Server) handleTrades(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trades, err := s.ledger.GetTrades(ctx, sessionID, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(trades)
}

func (s *Server) handleQuote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	quote, err := s.provider.GetQuote(ctx, symbol)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(quote)
}

func (s *Server) tradeArgs(request mcp.CallToolRequest) (sessionID, symbol string, shares float64, errResult *mcp.CallToolResult) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return "", "", 0, mcp.NewToolResultError(err.Error())
	}
	symbol, err = request.RequireString("symbol")
	if err != nil {
		return "", "", 0, mcp.NewToolResultError(err.Error())
	}
	shares, err = request.RequireFloat("shares")
	if err != nil {
		return "", "", 0, mcp.NewToolResultError(err.Error())
	}
	return sessionID, symbol, shares, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
