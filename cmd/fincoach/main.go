package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/fincoach/fincoach-go/internal/config"
	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/llm"
	"github.com/fincoach/fincoach-go/internal/logger"
	"github.com/fincoach/fincoach-go/internal/market"
	"github.com/fincoach/fincoach-go/internal/mcpserver"
	"github.com/fincoach/fincoach-go/internal/pipeline"
	"github.com/fincoach/fincoach-go/internal/responder"
	"github.com/fincoach/fincoach-go/internal/store"
)

const version = "0.1.0"

func main() {
	mcpMode := flag.Bool("mcp", false, "serve MCP tools over stdio instead of HTTP")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.L.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	historyStore, err := history.New(db)
	if err != nil {
		logger.L.Error("failed to initialize history store", "error", err)
		os.Exit(1)
	}
	ledgerStore, err := ledger.New(db)
	if err != nil {
		logger.L.Error("failed to initialize ledger store", "error", err)
		os.Exit(1)
	}

	var provider market.Provider = market.NewYahooProvider()
	if cfg.Market.FinnhubKey != "" {
		provider = market.NewFinnhubProvider(cfg.Market.FinnhubURL, cfg.Market.FinnhubKey)
		logger.L.Info("Using Finnhub quote provider")
	}

	llmClient := llm.NewClient(cfg.LLM)
	registry := responder.NewRegistry()
	responder.RegisterPromptResponders(registry, llmClient, cfg.LLM.Model)
	registry.Register(responder.NewTradingResponder(llmClient, cfg.LLM.Model, ledgerStore, provider))

	p := pipeline.New(historyStore, ledgerStore, registry,
		pipeline.WithSummarizer(responder.NewLLMSummarizer(llmClient, cfg.LLM.Model)),
		pipeline.WithClassifier(responder.NewLLMClassifier(llmClient, cfg.LLM.Model)),
	)

	if *mcpMode {
		// stdout carries the MCP protocol, so logs move to stderr.
		logger.SetOutput(os.Stderr)
		logger.L.Info("Serving MCP tools on stdio")
		if err := mcpserver.New(p, ledgerStore, provider, version).ServeStdio(); err != nil {
			logger.L.Error("MCP server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	api := &api{pipeline: p, history: historyStore, ledger: ledgerStore, provider: provider}
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", addr)
	if err := http.ListenAndServe(addr, api.mux()); err != nil {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
