// Package router decides which responder handles a message. Force-route
// checks run first, then an optional external classifier proposal, then the
// keyword table.
package router

import (
	"regexp"
	"strings"
)

// Responder names.
const (
	Trading   = "trading"
	Stock     = "stock"
	Portfolio = "portfolio"
	News      = "news"
	Market    = "market"
	Goals     = "goals"
	Tax       = "tax"
	FinanceQA = "finance_qa"
)

// Fallback is the general-purpose responder used when nothing else matches
// and as the one-shot retry target after a responder failure.
const Fallback = FinanceQA

// ClassifierThreshold is the minimum confidence at which an external
// classifier proposal is accepted.
const ClassifierThreshold = 0.5

type route struct {
	name     string
	keywords []string
}

// routingTable is checked in order: most specific responder first, the
// broadest last. Matching is case-insensitive substring containment.
var routingTable = []route{
	{Portfolio, []string{
		"portfolio", "allocation", "holdings", "rebalance", "rebalancing",
		"asset mix", "weighting", "overweight", "underweight", "concentration",
		"risk profile", "my stocks", "my investments", "my assets",
		"analyze my", "analyse my", "diversif",
	}},
	// News before market so "market news" lands here.
	{News, []string{
		"news", "headline", "summarize", "summarise", "synthesize", "breaking",
		"press release", "article", "what happened", "recent report",
		"earnings report", "announcement", "current events",
	}},
	{Market, []string{
		"market trend", "market analysis", "stock market", "sector", "index",
		"indices", "volatility", "macro", "macroeconomic", "s&p", "nasdaq",
		"dow", "vix", "bull market", "bear market", "market today",
		"stock price", "price of", "current price", "trading today",
	}},
	{Goals, []string{
		"goal", "goals", "planning", "budget", "budgeting", "saving",
		"savings", "retirement plan", "emergency fund", "time horizon",
		"financial plan", "50/30/20", "down payment", "monthly savings",
	}},
	{Tax, []string{
		"tax", "taxes", "deduction", "tax credit", "capital gains", "roth",
		"traditional ira", "tax bracket", "marginal rate", "effective rate",
		"w-2", "1099", "irs", "tax return", "tax filing", "taxable income",
	}},
	{Stock, []string{
		"analyze", "ticker", "pe ratio", "p/e", "earnings", "valuation",
		"52-week", "market cap", "fundamentals",
	}},
	{FinanceQA, []string{
		"finance", "invest", "bond", "fund", "ira", "401k", "compound",
		"interest", "dividend", "insurance", "inflation", "asset", "credit",
		"loan", "etf", "stock", "equity", "market",
	}},
}

// Bare buy/sell verbs and position-viewing phrases always route to trading.
var forceTradeRe = regexp.MustCompile(`\b(buy|sell|bought|sold)\b`)

var forceTradePhrases = []string{
	"my position", "my positions", "my trades", "trade history",
	"paper trade", "paper trading", "place a trade", "execute a trade",
	"view my portfolio positions",
}

// ForceRoute returns the responder that must handle text regardless of
// classifier opinion, or false when no override applies. It runs before
// keyword matching and before any external classifier.
func ForceRoute(text string) (string, bool) {
	t := strings.ToLower(text)
	if forceTradeRe.MatchString(t) {
		return Trading, true
	}
	for _, p := range forceTradePhrases {
		if strings.Contains(t, p) {
			return Trading, true
		}
	}
	return "", false
}

// RouteByKeywords returns the first responder whose keyword set matches text,
// or the fallback responder when none match.
func RouteByKeywords(text string) string {
	t := strings.ToLower(text)
	for _, r := range routingTable {
		for _, kw := range r.keywords {
			if strings.Contains(t, kw) {
				return r.name
			}
		}
	}
	return Fallback
}

// Proposal is an advisory routing suggestion from an external classifier.
type Proposal struct {
	Responder  string  `json:"responder"`
	Confidence float64 `json:"confidence"`
}

// AcceptProposal returns the proposed responder when it names a known
// responder with sufficient confidence.
func AcceptProposal(p *Proposal) (string, bool) {
	if p == nil || p.Confidence < ClassifierThreshold || !IsKnown(p.Responder) {
		return "", false
	}
	return p.Responder, true
}

// IsKnown reports whether name is a registered responder name.
func IsKnown(name string) bool {
	if name == Trading {
		return true
	}
	for _, r := range routingTable {
		if r.name == name {
			return true
		}
	}
	return false
}

// Names returns every routable responder name, most specific first.
func Names() []string {
	out := []string{Trading}
	for _, r := range routingTable {
		out = append(out, r.name)
	}
	return out
}
