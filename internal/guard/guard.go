// Package guard intercepts ambiguous bare yes/no replies before routing.
// A bare "yes" or "no" is only interpretable when the immediately preceding
// assistant message was itself a yes/no question; otherwise the reply must
// not be forwarded to any responder.
package guard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fincoach/fincoach-go/internal/history"
)

// Words that open a yes/no question, checked against the first word of the
// last assistant message.
var yesNoStarters = map[string]bool{
	"is": true, "are": true, "was": true, "were": true,
	"do": true, "does": true, "did": true,
	"should": true, "would": true, "could": true, "can": true,
	"will": true, "won't": true, "wouldn't": true, "shouldn't": true, "couldn't": true,
	"have": true, "has": true, "had": true,
	"may": true, "might": true, "must": true,
	"shall": true,
}

// Phrases anywhere in the last assistant message that imply a yes/no answer
// is expected even when the opener is not a canonical starter.
var yesNoCuePhrases = []string{
	"yes or no",
	"true or false",
	"let me know if",
	"does that",
	"does this",
	"is that",
	"is this",
	"do you want",
	"do you need",
	"would you like",
	"should i",
	"shall i",
	"are you",
	"can you confirm",
}

type topicEntry struct {
	keyword string
	label   string
}

// Finance topics for clarification wording, loosely ordered by specificity
// so the first match wins.
var topicKeywords = []topicEntry{
	{"stock", "stocks"},
	{"portfolio", "your portfolio"},
	{"market", "the market"},
	{"crypto", "cryptocurrency"},
	{"bitcoin", "Bitcoin"},
	{"etf", "ETFs"},
	{"bond", "bonds"},
	{"dividend", "dividends"},
	{"interest rate", "interest rates"},
	{"inflation", "inflation"},
	{"tax", "taxes"},
	{"401k", "your 401(k)"},
	{"ira", "your IRA"},
	{"roth", "Roth accounts"},
	{"invest", "investing"},
	{"saving", "saving"},
	{"budget", "budgeting"},
	{"retire", "retirement"},
	{"goal", "your financial goals"},
	{"news", "recent financial news"},
	{"trade", "trading"},
	{"option", "options trading"},
	{"fund", "funds"},
	{"index", "index funds"},
	{"real estate", "real estate"},
	{"insurance", "insurance"},
	{"debt", "debt management"},
	{"credit", "credit"},
}

const defaultTopic = "finance"

// topicScanWindow is how many trailing messages are scanned for a topic.
const topicScanWindow = 10

var firstWordRe = regexp.MustCompile(`^[\w']+`)

// WasLastMessageYesNoQuestion reports whether the most recent assistant
// message in hist is clearly a yes/no question: it ends with "?" and either
// opens with a yes/no starter word or contains an expected-yes/no cue phrase.
func WasLastMessageYesNoQuestion(hist []history.Message) bool {
	last, ok := lastAssistantMessage(hist)
	if !ok {
		return false
	}
	last = strings.TrimSpace(last)
	if !strings.HasSuffix(last, "?") {
		return false
	}

	lower := strings.ToLower(last)
	if first := firstWordRe.FindString(lower); first != "" && yesNoStarters[first] {
		return true
	}
	for _, phrase := range yesNoCuePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsAmbiguousYesNo reports whether message is a bare "yes" or "no" that
// cannot be safely interpreted because the previous assistant message was
// not a yes/no question. hist does not yet include the current message.
func IsAmbiguousYesNo(message string, hist []history.Message) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized != "yes" && normalized != "no" {
		return false
	}
	return !WasLastMessageYesNoQuestion(hist)
}

// Check is the pre-routing entry point. When the message is an ambiguous
// yes/no it returns a clarification naming the most recently discussed
// finance topic and true; the caller must short-circuit with that text.
// Otherwise it returns "" and false and normal routing proceeds.
func Check(message string, hist []history.Message) (string, bool) {
	if !IsAmbiguousYesNo(message, hist) {
		return "", false
	}
	topic := extractLastTopic(hist)
	return fmt.Sprintf(
		"Are you asking a yes/no question about %s?\n"+
			"If so, please type the full question.\n\n"+
			"Then I'll answer with just yes or no.", topic), true
}

func lastAssistantMessage(hist []history.Message) (string, bool) {
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].Role == history.RoleAssistant {
			return hist[i].Content, true
		}
	}
	return "", false
}

// extractLastTopic scans recent user and assistant messages for finance
// topic keywords, falling back to a generic label.
func extractLastTopic(hist []history.Message) string {
	start := len(hist) - topicScanWindow
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, m := range hist[start:] {
		if m.Role == history.RoleUser || m.Role == history.RoleAssistant {
			b.WriteString(m.Content)
			b.WriteString(" ")
		}
	}
	recent := strings.ToLower(b.String())

	for _, t := range topicKeywords {
		if strings.Contains(recent, t.keyword) {
			return t.label
		}
	}
	return defaultTopic
}
