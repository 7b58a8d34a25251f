// Package responder holds the LLM-backed responders the decision pipeline
// dispatches to, plus the summarizer and classifier collaborators.
package responder

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/pipeline"
)

// Responder answers one question with the pipeline-provided context.
type Responder interface {
	Name() string
	Respond(ctx context.Context, question string, rc *pipeline.ResponderContext) (string, error)
}

// Registry maps responder names to implementations and satisfies the
// pipeline's Dispatcher interface.
type Registry struct {
	responders map[string]Responder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{responders: make(map[string]Responder)}
}

// Register adds a responder, replacing any previous one with the same name.
func (r *Registry) Register(resp Responder) {
	r.responders[resp.Name()] = resp
}

// Respond dispatches to the named responder.
func (r *Registry) Respond(ctx context.Context, name, question string, rc *pipeline.ResponderContext) (string, error) {
	resp, ok := r.responders[name]
	if !ok {
		return "", fmt.Errorf("no responder registered for %q", name)
	}
	return resp.Respond(ctx, question, rc)
}

const (
	historyTailTurns    = 6
	assistantTruncateAt = 300
)

// formatHistory renders the tail of the conversation for inclusion in a
// system prompt. Long assistant answers are truncated; they only need to
// orient the model, not repeat themselves.
func formatHistory(hist []history.Message) string {
	if len(hist) == 0 {
		return ""
	}
	if len(hist) > historyTailTurns {
		hist = hist[len(hist)-historyTailTurns:]
	}

	var b strings.Builder
	b.WriteString("\n\n### Conversation history:")
	for _, m := range hist {
		var label string
		switch m.Role {
		case history.RoleUser:
			label = "User"
		case history.RoleSummary:
			label = "Earlier context"
		default:
			label = "Assistant"
		}
		text := m.Content
		if m.Role == history.RoleAssistant && len(text) > assistantTruncateAt {
			text = truncate(text, assistantTruncateAt) + "... [truncated]"
		}
		fmt.Fprintf(&b, "\n%s: %s", label, text)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
