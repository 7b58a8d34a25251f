package pipeline

import (
	"context"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/router"
)

// ResponderContext is the typed context handed to a responder: prior turns,
// the compressed memory summary when one exists, and the current holdings
// snapshot (populated only for the ledger-aware trading responder).
type ResponderContext struct {
	SessionID     string
	History       []history.Message
	MemorySummary string
	Holdings      []ledger.Holding
}

// Dispatcher invokes the named responder. Implementations may call an LLM, a
// web-search API, or a retriever; the pipeline only sees the answer or the
// error.
type Dispatcher interface {
	Respond(ctx context.Context, name, question string, rc *ResponderContext) (string, error)
}

// Summarizer compresses history into a memory summary. Failures are
// non-fatal to the pipeline.
type Summarizer interface {
	Summarize(ctx context.Context, hist []history.Message) (string, error)
}

// Classifier optionally proposes a responder for a message. Advisory only:
// a nil proposal or an error falls back to keyword routing.
type Classifier interface {
	Classify(ctx context.Context, message string, hist []history.Message) (*router.Proposal, error)
}
