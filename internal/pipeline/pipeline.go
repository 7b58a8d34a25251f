package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fincoach/fincoach-go/internal/guard"
	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/logger"
	"github.com/fincoach/fincoach-go/internal/router"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
)

// FSM states
type FSMState stateless.State

var (
	StateLoadingHistory FSMState = "LoadingHistory"
	StateGuarding       FSMState = "Guarding"
	StateRouting        FSMState = "Routing"
	StateDispatching    FSMState = "Dispatching"
	StatePersisting     FSMState = "Persisting"
	StateDone           FSMState = "Done"
	StateError          FSMState = "Error"
)

// FSM triggers
type FSMTrigger stateless.Trigger

var (
	TriggerStart           FSMTrigger = "Start"
	TriggerHistoryLoaded   FSMTrigger = "HistoryLoaded"
	TriggerGuardTripped    FSMTrigger = "GuardTripped"
	TriggerGuardPassed     FSMTrigger = "GuardPassed"
	TriggerResponderChosen FSMTrigger = "ResponderChosen"
	TriggerAnswerReady     FSMTrigger = "AnswerReady"
	TriggerTurnSaved       FSMTrigger = "TurnSaved"
	TriggerErrorOccurred   FSMTrigger = "ErrorOccurred"
)

const (
	// GuardResponder tags short-circuited clarification answers.
	GuardResponder = "guard"

	// compactionThreshold is the number of stored user turns at which
	// history gets compacted into a memory summary.
	compactionThreshold = 5

	// historyWindow is how many recent messages are loaded for a turn;
	// postCompactWindow is the smaller reload after compaction, since the
	// summary row now carries the older context.
	historyWindow     = 12
	postCompactWindow = 6
)

// Request is one user turn. A blank SessionID mints a fresh session.
// MemorySummary lets a caller inject an external summary; when set,
// compaction is skipped for this turn.
type Request struct {
	SessionID     string
	Message       string
	MemorySummary string
}

// Result is the outcome of a processed turn.
type Result struct {
	Answer    string `json:"answer"`
	Responder string `json:"responder"`
	SessionID string `json:"session_id"`
}

// Pipeline drives a user turn through guarding, routing, dispatch and
// persistence.
type Pipeline struct {
	history    *history.Store
	ledger     *ledger.Store
	dispatcher Dispatcher
	summarizer Summarizer // optional
	classifier Classifier // optional
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithSummarizer enables history compaction.
func WithSummarizer(s Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// WithClassifier enables LLM-assisted routing on top of the keyword table.
func WithClassifier(c Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// New creates a pipeline over the given stores and dispatcher.
func New(hs *history.Store, ls *ledger.Store, d Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{history: hs, ledger: ls, dispatcher: d}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one full decision cycle for a user message and returns the
// answer, the responder that produced it, and the session id (minted when
// the request carried none).
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		logger.L.Debug("Minted new session", "session_id", sessionID)
	}

	type fsmContext struct {
		hist          []history.Message
		memorySummary string
		responder     string
		answer        string
		lastError     error
	}
	fsmCtx := &fsmContext{memorySummary: req.MemorySummary}

	fsm := stateless.NewStateMachine(StateLoadingHistory)

	// State: LoadingHistory
	// Action: load recent turns, compacting them first when the session has
	// grown past the threshold and the caller supplied no summary.
	fsm.Configure(StateLoadingHistory).
		PermitReentry(TriggerStart). // initial Fire lands here and runs OnEntry
		OnEntry(func(ctx context.Context, args ...any) error {
			hist, err := p.history.GetHistory(ctx, sessionID, historyWindow)
			if err != nil {
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			if hist, err = p.compactIfNeeded(ctx, sessionID, hist, fsmCtx.memorySummary == ""); err != nil {
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.hist = hist
			return fsm.FireCtx(ctx, TriggerHistoryLoaded)
		}).
		Permit(TriggerHistoryLoaded, StateGuarding).
		Permit(TriggerErrorOccurred, StateError)

	// State: Guarding
	// Action: catch bare yes/no replies that do not follow a yes/no question
	// and answer with a clarification instead of routing.
	fsm.Configure(StateGuarding).
		OnEntry(func(ctx context.Context, args ...any) error {
			if clarification, tripped := guard.Check(req.Message, fsmCtx.hist); tripped {
				logger.L.Info("Ambiguity guard tripped", "session_id", sessionID)
				fsmCtx.answer = clarification
				fsmCtx.responder = GuardResponder
				return fsm.FireCtx(ctx, TriggerGuardTripped)
			}
			return fsm.FireCtx(ctx, TriggerGuardPassed)
		}).
		Permit(TriggerGuardTripped, StateDone).
		Permit(TriggerGuardPassed, StateRouting).
		Permit(TriggerErrorOccurred, StateError)

	// State: Routing
	// Action: force-route trade commands, otherwise let the classifier
	// propose and fall back to the keyword table.
	fsm.Configure(StateRouting).
		OnEntry(func(ctx context.Context, args ...any) error {
			fsmCtx.responder = p.route(ctx, req.Message, fsmCtx.hist)
			logger.L.Debug("Routed message", "session_id", sessionID, "responder", fsmCtx.responder)
			return fsm.FireCtx(ctx, TriggerResponderChosen)
		}).
		Permit(TriggerResponderChosen, StateDispatching).
		Permit(TriggerErrorOccurred, StateError)

	// State: Dispatching
	// Action: invoke the chosen responder, retrying once against the
	// fallback. If both fail, the original error propagates.
	fsm.Configure(StateDispatching).
		OnEntry(func(ctx context.Context, args ...any) error {
			rc := &ResponderContext{SessionID: sessionID, History: fsmCtx.hist, MemorySummary: fsmCtx.memorySummary}
			if fsmCtx.responder == router.Trading {
				holdings, err := p.ledger.GetHoldings(ctx, sessionID)
				if err != nil {
					fsmCtx.lastError = err
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				}
				rc.Holdings = holdings
			}

			answer, err := p.dispatcher.Respond(ctx, fsmCtx.responder, req.Message, rc)
			if err != nil {
				logger.L.Warn("Responder failed, retrying with fallback", "responder", fsmCtx.responder, "error", err)
				fallbackAnswer, fbErr := p.dispatcher.Respond(ctx, router.Fallback, req.Message, rc)
				if fbErr != nil {
					logger.L.Error("Fallback responder also failed", "error", fbErr)
					fsmCtx.lastError = &ResponderError{Responder: fsmCtx.responder, Err: err}
					return fsm.FireCtx(ctx, TriggerErrorOccurred)
				}
				answer = fallbackAnswer
				fsmCtx.responder = router.Fallback
			}
			fsmCtx.answer = answer
			return fsm.FireCtx(ctx, TriggerAnswerReady)
		}).
		Permit(TriggerAnswerReady, StatePersisting).
		Permit(TriggerErrorOccurred, StateError)

	// State: Persisting
	// Action: store the user/assistant pair as one turn.
	fsm.Configure(StatePersisting).
		OnEntry(func(ctx context.Context, args ...any) error {
			if err := p.history.SaveTurn(ctx, sessionID, req.Message, fsmCtx.answer, fsmCtx.responder); err != nil {
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			return fsm.FireCtx(ctx, TriggerTurnSaved)
		}).
		Permit(TriggerTurnSaved, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone)
	fsm.Configure(StateError)

	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		if fsmCtx.lastError != nil {
			return nil, fsmCtx.lastError
		}
		return nil, fmt.Errorf("pipeline fsm: %w", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline fsm state: %w", err)
	}
	switch currentState {
	case StateDone:
		return &Result{Answer: fsmCtx.answer, Responder: fsmCtx.responder, SessionID: sessionID}, nil
	case StateError:
		if fsmCtx.lastError != nil {
			return nil, fsmCtx.lastError
		}
		return nil, fmt.Errorf("pipeline ended in error state without a cause")
	default:
		return nil, fmt.Errorf("pipeline ended in unexpected state: %v", currentState)
	}
}

// compactIfNeeded folds stored history into a single summary row once the
// session has accumulated enough turns, then reloads a shorter window with
// the summary at its head. Summarizer failures only log; the turn proceeds
// on the uncompacted window.
func (p *Pipeline) compactIfNeeded(ctx context.Context, sessionID string, hist []history.Message, allowed bool) ([]history.Message, error) {
	if !allowed || p.summarizer == nil {
		return hist, nil
	}
	turns, err := p.history.GetTurnCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if turns < compactionThreshold {
		return hist, nil
	}

	summary, err := p.summarizer.Summarize(ctx, hist)
	if err != nil {
		logger.L.Warn("History summarization failed, continuing uncompacted", "session_id", sessionID, "error", err)
		return hist, nil
	}
	if err := p.history.SaveSummary(ctx, sessionID, summary); err != nil {
		return nil, err
	}
	logger.L.Info("Compacted session history", "session_id", sessionID, "turns", turns)
	return p.history.GetHistory(ctx, sessionID, postCompactWindow)
}

// route picks a responder: forced trade routing wins outright, then a
// sufficiently confident classifier proposal, then the keyword table.
func (p *Pipeline) route(ctx context.Context, message string, hist []history.Message) string {
	if name, forced := router.ForceRoute(message); forced {
		return name
	}
	if p.classifier != nil {
		proposal, err := p.classifier.Classify(ctx, message, hist)
		if err != nil {
			logger.L.Warn("Classifier failed, falling back to keyword routing", "error", err)
		} else if proposal != nil {
			if name, ok := router.AcceptProposal(proposal); ok {
				return name
			}
		}
	}
	return router.RouteByKeywords(message)
}
