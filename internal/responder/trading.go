package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fincoach/fincoach-go/internal/ledger"
	"github.com/fincoach/fincoach-go/internal/llm"
	"github.com/fincoach/fincoach-go/internal/logger"
	"github.com/fincoach/fincoach-go/internal/market"
	"github.com/fincoach/fincoach-go/internal/pipeline"
	"github.com/fincoach/fincoach-go/internal/router"
	"github.com/fincoach/fincoach-go/pkg/tools"

	"github.com/sashabaranov/go-openai"
)

// maxToolIterations bounds the trade tool loop. One iteration is one LLM
// round plus the tool calls it requested.
const maxToolIterations = 8

// TradingResponder executes paper trades through a tool-calling loop. Tools
// are bound to the request's session at dispatch time so trades land in the
// right portfolio.
type TradingResponder struct {
	client   llm.Client
	model    string
	store    *ledger.Store
	provider market.Provider
}

// NewTradingResponder creates the ledger-aware trading responder.
func NewTradingResponder(client llm.Client, model string, store *ledger.Store, provider market.Provider) *TradingResponder {
	return &TradingResponder{client: client, model: model, store: store, provider: provider}
}

func (r *TradingResponder) Name() string { return router.Trading }

// Respond runs the tool loop until the model answers with plain content.
func (r *TradingResponder) Respond(ctx context.Context, question string, rc *pipeline.ResponderContext) (string, error) {
	manager := tools.NewToolManager()
	manager.RegisterTool(tools.NewStockQuoteTool(r.provider))
	for _, t := range tools.NewTradingTools(r.store, r.provider, rc.SessionID) {
		manager.RegisterTool(t)
	}

	var sys strings.Builder
	sys.WriteString(tradingPrompt)
	if rc.MemorySummary != "" {
		sys.WriteString("\n\n### Memory summary of earlier conversation:\n")
		sys.WriteString(rc.MemorySummary)
	}
	if len(rc.Holdings) > 0 {
		snapshot, err := json.Marshal(rc.Holdings)
		if err == nil {
			sys.WriteString("\n\n### Current holdings snapshot:\n")
			sys.Write(snapshot)
		}
	}
	sys.WriteString(formatHistory(rc.History))

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sys.String()},
		{Role: openai.ChatMessageRoleUser, Content: question},
	}
	llmTools := openaiTools(manager)

	for i := 0; i < maxToolIterations; i++ {
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    r.model,
			Messages: messages,
			Tools:    llmTools,
		})
		if err != nil {
			return "", fmt.Errorf("trading completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("trading completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    r.runTool(ctx, manager, tc),
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
			})
		}
	}
	return "", errors.New("trading responder exceeded maximum tool iterations")
}

// runTool executes one requested tool call. Errors come back as tool output
// so the model can explain them instead of aborting the turn.
func (r *TradingResponder) runTool(ctx context.Context, manager *tools.ToolManager, tc openai.ToolCall) string {
	tool, err := manager.GetTool(tc.Function.Name)
	if err != nil {
		return "Error: " + err.Error()
	}
	out, err := tool.Run(ctx, tc.Function.Arguments)
	if err != nil {
		logger.L.Warn("Trading tool failed", "tool", tc.Function.Name, "error", err)
		return "Error: " + err.Error()
	}
	return out
}

// openaiTools converts registered tools to OpenAI function definitions.
func openaiTools(manager *tools.ToolManager) []openai.Tool {
	registered := manager.List()
	out := make([]openai.Tool, 0, len(registered))
	for _, t := range registered {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return out
}
