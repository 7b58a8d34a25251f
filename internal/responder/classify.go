package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/llm"
	"github.com/fincoach/fincoach-go/internal/router"

	"github.com/sashabaranov/go-openai"
)

const classifierPromptFmt = `You route messages for an AI finance assistant.
Pick the single best responder for the user's latest message from this list:
%s

Reply with ONLY a JSON object, no prose:
{"responder": "<name from the list>", "confidence": <0.0-1.0>}

Use "finance_qa" when unsure. Confidence reflects how clearly the message
belongs to the chosen responder.`

// LLMClassifier proposes a responder for a message. It satisfies the
// pipeline's Classifier interface; proposals are advisory and the pipeline
// falls back to keyword routing when they are rejected.
type LLMClassifier struct {
	client llm.Client
	model  string
}

// NewLLMClassifier creates a classifier over the shared LLM client.
func NewLLMClassifier(client llm.Client, model string) *LLMClassifier {
	return &LLMClassifier{client: client, model: model}
}

// Classify asks the model for a routing proposal and parses the JSON reply.
func (c *LLMClassifier) Classify(ctx context.Context, message string, hist []history.Message) (*router.Proposal, error) {
	sys := fmt.Sprintf(classifierPromptFmt, strings.Join(router.Names(), ", "))
	sys += formatHistory(hist)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classify completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classify completion returned no choices")
	}

	var proposal router.Proposal
	raw := extractJSONObject(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
		return nil, fmt.Errorf("classify reply was not valid JSON: %w", err)
	}
	return &proposal, nil
}

// extractJSONObject tolerates models that wrap the JSON in code fences or
// surrounding prose.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
