package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/fincoach/fincoach-go/internal/llm"
	"github.com/fincoach/fincoach-go/internal/pipeline"

	"github.com/sashabaranov/go-openai"
)

// LLMResponder answers with a single chat completion under a fixed system
// prompt. One instance serves each non-trading responder name.
type LLMResponder struct {
	name         string
	systemPrompt string
	client       llm.Client
	model        string
}

// NewLLMResponder creates a prompt-parameterized responder.
func NewLLMResponder(name, systemPrompt string, client llm.Client, model string) *LLMResponder {
	return &LLMResponder{name: name, systemPrompt: systemPrompt, client: client, model: model}
}

// RegisterPromptResponders registers an LLMResponder for every name with a
// configured system prompt.
func RegisterPromptResponders(reg *Registry, client llm.Client, model string) {
	for name, prompt := range systemPrompts {
		reg.Register(NewLLMResponder(name, prompt, client, model))
	}
}

func (r *LLMResponder) Name() string { return r.name }

// Respond builds the system prompt from the fixed instructions plus memory
// summary and history tail, then asks for one completion.
func (r *LLMResponder) Respond(ctx context.Context, question string, rc *pipeline.ResponderContext) (string, error) {
	var sys strings.Builder
	sys.WriteString(r.systemPrompt)
	if rc.MemorySummary != "" {
		sys.WriteString("\n\n### Memory summary of earlier conversation:\n")
		sys.WriteString(rc.MemorySummary)
	}
	sys.WriteString(formatHistory(rc.History))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys.String()},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", r.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion returned no choices", r.name)
	}
	return resp.Choices[0].Message.Content, nil
}
