package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/llm"

	"github.com/sashabaranov/go-openai"
)

const summarizerPrompt = `You are a conversation memory assistant for an AI finance assistant.

Your job is to read a list of previous user questions and assistant answers, then
produce a concise memory summary (2-4 sentences) that captures:
- What financial topics the user has been asking about
- Any specific tickers, products, or situations they mentioned
- Key facts or answers already established so the next turn does not repeat them
- Any open questions or follow-ups the user may still have

Write the summary in the third person as if briefing someone taking over the conversation.
Be compact and stay under 300 words. Do NOT add any commentary or preamble.
Output only the summary paragraph.`

// LLMSummarizer compresses conversation history into one memory summary.
// It satisfies the pipeline's Summarizer interface.
type LLMSummarizer struct {
	client llm.Client
	model  string
}

// NewLLMSummarizer creates a summarizer over the shared LLM client.
func NewLLMSummarizer(client llm.Client, model string) *LLMSummarizer {
	return &LLMSummarizer{client: client, model: model}
}

// Summarize renders the history as a transcript and asks for the summary.
func (s *LLMSummarizer) Summarize(ctx context.Context, hist []history.Message) (string, error) {
	if len(hist) == 0 {
		return "", errors.New("nothing to summarize")
	}

	var transcript strings.Builder
	for _, m := range hist {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizerPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summary completion returned no choices")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("summary completion returned empty content")
	}
	return summary, nil
}
