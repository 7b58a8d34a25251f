package responder

import (
	"context"
	"testing"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/router"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestClassifyParsesJSON(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{
		textResponse(`{"responder": "tax", "confidence": 0.85}`),
	}}
	c := NewLLMClassifier(mock, "gpt-4o")

	p, err := c.Classify(context.Background(), "how do capital gains work?", nil)
	require.NoError(t, err)
	require.Equal(t, router.Tax, p.Responder)
	require.Equal(t, 0.85, p.Confidence)
}

func TestClassifyToleratesCodeFences(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{
		textResponse("```json\n{\"responder\": \"goals\", \"confidence\": 0.7}\n```"),
	}}
	c := NewLLMClassifier(mock, "gpt-4o")

	p, err := c.Classify(context.Background(), "help me save for a house", nil)
	require.NoError(t, err)
	require.Equal(t, router.Goals, p.Responder)
}

func TestClassifyRejectsNonJSON(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{
		textResponse("I think this is about taxes."),
	}}
	c := NewLLMClassifier(mock, "gpt-4o")

	_, err := c.Classify(context.Background(), "question", nil)
	require.Error(t, err)
}

func TestClassifyPromptListsResponders(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{
		textResponse(`{"responder": "stock", "confidence": 0.9}`),
	}}
	c := NewLLMClassifier(mock, "gpt-4o")

	hist := []history.Message{{Role: history.RoleUser, Content: "earlier question"}}
	_, err := c.Classify(context.Background(), "question", hist)
	require.NoError(t, err)

	sys := mock.requests[0].Messages[0].Content
	for _, name := range router.Names() {
		require.Contains(t, sys, name)
	}
	require.Contains(t, sys, "earlier question")
}

func TestSummarizeBuildsTranscript(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{
		textResponse("  the user asked about bonds  "),
	}}
	s := NewLLMSummarizer(mock, "gpt-4o")

	hist := []history.Message{
		{Role: history.RoleUser, Content: "what is a bond?"},
		{Role: history.RoleAssistant, Content: "a debt instrument"},
	}
	summary, err := s.Summarize(context.Background(), hist)
	require.NoError(t, err)
	require.Equal(t, "the user asked about bonds", summary)

	transcript := mock.requests[0].Messages[1].Content
	require.Contains(t, transcript, "user: what is a bond?")
	require.Contains(t, transcript, "assistant: a debt instrument")
}

func TestSummarizeEmptyHistory(t *testing.T) {
	s := NewLLMSummarizer(&mockLLM{}, "gpt-4o")
	_, err := s.Summarize(context.Background(), nil)
	require.Error(t, err)
}

func TestSummarizeEmptyContent(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{textResponse("   ")}}
	s := NewLLMSummarizer(mock, "gpt-4o")
	_, err := s.Summarize(context.Background(), []history.Message{{Role: history.RoleUser, Content: "q"}})
	require.Error(t, err)
}
