package responder

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fincoach/fincoach-go/internal/history"
	"github.com/fincoach/fincoach-go/internal/pipeline"
	"github.com/fincoach/fincoach-go/internal/router"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	requests  []openai.ChatCompletionRequest
	responses []openai.ChatCompletionResponse
	err       error
}

func (m *mockLLM) CreateChatCompletion(_ context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		panic("mockLLM: no more responses configured")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestRegistryDispatch(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{textResponse("an ETF is a fund")}}
	reg := NewRegistry()
	RegisterPromptResponders(reg, mock, "gpt-4o")

	answer, err := reg.Respond(context.Background(), router.FinanceQA, "what is an ETF?", &pipeline.ResponderContext{})
	require.NoError(t, err)
	require.Equal(t, "an ETF is a fund", answer)
}

func TestRegistryUnknownResponder(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Respond(context.Background(), "weather", "q", &pipeline.ResponderContext{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "weather")
}

func TestRegistryCoversAllRoutableNames(t *testing.T) {
	mock := &mockLLM{}
	reg := NewRegistry()
	RegisterPromptResponders(reg, mock, "gpt-4o")
	reg.Register(NewTradingResponder(mock, "gpt-4o", nil, nil))

	for _, name := range router.Names() {
		_, ok := reg.responders[name]
		require.True(t, ok, "no responder registered for %q", name)
	}
}

func TestLLMResponderIncludesContext(t *testing.T) {
	mock := &mockLLM{responses: []openai.ChatCompletionResponse{textResponse("answer")}}
	r := NewLLMResponder(router.FinanceQA, financeQAPrompt, mock, "gpt-4o")

	rc := &pipeline.ResponderContext{
		MemorySummary: "user has been asking about bonds",
		History: []history.Message{
			{Role: history.RoleUser, Content: "what is a bond?"},
			{Role: history.RoleAssistant, Content: "a debt instrument"},
		},
	}
	_, err := r.Respond(context.Background(), "and a bond ETF?", rc)
	require.NoError(t, err)

	require.Len(t, mock.requests, 1)
	sys := mock.requests[0].Messages[0]
	require.Equal(t, openai.ChatMessageRoleSystem, sys.Role)
	require.Contains(t, sys.Content, "user has been asking about bonds")
	require.Contains(t, sys.Content, "User: what is a bond?")
	require.Contains(t, sys.Content, "Assistant: a debt instrument")

	user := mock.requests[0].Messages[1]
	require.Equal(t, openai.ChatMessageRoleUser, user.Role)
	require.Equal(t, "and a bond ETF?", user.Content)
}

func TestLLMResponderPropagatesErrors(t *testing.T) {
	mock := &mockLLM{err: errAny}
	r := NewLLMResponder(router.Tax, taxPrompt, mock, "gpt-4o")
	_, err := r.Respond(context.Background(), "q", &pipeline.ResponderContext{})
	require.Error(t, err)
}

var errAny = &openai.APIError{Message: "boom"}

func TestFormatHistoryTruncatesAndWindows(t *testing.T) {
	long := strings.Repeat("x", 400)
	var hist []history.Message
	for i := 0; i < 5; i++ {
		hist = append(hist,
			history.Message{Role: history.RoleUser, Content: "question"},
			history.Message{Role: history.RoleAssistant, Content: long},
		)
	}

	out := formatHistory(hist)
	// Only the last six messages survive.
	require.Equal(t, 3, strings.Count(out, "User: question"))
	require.Contains(t, out, "... [truncated]")
	require.NotContains(t, out, long)
}

func TestFormatHistoryTruncatesOnRuneBoundary(t *testing.T) {
	// A multibyte rune straddling the cut point must be dropped whole so
	// the rendered prompt stays valid UTF-8.
	long := strings.Repeat("x", 299) + strings.Repeat("€", 40)

	out := formatHistory([]history.Message{
		{Role: history.RoleUser, Content: "question"},
		{Role: history.RoleAssistant, Content: long},
	})
	require.Contains(t, out, "... [truncated]")
	require.True(t, utf8.ValidString(out))
}

func TestFormatHistoryLabelsSummary(t *testing.T) {
	out := formatHistory([]history.Message{
		{Role: history.RoleSummary, Content: "earlier the user asked about bonds"},
		{Role: history.RoleUser, Content: "next question"},
	})
	require.Contains(t, out, "Earlier context: earlier the user asked about bonds")
}

func TestFormatHistoryEmpty(t *testing.T) {
	require.Empty(t, formatHistory(nil))
}
