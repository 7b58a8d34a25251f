package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the subset of the openai client the responders use.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}
