package llm

import (
	"github.com/fincoach/fincoach-go/internal/config"
	"github.com/sashabaranov/go-openai"
)

// NewClient creates an OpenAI-compatible chat client from configuration.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
