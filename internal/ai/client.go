package ai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the subset of the OpenAI API the gateway uses
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// NewClient creates an OpenAI client. An empty baseURL keeps the default API.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
