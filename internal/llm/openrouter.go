package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// chatClient abstracts the OpenAI API methods we use, enabling test mocks.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenRouter generates messages through the OpenRouter chat-completions API,
// which speaks the OpenAI wire protocol.
type OpenRouter struct {
	client      chatClient
	model       string
	temperature float32
}

// OpenRouterOpts holds parameters for creating an OpenRouter generator.
type OpenRouterOpts struct {
	APIKey      string
	BaseURL     string // defaults to the public OpenRouter endpoint
	Model       string
	Temperature float32
	// For testing: inject a mock client instead of the real API.
	Client chatClient
}

// NewOpenRouter creates an OpenRouter-backed Generator.
func NewOpenRouter(opts OpenRouterOpts) (*OpenRouter, error) {
	if opts.Client == nil && opts.APIKey == "" {
		return nil, fmt.Errorf("llm: openrouter API key is required")
	}
	client := opts.Client
	if client == nil {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		} else {
			cfg.BaseURL = "https://openrouter.ai/api/v1"
		}
		client = openai.NewClientWithConfig(cfg)
	}
	model := opts.Model
	if model == "" {
		model = "meta-llama/llama-3.2-3b-instruct:free"
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.8
	}
	return &OpenRouter{client: client, model: model, temperature: temperature}, nil
}

// Generate sends the prompt and returns the model's reply text.
func (o *OpenRouter) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: openrouter: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openrouter: empty choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm: openrouter: empty response")
	}
	return content, nil
}
