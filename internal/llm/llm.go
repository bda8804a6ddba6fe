// Package llm abstracts the message-generation collaborator behind a narrow
// interface so the negotiation engine's correctness never depends on a live
// external service.
package llm

import (
	"context"
	"fmt"

	"github.com/econexus/parley/internal/config"
)

// Prompt is a structured generation request.
type Prompt struct {
	System string
	User   string
}

// Generator produces free text from a prompt. Implementations must honor
// context cancellation; callers bound every call with a timeout. The
// returned text must not be assumed to contain a price.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// FromConfig builds the Generator selected by configuration. API keys come
// from the environment: OPENROUTER_API_KEY or GEMINI_API_KEY.
func FromConfig(ctx context.Context, cfg config.LLMConfig, apiKey string) (Generator, error) {
	switch cfg.Provider {
	case "openrouter":
		return NewOpenRouter(OpenRouterOpts{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: float32(cfg.Temperature),
		})
	case "gemini":
		return NewGemini(ctx, GeminiOpts{APIKey: apiKey, Model: cfg.Model})
	case "stub":
		return &Stub{}, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
