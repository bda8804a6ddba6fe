package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini generates messages through the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	name   string
}

// GeminiOpts holds parameters for creating a Gemini generator.
type GeminiOpts struct {
	APIKey string
	Model  string
}

// NewGemini creates a Gemini-backed Generator.
func NewGemini(ctx context.Context, opts GeminiOpts) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	name := opts.Model
	if name == "" {
		name = "gemini-2.0-flash-001"
	}
	return &Gemini{client: client, name: name}, nil
}

// generativeModel builds a fresh model for one call. One Generator is shared
// by every concurrent round, and each call carries its own system
// instruction, so the model struct must never be reused across calls.
func (g *Gemini) generativeModel(system string) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.name)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	return model
}

// Generate sends the prompt and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.generativeModel(p.System).GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		return "", fmt.Errorf("llm: gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("llm: gemini: no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("llm: gemini: empty response")
	}
	return content, nil
}
