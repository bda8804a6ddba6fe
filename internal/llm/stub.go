package llm

import "context"

// Stub is a deterministic Generator for tests and offline operation. When
// Reply is nil it returns the prompt-independent default, which carries no
// price so the orchestrator's offer injection path is exercised.
type Stub struct {
	// Reply, when set, computes the response for a prompt.
	Reply func(p Prompt) string
	// Err, when set, is returned from every call.
	Err error

	// Calls records every prompt received, in order.
	Calls []Prompt
}

// Generate returns the stubbed response.
func (s *Stub) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.Calls = append(s.Calls, p)
	if s.Err != nil {
		return "", s.Err
	}
	if s.Reply != nil {
		return s.Reply(p), nil
	}
	return "Let's keep working toward terms that suit us both.", nil
}
