// Package llm provides text-generation clients for ladder logic
// generation, plus composable middleware for retry, rate limiting,
// logging and usage accounting.
package llm

import "context"

// Request is a single text-generation call.
type Request struct {
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// Response carries the generated text and the provider's token counts.
// Token counts are zero when the provider does not report usage.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client generates text from a prompt. Implementations must be safe
// for concurrent use.
type Client interface {
	// Name identifies the provider ("gemini", "openrouter", "fake").
	Name() string
	// Generate runs one completion. It honors ctx cancellation.
	Generate(ctx context.Context, req Request) (Response, error)
	// Close releases underlying resources.
	Close() error
}
