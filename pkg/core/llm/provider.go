// Package llm abstracts the language-model providers used by the assistant
// collaborators (intent parsing, trends keywords, response composition). The
// prediction resolution core never depends on this package.
package llm

import (
	"context"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats.
	AdaptInstructions(rawInstructions string) string
}
