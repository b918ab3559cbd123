// Package llm provides the text-generation and embedding capability used by
// the pipeline. One interface, multiple interchangeable backends selected by
// configuration at process startup.
package llm

import (
	"context"
	"fmt"

	"github.com/evidence-agent/backend/pkg/config"
)

// Service is the generation/embedding capability contract. Implementations
// must be safe for concurrent use.
type Service interface {
	// Generate produces text for the prompt, grounded in the optional
	// context passages. Backends are instructed to refuse with the
	// canonical insufficient-evidence phrase when the context does not
	// support an answer.
	Generate(ctx context.Context, prompt string, contexts []string) (string, error)

	// Embed converts text into a fixed-length vector. Dimensionality is
	// consistent within one deployment.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds many texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// New selects a backend by cfg.Provider.
func New(cfg config.LLMConfig) (Service, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider %q requires an API key", cfg.Provider)
		}
		return NewOpenAIService(cfg), nil
	case "mock", "":
		return NewMockService(cfg.EmbeddingDim), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
