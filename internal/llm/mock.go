package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"
)

// MockService is the deterministic, network-free backend. It is a
// first-class variant for offline runs and tests, not a stub: embeddings
// are stable per input text, and generation follows the same grounding
// contract as the real backends.
type MockService struct {
	dimension int
}

func NewMockService(dimension int) *MockService {
	if dimension <= 0 {
		dimension = 1536
	}
	return &MockService{dimension: dimension}
}

func (s *MockService) Generate(ctx context.Context, prompt string, contexts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lower := strings.ToLower(prompt)

	// Relevance probes get a verdict, claim-extraction probes get a pair
	// list, safety rewrites echo the original content, everything else gets
	// a grounded answer or a refusal.
	switch {
	case strings.Contains(lower, "respond with only 'relevant'"):
		return "RELEVANT", nil
	case strings.Contains(lower, "claim - source chunk"):
		return "", nil
	case strings.Contains(lower, "safety guidelines"):
		return extractBetween(prompt, "Response: ", "\n\nImproved response:"), nil
	case strings.Contains(lower, "classify the following query"):
		return classifyByTerms(lower), nil
	}

	if len(contexts) == 0 {
		return "Insufficient verified evidence available.", nil
	}

	first := contexts[0]
	if len(first) > 160 {
		cut := 160
		for cut > 0 && !utf8.RuneStart(first[cut]) {
			cut--
		}
		first = first[:cut]
	}
	return fmt.Sprintf("Based on the verified sources provided, the evidence indicates: %s", first), nil
}

func classifyByTerms(lower string) string {
	switch {
	case strings.Contains(lower, "patient"), strings.Contains(lower, "treatment"),
		strings.Contains(lower, "medication"), strings.Contains(lower, "diagnosis"),
		strings.Contains(lower, "symptom"):
		return "medical"
	case strings.Contains(lower, "contract"), strings.Contains(lower, "court"),
		strings.Contains(lower, "statute"), strings.Contains(lower, "liability"),
		strings.Contains(lower, "regulation"):
		return "legal"
	default:
		return "unknown"
	}
}

func extractBetween(text, start, end string) string {
	i := strings.Index(text, start)
	if i < 0 {
		return text
	}
	rest := text[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func (s *MockService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, s.dimension)
	for i := range vec {
		// Deterministic per text and position, normalized to [-1, 1).
		v := (seed*uint64(i+1)*31 + 17) % 10000
		vec[i] = float32(v)/5000.0 - 1.0
	}
	return vec, nil
}

func (s *MockService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (s *MockService) Ping(ctx context.Context) error {
	return ctx.Err()
}
