package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNegativeIndex  = errors.New("passage index must be non-negative")
	ErrEmptyEmbedding = errors.New("embedding must have at least one dimension if provided")
)

// Passage is a contiguous span of source text, the unit of retrieval.
// Produced once at ingestion time; never mutated after creation.
type Passage struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
	Embedding  []float32
	// SemanticBoundary marks whether the passage ends on a sentence boundary.
	SemanticBoundary string
	CreatedAt        time.Time
}

func NewPassage(id, documentID, content string, index int, embedding []float32) (Passage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Passage{}, ErrEmptyContent
	}
	if index < 0 {
		return Passage{}, ErrNegativeIndex
	}
	if embedding != nil && len(embedding) == 0 {
		return Passage{}, ErrEmptyEmbedding
	}

	return Passage{
		ID:         id,
		DocumentID: documentID,
		Content:    content,
		Index:      index,
		Embedding:  embedding,
		CreatedAt:  time.Now(),
	}, nil
}
