// Package vector defines the nearest-neighbor search capability the
// retriever consumes. Backends: a flat file-backed exact index for local
// deployments and tests, and Milvus for production.
package vector

import (
	"context"

	"github.com/evidence-agent/backend/internal/domain"
)

// Match is one search hit. Distance is ascending-better (L2); the retriever
// drops it before passing passages downstream.
type Match struct {
	Passage  domain.Passage
	Distance float32
}

// Stats describes the index contents for health and diagnostics.
type Stats struct {
	TotalVectors int `json:"total_vectors"`
	Dimension    int `json:"dimension"`
}

// Index is the vector search capability. Implementations must be safe for
// concurrent readers; mutation is assumed single-writer.
type Index interface {
	// Add inserts passages with their embeddings.
	Add(ctx context.Context, passages []domain.Passage) error

	// Search returns up to k matches ordered by ascending distance.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)

	// RemoveDocument deletes every passage belonging to a document without
	// disturbing the rest of the index.
	RemoveDocument(ctx context.Context, documentID string) error

	// Stats reports the current index size and dimensionality.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
