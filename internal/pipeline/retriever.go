package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/vector"
	"github.com/evidence-agent/backend/pkg/logger"
)

const defaultTopK = 5

// Retriever fetches the top-K nearest passages for a query from the vector
// index. Any retrieval failure degrades to an empty result, which the
// pipeline interprets as grounds for an insufficient-evidence answer.
type Retriever struct {
	llm   llm.Service
	index vector.Index
	topK  int
}

func NewRetriever(svc llm.Service, index vector.Index, topK int) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{llm: svc, index: index, topK: topK}
}

// Retrieve returns passages ordered nearest-first. Distances are an
// internal search detail and are not exposed downstream.
func (r *Retriever) Retrieve(ctx context.Context, query domain.Query) []domain.Passage {
	embedding, err := r.llm.Embed(ctx, query.Content)
	if err != nil {
		logger.Warn("query embedding failed, returning no evidence",
			zap.String("query_id", query.ID),
			zap.Error(err),
		)
		return nil
	}

	matches, err := r.index.Search(ctx, embedding, r.topK)
	if err != nil {
		logger.Warn("vector search failed, returning no evidence",
			zap.String("query_id", query.ID),
			zap.Error(err),
		)
		return nil
	}

	passages := make([]domain.Passage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, m.Passage)
	}

	logger.Info("evidence retrieved",
		zap.String("query_id", query.ID),
		zap.Int("passages", len(passages)),
	)

	return passages
}

// FilterByDomain is an extension point for domain-scoped retrieval.
// Passages are not guaranteed to carry domain metadata, so the default
// passes everything through.
func (r *Retriever) FilterByDomain(passages []domain.Passage, dom domain.QueryDomain) []domain.Passage {
	return passages
}
