// Package ingestion turns uploaded source files into indexed passages:
// extract text, segment into chunks, embed, then write to the vector index
// and the document store.
package ingestion

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/cache/redis"
	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/metrics"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/internal/vector"
	"github.com/evidence-agent/backend/pkg/logger"
)

type Processor struct {
	db      *sqlite.Client
	index   vector.Index
	llm     llm.Service
	cache   *redis.Client
	chunker *Chunker
}

// NewProcessor wires the ingestion flow. cache may be nil.
func NewProcessor(db *sqlite.Client, index vector.Index, svc llm.Service, cache *redis.Client, maxChunkSize, chunkOverlap int) *Processor {
	return &Processor{
		db:      db,
		index:   index,
		llm:     svc,
		cache:   cache,
		chunker: NewChunker(maxChunkSize, chunkOverlap),
	}
}

// ProcessDocument ingests one document end to end and returns the number of
// passages indexed. The document record is persisted before chunking so a
// partial failure is visible as a document with zero chunks.
func (p *Processor) ProcessDocument(ctx context.Context, doc domain.Document) (int, error) {
	logger.Info("Processing document",
		zap.String("doc_id", doc.ID),
		zap.String("title", doc.Title),
		zap.String("format", string(doc.Format)),
	)

	if err := p.db.InsertDocument(doc); err != nil {
		return 0, fmt.Errorf("failed to persist document: %w", err)
	}

	text, err := ExtractText(doc.FilePath, doc.Format)
	if err != nil {
		return 0, fmt.Errorf("failed to extract text: %w", err)
	}
	if text == "" {
		return 0, fmt.Errorf("no content extracted from %s", doc.FilePath)
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %s", doc.FilePath)
	}
	logger.Info("Document chunked", zap.String("doc_id", doc.ID), zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := p.llm.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	passages := make([]domain.Passage, 0, len(chunks))
	for i, chunk := range chunks {
		passage, err := domain.NewPassage(
			fmt.Sprintf("%s_chunk_%d", doc.ID, i),
			doc.ID,
			chunk.Content,
			i,
			embeddings[i],
		)
		if err != nil {
			return 0, fmt.Errorf("failed to build passage %d: %w", i, err)
		}
		if chunk.SemanticBoundary {
			passage.SemanticBoundary = "sentence"
		}
		passages = append(passages, passage)
	}

	if err := p.index.Add(ctx, passages); err != nil {
		return 0, fmt.Errorf("failed to index passages: %w", err)
	}
	if err := p.db.InsertPassages(passages); err != nil {
		return 0, fmt.Errorf("failed to persist passages: %w", err)
	}
	if err := p.db.UpdateDocumentChunkCount(doc.ID, len(passages)); err != nil {
		return 0, fmt.Errorf("failed to update chunk count: %w", err)
	}

	p.invalidateAnswers(ctx)

	metrics.DocumentsProcessed.Inc()
	metrics.PassagesIndexed.Add(float64(len(passages)))

	logger.Info("Document processed",
		zap.String("doc_id", doc.ID),
		zap.Int("passages", len(passages)),
	)

	return len(passages), nil
}

// BatchResult reports the outcome of one document in a batch.
type BatchResult struct {
	DocumentID string
	Passages   int
	Err        error
}

// ProcessBatch ingests documents concurrently. A failed document yields a
// result with zero passages and its error; it never aborts the batch.
func (p *Processor) ProcessBatch(ctx context.Context, docs []domain.Document) []BatchResult {
	results := make([]BatchResult, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc domain.Document) {
			defer wg.Done()
			count, err := p.ProcessDocument(ctx, doc)
			results[i] = BatchResult{DocumentID: doc.ID, Passages: count, Err: err}
			if err != nil {
				logger.Warn("Batch document failed",
					zap.String("doc_id", doc.ID),
					zap.Error(err),
				)
			}
		}(i, doc)
	}
	wg.Wait()

	return results
}

// RemoveDocument deletes a document and its passages from both the index
// and the store.
func (p *Processor) RemoveDocument(ctx context.Context, docID string) error {
	if err := p.index.RemoveDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to remove from index: %w", err)
	}
	if err := p.db.DeleteDocument(docID); err != nil {
		return fmt.Errorf("failed to remove from store: %w", err)
	}

	p.invalidateAnswers(ctx)

	logger.Info("Document removed", zap.String("doc_id", docID))
	return nil
}

func (p *Processor) invalidateAnswers(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateAnswers(ctx); err != nil {
		logger.Warn("Failed to invalidate answer cache", zap.Error(err))
	}
}
