// Package flat is an exact L2 nearest-neighbor index persisted to a JSON
// file alongside its metadata, surviving process restart. Embeddings are
// retained with the metadata so document removal is lossless.
package flat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/vector"
	"github.com/evidence-agent/backend/pkg/logger"
)

const indexFileName = "passages.json"

type entry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Index      int       `json:"index"`
	Embedding  []float32 `json:"embedding"`
}

// Index holds all vectors in memory and scans them exhaustively on search.
// Suited to curated corpora of moderate size, which is the deployment
// target for a vetted-document system.
type Index struct {
	path string

	mu        sync.RWMutex
	entries   []entry
	dimension int
}

func New(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	idx := &Index{path: filepath.Join(dir, indexFileName)}
	if err := idx.load(); err != nil {
		return nil, err
	}

	logger.Info("flat vector index ready",
		zap.String("path", idx.path),
		zap.Int("vectors", len(idx.entries)),
	)

	return idx, nil
}

func (idx *Index) load() error {
	data, err := os.ReadFile(idx.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index file: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode index file: %w", err)
	}

	idx.entries = entries
	if len(entries) > 0 {
		idx.dimension = len(entries[0].Embedding)
	}
	return nil
}

// save writes the full index. Callers must hold idx.mu.
func (idx *Index) save() error {
	data, err := json.Marshal(idx.entries)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return os.Rename(tmp, idx.path)
}

func (idx *Index) Add(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, p := range passages {
		if len(p.Embedding) == 0 {
			return fmt.Errorf("passage %s has no embedding", p.ID)
		}
		if idx.dimension == 0 {
			idx.dimension = len(p.Embedding)
		}
		if len(p.Embedding) != idx.dimension {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", idx.dimension, len(p.Embedding))
		}
		idx.entries = append(idx.entries, entry{
			ID:         p.ID,
			DocumentID: p.DocumentID,
			Content:    p.Content,
			Index:      p.Index,
			Embedding:  p.Embedding,
		})
	}

	if err := idx.save(); err != nil {
		return err
	}

	logger.Info("passages added to flat index",
		zap.Int("count", len(passages)),
		zap.Int("total", len(idx.entries)),
	)

	return nil
}

func (idx *Index) Search(ctx context.Context, queryVec []float32, k int) ([]vector.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(queryVec) != idx.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", idx.dimension, len(queryVec))
	}

	matches := make([]vector.Match, 0, len(idx.entries))
	for _, e := range idx.entries {
		passage, err := domain.NewPassage(e.ID, e.DocumentID, e.Content, e.Index, nil)
		if err != nil {
			continue
		}
		matches = append(matches, vector.Match{
			Passage:  passage,
			Distance: l2Distance(queryVec, e.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (idx *Index) RemoveDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.entries[:0]
	removed := 0
	for _, e := range idx.entries {
		if e.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	idx.entries = kept

	if removed == 0 {
		return nil
	}
	if err := idx.save(); err != nil {
		return err
	}

	logger.Info("document removed from flat index",
		zap.String("document_id", documentID),
		zap.Int("passages_removed", removed),
	)

	return nil
}

func (idx *Index) Stats(ctx context.Context) (vector.Stats, error) {
	if err := ctx.Err(); err != nil {
		return vector.Stats{}, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return vector.Stats{
		TotalVectors: len(idx.entries),
		Dimension:    idx.dimension,
	}, nil
}

func (idx *Index) Close() error {
	return nil
}

func l2Distance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
