// Package milvus backs the vector index capability with a Milvus
// collection for production deployments.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/domain"
	"github.com/evidence-agent/backend/internal/vector"
	"github.com/evidence-agent/backend/pkg/logger"
)

type Index struct {
	client         client.Client
	collectionName string
	dimension      int
}

func New(ctx context.Context, endpoint, collectionName string, dimension int) (*Index, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	idx := &Index{
		client:         c,
		collectionName: collectionName,
		dimension:      dimension,
	}

	if err := idx.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("milvus index ready",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return idx, nil
}

func (m *Index) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return m.client.LoadCollection(ctx, m.collectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "curated document passages",
		Fields: []*entity.Field{
			{
				Name:       "passage_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dimension)},
			},
			{
				Name:       "content",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "4096"},
			},
			{
				Name:       "document_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

func (m *Index) Add(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	ids := make([]string, len(passages))
	embeddings := make([][]float32, len(passages))
	contents := make([]string, len(passages))
	docIDs := make([]string, len(passages))
	indexes := make([]int64, len(passages))

	for i, p := range passages {
		if len(p.Embedding) != m.dimension {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", m.dimension, len(p.Embedding))
		}
		ids[i] = p.ID
		embeddings[i] = p.Embedding
		contents[i] = p.Content
		docIDs[i] = p.DocumentID
		indexes[i] = int64(p.Index)
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("passage_id", ids),
		entity.NewColumnFloatVector("embedding", m.dimension, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("document_id", docIDs),
		entity.NewColumnInt64("chunk_index", indexes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert passages: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("passages inserted into milvus", zap.Int("count", len(passages)))

	return nil
}

func (m *Index) Search(ctx context.Context, queryVec []float32, k int) ([]vector.Match, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"passage_id", "content", "document_id", "chunk_index"},
		[]entity.Vector{entity.FloatVector(queryVec)},
		"embedding",
		entity.L2,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]vector.Match, 0)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("passage_id")
		contentCol := sr.Fields.GetColumn("content")
		docCol := sr.Fields.GetColumn("document_id")
		indexCol := sr.Fields.GetColumn("chunk_index")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := idCol.Get(i)
			content, _ := contentCol.Get(i)
			docID, _ := docCol.Get(i)
			chunkIndex, _ := indexCol.Get(i)

			passage, err := domain.NewPassage(
				id.(string),
				docID.(string),
				content.(string),
				int(chunkIndex.(int64)),
				nil,
			)
			if err != nil {
				continue
			}
			matches = append(matches, vector.Match{
				Passage:  passage,
				Distance: sr.Scores[i],
			})
		}
	}

	return matches, nil
}

func (m *Index) RemoveDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`document_id == "%s"`, documentID)
	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete document passages: %w", err)
	}

	logger.Info("document removed from milvus", zap.String("document_id", documentID))
	return nil
}

func (m *Index) Stats(ctx context.Context) (vector.Stats, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collectionName)
	if err != nil {
		return vector.Stats{}, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	total := 0
	if rowCount, ok := stats["row_count"]; ok {
		fmt.Sscanf(rowCount, "%d", &total)
	}

	return vector.Stats{
		TotalVectors: total,
		Dimension:    m.dimension,
	}, nil
}

func (m *Index) Close() error {
	return m.client.Close()
}
