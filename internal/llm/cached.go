package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/cache/redis"
	"github.com/evidence-agent/backend/internal/metrics"
	"github.com/evidence-agent/backend/pkg/logger"
	"github.com/evidence-agent/backend/pkg/utils"
)

const embeddingCacheTTL = 24 * time.Hour

// CachedService wraps a Service with a redis embedding cache keyed by text
// hash. Generation is never cached here; answers carry their own cache at
// the handler layer.
type CachedService struct {
	inner Service
	cache *redis.Client
}

func NewCachedService(inner Service, cache *redis.Client) *CachedService {
	return &CachedService{inner: inner, cache: cache}
}

func (s *CachedService) Generate(ctx context.Context, prompt string, contexts []string) (string, error) {
	return s.inner.Generate(ctx, prompt, contexts)
}

func (s *CachedService) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashText(text)

	if vec, hit, err := s.cache.GetEmbedding(ctx, hash); err == nil && hit {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return vec, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetEmbedding(ctx, hash, vec, embeddingCacheTTL); err != nil {
		logger.Warn("failed to cache embedding", zap.Error(err))
	}

	return vec, nil
}

func (s *CachedService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Resolve cache hits first, then embed only the misses in one batch.
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		hash := utils.HashText(text)
		if vec, hit, err := s.cache.GetEmbedding(ctx, hash); err == nil && hit {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			vectors[i] = vec
			continue
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	missingTexts := make([]string, len(missing))
	for j, i := range missing {
		missingTexts[j] = texts[i]
	}

	embedded, err := s.inner.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	for j, i := range missing {
		vectors[i] = embedded[j]
		if err := s.cache.SetEmbedding(ctx, utils.HashText(texts[i]), embedded[j], embeddingCacheTTL); err != nil {
			logger.Warn("failed to cache embedding", zap.Error(err))
		}
	}

	return vectors, nil
}

func (s *CachedService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
