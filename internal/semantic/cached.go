package semantic

import (
	"context"
	"fmt"

	"github.com/wgomg/affinity/internal/utils"
	"github.com/wgomg/affinity/internal/utils/httputils"
)

// CachedEmbedder serves repeated texts from a VectorCache and sends only the
// misses to the wrapped embedder, as a single batch.
type CachedEmbedder struct {
	next   Embedder
	cache  *utils.VectorCache
	logger *utils.Logger
}

func NewCachedEmbedder(next Embedder, cache *utils.VectorCache, logger *utils.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqID := httputils.RequestIDFromContext(ctx)

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	vectors, missing := c.cache.Lookup(keys)

	c.logger.Debug(&reqID, "Embedding cache: request_hits=%d, request_misses=%d, cache_size=%d, total_hit_rate=%f",
		len(texts)-len(missing), len(missing), c.cache.Size(), c.cache.HitRate())

	if len(missing) == 0 {
		return vectors, nil
	}

	missingTexts := make([]string, len(missing))
	for i, idx := range missing {
		missingTexts[i] = texts[idx]
	}

	fresh, err := c.next.Embed(ctx, missingTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrVectorCount, len(fresh), len(missing))
	}

	for i, idx := range missing {
		vectors[idx] = fresh[i]
		c.cache.Add(keys[idx], fresh[i])
	}

	return vectors, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	return c.next.ModelName() + "\x00" + text
}

func (c *CachedEmbedder) ModelName() string {
	return c.next.ModelName()
}

func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.next.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) Close() error {
	return c.next.Close()
}
