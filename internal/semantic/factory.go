package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/wgomg/affinity/internal/config"
	"github.com/wgomg/affinity/internal/utils"
)

// NewEmbedder builds the configured embedding backend and loads its model.
func NewEmbedder(ctx context.Context, logger *utils.Logger, cfg *config.Config) (Embedder, error) {
	var embedder Embedder

	switch cfg.Semantic.Provider {
	case config.ProviderPython:
		pool := NewPythonEmbedder(logger, &cfg.Semantic)
		if err := pool.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize python embedder: %w", err)
		}
		embedder = pool
	case config.ProviderOpenAI:
		client, err := NewOpenAIEmbedder(cfg, logger)
		if err != nil {
			return nil, err
		}
		embedder = client
	case config.ProviderGemini:
		client, err := NewGeminiEmbedder(ctx, &cfg.Semantic, logger)
		if err != nil {
			return nil, err
		}
		embedder = client
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Semantic.Provider)
	}

	logger.Info(nil, "Embedding provider=%s, model=%s", cfg.Semantic.Provider, embedder.ModelName())

	if cfg.Semantic.Cache.Size > 0 && cfg.Semantic.Cache.TTLSeconds > 0 {
		ttl := time.Duration(cfg.Semantic.Cache.TTLSeconds) * time.Second
		logger.Info(nil, "Embedding cache enabled: size=%d, ttl=%s", cfg.Semantic.Cache.Size, ttl)
		embedder = NewCachedEmbedder(embedder, utils.NewVectorCache(cfg.Semantic.Cache.Size, ttl), logger)
	}

	return embedder, nil
}
