package semantic

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/wgomg/affinity/internal/config"
	"github.com/wgomg/affinity/internal/utils"
	"github.com/wgomg/affinity/internal/utils/httputils"
)

// geminiMaxBatch is the per-request content limit of batch embedding.
const geminiMaxBatch = 100

type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
	logger   *utils.Logger
}

func NewGeminiEmbedder(ctx context.Context, cfg *config.SemanticConfig, logger *utils.Logger) (*GeminiEmbedder, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("SEMANTIC_GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client:   client,
		model:    cfg.Model,
		taskType: cfg.Gemini.TaskType,
		logger:   logger,
	}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqID := httputils.RequestIDFromContext(ctx)

	var embedConfig *genai.EmbedContentConfig
	if g.taskType != "" {
		embedConfig = &genai.EmbedContentConfig{TaskType: g.taskType}
	}

	vectors := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, geminiMaxBatch) {
		if len(batch) == 0 {
			continue
		}

		contents := make([]*genai.Content, len(batch))
		for i, text := range batch {
			contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
		}

		g.logger.Debug(&reqID, "Sending gemini embed request: model=%s, inputs=%d", g.model, len(batch))
		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, embedConfig)
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(batch) {
			got := 0
			if resp != nil {
				got = len(resp.Embeddings)
			}
			return nil, fmt.Errorf("%w: got %d for %d texts", ErrVectorCount, got, len(batch))
		}

		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	}

	return vectors, nil
}

func (g *GeminiEmbedder) ModelName() string {
	return g.model
}

func (g *GeminiEmbedder) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, g)
}

func (g *GeminiEmbedder) Close() error {
	return nil
}
