package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wgomg/affinity/internal/config"
	"github.com/wgomg/affinity/internal/utils"
	"github.com/wgomg/affinity/internal/utils/httputils"
)

// openAIMaxBatch is the input limit of the /embeddings endpoint.
const openAIMaxBatch = 2048

type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

type EmbeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type EmbeddingResponse struct {
	Data  []EmbeddingData `json:"data"`
	Model string          `json:"model"`
	Usage Usage           `json:"usage"`
}

type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
	logger     *utils.Logger
}

func NewOpenAIEmbedder(cfg *config.Config, logger *utils.Logger) (*OpenAIEmbedder, error) {
	if cfg.Semantic.OpenAI.URL == "" || cfg.Semantic.OpenAI.Token == "" {
		return nil, fmt.Errorf("SEMANTIC_OPENAI_URL and SEMANTIC_OPENAI_TOKEN are required")
	}

	return &OpenAIEmbedder{
		baseURL: strings.TrimRight(cfg.Semantic.OpenAI.URL, "/"),
		token:   cfg.Semantic.OpenAI.Token,
		model:   cfg.Semantic.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.App.HttpTimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

func (c *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, openAIMaxBatch) {
		if len(batch) == 0 {
			continue
		}
		out, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

func (c *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqID := httputils.RequestIDFromContext(ctx)

	jsonBody, err := json.Marshal(EmbeddingRequest{
		Model:          c.model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug(&reqID, "Sending embeddings request: model=%s, inputs=%d", c.model, len(texts))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleAPIError(resp)
	}

	if _, err := httputils.LogResponseBody(resp, c.logger, reqID); err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var embResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug(&reqID, "Embeddings usage - prompt_tokens: %d, total_tokens: %d",
		embResp.Usage.PromptTokens,
		embResp.Usage.TotalTokens)

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrVectorCount, len(embResp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("invalid embedding index %d in response", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}

func (c *OpenAIEmbedder) ModelName() string {
	return c.model
}

func (c *OpenAIEmbedder) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c)
}

func (c *OpenAIEmbedder) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OpenAIEmbedder) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
}

func (c *OpenAIEmbedder) handleAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Body:       string(body),
	}
}
