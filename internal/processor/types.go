package processor

import (
	"context"
	"errors"

	"github.com/wgomg/affinity/internal/profile"
)

const DefaultTopK = 20

var (
	ErrScoring     = errors.New("scoring failed")
	ErrInvalidTopK = errors.New("top_k must not be negative")
)

// Embedder turns a batch of texts into one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Score struct {
	ID    profile.ID `json:"id"`
	Score float64    `json:"score"`
}
