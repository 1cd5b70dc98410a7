package semantic

import (
	"context"
	"errors"
)

var (
	ErrClosed       = errors.New("embedder is closed")
	ErrVectorCount  = errors.New("embedding count does not match input count")
	errWorkerBroken = errors.New("python worker is broken")
)

// Embedder is a loaded embedding model. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Close() error
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 || len(texts) <= size {
		return [][]string{texts}
	}

	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

func healthCheck(ctx context.Context, e Embedder) error {
	vectors, err := e.Embed(ctx, []string{"health check"})
	if err != nil {
		return err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return ErrVectorCount
	}
	return nil
}
