package processor

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/wgomg/affinity/internal/profile"
	"github.com/wgomg/affinity/internal/utils"
)

type Ranker struct {
	embedder Embedder
	logger   *utils.Logger
}

func NewRanker(embedder Embedder, logger *utils.Logger) *Ranker {
	return &Ranker{
		embedder: embedder,
		logger:   logger,
	}
}

// Rank scores every user except the target against the target's profile and
// returns the topK best matches, highest score first. A target that is not
// among users, or a target without candidates, yields an empty result.
// Embedding failures are reported as ErrScoring.
func (r *Ranker) Rank(
	ctx context.Context,
	reqID string,
	targetID profile.ID,
	users []profile.User,
	topK int,
) ([]Score, error) {
	if topK < 0 {
		return nil, ErrInvalidTopK
	}

	targetIdx := slices.IndexFunc(users, func(u profile.User) bool {
		return u.ID.Equal(targetID)
	})
	if targetIdx < 0 {
		r.logger.Info(&reqID, "Target user %s not found among %d users", targetID, len(users))
		return []Score{}, nil
	}

	candidates := make([]profile.User, 0, len(users))
	for _, u := range users {
		if !u.ID.Equal(targetID) {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		r.logger.Info(&reqID, "No candidates besides target user %s", targetID)
		return []Score{}, nil
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, profile.Compose(users[targetIdx]))
	for _, c := range candidates {
		texts = append(texts, profile.Compose(c))
	}

	r.logger.Debug(&reqID, "Embedding %d texts, estimated_tokens=%d, target_text=%q",
		len(texts), utils.EstimateTokens(texts), utils.Preview(texts[0], 200))

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoring, err)
	}

	if len(vectors) < 2 {
		r.logger.Warn(&reqID, "Embedder returned %d vectors for %d texts", len(vectors), len(texts))
		return []Score{}, nil
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", ErrScoring, len(vectors), len(texts))
	}

	target := vectors[0]
	scores := make([]Score, len(candidates))
	for i, c := range candidates {
		scores[i] = Score{
			ID:    c.ID,
			Score: CosineSimilarity(target, vectors[i+1]),
		}
	}

	slices.SortStableFunc(scores, func(a, b Score) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if topK < len(scores) {
		scores = scores[:topK]
	}

	return scores, nil
}
