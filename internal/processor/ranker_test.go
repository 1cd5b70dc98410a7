package processor

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgomg/affinity/internal/profile"
	"github.com/wgomg/affinity/internal/utils"
)

// bagOfWordsEmbedder counts words over a vocabulary built from the batch, so
// texts sharing more words point in closer directions.
type bagOfWordsEmbedder struct{}

func (bagOfWordsEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	tokenized := make([][]string, len(texts))
	vocab := map[string]int{}
	for i, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !(r >= 'a' && r <= 'z')
		})
		tokenized[i] = words
		for _, w := range words {
			if _, ok := vocab[w]; !ok {
				vocab[w] = len(vocab)
			}
		}
	}

	vectors := make([][]float32, len(texts))
	for i, words := range tokenized {
		vec := make([]float32, len(vocab))
		for _, w := range words {
			vec[vocab[w]]++
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// fixedEmbedder returns preset vectors and records what it was asked to embed.
type fixedEmbedder struct {
	mu      sync.Mutex
	vectors [][]float32
	err     error
	calls   [][]string
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, slices.Clone(texts))
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors, nil
}

func newTestRanker(e Embedder) *Ranker {
	return NewRanker(e, utils.NewDiscardLogger())
}

func user(id int64, bio, interests, occupation string) profile.User {
	return profile.User{
		ID:         profile.IntID(id),
		Bio:        profile.Text(bio),
		Interests:  profile.Text(interests),
		Occupation: profile.Text(occupation),
	}
}

func exampleUsers() []profile.User {
	return []profile.User{
		user(1, "loves hiking", "outdoors", "guide"),
		user(2, "enjoys hiking trips", "outdoors, travel", "guide"),
		user(3, "collects stamps", "philately", "accountant"),
	}
}

func ids(scores []Score) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.ID.String()
	}
	return out
}

func TestRankExample(t *testing.T) {
	r := newTestRanker(bagOfWordsEmbedder{})

	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), exampleUsers(), 2)
	require.NoError(t, err)

	require.Equal(t, []string{"2", "3"}, ids(scores))
	assert.Greater(t, scores[0].Score, scores[1].Score)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s.Score, -1.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
}

func TestRankTargetMissing(t *testing.T) {
	e := &fixedEmbedder{}
	r := newTestRanker(e)

	scores, err := r.Rank(context.Background(), "t", profile.IntID(99), exampleUsers(), 20)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
	assert.Empty(t, e.calls)
}

func TestRankOnlyTarget(t *testing.T) {
	e := &fixedEmbedder{}
	r := newTestRanker(e)

	users := []profile.User{user(1, "a", "b", "c"), user(1, "duplicate", "", "")}
	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), users, 20)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
	assert.Empty(t, e.calls)
}

func TestRankUsesFirstMatchAndExcludesDuplicates(t *testing.T) {
	e := &fixedEmbedder{vectors: [][]float32{{1, 0}, {1, 0}}}
	r := newTestRanker(e)

	users := []profile.User{
		user(2, "other", "", ""),
		user(1, "first", "", ""),
		user(1, "second", "", ""),
	}
	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), users, 20)
	require.NoError(t, err)

	require.Len(t, e.calls, 1)
	assert.Equal(t, []string{
		profile.Compose(users[1]),
		profile.Compose(users[0]),
	}, e.calls[0])
	assert.Equal(t, []string{"2"}, ids(scores))
}

func TestRankNumericIDEquality(t *testing.T) {
	e := &fixedEmbedder{vectors: [][]float32{{1, 0}, {0, 1}}}
	r := newTestRanker(e)

	users := []profile.User{user(1, "", "", ""), {ID: profile.StringID("1")}}
	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), users, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(scores))
	assert.Zero(t, scores[0].Score)
}

func TestRankTopK(t *testing.T) {
	users := []profile.User{user(0, "", "", ""), user(1, "", "", ""), user(2, "", "", ""), user(3, "", "", "")}
	vectors := [][]float32{{1, 0}, {1, 0}, {0, 1}, {1, 1}}

	tests := []struct {
		name string
		topK int
		want []string
	}{
		{name: "truncates", topK: 2, want: []string{"1", "3"}},
		{name: "exceeds candidates", topK: 50, want: []string{"1", "3", "2"}},
		{name: "zero", topK: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRanker(&fixedEmbedder{vectors: vectors})
			scores, err := r.Rank(context.Background(), "t", profile.IntID(0), users, tt.topK)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(scores))
		})
	}
}

func TestRankNegativeTopK(t *testing.T) {
	r := newTestRanker(&fixedEmbedder{})
	_, err := r.Rank(context.Background(), "t", profile.IntID(1), exampleUsers(), -1)
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestRankStableTies(t *testing.T) {
	users := []profile.User{
		user(10, "", "", ""),
		user(5, "", "", ""),
		user(7, "", "", ""),
		user(3, "", "", ""),
		user(9, "", "", ""),
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {0, 1}, {2, 0}, {0, 3}}

	r := newTestRanker(&fixedEmbedder{vectors: vectors})
	scores, err := r.Rank(context.Background(), "t", profile.IntID(10), users, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "3", "7", "9"}, ids(scores))
}

func TestRankZeroVector(t *testing.T) {
	r := newTestRanker(&fixedEmbedder{vectors: [][]float32{{0, 0}, {1, 1}}})
	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), exampleUsers()[:2], 20)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Zero(t, scores[0].Score)
}

func TestRankEmbedFailure(t *testing.T) {
	cause := errors.New("model unavailable")
	r := newTestRanker(&fixedEmbedder{err: cause})

	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), exampleUsers(), 20)
	assert.Nil(t, scores)
	assert.ErrorIs(t, err, ErrScoring)
	assert.ErrorIs(t, err, cause)
}

func TestRankTooFewVectors(t *testing.T) {
	r := newTestRanker(&fixedEmbedder{vectors: [][]float32{{1, 0}}})
	scores, err := r.Rank(context.Background(), "t", profile.IntID(1), exampleUsers(), 20)
	require.NoError(t, err)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

func TestRankVectorCountMismatch(t *testing.T) {
	r := newTestRanker(&fixedEmbedder{vectors: [][]float32{{1, 0}, {1, 0}}})
	_, err := r.Rank(context.Background(), "t", profile.IntID(1), exampleUsers(), 20)
	assert.ErrorIs(t, err, ErrScoring)
}

func TestRankProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	const n = 40
	users := make([]profile.User, n)
	vectors := make([][]float32, n)
	for i := range n {
		users[i] = user(int64(i), "", "", "")
		vec := make([]float32, 8)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		vectors[i] = vec
	}

	r := newTestRanker(&fixedEmbedder{vectors: vectors})
	target := profile.IntID(0)

	for _, topK := range []int{1, 7, n - 1, n + 10} {
		first, err := r.Rank(context.Background(), "t", target, users, topK)
		require.NoError(t, err)

		assert.LessOrEqual(t, len(first), min(topK, n-1))
		for i, s := range first {
			assert.False(t, s.ID.Equal(target))
			if i > 0 {
				assert.LessOrEqual(t, s.Score, first[i-1].Score)
			}
		}

		second, err := r.Rank(context.Background(), "t", target, users, topK)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}
