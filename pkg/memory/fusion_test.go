package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRFContribution(t *testing.T) {
	assert.InDelta(t, 1.0/61.0, rrfContribution(0), 1e-12)
	assert.InDelta(t, 1.0/62.0, rrfContribution(1), 1e-12)
	assert.InDelta(t, 1.0/65.0, rrfContribution(4), 1e-12)

	// Strictly decreasing in rank.
	for rank := 0; rank < 20; rank++ {
		assert.Greater(t, rrfContribution(rank), rrfContribution(rank+1))
	}
}

func TestNormalizeRRF(t *testing.T) {
	// Top rank in both streams normalizes to exactly 1.
	assert.InDelta(t, 1.0, normalizeRRF(2.0/61.0), 1e-12)
	// A single-stream hit normalizes below 1.
	assert.Less(t, normalizeRRF(1.0/61.0), 1.0)
	// Values beyond the theoretical maximum are capped.
	assert.Equal(t, 1.0, normalizeRRF(10.0))
}

func TestFuse(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *fakeRepository, id, content string) {
		require.NoError(t, repo.Store(ctx, &Observation{
			ID:          id,
			Content:     content,
			ContentHash: ContentHash(content),
		}))
	}

	t.Run("dual-list presence beats single-list presence", func(t *testing.T) {
		repo := newFakeRepository()
		seed(repo, "obs-both", "rate limiter uses a token bucket")
		seed(repo, "obs-fts", "retry with exponential backoff")

		engine := NewFusionEngine(repo)
		scores, err := engine.Fuse(ctx,
			[]FtsCandidate{
				{ID: "obs-both", Rank: 0},
				{ID: "obs-fts", Rank: 4},
			},
			[]VectorCandidate{
				{Content: "rate limiter uses a token bucket", Rank: 0},
			})
		require.NoError(t, err)

		assert.InDelta(t, 2.0/61.0, scores["obs-both"], 1e-12)
		assert.InDelta(t, 1.0/65.0, scores["obs-fts"], 1e-12)
		assert.Greater(t, scores["obs-both"], scores["obs-fts"])
	})

	t.Run("contributions sum across lists", func(t *testing.T) {
		repo := newFakeRepository()
		seed(repo, "obs-1", "connection pool sizing")

		engine := NewFusionEngine(repo)
		scores, err := engine.Fuse(ctx,
			[]FtsCandidate{{ID: "obs-1", Rank: 2}},
			[]VectorCandidate{{Content: "connection pool sizing", Rank: 5}})
		require.NoError(t, err)

		assert.InDelta(t, 1.0/63.0+1.0/66.0, scores["obs-1"], 1e-12)
	})

	t.Run("unresolvable vector hit is dropped", func(t *testing.T) {
		repo := newFakeRepository()
		engine := NewFusionEngine(repo)

		scores, err := engine.Fuse(ctx, nil,
			[]VectorCandidate{{Content: "content that was never stored", Rank: 0}})
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("both lists empty yields empty scores", func(t *testing.T) {
		engine := NewFusionEngine(newFakeRepository())
		scores, err := engine.Fuse(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("same content in both lists converges on one id", func(t *testing.T) {
		repo := newFakeRepository()
		seed(repo, "obs-x", "schema migration ordering")

		engine := NewFusionEngine(repo)
		scores, err := engine.Fuse(ctx,
			[]FtsCandidate{{ID: "obs-x", Rank: 1}},
			[]VectorCandidate{{Content: "schema migration ordering", Rank: 3}})
		require.NoError(t, err)

		assert.Len(t, scores, 1)
		assert.InDelta(t, 1.0/62.0+1.0/64.0, scores["obs-x"], 1e-12)
	})
}

type failingHashRepo struct {
	*fakeRepository
}

func (f *failingHashRepo) FindByHash(ctx context.Context, hash string) (*Observation, error) {
	return nil, errors.New("disk exploded")
}

func TestFusePropagatesLookupError(t *testing.T) {
	engine := NewFusionEngine(&failingHashRepo{newFakeRepository()})
	_, err := engine.Fuse(context.Background(), nil,
		[]VectorCandidate{{Content: "anything", Rank: 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk exploded")
}
