package memory

import (
	"context"
)

const (
	// rrfK dampens the weight gap between adjacent ranks.
	rrfK = 60.0
	// rrfScoreStreams is the number of candidate lists feeding fusion;
	// a top hit in both streams scores rrfScoreStreams/(rrfK+1).
	rrfScoreStreams = 2.0
	// hybridSearchMultiplier over-fetches candidates so post-fusion
	// filtering still fills the requested limit.
	hybridSearchMultiplier = 3
)

// rrfContribution is one candidate list's contribution at the given
// 0-based rank: 1/(K+rank+1).
func rrfContribution(rank int) float64 {
	return 1.0 / (rrfK + float64(rank) + 1.0)
}

// normalizeRRF maps a raw fused score into [0, 1] against the maximum a
// candidate can reach (rank 0 in every stream).
func normalizeRRF(score float64) float64 {
	normalized := score / (rrfScoreStreams / (rrfK + 1.0))
	if normalized > 1.0 {
		normalized = 1.0
	}
	return normalized
}

// FusionEngine merges lexical and semantic candidate lists into one score
// map via reciprocal rank fusion. Vector hits arrive by content and are
// re-identified through ContentHash and the repository.
type FusionEngine struct {
	repo Repository
}

// NewFusionEngine returns a fusion engine resolving vector hits through repo.
func NewFusionEngine(repo Repository) *FusionEngine {
	return &FusionEngine{repo: repo}
}

// Fuse accumulates 1/(K+rank+1) per list into a score keyed by observation
// id. An item present in both lists scores strictly higher than the same
// item in only one. Vector candidates whose content does not resolve to a
// stored observation are dropped as noise.
func (e *FusionEngine) Fuse(ctx context.Context, fts []FtsCandidate, vector []VectorCandidate) (map[string]float64, error) {
	scores := make(map[string]float64, len(fts)+len(vector))

	for _, c := range fts {
		scores[c.ID] += rrfContribution(c.Rank)
	}

	for _, c := range vector {
		obs, err := e.repo.FindByHash(ctx, ContentHash(c.Content))
		if err != nil {
			return nil, err
		}
		if obs == nil {
			continue
		}
		scores[obs.ID] += rrfContribution(c.Rank)
	}

	return scores, nil
}
