package matching

import "slices"

const (
	DefaultLimit = 5
	MaxLimit     = 10
)

// Ranker applies a strategy to a candidate list and caps the result.
type Ranker struct {
	limit int
}

// NewRanker clamps limit to [1, MaxLimit].
func NewRanker(limit int) Ranker {
	switch {
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return Ranker{limit: limit}
}

func (r Ranker) Limit() int { return r.limit }

// Rank scores every eligible candidate and returns the best ones in order.
// For strategies with FallbackOnZero, zero-score candidates are dropped unless
// nobody scored, in which case every eligible candidate is kept.
func (r Ranker) Rank(strategy ScoringStrategy, target Target, candidates []Candidate) []Ranked {
	limit := r.limit
	if limit == 0 {
		limit = DefaultLimit
	}

	eligible := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if ranked, ok := strategy.Score(target, c); ok {
			eligible = append(eligible, ranked)
		}
	}

	out := eligible
	if strategy.FallbackOnZero() {
		positive := make([]Ranked, 0, len(eligible))
		for _, ranked := range eligible {
			if ranked.Score > 0 {
				positive = append(positive, ranked)
			}
		}
		if len(positive) > 0 {
			out = positive
		}
	}

	slices.SortStableFunc(out, strategy.Comparator())
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
