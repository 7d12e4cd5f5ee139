package ml

import (
	"context"

	"argus/core"
)

// Scorer assigns each deduplicated group a continuous anomaly score in
// [0,1]. Implementations are selected once at pipeline construction;
// callers never branch on which variant is active.
type Scorer interface {
	// Name returns the scoring algorithm name.
	Name() string

	// Score fits on the current batch and returns one AnomalyResult per
	// group, order-preserving. Batches of size 0 or 1 are degenerate
	// input, not an error: no fit happens and the result carries a zero
	// score.
	Score(ctx context.Context, groups []*core.DedupedGroup) ([]core.AnomalyResult, error)
}

// FeatureVector holds the numeric features extracted for one group.
type FeatureVector struct {
	Key      core.GroupKey      `json:"group_key"`
	Features map[string]float64 `json:"features"`
}

// degenerateResults handles the 0/1-group edge case shared by all scorers.
func degenerateResults(groups []*core.DedupedGroup, algorithm string) []core.AnomalyResult {
	results := make([]core.AnomalyResult, 0, len(groups))
	for _, g := range groups {
		results = append(results, core.AnomalyResult{
			Key:       g.Key,
			Score:     0,
			IsAnomaly: false,
			Algorithm: algorithm,
		})
	}
	return results
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
