package ml

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"argus/core"
)

// heuristicFeatures are the features the fallback scorer deviates on.
// Span is excluded: a long quiet window is not suspicious by itself.
var heuristicFeatures = []string{FeatureCount, FeatureRate}

// HeuristicConfig holds configuration for the fallback scorer.
type HeuristicConfig struct {
	Threshold float64 // anomaly score cutoff (default: 0.6)
	Logger    *zap.SugaredLogger
}

// HeuristicScorer is the deterministic fallback used when the model path
// is unavailable. It scores each group by the largest per-feature z-score
// of count and rate against the batch mean/stddev, mapped monotonically
// into [0,1] via z/(z+1). Pure arithmetic, no model fit.
type HeuristicScorer struct {
	threshold float64
	logger    *zap.SugaredLogger
}

// NewHeuristicScorer creates the fallback scorer.
func NewHeuristicScorer(config *HeuristicConfig) *HeuristicScorer {
	if config == nil {
		config = &HeuristicConfig{}
	}
	if config.Threshold == 0 {
		config.Threshold = 0.6
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	return &HeuristicScorer{threshold: config.Threshold, logger: config.Logger}
}

// Name returns the algorithm name.
func (h *HeuristicScorer) Name() string {
	return "zscore_heuristic"
}

// Score computes batch statistics and scores every group.
func (h *HeuristicScorer) Score(ctx context.Context, groups []*core.DedupedGroup) ([]core.AnomalyResult, error) {
	if len(groups) <= 1 {
		return degenerateResults(groups, h.Name()), nil
	}

	vectors := extractAll(groups)

	means := make(map[string]float64, len(heuristicFeatures))
	stddevs := make(map[string]float64, len(heuristicFeatures))
	for _, name := range heuristicFeatures {
		column := make([]float64, len(vectors))
		for i, fv := range vectors {
			column[i] = fv.Features[name]
		}
		means[name] = stat.Mean(column, nil)
		stddevs[name] = stat.StdDev(column, nil)
	}

	results := make([]core.AnomalyResult, 0, len(vectors))
	for _, fv := range vectors {
		maxZ := 0.0
		for _, name := range heuristicFeatures {
			z := zScore(fv.Features[name], means[name], stddevs[name])
			if z > maxZ {
				maxZ = z
			}
		}
		score := clamp01(maxZ / (maxZ + 1))

		results = append(results, core.AnomalyResult{
			Key:       fv.Key,
			Score:     score,
			IsAnomaly: score >= h.threshold,
			Algorithm: h.Name(),
		})
	}

	return results, nil
}

// zScore returns |value-mean|/stddev. A zero or undefined stddev means the
// column has no spread: identical values score 0, anything else is treated
// as maximally deviant.
func zScore(value, mean, stddev float64) float64 {
	if stddev == 0 || math.IsNaN(stddev) {
		if value == mean {
			return 0
		}
		return 10
	}
	return math.Abs(value-mean) / stddev
}
