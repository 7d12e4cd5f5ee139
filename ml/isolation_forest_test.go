package ml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/core"
)

func TestIsolationForestScorer_FlagsOutlier(t *testing.T) {
	scorer := NewIsolationForestScorer(&IsolationForestConfig{Threshold: 0.6})

	results, err := scorer.Score(context.Background(), outlierBatch())
	require.NoError(t, err)
	require.Len(t, results, 9)

	outlier := results[0]
	assert.Equal(t, "198.51.100.7", outlier.Key.SourceIP)
	assert.GreaterOrEqual(t, outlier.Score, 0.6, "extreme outlier must clear the threshold")
	assert.True(t, outlier.IsAnomaly)

	for _, res := range results[1:] {
		assert.Less(t, res.Score, outlier.Score, "benign groups score below the outlier")
	}
}

func TestIsolationForestScorer_DeterministicUnderSeed(t *testing.T) {
	first := NewIsolationForestScorer(&IsolationForestConfig{Seed: 42})
	second := NewIsolationForestScorer(&IsolationForestConfig{Seed: 42})

	a, err := first.Score(context.Background(), outlierBatch())
	require.NoError(t, err)
	b, err := second.Score(context.Background(), outlierBatch())
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed and input must score identically")
}

func TestIsolationForestScorer_ScoreRange(t *testing.T) {
	scorer := NewIsolationForestScorer(nil)

	results, err := scorer.Score(context.Background(), outlierBatch())
	require.NoError(t, err)
	for _, res := range results {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
		assert.Equal(t, "isolation_forest", res.Algorithm)
	}
}

func TestIsolationForestScorer_DegenerateBatches(t *testing.T) {
	scorer := NewIsolationForestScorer(nil)

	results, err := scorer.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = scorer.Score(context.Background(), []*core.DedupedGroup{
		group("10.0.0.1", core.EventTypeLoginFailure, 9000, 0, 1),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Score)
	assert.False(t, results[0].IsAnomaly)
}

func TestAveragePathLength(t *testing.T) {
	assert.Zero(t, averagePathLength(1))
	// c(2) = 2*H(1) - 2*(1/2) = 1
	assert.InDelta(t, 1.0, averagePathLength(2), 1e-9)
	assert.Greater(t, averagePathLength(256), averagePathLength(16))
}

func TestCalibrateIsMonotonic(t *testing.T) {
	scorer := NewIsolationForestScorer(nil)
	prev := -1.0
	for _, raw := range []float64{0, 0.2, 0.4, 0.5, 0.6, 0.8, 1} {
		got := scorer.calibrate(raw)
		assert.GreaterOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}
