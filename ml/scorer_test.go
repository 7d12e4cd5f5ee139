package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/core"
)

func TestNewScorer_ModeSelection(t *testing.T) {
	scorer, warning := NewScorer(&ScorerConfig{Mode: ModeHeuristic})
	assert.Nil(t, warning)
	assert.Equal(t, "zscore_heuristic", scorer.Name())

	scorer, warning = NewScorer(&ScorerConfig{Mode: ModeModel})
	assert.Nil(t, warning)
	assert.Equal(t, "isolation_forest", scorer.Name())

	scorer, warning = NewScorer(&ScorerConfig{Mode: ModeAuto})
	assert.Nil(t, warning, "model probe passes in auto mode")
	assert.Equal(t, "isolation_forest", scorer.Name())
}

func TestNewScorer_UnknownModeFallsBack(t *testing.T) {
	scorer, warning := NewScorer(&ScorerConfig{Mode: "quantum"})
	require.NotNil(t, warning)
	assert.Equal(t, core.WarnModelUnavailable, warning.Kind)
	assert.Equal(t, "zscore_heuristic", scorer.Name())
}

func TestExtractFeatures(t *testing.T) {
	fv := ExtractFeatures(group("10.0.0.1", core.EventTypeLoginFailure, 10, 100, 160))
	assert.Equal(t, 10.0, fv.Features[FeatureCount])
	assert.Equal(t, 2.0, fv.Features[FeatureEventCode])
	assert.Equal(t, 60.0, fv.Features[FeatureSpan])
	assert.InDelta(t, 10.0/60.0, fv.Features[FeatureRate], 1e-9)

	// Span under one second must not blow up the rate.
	fv = ExtractFeatures(group("10.0.0.1", core.EventTypeOther, 3, 5, 5))
	assert.Equal(t, 0.0, fv.Features[FeatureSpan])
	assert.Equal(t, 3.0, fv.Features[FeatureRate])
	assert.Equal(t, 0.0, fv.Features[FeatureEventCode])
}
