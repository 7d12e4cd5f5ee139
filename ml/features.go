package ml

import (
	"math"

	"argus/core"
)

// Feature names extracted per group. Kept sorted where ordering matters so
// tree construction is reproducible.
const (
	FeatureCount     = "count"
	FeatureEventCode = "event_code"
	FeatureRate      = "rate"
	FeatureSpan      = "span"
)

// featureNames in canonical order.
var featureNames = []string{FeatureCount, FeatureEventCode, FeatureRate, FeatureSpan}

// eventCode maps event types onto an ordinal scale, most suspicious highest.
func eventCode(eventType string) float64 {
	switch eventType {
	case core.EventTypeLoginFailure:
		return 2
	case core.EventTypeLoginSuccess:
		return 1
	default:
		return 0
	}
}

// ExtractFeatures builds the feature vector for one group: collapsed
// volume, event-type code, time span, and event rate over that span.
func ExtractFeatures(g *core.DedupedGroup) *FeatureVector {
	span := g.Span()
	if span < 0 || math.IsNaN(span) {
		span = 0
	}
	rate := float64(g.Count) / math.Max(span, 1)

	return &FeatureVector{
		Key: g.Key,
		Features: map[string]float64{
			FeatureCount:     float64(g.Count),
			FeatureEventCode: eventCode(g.Key.EventType),
			FeatureRate:      rate,
			FeatureSpan:      span,
		},
	}
}

// extractAll extracts features for every group, order-preserving.
func extractAll(groups []*core.DedupedGroup) []*FeatureVector {
	vectors := make([]*FeatureVector, 0, len(groups))
	for _, g := range groups {
		vectors = append(vectors, ExtractFeatures(g))
	}
	return vectors
}
