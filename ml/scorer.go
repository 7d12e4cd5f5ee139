package ml

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"argus/core"
)

// Scorer selection modes.
const (
	ModeAuto      = "auto"
	ModeModel     = "model"
	ModeHeuristic = "heuristic"
)

// ScorerConfig selects and parameterizes the anomaly scorer for a run.
type ScorerConfig struct {
	Mode          string  // auto, model, or heuristic (default: auto)
	Threshold     float64 // anomaly score cutoff (default: 0.6)
	NumTrees      int
	SubsampleSize int
	MaxDepth      int
	Seed          int64
	Logger        *zap.SugaredLogger
}

// NewScorer builds the scorer for a pipeline run. In auto mode the
// model-backed scorer is probed with a throwaway batch; if the probe
// fails the heuristic takes over and a model_unavailable warning is
// returned. Callers downstream never branch on the active variant.
func NewScorer(config *ScorerConfig) (Scorer, *core.RunWarning) {
	if config == nil {
		config = &ScorerConfig{}
	}
	if config.Mode == "" {
		config.Mode = ModeAuto
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	heuristic := NewHeuristicScorer(&HeuristicConfig{
		Threshold: config.Threshold,
		Logger:    config.Logger,
	})

	switch config.Mode {
	case ModeHeuristic:
		return heuristic, nil
	case ModeModel, ModeAuto:
		forest := NewIsolationForestScorer(&IsolationForestConfig{
			NumTrees:      config.NumTrees,
			SubsampleSize: config.SubsampleSize,
			MaxDepth:      config.MaxDepth,
			Threshold:     config.Threshold,
			Seed:          config.Seed,
			Logger:        config.Logger,
		})
		if err := probe(forest); err != nil {
			config.Logger.Warnw("model scorer unavailable, using heuristic", "error", err)
			return heuristic, &core.RunWarning{
				Kind:   core.WarnModelUnavailable,
				Detail: err.Error(),
			}
		}
		return forest, nil
	default:
		config.Logger.Warnw("unknown scorer mode, using heuristic", "mode", config.Mode)
		return heuristic, &core.RunWarning{
			Kind:   core.WarnModelUnavailable,
			Detail: fmt.Sprintf("unknown scorer mode %q", config.Mode),
		}
	}
}

// probe runs the model scorer over a canned two-group batch so a broken
// model path is caught at construction time rather than mid-run.
func probe(s Scorer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model probe panicked: %v", r)
		}
	}()

	groups := []*core.DedupedGroup{
		{Key: core.GroupKey{SourceIP: "probe-a", EventType: core.EventTypeOther}, Count: 1},
		{Key: core.GroupKey{SourceIP: "probe-b", EventType: core.EventTypeLoginFailure}, Count: 5, LastSeen: 10},
	}
	results, err := s.Score(context.Background(), groups)
	if err != nil {
		return fmt.Errorf("model probe failed: %w", err)
	}
	if len(results) != len(groups) {
		return fmt.Errorf("model probe returned %d results for %d groups", len(results), len(groups))
	}
	return nil
}
