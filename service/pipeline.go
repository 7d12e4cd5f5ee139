package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"argus/config"
	"argus/core"
	"argus/detect"
	"argus/ingest"
	"argus/metrics"
	"argus/ml"
	"argus/notify"
	"argus/storage"
	"argus/threat"
)

// Pipeline is the synchronous batch detection pipeline:
// raw logs -> normalize -> dedup -> {score, rules} -> aggregate -> deliver.
// A Pipeline holds no mutable state between runs, so concurrent Run calls
// are safe.
type Pipeline struct {
	cfg        *config.Config
	collector  *ingest.Collector
	normalizer *ingest.Normalizer
	dedup      *core.Deduplicator
	scorer     ml.Scorer
	fallback   ml.Scorer
	engine     *detect.RuleEngine
	aggregator *threat.Aggregator
	notifier   *notify.Notifier
	store      *storage.AlertStore
	logger     *zap.SugaredLogger

	// Warnings produced during construction (scorer probe, rule
	// compilation); folded into every run report.
	startupWarnings []core.RunWarning
}

// NewPipeline wires all pipeline components from the run configuration.
func NewPipeline(cfg *config.Config, logger *zap.SugaredLogger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var startupWarnings []core.RunWarning

	collector, err := ingest.NewCollector(&ingest.CollectorConfig{
		Path:   cfg.LogPath,
		Format: cfg.InputFormat,
		APIKey: cfg.Alerting.APIKey,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build collector: %w", err)
	}

	normalizer, err := ingest.NewNormalizer(&ingest.NormalizerConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to build normalizer: %w", err)
	}

	dedup := core.NewDeduplicator(&core.DeduplicatorConfig{
		WindowSeconds: cfg.Dedup.WindowSeconds,
		Logger:        logger,
	})

	scorer, warning := ml.NewScorer(&ml.ScorerConfig{
		Mode:          cfg.Scorer.Mode,
		Threshold:     cfg.AnomalyThreshold,
		NumTrees:      cfg.Scorer.NumTrees,
		SubsampleSize: cfg.Scorer.SubsampleSize,
		MaxDepth:      cfg.Scorer.MaxDepth,
		Seed:          cfg.Scorer.Seed,
		Logger:        logger,
	})
	if warning != nil {
		startupWarnings = append(startupWarnings, *warning)
	}

	definitions := detect.BuiltinRules(cfg.BruteForceCountThreshold, float64(cfg.BruteForceWindowSeconds))
	if cfg.RulesFile != "" {
		extra, err := detect.LoadRuleFile(cfg.RulesFile)
		if err != nil {
			// A broken rule file degrades like a malformed rule: the
			// built-in set still runs.
			logger.Warnw("failed to load rules file", "path", cfg.RulesFile, "error", err)
			startupWarnings = append(startupWarnings, core.RunWarning{
				Kind:   core.WarnRuleDefinition,
				Detail: err.Error(),
			})
		} else {
			definitions = append(definitions, extra...)
		}
	}
	engine, ruleWarnings := detect.NewRuleEngine(&detect.RuleEngineConfig{
		Definitions: definitions,
		Logger:      logger,
	})
	startupWarnings = append(startupWarnings, ruleWarnings...)

	aggregator := threat.NewAggregator(&threat.AggregatorConfig{
		Threshold: cfg.AnomalyThreshold,
		Logger:    logger,
	})

	notifier := notify.NewNotifier(&notify.NotifierConfig{
		WebhookURL: cfg.Alerting.Webhook,
		APIKey:     cfg.Alerting.APIKey,
		Timeout:    time.Duration(cfg.Alerting.TimeoutSeconds) * time.Second,
		RateLimit:  rate.Limit(cfg.Alerting.RateLimitPerSecond),
		Logger:     logger,
	})

	var store *storage.AlertStore
	if cfg.Artifact.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Artifact.SQLitePath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
		store, err = storage.OpenAlertStore(cfg.Artifact.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open alert store: %w", err)
		}
	}

	return &Pipeline{
		cfg:             cfg,
		collector:       collector,
		normalizer:      normalizer,
		dedup:           dedup,
		scorer:          scorer,
		fallback:        ml.NewHeuristicScorer(&ml.HeuristicConfig{Threshold: cfg.AnomalyThreshold, Logger: logger}),
		engine:          engine,
		aggregator:      aggregator,
		notifier:        notifier,
		store:           store,
		logger:          logger,
		startupWarnings: startupWarnings,
	}, nil
}

// Close releases the artifact store.
func (p *Pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Run collects the configured batch and processes it. Only a batch-level
// input failure (or an artifact write failure) is returned as an error;
// everything else degrades into report warnings.
func (p *Pipeline) Run(ctx context.Context) (*core.RunReport, error) {
	raws, err := p.collector.Collect()
	if err != nil {
		return nil, err
	}
	metrics.RecordsIngested.WithLabelValues(p.cfg.InputFormatOrDefault()).Add(float64(len(raws)))
	return p.RunBatch(ctx, raws)
}

// RunBatch processes an already-collected raw batch.
func (p *Pipeline) RunBatch(ctx context.Context, raws []map[string]interface{}) (*core.RunReport, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	report := &core.RunReport{
		RecordsIn: len(raws),
		Alerts:    []*core.Alert{},
		Warnings:  append([]core.RunWarning(nil), p.startupWarnings...),
	}

	records, warnings := p.normalizer.Normalize(raws)
	report.Warnings = append(report.Warnings, warnings...)

	groups := p.dedup.Collapse(records)
	report.Groups = len(groups)
	metrics.GroupsProduced.Add(float64(len(groups)))

	anomalies := p.score(ctx, groups, report)
	matches := p.engine.Evaluate(groups)

	report.Alerts = p.aggregator.Aggregate(groups, anomalies, matches)
	for _, alert := range report.Alerts {
		metrics.AlertsGenerated.WithLabelValues(alert.UnifiedSeverity).Inc()
	}

	// The local artifact is written before transport so a delivery failure
	// never loses already-computed alerts.
	if p.store != nil {
		if err := p.store.Archive(ctx, report.Alerts); err != nil {
			return nil, fmt.Errorf("failed to write alert artifact: %w", err)
		}
	}
	if p.cfg.Artifact.ReportPath != "" {
		if err := p.writeReport(report); err != nil {
			return nil, err
		}
	}

	p.deliver(ctx, report)

	p.logger.Infow("pipeline run complete",
		"records", report.RecordsIn,
		"groups", report.Groups,
		"alerts", len(report.Alerts),
		"warnings", len(report.Warnings),
		"transport", report.TransportStatus,
	)
	return report, nil
}

// score runs the selected scorer, degrading to the deterministic fallback
// if the model path fails mid-run. The output contract is identical either
// way.
func (p *Pipeline) score(ctx context.Context, groups []*core.DedupedGroup, report *core.RunReport) []core.AnomalyResult {
	anomalies, err := p.scorer.Score(ctx, groups)
	if err != nil {
		p.logger.Warnw("scorer failed, using fallback", "algorithm", p.scorer.Name(), "error", err)
		report.Warnings = append(report.Warnings, core.RunWarning{
			Kind:   core.WarnModelUnavailable,
			Detail: fmt.Sprintf("%s failed: %v", p.scorer.Name(), err),
		})
		anomalies, _ = p.fallback.Score(ctx, groups)
		report.ScorerAlgorithm = p.fallback.Name()
	} else {
		report.ScorerAlgorithm = p.scorer.Name()
	}
	metrics.ScorerRuns.WithLabelValues(report.ScorerAlgorithm).Inc()
	return anomalies
}

func (p *Pipeline) deliver(ctx context.Context, report *core.RunReport) {
	if !p.notifier.Configured() {
		report.TransportStatus = core.TransportSkipped
		report.TransportDetail = "no webhook configured"
		return
	}
	if err := p.notifier.Deliver(ctx, report.Alerts); err != nil {
		// Delivery failure is a collaborator-level condition: alerts are
		// already archived, so it never rolls anything back.
		p.logger.Errorw("alert delivery failed", "error", err)
		report.TransportStatus = core.TransportFailed
		report.TransportDetail = err.Error()
		return
	}
	report.TransportStatus = core.TransportDelivered
}

func (p *Pipeline) writeReport(report *core.RunReport) error {
	if err := os.MkdirAll(filepath.Dir(p.cfg.Artifact.ReportPath), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	if err := os.WriteFile(p.cfg.Artifact.ReportPath, data, 0o640); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}
