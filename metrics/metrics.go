package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_records_ingested_total",
			Help: "Total number of raw log records ingested",
		},
		[]string{"format"},
	)

	GroupsProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_deduped_groups_total",
			Help: "Total number of deduplicated groups produced",
		},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"severity"},
	)

	ScorerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_scorer_runs_total",
			Help: "Total number of scoring passes by algorithm",
		},
		[]string{"algorithm"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_pipeline_run_duration_seconds",
			Help:    "Time taken to run the full pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)
)
