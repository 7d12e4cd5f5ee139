package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Event types recognized after normalization. Anything the classifier
// cannot place lands in EventTypeOther.
const (
	EventTypeLoginFailure = "login_failure"
	EventTypeLoginSuccess = "login_success"
	EventTypeOther        = "other"
)

// SourceIPUnknown is substituted when a raw record carries no source address.
const SourceIPUnknown = "unknown"

// LogRecord is the canonical record shape every raw log is normalized into.
// Timestamp is seconds since the Unix epoch (UTC); TimestampInferred marks
// records whose timestamp had to be substituted during normalization.
type LogRecord struct {
	Timestamp         float64                `json:"timestamp"`
	SourceIP          string                 `json:"source_ip"`
	EventType         string                 `json:"event_type"`
	User              string                 `json:"user,omitempty"`
	Raw               map[string]interface{} `json:"raw,omitempty"`
	TimestampInferred bool                   `json:"timestamp_inferred,omitempty"`
}

// GroupKey identifies a deduplicated behavior bucket.
type GroupKey struct {
	SourceIP  string `json:"source_ip"`
	EventType string `json:"event_type"`
}

// String returns the canonical form used for lexical ordering.
func (k GroupKey) String() string {
	return k.SourceIP + "|" + k.EventType
}

// DedupedGroup is one distinct behavior pattern plus its collapsed volume.
type DedupedGroup struct {
	Key            GroupKey  `json:"key"`
	Count          int       `json:"count"`
	FirstSeen      float64   `json:"first_seen"`
	LastSeen       float64   `json:"last_seen"`
	Representative LogRecord `json:"representative"`
}

// Span returns the group's time coverage in seconds.
func (g DedupedGroup) Span() float64 {
	return g.LastSeen - g.FirstSeen
}

// AnomalyResult is the scorer's verdict for a single group.
type AnomalyResult struct {
	Key       GroupKey `json:"group_key"`
	Score     float64  `json:"score"`
	IsAnomaly bool     `json:"is_anomaly"`
	Algorithm string   `json:"algorithm"`
}

// RuleMatch records a signature rule firing against a group.
type RuleMatch struct {
	Key         GroupKey `json:"group_key"`
	RuleID      string   `json:"rule_id"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
}

// Severity levels for rule matches and unified alerts.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityRank maps a severity name to its position in the total order.
// Unknown severities rank lowest.
func SeverityRank(severity string) int {
	return severityRank[severity]
}

// Alert is the unified output of the pipeline. Immutable once created;
// each run produces a fresh list with no cross-run state.
type Alert struct {
	ID              string   `json:"alert_id"`
	Key             GroupKey `json:"group_key"`
	SourceIP        string   `json:"source_ip"`
	UnifiedSeverity string   `json:"unified_severity"`
	AnomalyScore    float64  `json:"anomaly_score"`
	MatchedRules    []string `json:"matched_rules"`
	FirstSeen       float64  `json:"first_seen"`
	LastSeen        float64  `json:"last_seen"`
	Message         string   `json:"message"`
}

// NewAlert creates an alert with a generated UUID.
func NewAlert(key GroupKey) *Alert {
	return &Alert{
		ID:       uuid.New().String(),
		Key:      key,
		SourceIP: key.SourceIP,
	}
}

// Warning kinds surfaced in a run report. None of these abort a run.
const (
	WarnDegradedField    = "degraded_field"
	WarnModelUnavailable = "model_unavailable"
	WarnRuleDefinition   = "rule_definition"
)

// RunWarning is a non-fatal condition observed during a pipeline run.
type RunWarning struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func (w RunWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}

// Transport statuses reported after a run.
const (
	TransportDelivered = "delivered"
	TransportSkipped   = "skipped"
	TransportFailed    = "failed"
)

// RunReport is the result of a single pipeline run. Alerts are always
// populated when the run completes, regardless of transport outcome.
type RunReport struct {
	RecordsIn       int          `json:"records_in"`
	Groups          int          `json:"groups"`
	Alerts          []*Alert     `json:"alerts"`
	Warnings        []RunWarning `json:"warnings,omitempty"`
	ScorerAlgorithm string       `json:"scorer_algorithm"`
	TransportStatus string       `json:"transport_status"`
	TransportDetail string       `json:"transport_detail,omitempty"`
}
