package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"argus/core"
)

// Field aliases accepted in raw records, in priority order.
var (
	timestampAliases = []string{"timestamp", "time", "@timestamp"}
	sourceIPAliases  = []string{"source_ip", "ip"}
	eventTypeAliases = []string{"event_type", "type", "event"}
	userAliases      = []string{"user", "username"}
)

// timestampLayouts tried for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// sentinelEpsilon is subtracted from the earliest valid timestamp when
// substituting an unparsable one, keeping output order consistent without
// silently reordering records.
const sentinelEpsilon = 0.001

const classifierCacheSize = 1024

// Normalizer converts raw heterogeneous log records into the canonical
// LogRecord shape, repairing missing fields instead of aborting. Only a
// batch that is not iterable at all is fatal, and that is caught upstream
// by the collector.
type Normalizer struct {
	clock    func() time.Time
	classMem *lru.Cache[string, string]
	logger   *zap.SugaredLogger
}

// NormalizerConfig holds configuration for the normalizer.
type NormalizerConfig struct {
	// Clock supplies the ingestion time used when no valid timestamp has
	// been seen yet. Defaults to time.Now; tests pin it.
	Clock  func() time.Time
	Logger *zap.SugaredLogger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(config *NormalizerConfig) (*Normalizer, error) {
	if config == nil {
		config = &NormalizerConfig{}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	// Event classification is a pure function of the record text, so
	// repeated identical messages hit the memo instead of rescanning.
	cache, err := lru.New[string, string](classifierCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier cache: %w", err)
	}

	return &Normalizer{
		clock:    config.Clock,
		classMem: cache,
		logger:   config.Logger,
	}, nil
}

// Normalize converts the raw batch into LogRecords, preserving input
// order. Per-record problems are repaired with defaults and surfaced as
// degraded_field warnings.
func (n *Normalizer) Normalize(raws []map[string]interface{}) ([]core.LogRecord, []core.RunWarning) {
	records := make([]core.LogRecord, 0, len(raws))
	var warnings []core.RunWarning

	earliestValid := 0.0
	haveValid := false

	for i, raw := range raws {
		rec := core.LogRecord{Raw: raw}

		if ts, ok := n.parseTimestamp(raw); ok {
			rec.Timestamp = ts
			if !haveValid || ts < earliestValid {
				earliestValid = ts
				haveValid = true
			}
		} else {
			if haveValid {
				rec.Timestamp = earliestValid - sentinelEpsilon
			} else {
				rec.Timestamp = float64(n.clock().UTC().UnixNano()) / 1e9
			}
			rec.TimestampInferred = true
			warnings = append(warnings, core.RunWarning{
				Kind:   core.WarnDegradedField,
				Detail: fmt.Sprintf("record %d: missing or unparsable timestamp, sentinel substituted", i),
			})
		}

		rec.SourceIP = stringField(raw, sourceIPAliases)
		if rec.SourceIP == "" {
			rec.SourceIP = core.SourceIPUnknown
			warnings = append(warnings, core.RunWarning{
				Kind:   core.WarnDegradedField,
				Detail: fmt.Sprintf("record %d: missing source_ip, defaulted to %q", i, core.SourceIPUnknown),
			})
		}

		rec.EventType = n.resolveEventType(raw)
		rec.User = stringField(raw, userAliases)

		records = append(records, rec)
	}

	n.logger.Debugw("normalized batch", "records", len(records), "warnings", len(warnings))
	return records, warnings
}

// parseTimestamp looks for a timestamp under any accepted alias and
// parses it into epoch seconds.
func (n *Normalizer) parseTimestamp(raw map[string]interface{}) (float64, bool) {
	for _, alias := range timestampAliases {
		v, ok := raw[alias]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case int:
			return float64(t), true
		case int64:
			return float64(t), true
		case string:
			if ts, ok := parseTimestampString(t); ok {
				return ts, true
			}
		}
	}
	return 0, false
}

func parseTimestampString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UTC().UnixNano()) / 1e9, true
		}
	}
	return 0, false
}

// resolveEventType uses an explicit event field when it is already
// canonical, otherwise classifies the record's text fields by keyword.
func (n *Normalizer) resolveEventType(raw map[string]interface{}) string {
	for _, alias := range eventTypeAliases {
		v, ok := raw[alias].(string)
		if !ok || v == "" {
			continue
		}
		switch v {
		case core.EventTypeLoginFailure, core.EventTypeLoginSuccess, core.EventTypeOther:
			return v
		}
		return n.classify(v)
	}

	// No event field at all: classify over every string field present.
	var parts []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return core.EventTypeOther
	}
	return n.classify(strings.Join(parts, " "))
}

// classify maps free text onto a canonical event type via a small fixed
// keyword map, memoized per distinct text.
func (n *Normalizer) classify(text string) string {
	if cached, ok := n.classMem.Get(text); ok {
		return cached
	}

	lowered := strings.ToLower(text)
	eventType := core.EventTypeOther
	switch {
	case strings.Contains(lowered, "fail") || strings.Contains(lowered, "denied") || strings.Contains(lowered, "invalid"):
		eventType = core.EventTypeLoginFailure
	case strings.Contains(lowered, "success") || strings.Contains(lowered, "accept"):
		eventType = core.EventTypeLoginSuccess
	}

	n.classMem.Add(text, eventType)
	return eventType
}

func stringField(raw map[string]interface{}, aliases []string) string {
	for _, alias := range aliases {
		if s, ok := raw[alias].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
