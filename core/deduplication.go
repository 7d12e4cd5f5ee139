package core

import (
	"go.uber.org/zap"
)

// Deduplicator collapses repeated identical-behavior records into one
// DedupedGroup per (source_ip, event_type) key, reducing the volume fed
// into scoring. Grouping preserves first-seen order.
type Deduplicator struct {
	windowSeconds float64
	logger        *zap.SugaredLogger
}

// DeduplicatorConfig holds configuration for the deduplicator.
type DeduplicatorConfig struct {
	// WindowSeconds bounds how long a group stays open. A record arriving
	// more than WindowSeconds past its group's first_seen starts a new
	// group for the same key. Zero means full-batch grouping.
	WindowSeconds float64
	Logger        *zap.SugaredLogger
}

// NewDeduplicator creates a deduplicator.
func NewDeduplicator(config *DeduplicatorConfig) *Deduplicator {
	if config == nil {
		config = &DeduplicatorConfig{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	return &Deduplicator{
		windowSeconds: config.WindowSeconds,
		logger:        config.Logger,
	}
}

// Collapse groups records by key and returns the groups in the order their
// first member was encountered. The representative record is always the
// first one seen for the group.
func (d *Deduplicator) Collapse(records []LogRecord) []*DedupedGroup {
	groups := make([]*DedupedGroup, 0, len(records))
	open := make(map[GroupKey]*DedupedGroup)

	for _, rec := range records {
		key := GroupKey{SourceIP: rec.SourceIP, EventType: rec.EventType}

		g, ok := open[key]
		if ok && d.windowSeconds > 0 && rec.Timestamp > g.FirstSeen+d.windowSeconds {
			// Window elapsed for this key; the open group is final.
			delete(open, key)
			ok = false
		}

		if !ok {
			g = &DedupedGroup{
				Key:            key,
				Count:          1,
				FirstSeen:      rec.Timestamp,
				LastSeen:       rec.Timestamp,
				Representative: rec,
			}
			open[key] = g
			groups = append(groups, g)
			continue
		}

		g.Count++
		if rec.Timestamp < g.FirstSeen {
			g.FirstSeen = rec.Timestamp
		}
		if rec.Timestamp > g.LastSeen {
			g.LastSeen = rec.Timestamp
		}
	}

	d.logger.Debugw("collapsed records", "records", len(records), "groups", len(groups))
	return groups
}

// Recollapse runs Collapse over existing groups treated as singleton
// records, preserving their counts. Collapsing is idempotent: the output
// has the same keys and counts as the input when the input already has one
// group per key.
func (d *Deduplicator) Recollapse(groups []*DedupedGroup) []*DedupedGroup {
	out := make([]*DedupedGroup, 0, len(groups))
	seen := make(map[GroupKey]*DedupedGroup)

	for _, g := range groups {
		if prev, ok := seen[g.Key]; ok {
			prev.Count += g.Count
			if g.FirstSeen < prev.FirstSeen {
				prev.FirstSeen = g.FirstSeen
			}
			if g.LastSeen > prev.LastSeen {
				prev.LastSeen = g.LastSeen
			}
			continue
		}
		copied := *g
		seen[g.Key] = &copied
		out = append(out, &copied)
	}

	return out
}
