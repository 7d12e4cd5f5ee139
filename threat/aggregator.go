package threat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"argus/core"
)

// alertNamespace seeds name-based alert IDs. IDs are derived from the
// group key so identical input produces an identical alert sequence.
var alertNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Aggregator merges anomaly scores and rule matches per group into a
// single prioritized alert stream.
type Aggregator struct {
	threshold float64
	logger    *zap.SugaredLogger
}

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	// Threshold is the anomaly score cutoff, shared with the scorer.
	Threshold float64
	Logger    *zap.SugaredLogger
}

// NewAggregator creates a threat aggregator.
func NewAggregator(config *AggregatorConfig) *Aggregator {
	if config == nil {
		config = &AggregatorConfig{}
	}
	if config.Threshold == 0 {
		config.Threshold = 0.6
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	return &Aggregator{threshold: config.Threshold, logger: config.Logger}
}

// Aggregate returns exactly one alert per group that carries at least one
// triggering signal (anomaly or rule match). Groups with neither signal
// are dropped. Output order is unified severity descending, then anomaly
// score descending, then group key lexical - stable and reproducible for
// identical input.
func (a *Aggregator) Aggregate(groups []*core.DedupedGroup, anomalies []core.AnomalyResult, matches []core.RuleMatch) []*core.Alert {
	scoreByKey := make(map[core.GroupKey]core.AnomalyResult, len(anomalies))
	for _, res := range anomalies {
		scoreByKey[res.Key] = res
	}
	matchesByKey := make(map[core.GroupKey][]core.RuleMatch)
	for _, m := range matches {
		matchesByKey[m.Key] = append(matchesByKey[m.Key], m)
	}

	alerts := make([]*core.Alert, 0, len(groups))
	for _, g := range groups {
		res := scoreByKey[g.Key]
		groupMatches := matchesByKey[g.Key]

		if !res.IsAnomaly && len(groupMatches) == 0 {
			continue
		}

		ruleIDs := make([]string, 0, len(groupMatches))
		for _, m := range groupMatches {
			ruleIDs = append(ruleIDs, m.RuleID)
		}

		alert := &core.Alert{
			ID:              uuid.NewSHA1(alertNamespace, []byte(g.Key.String())).String(),
			Key:             g.Key,
			SourceIP:        g.Key.SourceIP,
			UnifiedSeverity: a.unifiedSeverity(res.Score, groupMatches),
			AnomalyScore:    res.Score,
			MatchedRules:    ruleIDs,
			FirstSeen:       g.FirstSeen,
			LastSeen:        g.LastSeen,
		}
		alert.Message = a.formatMessage(alert)
		alerts = append(alerts, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri := core.SeverityRank(alerts[i].UnifiedSeverity)
		rj := core.SeverityRank(alerts[j].UnifiedSeverity)
		if ri != rj {
			return ri > rj
		}
		if alerts[i].AnomalyScore != alerts[j].AnomalyScore {
			return alerts[i].AnomalyScore > alerts[j].AnomalyScore
		}
		return alerts[i].Key.String() < alerts[j].Key.String()
	})

	a.logger.Debugw("aggregated alerts", "groups", len(groups), "alerts", len(alerts))
	return alerts
}

// unifiedSeverity applies the deterministic severity policy: a high rule
// match or near-certain anomaly is critical; any other signal is high or
// medium depending on score; low is kept for completeness but unreachable
// for groups that carried a signal.
func (a *Aggregator) unifiedSeverity(score float64, matches []core.RuleMatch) string {
	anyHigh := false
	for _, m := range matches {
		if m.Severity == core.SeverityHigh {
			anyHigh = true
			break
		}
	}

	switch {
	case anyHigh || score >= 0.9:
		return core.SeverityCritical
	case len(matches) > 0 || score >= a.threshold:
		if score >= 0.75 {
			return core.SeverityHigh
		}
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

func (a *Aggregator) formatMessage(alert *core.Alert) string {
	rules := "none"
	if len(alert.MatchedRules) > 0 {
		rules = strings.Join(alert.MatchedRules, ", ")
	}
	return fmt.Sprintf("%s severity activity from %s: matched rules [%s], anomaly score %.2f",
		alert.UnifiedSeverity, alert.SourceIP, rules, alert.AnomalyScore)
}
