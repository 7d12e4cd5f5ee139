package detect

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"argus/core"
)

// RuleEngine evaluates each group against a fixed list of signature
// rules in declared order. Rules are pure functions of a single group's
// fields; no cross-group state is kept.
type RuleEngine struct {
	rules  []*compiledRule
	logger *zap.SugaredLogger
}

// RuleEngineConfig holds configuration for the rule engine.
type RuleEngineConfig struct {
	Definitions []RuleDefinition
	Logger      *zap.SugaredLogger
}

// NewRuleEngine compiles the given definitions. Malformed definitions
// are skipped with a rule_definition warning; the rest of the set still
// runs. The returned warnings belong in the run report.
func NewRuleEngine(config *RuleEngineConfig) (*RuleEngine, []core.RunWarning) {
	if config == nil {
		config = &RuleEngineConfig{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	v := validator.New()
	var warnings []core.RunWarning
	rules := make([]*compiledRule, 0, len(config.Definitions))

	for _, def := range config.Definitions {
		rule, err := compileRule(v, def)
		if err != nil {
			config.Logger.Warnw("skipping rule definition", "rule_id", def.ID, "error", err)
			warnings = append(warnings, core.RunWarning{
				Kind:   core.WarnRuleDefinition,
				Detail: err.Error(),
			})
			continue
		}
		rules = append(rules, rule)
	}

	return &RuleEngine{rules: rules, logger: config.Logger}, warnings
}

// RuleCount returns the number of active rules.
func (e *RuleEngine) RuleCount() int {
	return len(e.rules)
}

// Evaluate runs every rule against every group and returns all matches.
// A group may trigger multiple rules; match order follows group order,
// then declared rule order.
func (e *RuleEngine) Evaluate(groups []*core.DedupedGroup) []core.RuleMatch {
	var matches []core.RuleMatch
	for _, g := range groups {
		for _, rule := range e.rules {
			if rule.matches(g) {
				matches = append(matches, core.RuleMatch{
					Key:         g.Key,
					RuleID:      rule.def.ID,
					Severity:    rule.def.Severity,
					Description: rule.def.Description,
				})
			}
		}
	}
	return matches
}
