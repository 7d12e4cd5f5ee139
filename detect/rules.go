package detect

import (
	"fmt"
	"os"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"argus/core"
)

// RuleDefinition is a declarative signature rule: predicate parameters
// plus metadata. Every field is a pure function input over a single
// group, so each rule is independently testable. Zero-valued predicate
// fields are unconstrained.
type RuleDefinition struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Description string `yaml:"description" json:"description" validate:"required"`
	Severity    string `yaml:"severity" json:"severity" validate:"required,oneof=low medium high"`

	// Predicate parameters. All that are set must hold for a match.
	EventType      string  `yaml:"event_type,omitempty" json:"event_type,omitempty"`
	SourceIP       string  `yaml:"source_ip,omitempty" json:"source_ip,omitempty"`
	MinCount       int     `yaml:"min_count,omitempty" json:"min_count,omitempty" validate:"gte=0"`
	MaxSpanSeconds float64 `yaml:"max_span_seconds,omitempty" json:"max_span_seconds,omitempty" validate:"gte=0"`
	UserPattern    string  `yaml:"user_pattern,omitempty" json:"user_pattern,omitempty"`
}

// compiledRule is a definition with its user pattern compiled.
type compiledRule struct {
	def     RuleDefinition
	pattern *regexp2.Regexp
}

// matches reports whether the group satisfies every set predicate.
func (r *compiledRule) matches(g *core.DedupedGroup) bool {
	if r.def.EventType != "" && g.Key.EventType != r.def.EventType {
		return false
	}
	if r.def.SourceIP != "" && g.Key.SourceIP != r.def.SourceIP {
		return false
	}
	if r.def.MinCount > 0 && g.Count < r.def.MinCount {
		return false
	}
	if r.def.MaxSpanSeconds > 0 && g.Span() > r.def.MaxSpanSeconds {
		return false
	}
	if r.pattern != nil {
		ok, err := r.pattern.MatchString(g.Representative.User)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// BuiltinRules returns the default declarative rule set in declared
// order. The brute_force thresholds are the configured parameters.
func BuiltinRules(bruteForceCount int, bruteForceWindowSeconds float64) []RuleDefinition {
	return []RuleDefinition{
		{
			ID:             "brute_force",
			Description:    "Repeated login failures from one source within a bounded window",
			Severity:       core.SeverityHigh,
			EventType:      core.EventTypeLoginFailure,
			MinCount:       bruteForceCount,
			MaxSpanSeconds: bruteForceWindowSeconds,
		},
		{
			ID:          "privileged_target",
			Description: "Login failures against a privileged account",
			Severity:    core.SeverityMedium,
			EventType:   core.EventTypeLoginFailure,
			UserPattern: `^(admin|root|administrator)$`,
		},
		{
			ID:          "unknown_source_burst",
			Description: "Burst of events with no attributable source address",
			Severity:    core.SeverityLow,
			SourceIP:    core.SourceIPUnknown,
			MinCount:    3,
		},
	}
}

// LoadRuleFile reads additional rule definitions from a YAML file. The
// file is a list of RuleDefinition documents; validation of individual
// entries happens at engine construction, so a bad entry in the file
// never hides the good ones.
func LoadRuleFile(path string) ([]RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	var defs []RuleDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	return defs, nil
}

// validate checks a definition's structural and semantic correctness and
// compiles its user pattern.
func compileRule(v *validator.Validate, def RuleDefinition) (*compiledRule, error) {
	if err := v.Struct(def); err != nil {
		return nil, fmt.Errorf("invalid rule definition %q: %w", def.ID, err)
	}

	rule := &compiledRule{def: def}
	if def.UserPattern != "" {
		pattern, err := regexp2.Compile(def.UserPattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid user pattern in rule %q: %w", def.ID, err)
		}
		rule.pattern = pattern
	}
	return rule, nil
}
