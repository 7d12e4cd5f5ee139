package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/core"
)

func group(ip, eventType string, count int, firstSeen, lastSeen float64) *core.DedupedGroup {
	return &core.DedupedGroup{
		Key:       core.GroupKey{SourceIP: ip, EventType: eventType},
		Count:     count,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}
}

func builtinEngine(t *testing.T) *RuleEngine {
	t.Helper()
	engine, warnings := NewRuleEngine(&RuleEngineConfig{
		Definitions: BuiltinRules(5, 300),
	})
	require.Empty(t, warnings)
	return engine
}

func TestRuleEngine_BruteForce(t *testing.T) {
	engine := builtinEngine(t)

	tests := []struct {
		name  string
		group *core.DedupedGroup
		want  bool
	}{
		{"burst over threshold", group("10.0.0.1", core.EventTypeLoginFailure, 10, 0, 60), true},
		{"exactly at threshold", group("10.0.0.1", core.EventTypeLoginFailure, 5, 0, 299), true},
		{"under count threshold", group("10.0.0.1", core.EventTypeLoginFailure, 4, 0, 60), false},
		{"window exceeded", group("10.0.0.1", core.EventTypeLoginFailure, 10, 0, 301), false},
		{"wrong event type", group("10.0.0.1", core.EventTypeLoginSuccess, 10, 0, 60), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := engine.Evaluate([]*core.DedupedGroup{tt.group})
			matched := false
			for _, m := range matches {
				if m.RuleID == "brute_force" {
					matched = true
					assert.Equal(t, core.SeverityHigh, m.Severity)
				}
			}
			assert.Equal(t, tt.want, matched)
		})
	}
}

func TestRuleEngine_PrivilegedTarget(t *testing.T) {
	engine := builtinEngine(t)

	g := group("10.0.0.1", core.EventTypeLoginFailure, 1, 0, 0)
	g.Representative.User = "root"
	matches := engine.Evaluate([]*core.DedupedGroup{g})
	require.Len(t, matches, 1)
	assert.Equal(t, "privileged_target", matches[0].RuleID)
	assert.Equal(t, core.SeverityMedium, matches[0].Severity)

	g.Representative.User = "jdoe"
	assert.Empty(t, engine.Evaluate([]*core.DedupedGroup{g}))
}

func TestRuleEngine_UnknownSourceBurst(t *testing.T) {
	engine := builtinEngine(t)

	matches := engine.Evaluate([]*core.DedupedGroup{
		group(core.SourceIPUnknown, core.EventTypeOther, 3, 0, 10),
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "unknown_source_burst", matches[0].RuleID)

	assert.Empty(t, engine.Evaluate([]*core.DedupedGroup{
		group(core.SourceIPUnknown, core.EventTypeOther, 2, 0, 10),
	}))
}

func TestRuleEngine_MultipleMatchesPerGroup(t *testing.T) {
	engine := builtinEngine(t)

	g := group("10.0.0.1", core.EventTypeLoginFailure, 10, 0, 60)
	g.Representative.User = "admin"
	matches := engine.Evaluate([]*core.DedupedGroup{g})
	require.Len(t, matches, 2)
	// Declared rule order.
	assert.Equal(t, "brute_force", matches[0].RuleID)
	assert.Equal(t, "privileged_target", matches[1].RuleID)
}

// Shuffling the input group order must not change which matches a given
// group produces, only their position in the output.
func TestRuleEngine_PurePerGroup(t *testing.T) {
	engine := builtinEngine(t)

	groups := []*core.DedupedGroup{
		group("10.0.0.1", core.EventTypeLoginFailure, 10, 0, 60),
		group(core.SourceIPUnknown, core.EventTypeOther, 4, 0, 10),
		group("10.0.0.2", core.EventTypeLoginSuccess, 1, 0, 0),
	}
	shuffled := []*core.DedupedGroup{groups[2], groups[0], groups[1]}

	byKey := func(matches []core.RuleMatch) map[string][]string {
		out := make(map[string][]string)
		for _, m := range matches {
			out[m.Key.String()] = append(out[m.Key.String()], m.RuleID)
		}
		return out
	}

	assert.Equal(t, byKey(engine.Evaluate(groups)), byKey(engine.Evaluate(shuffled)))
}

func TestRuleEngine_SkipsMalformedDefinitions(t *testing.T) {
	defs := append(BuiltinRules(5, 300),
		RuleDefinition{ID: "", Description: "missing id", Severity: core.SeverityLow},
		RuleDefinition{ID: "bad_severity", Description: "x", Severity: "urgent"},
		RuleDefinition{ID: "bad_pattern", Description: "x", Severity: core.SeverityLow, UserPattern: "("},
	)
	engine, warnings := NewRuleEngine(&RuleEngineConfig{Definitions: defs})

	assert.Equal(t, 3, engine.RuleCount(), "only the built-in rules survive")
	require.Len(t, warnings, 3)
	for _, w := range warnings {
		assert.Equal(t, core.WarnRuleDefinition, w.Kind)
	}
}

func TestLoadRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: night_activity
  description: Login failures outside business hours
  severity: medium
  event_type: login_failure
  min_count: 2
- id: shaky_rule
  description: Bad severity level
  severity: extreme
`), 0o600))

	defs, err := LoadRuleFile(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	engine, warnings := NewRuleEngine(&RuleEngineConfig{Definitions: defs})
	assert.Equal(t, 1, engine.RuleCount())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Detail, "shaky_rule")

	matches := engine.Evaluate([]*core.DedupedGroup{
		group("10.0.0.1", core.EventTypeLoginFailure, 3, 0, 10),
	})
	require.Len(t, matches, 1)
	assert.Equal(t, "night_activity", matches[0].RuleID)
}

func TestLoadRuleFile_Missing(t *testing.T) {
	_, err := LoadRuleFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
