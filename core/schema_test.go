package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupKeyString(t *testing.T) {
	key := GroupKey{SourceIP: "198.51.100.7", EventType: EventTypeLoginFailure}
	assert.Equal(t, "198.51.100.7|login_failure", key.String())
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityRank(SeverityCritical), SeverityRank(SeverityHigh))
	assert.Greater(t, SeverityRank(SeverityHigh), SeverityRank(SeverityMedium))
	assert.Greater(t, SeverityRank(SeverityMedium), SeverityRank(SeverityLow))
	assert.Equal(t, 0, SeverityRank("bogus"), "unknown severities rank lowest")
}

func TestGroupSpan(t *testing.T) {
	g := DedupedGroup{FirstSeen: 100, LastSeen: 160}
	assert.Equal(t, 60.0, g.Span())
}

func TestInputError(t *testing.T) {
	err := NewInputError("batch.json", assert.AnError)
	assert.Contains(t, err.Error(), "batch.json")
	assert.ErrorIs(t, err, assert.AnError)
}
