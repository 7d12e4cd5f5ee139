package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/core"
)

func testAlert(id, ip, severity string) *core.Alert {
	return &core.Alert{
		ID:              id,
		Key:             core.GroupKey{SourceIP: ip, EventType: core.EventTypeLoginFailure},
		SourceIP:        ip,
		UnifiedSeverity: severity,
		AnomalyScore:    0.8,
		MatchedRules:    []string{"brute_force"},
		FirstSeen:       100,
		LastSeen:        160,
		Message:         "test alert",
	}
}

func TestAlertStore_ArchiveAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	store, err := OpenAlertStore(path, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	err = store.Archive(ctx, []*core.Alert{
		testAlert("a1", "10.0.0.1", core.SeverityCritical),
		testAlert("a2", "10.0.0.2", core.SeverityMedium),
		testAlert("a3", "10.0.0.3", core.SeverityCritical),
	})
	require.NoError(t, err)

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	critical, err := store.Count(ctx, core.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, 2, critical)

	low, err := store.Count(ctx, core.SeverityLow)
	require.NoError(t, err)
	assert.Equal(t, 0, low)
}

func TestAlertStore_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	ctx := context.Background()

	store, err := OpenAlertStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Archive(ctx, []*core.Alert{testAlert("a1", "10.0.0.1", core.SeverityHigh)}))
	require.NoError(t, store.Close())

	store, err = OpenAlertStore(path, nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Archive(ctx, []*core.Alert{testAlert("a2", "10.0.0.2", core.SeverityHigh)}))

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAlertStore_ArchiveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	store, err := OpenAlertStore(path, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Archive(ctx, nil))

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
