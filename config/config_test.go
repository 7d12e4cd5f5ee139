package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "data/sample_logs.json", cfg.LogPath)
	assert.Equal(t, 0.6, cfg.AnomalyThreshold)
	assert.Equal(t, 5, cfg.BruteForceCountThreshold)
	assert.Equal(t, 300, cfg.BruteForceWindowSeconds)
	assert.Equal(t, float64(0), cfg.Dedup.WindowSeconds)
	assert.Equal(t, "auto", cfg.Scorer.Mode)
	assert.Equal(t, int64(1), cfg.Scorer.Seed)
	assert.Equal(t, 200, cfg.Scorer.NumTrees)
	assert.Equal(t, "data/alerts.db", cfg.Artifact.SQLitePath)
	assert.Empty(t, cfg.Alerting.Webhook)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_PATH", "/var/log/auth.json")
	t.Setenv("ANOMALY_THRESHOLD", "0.8")
	t.Setenv("BRUTE_FORCE_COUNT_THRESHOLD", "10")
	t.Setenv("BRUTE_FORCE_WINDOW_SECONDS", "120")
	t.Setenv("ALERT_WEBHOOK", "https://hooks.example.com/argus")
	t.Setenv("API_KEY", "env-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/var/log/auth.json", cfg.LogPath)
	assert.Equal(t, 0.8, cfg.AnomalyThreshold)
	assert.Equal(t, 10, cfg.BruteForceCountThreshold)
	assert.Equal(t, 120, cfg.BruteForceWindowSeconds)
	assert.Equal(t, "https://hooks.example.com/argus", cfg.Alerting.Webhook)
	assert.Equal(t, "env-secret", cfg.Alerting.APIKey)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_path: batch.msgpack
anomaly_threshold: 0.7
scorer:
  mode: heuristic
dedup:
  window_seconds: 600
`), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "batch.msgpack", cfg.LogPath)
	assert.Equal(t, 0.7, cfg.AnomalyThreshold)
	assert.Equal(t, "heuristic", cfg.Scorer.Mode)
	assert.Equal(t, float64(600), cfg.Dedup.WindowSeconds)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.BruteForceCountThreshold)
}

func TestLoadConfigFile_APIKeyFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "api.key")
	require.NoError(t, os.WriteFile(keyPath, []byte("file-secret\n"), 0o600))

	cfgPath := filepath.Join(dir, "argus.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("alerting:\n  api_key_file: "+keyPath+"\n"), 0o600))

	cfg, err := LoadConfigFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.Alerting.APIKey)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			AnomalyThreshold:         0.6,
			BruteForceCountThreshold: 5,
			BruteForceWindowSeconds:  300,
		}
		return cfg
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.AnomalyThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.AnomalyThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.BruteForceCountThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.BruteForceWindowSeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Dedup.WindowSeconds = -1
	assert.Error(t, cfg.Validate())
}

func TestConfig_InputFormatOrDefault(t *testing.T) {
	cfg := &Config{LogPath: "batch.json"}
	assert.Equal(t, "json", cfg.InputFormatOrDefault())

	cfg.LogPath = "batch.msgpack"
	assert.Equal(t, "msgpack", cfg.InputFormatOrDefault())

	cfg.InputFormat = "json"
	assert.Equal(t, "json", cfg.InputFormatOrDefault())
}
