package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all settings for a pipeline run. It is constructed once at
// process start and passed into each component's constructor; no component
// reads ambient state directly.
type Config struct {
	// LogPath is the raw log batch to ingest (LOG_PATH).
	LogPath string `mapstructure:"log_path"`
	// InputFormat is json or msgpack; empty infers from the file extension.
	InputFormat string `mapstructure:"input_format"`

	// AnomalyThreshold is the anomaly score cutoff (ANOMALY_THRESHOLD).
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"`

	// BruteForceCountThreshold and BruteForceWindowSeconds parameterize
	// the brute_force rule (BRUTE_FORCE_COUNT_THRESHOLD,
	// BRUTE_FORCE_WINDOW_SECONDS).
	BruteForceCountThreshold int `mapstructure:"brute_force_count_threshold"`
	BruteForceWindowSeconds  int `mapstructure:"brute_force_window_seconds"`

	Dedup struct {
		// WindowSeconds bounds group lifetime; 0 means full-batch grouping.
		WindowSeconds float64 `mapstructure:"window_seconds"`
	} `mapstructure:"dedup"`

	Scorer struct {
		Mode          string `mapstructure:"mode"` // auto, model, heuristic
		Seed          int64  `mapstructure:"seed"`
		NumTrees      int    `mapstructure:"num_trees"`
		SubsampleSize int    `mapstructure:"subsample_size"`
		MaxDepth      int    `mapstructure:"max_depth"`
	} `mapstructure:"scorer"`

	// RulesFile optionally extends the built-in rule set with YAML
	// definitions.
	RulesFile string `mapstructure:"rules_file"`

	Artifact struct {
		// SQLitePath is the local alert archive written before transport.
		SQLitePath string `mapstructure:"sqlite_path"`
		// ReportPath receives the JSON run report. Empty disables it.
		ReportPath string `mapstructure:"report_path"`
	} `mapstructure:"artifact"`

	Alerting struct {
		// Webhook receives the alert list via HTTP POST (ALERT_WEBHOOK).
		Webhook string `mapstructure:"webhook"`
		// APIKey is sent as a bearer token and attached to the collector
		// (API_KEY). APIKeyFile is a fallback read when the key is unset.
		APIKey             string  `mapstructure:"api_key"`
		APIKeyFile         string  `mapstructure:"api_key_file"`
		TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
		RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	} `mapstructure:"alerting"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_path", "data/sample_logs.json")
	v.SetDefault("input_format", "")
	v.SetDefault("anomaly_threshold", 0.6)
	v.SetDefault("brute_force_count_threshold", 5)
	v.SetDefault("brute_force_window_seconds", 300)
	v.SetDefault("dedup.window_seconds", 0)
	v.SetDefault("scorer.mode", "auto")
	v.SetDefault("scorer.seed", 1)
	v.SetDefault("scorer.num_trees", 200)
	v.SetDefault("scorer.subsample_size", 256)
	v.SetDefault("scorer.max_depth", 8)
	v.SetDefault("rules_file", "")
	v.SetDefault("artifact.sqlite_path", "data/alerts.db")
	v.SetDefault("artifact.report_path", "data/report.json")
	v.SetDefault("alerting.webhook", "")
	v.SetDefault("alerting.api_key", "")
	v.SetDefault("alerting.api_key_file", "")
	v.SetDefault("alerting.timeout_seconds", 10)
	v.SetDefault("alerting.rate_limit_per_second", 0)
}

// bindEnv wires the exact environment variable names of the deployment
// contract onto config keys.
func bindEnv(v *viper.Viper) {
	v.BindEnv("log_path", "LOG_PATH")
	v.BindEnv("anomaly_threshold", "ANOMALY_THRESHOLD")
	v.BindEnv("brute_force_count_threshold", "BRUTE_FORCE_COUNT_THRESHOLD")
	v.BindEnv("brute_force_window_seconds", "BRUTE_FORCE_WINDOW_SECONDS")
	v.BindEnv("alerting.webhook", "ALERT_WEBHOOK")
	v.BindEnv("alerting.api_key", "API_KEY")
}

// LoadConfig builds the immutable run configuration from defaults, an
// optional argus.yaml in the working directory, and environment overrides.
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file path.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("argus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Alerting.APIKey == "" && cfg.Alerting.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.Alerting.APIKeyFile)
		if err == nil {
			cfg.Alerting.APIKey = strings.TrimSpace(string(data))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InputFormatOrDefault resolves the effective batch format, inferring
// msgpack from the input file extension when unset.
func (c *Config) InputFormatOrDefault() string {
	if c.InputFormat != "" {
		return c.InputFormat
	}
	if strings.HasSuffix(c.LogPath, ".msgpack") || strings.HasSuffix(c.LogPath, ".mp") {
		return "msgpack"
	}
	return "json"
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.AnomalyThreshold <= 0 || c.AnomalyThreshold > 1 {
		return fmt.Errorf("anomaly_threshold must be in (0, 1], got %v", c.AnomalyThreshold)
	}
	if c.BruteForceCountThreshold < 1 {
		return fmt.Errorf("brute_force_count_threshold must be >= 1, got %d", c.BruteForceCountThreshold)
	}
	if c.BruteForceWindowSeconds < 1 {
		return fmt.Errorf("brute_force_window_seconds must be >= 1, got %d", c.BruteForceWindowSeconds)
	}
	if c.Dedup.WindowSeconds < 0 {
		return fmt.Errorf("dedup.window_seconds must be >= 0, got %v", c.Dedup.WindowSeconds)
	}
	return nil
}
