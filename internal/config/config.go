// Package config loads service settings: built-in defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/resilience"
)

// EnvConfigPath names the environment variable holding the YAML path.
const EnvConfigPath = "RISK_CONFIG"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Storage  StorageConfig   `yaml:"storage"`
	Limits   RateLimitConfig `yaml:"rate_limit"`
	Analysis analysis.Config `yaml:"analysis"`
	// Startup retries for sqlite and redis.
	Retry resilience.RetryConfig `yaml:"retry"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	LeaderboardTTL  time.Duration `yaml:"leaderboard_ttl"`
}

// StorageConfig says where data lives. An empty TrainingCSV starts the
// service untrained.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	TrainingCSV string `yaml:"training_csv"`

	// Analyses older than this are purged; applications are kept.
	AnalysisRetention time.Duration `yaml:"analysis_retention"`
}

// RateLimitConfig configures per-client request limits. With RedisAddr set
// limits are shared across instances.
type RateLimitConfig struct {
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
	RedisAddr         string `yaml:"redis_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "release",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			MaxUploadBytes:  32 << 20,
			LeaderboardTTL:  time.Minute,
		},
		Storage: StorageConfig{
			DataDir:           "./data",
			AnalysisRetention: 365 * 24 * time.Hour,
		},
		Limits: RateLimitConfig{
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Analysis: analysis.DefaultConfig(),
		Retry:    resilience.DefaultRetryConfig(),
	}
}

// Load builds the configuration from defaults, the file named by
// RISK_CONFIG if set, and the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads path over the defaults without consulting the environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Server.Port)
	str("GIN_MODE", &c.Server.GinMode)
	str("DATA_DIR", &c.Storage.DataDir)
	str("TRAINING_CSV", &c.Storage.TrainingCSV)
	str("REDIS_ADDR", &c.Limits.RedisAddr)

	if v := getenv("ATTRIBUTION_SAMPLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ATTRIBUTION_SAMPLES: %w", err)
		}
		c.Analysis.Explain.Samples = n
	}
	if v := getenv("ATTRIBUTION_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ATTRIBUTION_SEED: %w", err)
		}
		c.Analysis.Explain.Seed = n
	}
	if v := getenv("ATTRIBUTION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ATTRIBUTION_TIMEOUT: %w", err)
		}
		c.Analysis.AttributionTimeout = d
	}
	if v := getenv("ANALYSIS_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ANALYSIS_RETENTION: %w", err)
		}
		c.Storage.AnalysisRetention = d
	}
	if v := getenv("RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_MIN: %w", err)
		}
		c.Limits.RequestsPerMinute = n
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Storage.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Storage.AnalysisRetention < 0 {
		return fmt.Errorf("analysis_retention must not be negative, got %s", c.Storage.AnalysisRetention)
	}
	if c.Limits.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative, got %d", c.Limits.RequestsPerMinute)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	return nil
}
