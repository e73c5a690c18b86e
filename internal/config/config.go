// Package config loads runtime configuration for the Serene core.
//
// Precedence, lowest to highest: built-in defaults, optional YAML file,
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	apperrors "github.com/serenemind/serene/backend/internal/errors"
)

// Config holds all tunables for the core services.
type Config struct {
	// Remote API
	APIBaseURL     string        `yaml:"api_base_url" env:"SERENE_API_BASE_URL"`
	APIToken       string        `yaml:"api_token" env:"SERENE_API_TOKEN"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERENE_REQUEST_TIMEOUT"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env:"SERENE_RATE_LIMIT_RPS"`

	// Local storage
	DataDir        string `yaml:"data_dir" env:"SERENE_DATA_DIR"`
	StorageBackend string `yaml:"storage_backend" env:"SERENE_STORAGE_BACKEND"` // bbolt or sqlite

	// Content sync
	StalenessThreshold time.Duration `yaml:"staleness_threshold" env:"SERENE_STALENESS_THRESHOLD"`

	// Offline queue
	ReplayInterval  time.Duration `yaml:"replay_interval" env:"SERENE_REPLAY_INTERVAL"`
	ReplayBatchSize int           `yaml:"replay_batch_size" env:"SERENE_REPLAY_BATCH_SIZE"`

	// Analytics buffer
	FlushInterval  time.Duration `yaml:"flush_interval" env:"SERENE_FLUSH_INTERVAL"`
	FlushThreshold int           `yaml:"flush_threshold" env:"SERENE_FLUSH_THRESHOLD"`

	// Network probe
	ProbeInterval time.Duration `yaml:"probe_interval" env:"SERENE_PROBE_INTERVAL"`

	// Logging
	LogLevel string `yaml:"log_level" env:"SERENE_LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL:         "https://api.serenemind.app",
		RequestTimeout:     30 * time.Second,
		RateLimitRPS:       5,
		DataDir:            "./data",
		StorageBackend:     "bbolt",
		StalenessThreshold: 24 * time.Hour,
		ReplayInterval:     time.Minute,
		ReplayBatchSize:    50,
		FlushInterval:      30 * time.Second,
		FlushThreshold:     100,
		ProbeInterval:      30 * time.Second,
		LogLevel:           "INFO",
	}
}

// Load builds the configuration. If path is non-empty the YAML file at path
// is applied over the defaults, then environment variables are applied over
// both.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, apperrors.Wrap(apperrors.ErrConfig, "read config file", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, apperrors.Wrap(apperrors.ErrConfig, "parse config file", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, apperrors.Wrap(apperrors.ErrConfig, "parse environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks invariants the services rely on.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return apperrors.New(apperrors.ErrConfig, "api_base_url is required")
	}
	if c.StorageBackend != "bbolt" && c.StorageBackend != "sqlite" {
		return apperrors.New(apperrors.ErrConfig,
			fmt.Sprintf("unknown storage_backend %q (want bbolt or sqlite)", c.StorageBackend))
	}
	if c.ReplayBatchSize <= 0 {
		return apperrors.New(apperrors.ErrConfig, "replay_batch_size must be positive")
	}
	if c.FlushThreshold <= 0 {
		return apperrors.New(apperrors.ErrConfig, "flush_threshold must be positive")
	}
	if c.RequestTimeout <= 0 {
		return apperrors.New(apperrors.ErrConfig, "request_timeout must be positive")
	}
	return nil
}
