// Package config loads docvault's process-wide configuration from the
// environment, following the recognized-option list and defaults from the
// specification. Config is a process-wide singleton, built once at startup
// and handed by reference to every component that needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every recognized configuration option. Zero value is not
// valid; use Load to populate defaults and overrides.
type Config struct {
	DatabaseURL string

	EmbeddingProviderKey   string
	EmbeddingModel         string
	EmbeddingDim           int
	EmbeddingInputTokenCap int

	DocsHostRPM  int
	EmbeddingRPM int
	EmbeddingTPM int

	BatchPollMinInterval time.Duration
	BatchMaxLines        int
	BatchMaxResubmit     int

	JobWorkers       int
	JobLeaseTTL      time.Duration
	JobRetentionDays int

	CacheTTL         time.Duration
	CacheMaxEntries  int
	ScoreFloor       float64

	ToolConfigPath string

	LogLevel  string
	LogFormat string // "text" or "json"
}

// Validate checks that every option is within its valid range, returning the
// first violation encountered.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: database_url is required")
	}
	if c.EmbeddingProviderKey == "" {
		return fmt.Errorf("config: embedding_provider_key is required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("config: embedding_model is required")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("config: embedding_dim must be positive")
	}
	if c.EmbeddingInputTokenCap <= 0 {
		return fmt.Errorf("config: embedding_input_token_cap must be positive")
	}
	if c.DocsHostRPM <= 0 || c.EmbeddingRPM <= 0 || c.EmbeddingTPM <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	if c.BatchPollMinInterval <= 0 {
		return fmt.Errorf("config: batch_poll_min_interval_sec must be positive")
	}
	if c.BatchMaxLines <= 0 {
		return fmt.Errorf("config: batch_max_lines must be positive")
	}
	if c.BatchMaxResubmit < 0 {
		return fmt.Errorf("config: batch_max_resubmit must not be negative")
	}
	if c.JobWorkers <= 0 {
		return fmt.Errorf("config: job_workers must be positive")
	}
	if c.JobLeaseTTL <= 0 {
		return fmt.Errorf("config: job_lease_ttl_sec must be positive")
	}
	if c.JobRetentionDays <= 0 {
		return fmt.Errorf("config: job_retention_days must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: cache_ttl_sec must be positive")
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("config: cache_max_entries must be positive")
	}
	if c.ScoreFloor < 0 || c.ScoreFloor > 1 {
		return fmt.Errorf("config: score_floor must be within [0,1]")
	}
	return nil
}

// Load reads configuration from the environment, filling in defaults for
// anything unset, then validates the result.
func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		EmbeddingProviderKey: os.Getenv("EMBEDDING_PROVIDER_KEY"),
		EmbeddingModel:         getenvDefault("EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingDim:           getenvIntDefault("EMBEDDING_DIM", 3072),
		EmbeddingInputTokenCap: getenvIntDefault("EMBEDDING_INPUT_TOKEN_CAP", 8000),

		DocsHostRPM:  getenvIntDefault("RATE_LIMITS_DOCS_HOST_RPM", 10),
		EmbeddingRPM: getenvIntDefault("RATE_LIMITS_EMBEDDING_RPM", 3000),
		EmbeddingTPM: getenvIntDefault("RATE_LIMITS_EMBEDDING_TPM", 1_000_000),

		BatchPollMinInterval: time.Duration(getenvIntDefault("BATCH_POLL_MIN_INTERVAL_SEC", 10)) * time.Second,
		BatchMaxLines:        getenvIntDefault("BATCH_MAX_LINES", 20_000),
		BatchMaxResubmit:     getenvIntDefault("BATCH_MAX_RESUBMIT", 3),

		JobWorkers:       getenvIntDefault("JOB_WORKERS", 4),
		JobLeaseTTL:      time.Duration(getenvIntDefault("JOB_LEASE_TTL_SEC", 300)) * time.Second,
		JobRetentionDays: getenvIntDefault("JOB_RETENTION_DAYS", 30),

		CacheTTL:        time.Duration(getenvIntDefault("CACHE_TTL_SEC", 300)) * time.Second,
		CacheMaxEntries: getenvIntDefault("CACHE_MAX_ENTRIES", 10_000),
		ScoreFloor:      getenvFloatDefault("SCORE_FLOOR", 0.0),

		ToolConfigPath: getenvDefault("TOOL_CONFIG_PATH", "tools.yaml"),

		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		LogFormat: getenvDefault("LOG_FORMAT", "text"),
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
