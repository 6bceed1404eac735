package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:            "postgres://localhost/docvault",
		EmbeddingProviderKey:   "sk-test",
		EmbeddingModel:         "text-embedding-3-large",
		EmbeddingDim:           3072,
		EmbeddingInputTokenCap: 8000,
		DocsHostRPM:            10,
		EmbeddingRPM:           3000,
		EmbeddingTPM:           1_000_000,
		BatchPollMinInterval:   10 * time.Second,
		BatchMaxLines:          20_000,
		BatchMaxResubmit:       3,
		JobWorkers:             4,
		JobLeaseTTL:            5 * time.Minute,
		JobRetentionDays:       30,
		CacheTTL:               5 * time.Minute,
		CacheMaxEntries:        10_000,
		ScoreFloor:             0.0,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config passes", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "missing embedding provider key", mutate: func(c *Config) { c.EmbeddingProviderKey = "" }, wantErr: true},
		{name: "missing embedding model", mutate: func(c *Config) { c.EmbeddingModel = "" }, wantErr: true},
		{name: "zero embedding dim", mutate: func(c *Config) { c.EmbeddingDim = 0 }, wantErr: true},
		{name: "zero embedding input token cap", mutate: func(c *Config) { c.EmbeddingInputTokenCap = 0 }, wantErr: true},
		{name: "zero docs host rpm", mutate: func(c *Config) { c.DocsHostRPM = 0 }, wantErr: true},
		{name: "zero batch poll min interval", mutate: func(c *Config) { c.BatchPollMinInterval = 0 }, wantErr: true},
		{name: "zero batch max lines", mutate: func(c *Config) { c.BatchMaxLines = 0 }, wantErr: true},
		{name: "negative batch max resubmit", mutate: func(c *Config) { c.BatchMaxResubmit = -1 }, wantErr: true},
		{name: "zero job workers", mutate: func(c *Config) { c.JobWorkers = 0 }, wantErr: true},
		{name: "zero job lease ttl", mutate: func(c *Config) { c.JobLeaseTTL = 0 }, wantErr: true},
		{name: "zero job retention days", mutate: func(c *Config) { c.JobRetentionDays = 0 }, wantErr: true},
		{name: "zero cache ttl", mutate: func(c *Config) { c.CacheTTL = 0 }, wantErr: true},
		{name: "zero cache max entries", mutate: func(c *Config) { c.CacheMaxEntries = 0 }, wantErr: true},
		{name: "negative score floor", mutate: func(c *Config) { c.ScoreFloor = -0.1 }, wantErr: true},
		{name: "score floor above one", mutate: func(c *Config) { c.ScoreFloor = 1.1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_NilReceiver(t *testing.T) {
	var c *Config
	assert.Error(t, c.Validate())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docvault")
	t.Setenv("EMBEDDING_PROVIDER_KEY", "sk-test")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-large", c.EmbeddingModel)
	assert.Equal(t, 3072, c.EmbeddingDim)
	assert.Equal(t, 8000, c.EmbeddingInputTokenCap)
	assert.Equal(t, 10, c.DocsHostRPM)
	assert.Equal(t, 3000, c.EmbeddingRPM)
	assert.Equal(t, 1_000_000, c.EmbeddingTPM)
	assert.Equal(t, 10*time.Second, c.BatchPollMinInterval)
	assert.Equal(t, 20_000, c.BatchMaxLines)
	assert.Equal(t, 3, c.BatchMaxResubmit)
	assert.Equal(t, 4, c.JobWorkers)
	assert.Equal(t, 300*time.Second, c.JobLeaseTTL)
	assert.Equal(t, 30, c.JobRetentionDays)
	assert.Equal(t, 300*time.Second, c.CacheTTL)
	assert.Equal(t, 10_000, c.CacheMaxEntries)
	assert.Equal(t, 0.0, c.ScoreFloor)
	assert.Equal(t, "tools.yaml", c.ToolConfigPath)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)
}

func TestLoad_HonorsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docvault")
	t.Setenv("EMBEDDING_PROVIDER_KEY", "sk-test")
	t.Setenv("JOB_WORKERS", "8")
	t.Setenv("SCORE_FLOOR", "0.25")
	t.Setenv("LOG_FORMAT", "json")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, c.JobWorkers)
	assert.Equal(t, 0.25, c.ScoreFloor)
	assert.Equal(t, "json", c.LogFormat)
}

func TestLoad_MissingRequiredFieldsFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDING_PROVIDER_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docvault")
	t.Setenv("EMBEDDING_PROVIDER_KEY", "sk-test")
	t.Setenv("JOB_WORKERS", "not-a-number")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, c.JobWorkers)
}
