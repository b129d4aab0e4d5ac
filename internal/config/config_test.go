package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10000, cfg.GapThreshold)
	assert.Equal(t, 60, cfg.BatchSize)
	assert.Equal(t, 85, cfg.FuzzyThreshold)
	assert.Equal(t, 3, cfg.MaxParallelGroups)
	assert.Equal(t, "pending_review", cfg.DefaultStatus)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	data := `
db_path: /tmp/agent.db
gap_threshold: 500
fuzzy_threshold: 70
max_parallel_groups: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/agent.db", cfg.DBPath)
	assert.Equal(t, 500, cfg.GapThreshold)
	assert.Equal(t, 70, cfg.FuzzyThreshold)
	assert.Equal(t, 5, cfg.MaxParallelGroups)
	// Unset fields keep their defaults.
	assert.Equal(t, 60, cfg.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONTENT_AGENT_GAP_THRESHOLD", "250")
	t.Setenv("CONTENT_AGENT_FUZZY_THRESHOLD", "45")
	t.Setenv("CONTENT_AGENT_BATCH_DELAY_SECS", "3")
	t.Setenv("CONTENT_AGENT_QUOTA_BACKOFF_MIN_SECS", "60")
	t.Setenv("CONTENT_AGENT_QUOTA_BACKOFF_MAX_SECS", "120")
	t.Setenv("CONTENT_AGENT_DEFAULT_STATUS", "draft")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.GapThreshold)
	assert.Equal(t, 45, cfg.FuzzyThreshold)
	assert.Equal(t, 3*time.Second, cfg.BatchDelay)
	assert.Equal(t, time.Minute, cfg.QuotaBackoffMin)
	assert.Equal(t, 2*time.Minute, cfg.QuotaBackoffMax)
	assert.Equal(t, "draft", cfg.DefaultStatus)
}

func TestEnvInvalidValue(t *testing.T) {
	t.Setenv("CONTENT_AGENT_BATCH_SIZE", "lots")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.GapThreshold = 0 }},
		{"negative fuzzy", func(c *Config) { c.FuzzyThreshold = -1 }},
		{"fuzzy above 100", func(c *Config) { c.FuzzyThreshold = 101 }},
		{"zero parallel", func(c *Config) { c.MaxParallelGroups = 0 }},
		{"excessive parallel", func(c *Config) { c.MaxParallelGroups = 64 }},
		{"inverted quota window", func(c *Config) { c.QuotaBackoffMax = c.QuotaBackoffMin - time.Second }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"empty status", func(c *Config) { c.DefaultStatus = "" }},
		{"zero rps", func(c *Config) { c.ProviderRPS = 0 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStringOmitsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.AnthropicAPIKey = "sk-secret-value"
	assert.NotContains(t, cfg.String(), "sk-secret-value")
}
