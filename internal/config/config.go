// Package config holds the agent's configuration: defaults, optional YAML
// file loading, environment variable overrides, and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration surface of the content agent.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`

	// AnthropicAPIKey is the provider credential. If empty, the generator
	// falls back to the ANTHROPIC_API_KEY environment variable.
	AnthropicAPIKey string `yaml:"-"`

	// Model is the provider model identifier.
	Model string `yaml:"model"`

	// GapThreshold is the minimum question count per exam. Exams below it
	// are picked up by the gap scan, most-starved first.
	GapThreshold int `yaml:"gap_threshold"`

	// BatchSize is the number of candidates requested per provider call.
	BatchSize int `yaml:"batch_size"`

	// SeedSampleSize is how many existing questions to sample when picking
	// a generation seed for an exam.
	SeedSampleSize int `yaml:"seed_sample_size"`

	// FuzzyThreshold is the token-set similarity score (0-100) above which
	// a candidate counts as a fuzzy duplicate. 0 makes everything a
	// duplicate; 100 degenerates to exact matching only.
	FuzzyThreshold int `yaml:"fuzzy_threshold"`

	// MaxParallelGroups bounds how many exams are processed concurrently
	// within one round. Remaining exams queue behind the bound.
	MaxParallelGroups int `yaml:"max_parallel_groups"`

	// BatchDelay is the deliberate pause after each completed batch,
	// throttling the per-exam provider call rate.
	BatchDelay time.Duration `yaml:"batch_delay"`

	// RoundDelay is the pause between normally completed rounds.
	RoundDelay time.Duration `yaml:"round_delay"`

	// IdleDelay is the pause when the scan finds no gaps at all.
	IdleDelay time.Duration `yaml:"idle_delay"`

	// RetryDelay is the pause after a generic round-level failure.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// QuotaBackoffMin/Max bound the randomized backoff window applied when
	// the provider signals quota exhaustion. The draw is uniform so that
	// multiple agents sharing a quota do not retry in lockstep.
	QuotaBackoffMin time.Duration `yaml:"quota_backoff_min"`
	QuotaBackoffMax time.Duration `yaml:"quota_backoff_max"`

	// DrainTimeout is the hard cap on waiting for in-flight workers after
	// a shutdown request.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// ProviderRPS caps the provider call rate across all workers.
	ProviderRPS float64 `yaml:"provider_rps"`

	// DefaultStatus and DefaultRevision are the lifecycle fields stamped
	// onto every newly hydrated question.
	DefaultStatus   string `yaml:"default_status"`
	DefaultRevision int    `yaml:"default_revision"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DBPath:            "content-agent.db",
		Model:             "claude-3-5-haiku-20241022",
		GapThreshold:      10000,
		BatchSize:         60,
		SeedSampleSize:    50,
		FuzzyThreshold:    85,
		MaxParallelGroups: 3,
		BatchDelay:        10 * time.Second,
		RoundDelay:        2 * time.Second,
		IdleDelay:         5 * time.Minute,
		RetryDelay:        30 * time.Second,
		QuotaBackoffMin:   2 * time.Minute,
		QuotaBackoffMax:   5 * time.Minute,
		DrainTimeout:      2 * time.Minute,
		ProviderRPS:       1.0,
		DefaultStatus:     "pending_review",
		DefaultRevision:   0,
	}
}

// Load reads configuration from an optional YAML file, applies environment
// overrides on top of it, and validates the result. An empty path skips the
// file and uses defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides config fields from CONTENT_AGENT_* environment
// variables. Durations are given in seconds to match how operators tuned
// the original deployment.
//
// Variables:
//   - CONTENT_AGENT_DB_PATH
//   - ANTHROPIC_API_KEY
//   - CONTENT_AGENT_MODEL
//   - CONTENT_AGENT_GAP_THRESHOLD
//   - CONTENT_AGENT_BATCH_SIZE
//   - CONTENT_AGENT_SEED_SAMPLE_SIZE
//   - CONTENT_AGENT_FUZZY_THRESHOLD
//   - CONTENT_AGENT_MAX_PARALLEL_GROUPS
//   - CONTENT_AGENT_BATCH_DELAY_SECS
//   - CONTENT_AGENT_ROUND_DELAY_SECS
//   - CONTENT_AGENT_IDLE_DELAY_SECS
//   - CONTENT_AGENT_RETRY_DELAY_SECS
//   - CONTENT_AGENT_QUOTA_BACKOFF_MIN_SECS
//   - CONTENT_AGENT_QUOTA_BACKOFF_MAX_SECS
//   - CONTENT_AGENT_DRAIN_TIMEOUT_SECS
//   - CONTENT_AGENT_PROVIDER_RPS
//   - CONTENT_AGENT_DEFAULT_STATUS
//   - CONTENT_AGENT_DEFAULT_REVISION
func (c *Config) applyEnv() error {
	if v := os.Getenv("CONTENT_AGENT_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AnthropicAPIKey = v
	}
	if v := os.Getenv("CONTENT_AGENT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CONTENT_AGENT_DEFAULT_STATUS"); v != "" {
		c.DefaultStatus = v
	}
	if err := parseEnvInt("CONTENT_AGENT_GAP_THRESHOLD", &c.GapThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("CONTENT_AGENT_BATCH_SIZE", &c.BatchSize); err != nil {
		return err
	}
	if err := parseEnvInt("CONTENT_AGENT_SEED_SAMPLE_SIZE", &c.SeedSampleSize); err != nil {
		return err
	}
	if err := parseEnvInt("CONTENT_AGENT_FUZZY_THRESHOLD", &c.FuzzyThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("CONTENT_AGENT_MAX_PARALLEL_GROUPS", &c.MaxParallelGroups); err != nil {
		return err
	}
	if err := parseEnvInt("CONTENT_AGENT_DEFAULT_REVISION", &c.DefaultRevision); err != nil {
		return err
	}
	if err := parseEnvFloat("CONTENT_AGENT_PROVIDER_RPS", &c.ProviderRPS); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_BATCH_DELAY_SECS", &c.BatchDelay); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_ROUND_DELAY_SECS", &c.RoundDelay); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_IDLE_DELAY_SECS", &c.IdleDelay); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_RETRY_DELAY_SECS", &c.RetryDelay); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_QUOTA_BACKOFF_MIN_SECS", &c.QuotaBackoffMin); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_QUOTA_BACKOFF_MAX_SECS", &c.QuotaBackoffMax); err != nil {
		return err
	}
	if err := parseEnvSeconds("CONTENT_AGENT_DRAIN_TIMEOUT_SECS", &c.DrainTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration has sane values.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.GapThreshold <= 0 {
		return fmt.Errorf("gap_threshold must be positive (got %d)", c.GapThreshold)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive (got %d)", c.BatchSize)
	}
	if c.BatchSize > 200 {
		return fmt.Errorf("batch_size too large (got %d, max 200)", c.BatchSize)
	}
	if c.SeedSampleSize <= 0 {
		return fmt.Errorf("seed_sample_size must be positive (got %d)", c.SeedSampleSize)
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy_threshold must be between 0 and 100 (got %d)", c.FuzzyThreshold)
	}
	if c.MaxParallelGroups <= 0 {
		return fmt.Errorf("max_parallel_groups must be positive (got %d)", c.MaxParallelGroups)
	}
	if c.MaxParallelGroups > 32 {
		return fmt.Errorf("max_parallel_groups too large (got %d, max 32)", c.MaxParallelGroups)
	}
	if c.BatchDelay < 0 || c.RoundDelay < 0 || c.IdleDelay < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.QuotaBackoffMin <= 0 {
		return fmt.Errorf("quota_backoff_min must be positive (got %v)", c.QuotaBackoffMin)
	}
	if c.QuotaBackoffMax < c.QuotaBackoffMin {
		return fmt.Errorf("quota_backoff_max (%v) must be >= quota_backoff_min (%v)",
			c.QuotaBackoffMax, c.QuotaBackoffMin)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("drain_timeout must be positive (got %v)", c.DrainTimeout)
	}
	if c.ProviderRPS <= 0 {
		return fmt.Errorf("provider_rps must be positive (got %v)", c.ProviderRPS)
	}
	if c.DefaultStatus == "" {
		return fmt.Errorf("default_status is required")
	}
	return nil
}

// String returns an operator-readable summary. The API key is omitted.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{DB: %s, Model: %s, Threshold: %d, Batch: %d, Seeds: %d, Fuzzy: %d, "+
			"Parallel: %d, BatchDelay: %v, RoundDelay: %v, IdleDelay: %v, RetryDelay: %v, "+
			"QuotaBackoff: [%v, %v], Drain: %v, RPS: %.2f, Status: %s, Revision: %d}",
		c.DBPath, c.Model, c.GapThreshold, c.BatchSize, c.SeedSampleSize, c.FuzzyThreshold,
		c.MaxParallelGroups, c.BatchDelay, c.RoundDelay, c.IdleDelay, c.RetryDelay,
		c.QuotaBackoffMin, c.QuotaBackoffMax, c.DrainTimeout, c.ProviderRPS,
		c.DefaultStatus, c.DefaultRevision,
	)
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvSeconds(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * time.Second
	return nil
}
