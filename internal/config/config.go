// Package config loads putscan configuration from YAML, an optional .env
// file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete putscan configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Scan     ScanConfig     `yaml:"scan"`
	Universe UniverseConfig `yaml:"universe"`
	Log      LogConfig      `yaml:"log"`
}

// ScanConfig controls batching, result size and acceptance thresholds
type ScanConfig struct {
	BatchSize    int     `yaml:"batch_size"`    // Tickers fetched concurrently per batch
	Limit        int     `yaml:"limit"`         // Max candidates returned for store-sourced universes
	MinPOP       float64 `yaml:"min_pop"`       // Minimum probability of profit, percent
	MinMoneyness float64 `yaml:"min_moneyness"` // Exclusive lower bound on strike/spot
}

// UniverseConfig locates the ticker universe store and its cache
type UniverseConfig struct {
	DSN            string `yaml:"dsn"`
	Table          string `yaml:"table"`
	Column         string `yaml:"column"`
	Count          int    `yaml:"count"`
	QueryTimeoutMS int    `yaml:"query_timeout_ms"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	CacheTTLSecs   int    `yaml:"cache_ttl_secs"`
}

// LogConfig configures the global zerolog logger
type LogConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Default returns a configuration that works against the public provider
// with no universe store.
func Default() Config {
	return Config{
		Provider: DefaultProviderConfig(),
		Scan: ScanConfig{
			BatchSize:    5,
			Limit:        25,
			MinPOP:       90,
			MinMoneyness: 0.85,
		},
		Universe: UniverseConfig{
			Table:          "holdings",
			Column:         "ticker",
			Count:          100,
			QueryTimeoutMS: 15000,
			CacheTTLSecs:   900,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file. The .env
// file is optional; variables already set in the environment win over it.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PUTSCAN_USER_AGENT": &c.Provider.UserAgent,
		"PUTSCAN_LOG_LEVEL":  &c.Log.Level,
		"PUTSCAN_LOG_FILE":   &c.Log.File,
		"PG_DSN":             &c.Universe.DSN,
		"REDIS_ADDR":         &c.Universe.RedisAddr,
		"REDIS_PASSWORD":     &c.Universe.RedisPassword,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PUTSCAN_BATCH_SIZE":     &c.Scan.BatchSize,
		"PUTSCAN_LIMIT":          &c.Scan.Limit,
		"PUTSCAN_UNIVERSE_COUNT": &c.Universe.Count,
		"REDIS_DB":               &c.Universe.RedisDB,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate ensures the configuration is valid and consistent
func (c *Config) Validate() error {
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := c.Universe.Validate(); err != nil {
		return fmt.Errorf("universe: %w", err)
	}
	return nil
}

// Validate ensures scan settings are usable
func (s *ScanConfig) Validate() error {
	if s.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", s.BatchSize)
	}
	if s.Limit < 0 {
		return fmt.Errorf("limit cannot be negative, got %d", s.Limit)
	}
	if s.MinPOP < 0 || s.MinPOP > 100 {
		return fmt.Errorf("min_pop must be between 0 and 100, got %v", s.MinPOP)
	}
	if s.MinMoneyness < 0 || s.MinMoneyness >= 1 {
		return fmt.Errorf("min_moneyness must be in [0, 1), got %v", s.MinMoneyness)
	}
	return nil
}

// Validate ensures the store identifiers are safe to splice into SQL
func (u *UniverseConfig) Validate() error {
	if !identifierPattern.MatchString(u.Table) {
		return fmt.Errorf("table %q is not a valid identifier", u.Table)
	}
	if !identifierPattern.MatchString(u.Column) {
		return fmt.Errorf("column %q is not a valid identifier", u.Column)
	}
	if u.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", u.Count)
	}
	if u.QueryTimeoutMS <= 0 {
		return fmt.Errorf("query_timeout_ms must be positive, got %d", u.QueryTimeoutMS)
	}
	if u.CacheTTLSecs < 0 {
		return fmt.Errorf("cache_ttl_secs cannot be negative, got %d", u.CacheTTLSecs)
	}
	return nil
}

// GetQueryTimeout returns the universe query timeout
func (u *UniverseConfig) GetQueryTimeout() time.Duration {
	return time.Duration(u.QueryTimeoutMS) * time.Millisecond
}

// GetCacheTTL returns the universe cache TTL as a time.Duration
func (u *UniverseConfig) GetCacheTTL() time.Duration {
	return time.Duration(u.CacheTTLSecs) * time.Second
}
