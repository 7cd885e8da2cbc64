// Package config defines the top-level configuration for the token monitor
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TOKENWATCH_* environment
// variables.
type Config struct {
	Gecko    GeckoConfig    `toml:"gecko"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Session  SessionConfig  `toml:"session"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// GeckoConfig holds the market-data API endpoint and retry tuning.
type GeckoConfig struct {
	BaseURL   string      `toml:"base_url"`
	Timeout   duration    `toml:"timeout"`
	RateLimit RetryConfig `toml:"rate_limit"`
	Transient RetryConfig `toml:"transient"`
}

// RetryConfig holds one retry policy. RateLimit and Transient are tuned
// independently.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   duration `toml:"base_delay"`
	MaxDelay    duration `toml:"max_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// MonitorConfig holds the schedule cadences and scan parameters.
type MonitorConfig struct {
	CollectInterval      duration `toml:"collect_interval"`
	PairInterval         duration `toml:"pair_interval"`
	ScanInterval         duration `toml:"scan_interval"`
	BreakoutPasses       int      `toml:"breakout_passes"`
	BreakoutPassInterval duration `toml:"breakout_pass_interval"`
	SummaryHour          int      `toml:"summary_hour"`
	ScanNetworks         []string `toml:"scan_networks"`
	FetchDelay           duration `toml:"fetch_delay"`
}

// SessionConfig holds dialog session expiry.
type SessionConfig struct {
	TTL duration `toml:"ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken string `toml:"telegram_token"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Gecko: GeckoConfig{
			BaseURL: "https://api.geckoterminal.com/api/v2",
			Timeout: duration{30 * time.Second},
			RateLimit: RetryConfig{
				MaxAttempts: 5,
				BaseDelay:   duration{3 * time.Second},
				MaxDelay:    duration{time.Minute},
			},
			Transient: RetryConfig{
				MaxAttempts: 5,
				BaseDelay:   duration{3 * time.Second},
				MaxDelay:    duration{time.Minute},
			},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tokenwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tokenwatch-data",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Monitor: MonitorConfig{
			CollectInterval:      duration{5 * time.Minute},
			PairInterval:         duration{time.Minute},
			ScanInterval:         duration{3 * time.Hour},
			BreakoutPasses:       6,
			BreakoutPassInterval: duration{30 * time.Minute},
			SummaryHour:          6,
			ScanNetworks:         []string{"solana", "avalanche"},
			FetchDelay:           duration{time.Second},
		},
		Session: SessionConfig{
			TTL: duration{15 * time.Minute},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"monitor": true,
	"collect": true,
	"scan":    true,
	"check":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, collect, scan, check)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Gecko.BaseURL == "" {
		errs = append(errs, "gecko: base_url must not be empty")
	}
	if c.Gecko.RateLimit.MaxAttempts <= 0 {
		errs = append(errs, "gecko: rate_limit.max_attempts must be positive")
	}
	if c.Gecko.Transient.MaxAttempts <= 0 {
		errs = append(errs, "gecko: transient.max_attempts must be positive")
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		errs = append(errs, "postgres: either dsn or host/database/user must be set")
	}

	if c.Monitor.CollectInterval.Duration <= 0 {
		errs = append(errs, "monitor: collect_interval must be positive")
	}
	if c.Monitor.PairInterval.Duration <= 0 {
		errs = append(errs, "monitor: pair_interval must be positive")
	}
	if c.Monitor.ScanInterval.Duration <= 0 {
		errs = append(errs, "monitor: scan_interval must be positive")
	}
	if c.Monitor.BreakoutPasses < 0 {
		errs = append(errs, "monitor: breakout_passes must not be negative")
	}
	if c.Monitor.SummaryHour < 0 || c.Monitor.SummaryHour > 23 {
		errs = append(errs, fmt.Sprintf("monitor: summary_hour must be 0-23, got %d", c.Monitor.SummaryHour))
	}
	if len(c.Monitor.ScanNetworks) == 0 {
		errs = append(errs, "monitor: scan_networks must list at least one network")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archival is enabled")
		}
		if c.S3.RetentionDays <= 0 {
			errs = append(errs, "s3: retention_days must be positive when archival is enabled")
		}
	}

	if c.Session.TTL.Duration <= 0 {
		errs = append(errs, "session: ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
