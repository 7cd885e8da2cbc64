package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOKENWATCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOKENWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Gecko ──
	setStr(&cfg.Gecko.BaseURL, "TOKENWATCH_GECKO_BASE_URL")
	setDuration(&cfg.Gecko.Timeout, "TOKENWATCH_GECKO_TIMEOUT")
	setInt(&cfg.Gecko.RateLimit.MaxAttempts, "TOKENWATCH_GECKO_RATE_LIMIT_MAX_ATTEMPTS")
	setDuration(&cfg.Gecko.RateLimit.BaseDelay, "TOKENWATCH_GECKO_RATE_LIMIT_BASE_DELAY")
	setDuration(&cfg.Gecko.RateLimit.MaxDelay, "TOKENWATCH_GECKO_RATE_LIMIT_MAX_DELAY")
	setInt(&cfg.Gecko.Transient.MaxAttempts, "TOKENWATCH_GECKO_TRANSIENT_MAX_ATTEMPTS")
	setDuration(&cfg.Gecko.Transient.BaseDelay, "TOKENWATCH_GECKO_TRANSIENT_BASE_DELAY")
	setDuration(&cfg.Gecko.Transient.MaxDelay, "TOKENWATCH_GECKO_TRANSIENT_MAX_DELAY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TOKENWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TOKENWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOKENWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOKENWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOKENWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOKENWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOKENWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TOKENWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TOKENWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TOKENWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TOKENWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOKENWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOKENWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOKENWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TOKENWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TOKENWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TOKENWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TOKENWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOKENWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOKENWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOKENWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOKENWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOKENWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOKENWATCH_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "TOKENWATCH_S3_RETENTION_DAYS")

	// ── Monitor ──
	setDuration(&cfg.Monitor.CollectInterval, "TOKENWATCH_MONITOR_COLLECT_INTERVAL")
	setDuration(&cfg.Monitor.PairInterval, "TOKENWATCH_MONITOR_PAIR_INTERVAL")
	setDuration(&cfg.Monitor.ScanInterval, "TOKENWATCH_MONITOR_SCAN_INTERVAL")
	setInt(&cfg.Monitor.BreakoutPasses, "TOKENWATCH_MONITOR_BREAKOUT_PASSES")
	setDuration(&cfg.Monitor.BreakoutPassInterval, "TOKENWATCH_MONITOR_BREAKOUT_PASS_INTERVAL")
	setInt(&cfg.Monitor.SummaryHour, "TOKENWATCH_MONITOR_SUMMARY_HOUR")
	setStringSlice(&cfg.Monitor.ScanNetworks, "TOKENWATCH_MONITOR_SCAN_NETWORKS")
	setDuration(&cfg.Monitor.FetchDelay, "TOKENWATCH_MONITOR_FETCH_DELAY")

	// ── Session ──
	setDuration(&cfg.Session.TTL, "TOKENWATCH_SESSION_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TOKENWATCH_NOTIFY_TELEGRAM_TOKEN")

	// ── Top-level ──
	setStr(&cfg.Mode, "TOKENWATCH_MODE")
	setStr(&cfg.LogLevel, "TOKENWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
