package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/tokenwatch/internal/blob/s3"
	"github.com/alanyoungcy/tokenwatch/internal/cache/redis"
	"github.com/alanyoungcy/tokenwatch/internal/config"
	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/notify"
	"github.com/alanyoungcy/tokenwatch/internal/ohlc"
	"github.com/alanyoungcy/tokenwatch/internal/platform/gecko"
	"github.com/alanyoungcy/tokenwatch/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Fetch layer
	Gecko *gecko.Client

	// Stores
	TokenStore      domain.TokenStore
	CandleStore     domain.CandleStore
	AlertRuleStore  domain.AlertRuleStore
	PairStore       domain.PairStore
	ScanStore       domain.ScanStore
	SubscriberStore domain.SubscriberStore

	// Session cache
	SessionStore domain.SessionStore

	// Derived services
	Aggregator *ohlc.Aggregator

	// Cold storage; nil when archival is disabled.
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "monitor", "collect", "scan":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that keep dialog sessions.
func needsRedis(mode string) bool {
	return mode == "monitor"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	deps.Gecko = gecko.NewClient(
		cfg.Gecko.BaseURL,
		cfg.Gecko.Timeout.Duration,
		gecko.RetryPolicy{
			MaxAttempts: cfg.Gecko.RateLimit.MaxAttempts,
			BaseDelay:   cfg.Gecko.RateLimit.BaseDelay.Duration,
			MaxDelay:    cfg.Gecko.RateLimit.MaxDelay.Duration,
		},
		gecko.RetryPolicy{
			MaxAttempts: cfg.Gecko.Transient.MaxAttempts,
			BaseDelay:   cfg.Gecko.Transient.BaseDelay.Duration,
			MaxDelay:    cfg.Gecko.Transient.MaxDelay.Duration,
		},
		logger,
	)

	// --- PostgreSQL (only for modes that need persistence) ---
	var candleStore *postgres.CandleStore
	var pairStore *postgres.PairStore
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		candleStore = postgres.NewCandleStore(pool)
		pairStore = postgres.NewPairStore(pool)
		deps.TokenStore = postgres.NewTokenStore(pool)
		deps.CandleStore = candleStore
		deps.AlertRuleStore = postgres.NewAlertRuleStore(pool)
		deps.PairStore = pairStore
		deps.ScanStore = postgres.NewScanStore(pool)
		deps.SubscriberStore = postgres.NewSubscriberStore(pool)
		deps.Aggregator = ohlc.NewAggregator(candleStore, logger)
	}

	// --- Redis (dialog sessions) ---
	if needsRedis(cfg.Mode) {
		// Consumed by the chat command surface, which plugs in on top of
		// Dependencies; no monitor loop reads sessions.
		sessions, err := redis.NewSessionStore(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		}, cfg.Session.TTL.Duration)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = sessions.Close() })

		deps.SessionStore = sessions
	}

	// --- S3 (cold-storage archival, optional) ---
	if cfg.S3.Enabled && cfg.Mode == "monitor" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		writer := s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(writer, candleStore, pairStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	return deps, cleanup, nil
}
