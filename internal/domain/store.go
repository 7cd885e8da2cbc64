package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenStore persists (subscriber, token) watch entries.
type TokenStore interface {
	Track(ctx context.Context, t TrackedToken) error
	Untrack(ctx context.Context, subscriberID int64, ref TokenRef) error
	ListBySubscriber(ctx context.Context, subscriberID int64) ([]TrackedToken, error)
	// ListDistinctRefs returns each tracked token once, regardless of how
	// many subscribers watch it.
	ListDistinctRefs(ctx context.Context) ([]TokenRef, error)
}

// CandleStore persists OHLCV candles with per-row atomic upsert semantics:
// open is written once, high/low fold monotonically, close and volume are
// last-write-wins.
type CandleStore interface {
	Upsert(ctx context.Context, c Candle) error
	Get(ctx context.Context, ref TokenRef, interval Interval, bucketStart time.Time) (Candle, error)
	// Latest returns up to limit candles ordered newest-first.
	Latest(ctx context.Context, ref TokenRef, interval Interval, limit int) ([]Candle, error)
	ListBefore(ctx context.Context, before time.Time) ([]Candle, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertRuleStore persists single-token alert rules.
type AlertRuleStore interface {
	Upsert(ctx context.Context, r AlertRule) error
	Delete(ctx context.Context, subscriberID int64, ref TokenRef, kind AlertKind) error
	// ListEnabledForToken returns every enabled rule any subscriber has on
	// the given token.
	ListEnabledForToken(ctx context.Context, ref TokenRef) ([]AlertRule, error)
	ListBySubscriber(ctx context.Context, subscriberID int64) ([]AlertRule, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	// MarkFired advances LastFiredAt. The timestamp is monotonically
	// non-decreasing: a stale write never moves it backwards.
	MarkFired(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PairStore persists pair watches and their append-only ratio history.
type PairStore interface {
	Add(ctx context.Context, w PairWatch) error
	Remove(ctx context.Context, subscriberID int64, name string) error
	ListBySubscriber(ctx context.Context, subscriberID int64) ([]PairWatch, error)
	ListAlertEnabled(ctx context.Context) ([]PairWatch, error)
	ListPeriodicEnabled(ctx context.Context) ([]PairWatch, error)
	SetAlertEnabled(ctx context.Context, subscriberID int64, name string, enabled bool) error
	SetPeriodicEnabled(ctx context.Context, subscriberID int64, name string, enabled bool) error

	AppendSample(ctx context.Context, s RatioSample) error
	// LastSample returns the most recent sample for the watch, or
	// ErrNotFound when none has been recorded yet.
	LastSample(ctx context.Context, subscriberID int64, name string) (RatioSample, error)
	History(ctx context.Context, subscriberID int64, name string, since time.Time, limit int) ([]RatioSample, error)
	ListSamplesBefore(ctx context.Context, before time.Time) ([]RatioSample, error)
	DeleteSamplesBefore(ctx context.Context, before time.Time) (int64, error)
}

// ScanStore persists market-scan candidates.
type ScanStore interface {
	UpsertCandidate(ctx context.Context, c ScanCandidate) error
	// ListPending returns candidates whose breakout has not been detected.
	ListPending(ctx context.Context) ([]ScanCandidate, error)
	UpdateQuote(ctx context.Context, ref TokenRef, marketCapUSD, priceUSD float64, at time.Time) error
	MarkBreakout(ctx context.Context, ref TokenRef) error
	RecentBreakouts(ctx context.Context, limit int) ([]ScanCandidate, error)
}

// SubscriberStore persists per-subscriber opt-in flags.
type SubscriberStore interface {
	SetDailySummary(ctx context.Context, subscriberID int64, enabled bool) error
	SetBreakoutAlerts(ctx context.Context, subscriberID int64, enabled bool) error
	ListDailySummaryEnabled(ctx context.Context) ([]int64, error)
	ListBreakoutEnabled(ctx context.Context) ([]int64, error)
}
