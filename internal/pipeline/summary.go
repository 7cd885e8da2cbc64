package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/ohlc"
)

// SummarySubscribers lists subscribers opted into the daily summary.
type SummarySubscribers interface {
	ListDailySummaryEnabled(ctx context.Context) ([]int64, error)
}

// SummaryRunner sends each opted-in subscriber a daily report of their
// tracked tokens at a fixed local wall-clock hour.
type SummaryRunner struct {
	fetcher     SnapshotFetcher
	tokens      domain.TokenStore
	subscribers SummarySubscribers
	aggregator  *ohlc.Aggregator
	notifier    Notifier
	hour        int
	fetchDelay  time.Duration
	logger      *slog.Logger
}

func NewSummaryRunner(
	fetcher SnapshotFetcher,
	tokens domain.TokenStore,
	subscribers SummarySubscribers,
	aggregator *ohlc.Aggregator,
	notifier Notifier,
	hour int,
	fetchDelay time.Duration,
	logger *slog.Logger,
) *SummaryRunner {
	return &SummaryRunner{
		fetcher:     fetcher,
		tokens:      tokens,
		subscribers: subscribers,
		aggregator:  aggregator,
		notifier:    notifier,
		hour:        hour,
		fetchDelay:  fetchDelay,
		logger:      logger.With(slog.String("component", "summary")),
	}
}

// nextOccurrence returns the next time the configured hour comes around in
// local time, rolling forward one day when it has already passed.
func (r *SummaryRunner) nextOccurrence(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunLoop sleeps until each occurrence of the summary hour, then runs one
// summary pass. Pass failures are logged; the schedule always advances to
// the next day.
func (r *SummaryRunner) RunLoop(ctx context.Context) error {
	for {
		next := r.nextOccurrence(time.Now())
		r.logger.Info("next daily summary scheduled", slog.Time("at", next))

		if err := sleepCtx(ctx, time.Until(next)); err != nil {
			r.logger.Info("summary loop stopped")
			return err
		}

		if err := r.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("summary pass failed", slog.String("error", err.Error()))
		}
	}
}

// Run builds and delivers one summary per opted-in subscriber. Per-token
// failures are skipped; a subscriber with no reportable tokens gets nothing.
func (r *SummaryRunner) Run(ctx context.Context) error {
	subscribers, err := r.subscribers.ListDailySummaryEnabled(ctx)
	if err != nil {
		return fmt.Errorf("summary: list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		r.logger.Info("no daily summary subscribers")
		return nil
	}

	for _, subscriberID := range subscribers {
		tracked, err := r.tokens.ListBySubscriber(ctx, subscriberID)
		if err != nil {
			return fmt.Errorf("summary: list tokens for %d: %w", subscriberID, err)
		}
		if len(tracked) == 0 {
			continue
		}

		message, err := r.buildSummary(ctx, tracked)
		if err != nil {
			return err
		}
		if message == "" {
			continue
		}

		if err := r.notifier.Send(ctx, subscriberID, message); err != nil {
			r.logger.Warn("summary delivery failed",
				slog.Int64("subscriber", subscriberID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (r *SummaryRunner) buildSummary(ctx context.Context, tracked []domain.TrackedToken) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "daily token summary - %s\n", time.Now().Format("2006-01-02 15:04"))

	var reported int
	for i, token := range tracked {
		if i > 0 {
			if err := sleepCtx(ctx, r.fetchDelay); err != nil {
				return "", err
			}
		}

		snap, err := r.fetcher.Snapshot(ctx, token.Ref)
		if err != nil {
			r.logger.Warn("summary fetch failed",
				slog.String("token", token.Ref.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		fmt.Fprintf(&b, "\n%s (%s) on %s\n", snap.Name, snap.Symbol, token.Ref.Network)
		fmt.Fprintf(&b, "price: $%.8f\n", snap.PriceUSD)

		dailyChange, err := r.aggregator.DailyChange(ctx, token.Ref)
		switch {
		case err == nil:
			fmt.Fprintf(&b, "daily change: %+.2f%%\n", dailyChange)
		case errors.Is(err, domain.ErrNotFound):
			// No candles yet for a freshly tracked token.
		default:
			return "", err
		}

		week, err := r.aggregator.Week(ctx, token.Ref)
		switch {
		case err == nil:
			fmt.Fprintf(&b, "week high/low: $%.8f / $%.8f (%+.2f%% over %d days)\n",
				week.High, week.Low, week.ChangePercent, week.Days)
		case errors.Is(err, domain.ErrNotFound):
		default:
			return "", err
		}

		fmt.Fprintf(&b, "volume 24h: $%.2f\n", snap.Volume24hUSD)
		reported++
	}

	if reported == 0 {
		return "", nil
	}
	return b.String(), nil
}
