package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/alert"
	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/pair"
)

// PairRunner runs the medium-interval job: sample every watched pair, alert
// on ratio breaches, and send periodic status lines.
type PairRunner struct {
	tracker  *pair.Tracker
	store    domain.PairStore
	notifier Notifier
	logger   *slog.Logger
}

func NewPairRunner(tracker *pair.Tracker, store domain.PairStore, notifier Notifier, logger *slog.Logger) *PairRunner {
	return &PairRunner{
		tracker:  tracker,
		store:    store,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "pairs")),
	}
}

// Run samples each watch exactly once per pass, even when it appears in both
// the alert-enabled and periodic-enabled sets, then applies both behaviors
// from the single sample. Breach alerts have no cooldown: the sampling
// cadence is the only rate bound.
func (r *PairRunner) Run(ctx context.Context) error {
	alertWatches, err := r.store.ListAlertEnabled(ctx)
	if err != nil {
		return fmt.Errorf("pairs: list alert-enabled: %w", err)
	}
	periodicWatches, err := r.store.ListPeriodicEnabled(ctx)
	if err != nil {
		return fmt.Errorf("pairs: list periodic-enabled: %w", err)
	}

	type key struct {
		subscriber int64
		name       string
	}
	watches := make(map[key]domain.PairWatch, len(alertWatches)+len(periodicWatches))
	for _, w := range alertWatches {
		watches[key{w.SubscriberID, w.Name}] = w
	}
	for _, w := range periodicWatches {
		watches[key{w.SubscriberID, w.Name}] = w
	}

	now := time.Now().UTC()
	for _, watch := range watches {
		if err := ctx.Err(); err != nil {
			return err
		}

		sample, err := r.tracker.Sample(ctx, watch, now)
		if err != nil {
			r.logger.Warn("pair sampling failed",
				slog.String("pair", watch.Name),
				slog.Int64("subscriber", watch.SubscriberID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if message, breached := alert.PairBreach(watch, sample); breached {
			if err := r.notifier.Send(ctx, watch.SubscriberID, message); err != nil {
				r.logger.Warn("pair alert delivery failed",
					slog.String("pair", watch.Name),
					slog.String("error", err.Error()),
				)
			}
		}

		if watch.PeriodicEnabled {
			if err := r.notifier.Send(ctx, watch.SubscriberID, alert.PairStatus(watch, sample)); err != nil {
				r.logger.Warn("pair status delivery failed",
					slog.String("pair", watch.Name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return nil
}

// RunLoop runs pair sampling on a repeating interval until the context is
// cancelled.
func (r *PairRunner) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error("pair pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pair loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error("pair pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
