package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/scanner"
)

// errorRetryDelay is how long a scan cycle waits after a failed pass before
// starting the next cycle.
const errorRetryDelay = 5 * time.Minute

// BreakoutSubscribers lists subscribers opted into breakout notifications.
type BreakoutSubscribers interface {
	ListBreakoutEnabled(ctx context.Context) ([]int64, error)
}

// ScanRunner runs the long-interval job: a market-wide candidate scan
// followed by a fixed number of breakout-tracking passes.
type ScanRunner struct {
	scanner      *scanner.Scanner
	subscribers  BreakoutSubscribers
	notifier     Notifier
	scanInterval time.Duration
	passCount    int
	passInterval time.Duration
	logger       *slog.Logger
}

func NewScanRunner(
	sc *scanner.Scanner,
	subscribers BreakoutSubscribers,
	notifier Notifier,
	scanInterval time.Duration,
	passCount int,
	passInterval time.Duration,
	logger *slog.Logger,
) *ScanRunner {
	return &ScanRunner{
		scanner:      sc,
		subscribers:  subscribers,
		notifier:     notifier,
		scanInterval: scanInterval,
		passCount:    passCount,
		passInterval: passInterval,
		logger:       logger.With(slog.String("component", "scan")),
	}
}

// RunLoop alternates scan cycles with the remainder of the scan interval
// until the context is cancelled. One cycle is: scan once, then passCount
// breakout passes spaced passInterval apart. A failed cycle waits
// errorRetryDelay and starts over rather than halting the schedule.
func (r *ScanRunner) RunLoop(ctx context.Context) error {
	for {
		start := time.Now()
		if err := r.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("scan cycle failed", slog.String("error", err.Error()))
			if err := sleepCtx(ctx, errorRetryDelay); err != nil {
				return err
			}
			continue
		}

		remaining := r.scanInterval - time.Since(start)
		if remaining < 0 {
			remaining = 0
		}
		if err := sleepCtx(ctx, remaining); err != nil {
			r.logger.Info("scan loop stopped")
			return err
		}
	}
}

func (r *ScanRunner) runCycle(ctx context.Context) error {
	admitted, err := r.scanner.ScanOnce(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scan pass: %w", err)
	}
	r.logger.Info("scan pass complete", slog.Int("admitted", admitted))

	for pass := 1; pass <= r.passCount; pass++ {
		if err := sleepCtx(ctx, r.passInterval); err != nil {
			return err
		}

		breakouts, err := r.scanner.TrackBreakouts(ctx, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("breakout pass %d: %w", pass, err)
		}
		r.logger.Info("breakout pass complete",
			slog.Int("pass", pass),
			slog.Int("breakouts", len(breakouts)),
		)

		if len(breakouts) > 0 {
			r.announce(ctx, breakouts)
		}
	}
	return nil
}

// announce fans breakout notifications out to every opted-in subscriber.
// Delivery failures are logged and skipped.
func (r *ScanRunner) announce(ctx context.Context, breakouts []domain.ScanCandidate) {
	subscribers, err := r.subscribers.ListBreakoutEnabled(ctx)
	if err != nil {
		r.logger.Error("listing breakout subscribers failed", slog.String("error", err.Error()))
		return
	}

	for _, candidate := range breakouts {
		message := fmt.Sprintf("breakout: %s (%s) on %s crossed $%.0f market cap (now $%.0f, price $%.6f)",
			candidate.Name, candidate.Symbol, candidate.Ref.Network,
			float64(scanner.BreakoutUSD), candidate.MarketCapUSD, candidate.PriceUSD)
		for _, subscriberID := range subscribers {
			if err := r.notifier.Send(ctx, subscriberID, message); err != nil {
				r.logger.Warn("breakout delivery failed",
					slog.Int64("subscriber", subscriberID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
