// Package pipeline wires the fetch client, aggregator, scorer, and alert
// evaluator into the periodic jobs that drive the monitor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/alert"
	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/ohlc"
)

// SnapshotFetcher retrieves the current market snapshot for a token.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, ref domain.TokenRef) (domain.Snapshot, error)
}

// Notifier delivers one message to one subscriber.
type Notifier interface {
	Send(ctx context.Context, subscriberID int64, message string) error
}

// ItemResult records one token's outcome within a collection pass.
type ItemResult struct {
	Ref domain.TokenRef
	Err error
}

// BatchResult aggregates a collection pass. A single token's failure never
// aborts the batch; it is recorded here instead.
type BatchResult struct {
	Items     []ItemResult
	Succeeded int
	Failed    int
}

func (b *BatchResult) record(ref domain.TokenRef, err error) {
	b.Items = append(b.Items, ItemResult{Ref: ref, Err: err})
	if err != nil {
		b.Failed++
		return
	}
	b.Succeeded++
}

// PriceCollector runs the short-interval job: fetch every tracked token,
// fold the snapshot into candles, and evaluate single-token alert rules.
type PriceCollector struct {
	fetcher    SnapshotFetcher
	tokens     domain.TokenStore
	rules      domain.AlertRuleStore
	aggregator *ohlc.Aggregator
	notifier   Notifier
	fetchDelay time.Duration
	logger     *slog.Logger
}

func NewPriceCollector(
	fetcher SnapshotFetcher,
	tokens domain.TokenStore,
	rules domain.AlertRuleStore,
	aggregator *ohlc.Aggregator,
	notifier Notifier,
	fetchDelay time.Duration,
	logger *slog.Logger,
) *PriceCollector {
	return &PriceCollector{
		fetcher:    fetcher,
		tokens:     tokens,
		rules:      rules,
		aggregator: aggregator,
		notifier:   notifier,
		fetchDelay: fetchDelay,
		logger:     logger.With(slog.String("component", "collector")),
	}
}

// Run executes one collection pass over every distinct tracked token.
// Fetch and scoring failures are per-item; a store failure aborts the pass
// and the loop retries on its next tick.
func (c *PriceCollector) Run(ctx context.Context) (BatchResult, error) {
	var batch BatchResult

	refs, err := c.tokens.ListDistinctRefs(ctx)
	if err != nil {
		return batch, fmt.Errorf("collector: list tracked tokens: %w", err)
	}

	for i, ref := range refs {
		if i > 0 {
			if err := sleepCtx(ctx, c.fetchDelay); err != nil {
				return batch, err
			}
		}

		err := c.collectOne(ctx, ref)
		batch.record(ref, err)
		if err != nil && isStoreFailure(err) {
			return batch, err
		}
		if err != nil {
			c.logger.Warn("token collection failed",
				slog.String("token", ref.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.Info("collection pass complete",
		slog.Int("tokens", len(refs)),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed),
	)
	return batch, nil
}

func (c *PriceCollector) collectOne(ctx context.Context, ref domain.TokenRef) error {
	snap, err := c.fetcher.Snapshot(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	if err := c.aggregator.Ingest(ctx, snap); err != nil {
		return storeFailure(err)
	}

	rules, err := c.rules.ListEnabledForToken(ctx, ref)
	if err != nil {
		return storeFailure(fmt.Errorf("collector: list rules for %s: %w", ref, err))
	}
	if len(rules) == 0 {
		return nil
	}

	dailyChange, err := c.aggregator.DailyChange(ctx, ref)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return storeFailure(err)
	}

	now := time.Now().UTC()
	for _, rule := range rules {
		firing, ok := alert.EvaluateRule(rule, snap, dailyChange, now)
		if !ok {
			continue
		}
		if err := c.rules.MarkFired(ctx, rule.ID, firing.FiredAt); err != nil {
			return storeFailure(fmt.Errorf("collector: mark fired %s: %w", rule.ID, err))
		}
		// Delivery is best-effort; the cooldown timestamp stands even if
		// the message never arrives.
		if err := c.notifier.Send(ctx, rule.SubscriberID, firing.Message); err != nil {
			c.logger.Warn("alert delivery failed",
				slog.Int64("subscriber", rule.SubscriberID),
				slog.String("token", ref.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// RunLoop runs collection on a repeating interval until the context is
// cancelled.
func (c *PriceCollector) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := c.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("collection pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("collection pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// storeErr marks persistence failures, the only fatal condition inside a
// pass: the pass aborts and the schedule retries next tick.
type storeErr struct{ err error }

func (e *storeErr) Error() string { return e.err.Error() }
func (e *storeErr) Unwrap() error { return e.err }

func storeFailure(err error) error { return &storeErr{err: err} }

func isStoreFailure(err error) bool {
	var se *storeErr
	return errors.As(err, &se)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
