// Package pair computes ratio samples for tracked token pairs.
package pair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// Quoter is the price source the tracker reads from.
type Quoter interface {
	Price(ctx context.Context, ref domain.TokenRef) (float64, error)
}

// ComputeSample derives the next ratio sample from two prices and the
// previous sample. The first sample of a pair records 0 change; a 0 previous
// ratio also yields 0 change rather than a division blowup.
func ComputeSample(watch domain.PairWatch, priceA, priceB float64, prev *domain.RatioSample, now time.Time) (domain.RatioSample, error) {
	if priceB == 0 {
		return domain.RatioSample{}, fmt.Errorf("pair %s: price of %s is zero: %w", watch.Name, watch.SymbolB, domain.ErrZeroPrice)
	}

	sample := domain.RatioSample{
		SubscriberID: watch.SubscriberID,
		PairName:     watch.Name,
		Ratio:        priceA / priceB,
		PriceA:       priceA,
		PriceB:       priceB,
		Timestamp:    now,
	}
	if prev != nil && prev.Ratio != 0 {
		sample.ChangePercent = (sample.Ratio - prev.Ratio) / prev.Ratio * 100
	}
	return sample, nil
}

// Tracker samples pairs against a Quoter and appends the history.
type Tracker struct {
	quoter Quoter
	store  domain.PairStore
	logger *slog.Logger
}

func NewTracker(quoter Quoter, store domain.PairStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		quoter: quoter,
		store:  store,
		logger: logger.With(slog.String("component", "pair")),
	}
}

// Sample fetches both legs, computes the next sample relative to the stored
// previous one, and appends it to the history.
func (t *Tracker) Sample(ctx context.Context, watch domain.PairWatch, now time.Time) (domain.RatioSample, error) {
	priceA, err := t.quoter.Price(ctx, watch.TokenA)
	if err != nil {
		return domain.RatioSample{}, fmt.Errorf("pair %s: quote %s: %w", watch.Name, watch.SymbolA, err)
	}
	priceB, err := t.quoter.Price(ctx, watch.TokenB)
	if err != nil {
		return domain.RatioSample{}, fmt.Errorf("pair %s: quote %s: %w", watch.Name, watch.SymbolB, err)
	}

	var prev *domain.RatioSample
	last, err := t.store.LastSample(ctx, watch.SubscriberID, watch.Name)
	switch {
	case err == nil:
		prev = &last
	case errors.Is(err, domain.ErrNotFound):
		// First sample for this pair.
	default:
		return domain.RatioSample{}, fmt.Errorf("pair %s: last sample: %w", watch.Name, err)
	}

	sample, err := ComputeSample(watch, priceA, priceB, prev, now)
	if err != nil {
		return domain.RatioSample{}, err
	}

	if err := t.store.AppendSample(ctx, sample); err != nil {
		return domain.RatioSample{}, fmt.Errorf("pair %s: append sample: %w", watch.Name, err)
	}

	t.logger.Debug("pair sampled",
		slog.String("pair", watch.Name),
		slog.Int64("subscriber", watch.SubscriberID),
		slog.Float64("ratio", sample.Ratio),
		slog.Float64("change_pct", sample.ChangePercent),
	)
	return sample, nil
}
