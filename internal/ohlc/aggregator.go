// Package ohlc folds point-in-time snapshots into interval candles and
// derives the change figures the alert evaluator and summaries read.
package ohlc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// Intervals every ingest writes. Each snapshot lands in both the hourly and
// the daily bucket.
var Intervals = []domain.Interval{domain.Interval1h, domain.Interval1d}

// BucketStart truncates t to the bucket boundary for the interval, in UTC.
func BucketStart(t time.Time, interval domain.Interval) time.Time {
	t = t.UTC()
	switch interval {
	case domain.Interval1d:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

// Fold applies one price observation to an existing candle. Open never
// changes; high/low widen monotonically; close tracks the latest price;
// volume is the upstream rolling 24h level, last write wins.
func Fold(c domain.Candle, price, volume float64) domain.Candle {
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume = volume
	return c
}

// newCandle seeds a bucket from its first observation.
func newCandle(ref domain.TokenRef, interval domain.Interval, bucketStart time.Time, price, volume float64) domain.Candle {
	return domain.Candle{
		Ref:         ref,
		Interval:    interval,
		BucketStart: bucketStart,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      volume,
	}
}

// Aggregator owns candle construction over a CandleStore.
type Aggregator struct {
	store  domain.CandleStore
	logger *slog.Logger
}

func NewAggregator(store domain.CandleStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger.With(slog.String("component", "ohlc")),
	}
}

// Ingest upserts the snapshot into the hourly and daily candles for its
// observation time.
func (a *Aggregator) Ingest(ctx context.Context, snap domain.Snapshot) error {
	for _, interval := range Intervals {
		bucket := BucketStart(snap.ObservedAt, interval)

		candle, err := a.store.Get(ctx, snap.Ref, interval, bucket)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			candle = newCandle(snap.Ref, interval, bucket, snap.PriceUSD, snap.Volume24hUSD)
		case err != nil:
			return fmt.Errorf("ohlc: get candle %s %s: %w", snap.Ref, interval, err)
		default:
			candle = Fold(candle, snap.PriceUSD, snap.Volume24hUSD)
		}

		if err := a.store.Upsert(ctx, candle); err != nil {
			return fmt.Errorf("ohlc: upsert candle %s %s: %w", snap.Ref, interval, err)
		}
	}
	return nil
}

// DailyChange computes the day-over-day close change in percent. With no
// prior-day candle it falls back to change against today's open, so a token
// tracked for under a day still reports something meaningful.
func (a *Aggregator) DailyChange(ctx context.Context, ref domain.TokenRef) (float64, error) {
	candles, err := a.store.Latest(ctx, ref, domain.Interval1d, 2)
	if err != nil {
		return 0, fmt.Errorf("ohlc: latest daily candles %s: %w", ref, err)
	}
	if len(candles) == 0 {
		return 0, domain.ErrNotFound
	}

	today := candles[0]
	if len(candles) >= 2 {
		prior := candles[1]
		if prior.Close == 0 {
			return 0, nil
		}
		return (today.Close - prior.Close) / prior.Close * 100, nil
	}

	if today.Open == 0 {
		return 0, nil
	}
	return (today.Close - today.Open) / today.Open * 100, nil
}

// WeekStats summarizes the trailing week of daily candles.
type WeekStats struct {
	High          float64
	Low           float64
	Latest        float64
	ChangePercent float64
	Days          int
}

// Week computes high/low over up to the last 7 daily candles and the change
// of the latest close against the oldest close in that window. A single-day
// window reports 0 change.
func (a *Aggregator) Week(ctx context.Context, ref domain.TokenRef) (WeekStats, error) {
	candles, err := a.store.Latest(ctx, ref, domain.Interval1d, 7)
	if err != nil {
		return WeekStats{}, fmt.Errorf("ohlc: weekly candles %s: %w", ref, err)
	}
	if len(candles) == 0 {
		return WeekStats{}, domain.ErrNotFound
	}

	// Latest returns newest-first; derived figures assume chronological
	// order, so flip before reducing.
	ordered := make([]domain.Candle, len(candles))
	for i, c := range candles {
		ordered[len(candles)-1-i] = c
	}

	stats := WeekStats{
		High:   ordered[0].High,
		Low:    ordered[0].Low,
		Latest: ordered[len(ordered)-1].Close,
		Days:   len(ordered),
	}
	for _, c := range ordered[1:] {
		if c.High > stats.High {
			stats.High = c.High
		}
		if c.Low < stats.Low {
			stats.Low = c.Low
		}
	}

	oldest := ordered[0].Close
	if len(ordered) >= 2 && oldest != 0 {
		stats.ChangePercent = (stats.Latest - oldest) / oldest * 100
	}
	return stats, nil
}
