package ohlc

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

type candleKey struct {
	ref         domain.TokenRef
	interval    domain.Interval
	bucketStart time.Time
}

// memCandleStore is an in-memory CandleStore for aggregator tests.
type memCandleStore struct {
	candles map[candleKey]domain.Candle
}

func newMemCandleStore() *memCandleStore {
	return &memCandleStore{candles: make(map[candleKey]domain.Candle)}
}

func (s *memCandleStore) Upsert(_ context.Context, c domain.Candle) error {
	s.candles[candleKey{c.Ref, c.Interval, c.BucketStart}] = c
	return nil
}

func (s *memCandleStore) Get(_ context.Context, ref domain.TokenRef, interval domain.Interval, bucketStart time.Time) (domain.Candle, error) {
	c, ok := s.candles[candleKey{ref, interval, bucketStart}]
	if !ok {
		return domain.Candle{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *memCandleStore) Latest(_ context.Context, ref domain.TokenRef, interval domain.Interval, limit int) ([]domain.Candle, error) {
	var out []domain.Candle
	for k, c := range s.candles {
		if k.ref == ref && k.interval == interval {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BucketStart.After(out[j].BucketStart)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memCandleStore) ListBefore(_ context.Context, before time.Time) ([]domain.Candle, error) {
	var out []domain.Candle
	for _, c := range s.candles {
		if c.BucketStart.Before(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memCandleStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for k, c := range s.candles {
		if c.BucketStart.Before(before) {
			delete(s.candles, k)
			n++
		}
	}
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func usdcRef(t *testing.T) domain.TokenRef {
	t.Helper()
	ref, err := domain.NewTokenRef("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "ethereum")
	require.NoError(t, err)
	return ref
}

func TestBucketStart(t *testing.T) {
	at := time.Date(2026, 3, 15, 14, 37, 22, 123, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC), BucketStart(at, domain.Interval1h))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), BucketStart(at, domain.Interval1d))

	// Non-UTC input lands in the UTC bucket of the same instant.
	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2026, 3, 15, 22, 30, 0, 0, est) // 03:30 UTC next day
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), BucketStart(late, domain.Interval1d))
}

func TestFold(t *testing.T) {
	c := domain.Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}

	c = Fold(c, 14, 150)
	assert.Equal(t, 10.0, c.Open)
	assert.Equal(t, 14.0, c.High)
	assert.Equal(t, 9.0, c.Low)
	assert.Equal(t, 14.0, c.Close)
	assert.Equal(t, 150.0, c.Volume)

	c = Fold(c, 8, 90)
	assert.Equal(t, 10.0, c.Open)
	assert.Equal(t, 14.0, c.High)
	assert.Equal(t, 8.0, c.Low)
	assert.Equal(t, 8.0, c.Close)

	// Invariants after any sequence of folds.
	assert.LessOrEqual(t, c.Low, c.Open)
	assert.LessOrEqual(t, c.Open, c.High)
	assert.LessOrEqual(t, c.Low, c.Close)
	assert.LessOrEqual(t, c.Close, c.High)
}

func TestIngestWritesBothIntervals(t *testing.T) {
	ctx := context.Background()
	store := newMemCandleStore()
	agg := NewAggregator(store, testLogger())
	ref := usdcRef(t)

	at := time.Date(2026, 3, 15, 14, 10, 0, 0, time.UTC)
	snap := domain.Snapshot{Ref: ref, PriceUSD: 1.00, Volume24hUSD: 500, ObservedAt: at}
	require.NoError(t, agg.Ingest(ctx, snap))

	hourly, err := store.Get(ctx, ref, domain.Interval1h, BucketStart(at, domain.Interval1h))
	require.NoError(t, err)
	assert.Equal(t, 1.00, hourly.Open)
	assert.Equal(t, 1.00, hourly.Close)

	daily, err := store.Get(ctx, ref, domain.Interval1d, BucketStart(at, domain.Interval1d))
	require.NoError(t, err)
	assert.Equal(t, 1.00, daily.Open)

	// A later snapshot in the same buckets folds instead of resetting.
	snap.PriceUSD = 1.05
	snap.ObservedAt = at.Add(20 * time.Minute)
	require.NoError(t, agg.Ingest(ctx, snap))

	hourly, err = store.Get(ctx, ref, domain.Interval1h, BucketStart(at, domain.Interval1h))
	require.NoError(t, err)
	assert.Equal(t, 1.00, hourly.Open)
	assert.Equal(t, 1.05, hourly.High)
	assert.Equal(t, 1.05, hourly.Close)
}

func TestIngestSameSnapshotTwice(t *testing.T) {
	ctx := context.Background()
	store := newMemCandleStore()
	agg := NewAggregator(store, testLogger())
	ref := usdcRef(t)

	at := time.Date(2026, 3, 15, 14, 10, 0, 0, time.UTC)
	snap := domain.Snapshot{Ref: ref, PriceUSD: 1.02, Volume24hUSD: 750, ObservedAt: at}
	require.NoError(t, agg.Ingest(ctx, snap))

	first, err := store.Get(ctx, ref, domain.Interval1h, BucketStart(at, domain.Interval1h))
	require.NoError(t, err)

	// Re-ingesting the same snapshot must leave the candle unchanged:
	// identical price folds into the same open/high/low/close and the
	// volume overwrite writes the same value back.
	require.NoError(t, agg.Ingest(ctx, snap))

	second, err := store.Get(ctx, ref, domain.Interval1h, BucketStart(at, domain.Interval1h))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	daily, err := store.Get(ctx, ref, domain.Interval1d, BucketStart(at, domain.Interval1d))
	require.NoError(t, err)
	assert.Equal(t, 1.02, daily.Open)
	assert.Equal(t, 1.02, daily.High)
	assert.Equal(t, 1.02, daily.Low)
	assert.Equal(t, 1.02, daily.Close)
	assert.Equal(t, 750.0, daily.Volume)
}

func TestDailyChange(t *testing.T) {
	ctx := context.Background()
	ref := usdcRef(t)
	day := func(offset int) time.Time {
		return time.Date(2026, 3, 10+offset, 0, 0, 0, 0, time.UTC)
	}

	t.Run("no candles", func(t *testing.T) {
		agg := NewAggregator(newMemCandleStore(), testLogger())
		_, err := agg.DailyChange(ctx, ref)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("two days", func(t *testing.T) {
		store := newMemCandleStore()
		agg := NewAggregator(store, testLogger())
		require.NoError(t, store.Upsert(ctx, domain.Candle{Ref: ref, Interval: domain.Interval1d, BucketStart: day(0), Close: 2.00}))
		require.NoError(t, store.Upsert(ctx, domain.Candle{Ref: ref, Interval: domain.Interval1d, BucketStart: day(1), Close: 2.30}))

		change, err := agg.DailyChange(ctx, ref)
		require.NoError(t, err)
		assert.InDelta(t, 15.0, change, 0.001)
	})

	t.Run("single day falls back to open", func(t *testing.T) {
		store := newMemCandleStore()
		agg := NewAggregator(store, testLogger())
		require.NoError(t, store.Upsert(ctx, domain.Candle{Ref: ref, Interval: domain.Interval1d, BucketStart: day(0), Open: 1.00, Close: 1.10}))

		change, err := agg.DailyChange(ctx, ref)
		require.NoError(t, err)
		assert.InDelta(t, 10.0, change, 0.001)
	})

	t.Run("zero prior close reports zero", func(t *testing.T) {
		store := newMemCandleStore()
		agg := NewAggregator(store, testLogger())
		require.NoError(t, store.Upsert(ctx, domain.Candle{Ref: ref, Interval: domain.Interval1d, BucketStart: day(0), Close: 0}))
		require.NoError(t, store.Upsert(ctx, domain.Candle{Ref: ref, Interval: domain.Interval1d, BucketStart: day(1), Close: 5}))

		change, err := agg.DailyChange(ctx, ref)
		require.NoError(t, err)
		assert.Zero(t, change)
	})
}

func TestWeek(t *testing.T) {
	ctx := context.Background()
	store := newMemCandleStore()
	agg := NewAggregator(store, testLogger())
	ref := usdcRef(t)

	closes := []float64{10, 12, 9, 15, 11, 13, 14}
	for i, close := range closes {
		c := domain.Candle{
			Ref:         ref,
			Interval:    domain.Interval1d,
			BucketStart: time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC),
			Open:        close,
			High:        close + 1,
			Low:         close - 1,
			Close:       close,
		}
		require.NoError(t, store.Upsert(ctx, c))
	}

	stats, err := agg.Week(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days)
	assert.Equal(t, 16.0, stats.High)
	assert.Equal(t, 8.0, stats.Low)
	assert.Equal(t, 14.0, stats.Latest)
	assert.InDelta(t, 40.0, stats.ChangePercent, 0.001) // 10 -> 14
}

func TestWeekSingleDay(t *testing.T) {
	ctx := context.Background()
	store := newMemCandleStore()
	agg := NewAggregator(store, testLogger())
	ref := usdcRef(t)

	require.NoError(t, store.Upsert(ctx, domain.Candle{
		Ref: ref, Interval: domain.Interval1d,
		BucketStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		High:        5, Low: 4, Close: 4.5,
	}))

	stats, err := agg.Week(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Days)
	assert.Zero(t, stats.ChangePercent)
}
