package pair

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

func solRef(t *testing.T) domain.TokenRef {
	t.Helper()
	ref, err := domain.NewTokenRef("So11111111111111111111111111111111111111112", "solana")
	require.NoError(t, err)
	return ref
}

func usdcRef(t *testing.T) domain.TokenRef {
	t.Helper()
	ref, err := domain.NewTokenRef("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "solana")
	require.NoError(t, err)
	return ref
}

func testWatch(t *testing.T) domain.PairWatch {
	return domain.PairWatch{
		ID:           uuid.New(),
		SubscriberID: 42,
		Name:         "sol-usdc",
		TokenA:       solRef(t),
		SymbolA:      "SOL",
		TokenB:       usdcRef(t),
		SymbolB:      "USDC",
	}
}

func TestComputeSample(t *testing.T) {
	now := time.Now().UTC()
	watch := testWatch(t)

	t.Run("first sample", func(t *testing.T) {
		sample, err := ComputeSample(watch, 2.0, 4.0, nil, now)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, sample.Ratio, 1e-9)
		assert.Zero(t, sample.ChangePercent)
		assert.Equal(t, int64(42), sample.SubscriberID)
		assert.Equal(t, "sol-usdc", sample.PairName)
	})

	t.Run("change against previous", func(t *testing.T) {
		prev := &domain.RatioSample{Ratio: 0.4}
		sample, err := ComputeSample(watch, 2.0, 4.0, prev, now)
		require.NoError(t, err)
		assert.InDelta(t, 25.0, sample.ChangePercent, 1e-9)
	})

	t.Run("zero previous ratio reports zero change", func(t *testing.T) {
		prev := &domain.RatioSample{Ratio: 0}
		sample, err := ComputeSample(watch, 2.0, 4.0, prev, now)
		require.NoError(t, err)
		assert.Zero(t, sample.ChangePercent)
	})

	t.Run("zero denominator price", func(t *testing.T) {
		_, err := ComputeSample(watch, 2.0, 0, nil, now)
		assert.ErrorIs(t, err, domain.ErrZeroPrice)
	})
}

// fakeQuoter returns a fixed price per ref.
type fakeQuoter struct {
	prices map[domain.TokenRef]float64
}

func (q *fakeQuoter) Price(_ context.Context, ref domain.TokenRef) (float64, error) {
	return q.prices[ref], nil
}

// memPairStore implements the sample end of domain.PairStore for tracker
// tests; the watch-management methods are unused here.
type memPairStore struct {
	domain.PairStore
	samples []domain.RatioSample
}

func (s *memPairStore) AppendSample(_ context.Context, sample domain.RatioSample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func (s *memPairStore) LastSample(_ context.Context, subscriberID int64, name string) (domain.RatioSample, error) {
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].SubscriberID == subscriberID && s.samples[i].PairName == name {
			return s.samples[i], nil
		}
	}
	return domain.RatioSample{}, domain.ErrNotFound
}

func TestTrackerSample(t *testing.T) {
	ctx := context.Background()
	watch := testWatch(t)
	quoter := &fakeQuoter{prices: map[domain.TokenRef]float64{
		watch.TokenA: 150.0,
		watch.TokenB: 1.0,
	}}
	store := &memPairStore{}
	tracker := NewTracker(quoter, store, slog.New(slog.DiscardHandler))

	now := time.Now().UTC()
	first, err := tracker.Sample(ctx, watch, now)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, first.Ratio, 1e-9)
	assert.Zero(t, first.ChangePercent)
	require.Len(t, store.samples, 1)

	// Second sample computes change against the stored first one.
	quoter.prices[watch.TokenA] = 165.0
	second, err := tracker.Sample(ctx, watch, now.Add(time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 165.0, second.Ratio, 1e-9)
	assert.InDelta(t, 10.0, second.ChangePercent, 1e-9)
	require.Len(t, store.samples, 2)
}
