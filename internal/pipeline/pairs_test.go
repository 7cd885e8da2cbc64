package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/pair"
)

// fakePairStore serves watch lists and records appended samples.
type fakePairStore struct {
	domain.PairStore
	alertEnabled    []domain.PairWatch
	periodicEnabled []domain.PairWatch
	samples         []domain.RatioSample
}

func (s *fakePairStore) ListAlertEnabled(_ context.Context) ([]domain.PairWatch, error) {
	return s.alertEnabled, nil
}

func (s *fakePairStore) ListPeriodicEnabled(_ context.Context) ([]domain.PairWatch, error) {
	return s.periodicEnabled, nil
}

func (s *fakePairStore) AppendSample(_ context.Context, sample domain.RatioSample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakePairStore) LastSample(_ context.Context, subscriberID int64, name string) (domain.RatioSample, error) {
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].SubscriberID == subscriberID && s.samples[i].PairName == name {
			return s.samples[i], nil
		}
	}
	return domain.RatioSample{}, domain.ErrNotFound
}

type fixedQuoter struct {
	prices map[domain.TokenRef]float64
}

func (q *fixedQuoter) Price(_ context.Context, r domain.TokenRef) (float64, error) {
	return q.prices[r], nil
}

func TestPairRunnerSamplesEachWatchOnce(t *testing.T) {
	tokenA := ref(t, "So11111111111111111111111111111111111111112")
	tokenB := ref(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	watch := domain.PairWatch{
		ID:              uuid.New(),
		SubscriberID:    7,
		Name:            "sol-usdc",
		TokenA:          tokenA,
		SymbolA:         "SOL",
		TokenB:          tokenB,
		SymbolB:         "USDC",
		AlertEnabled:    true,
		PeriodicEnabled: true,
		ChangeThreshold: 5,
	}

	store := &fakePairStore{
		alertEnabled:    []domain.PairWatch{watch},
		periodicEnabled: []domain.PairWatch{watch},
	}
	quoter := &fixedQuoter{prices: map[domain.TokenRef]float64{
		tokenA: 150.0,
		tokenB: 1.0,
	}}
	notifier := &fakeNotifier{}
	runner := NewPairRunner(pair.NewTracker(quoter, store, testLogger()), store, notifier, testLogger())

	require.NoError(t, runner.Run(context.Background()))

	// One sample despite appearing in both lists; one periodic status line
	// and no breach message on the first sample.
	assert.Len(t, store.samples, 1)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "sol-usdc")
	assert.Contains(t, notifier.sent[0], "150.000000")
}

func TestPairRunnerAlertsOnBreach(t *testing.T) {
	tokenA := ref(t, "So11111111111111111111111111111111111111112")
	tokenB := ref(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	watch := domain.PairWatch{
		ID:              uuid.New(),
		SubscriberID:    7,
		Name:            "sol-usdc",
		TokenA:          tokenA,
		SymbolA:         "SOL",
		TokenB:          tokenB,
		SymbolB:         "USDC",
		AlertEnabled:    true,
		ChangeThreshold: 5,
	}

	store := &fakePairStore{alertEnabled: []domain.PairWatch{watch}}
	// Seed history so the next sample computes a breach-sized change.
	store.samples = append(store.samples, domain.RatioSample{
		SubscriberID: 7,
		PairName:     "sol-usdc",
		Ratio:        100.0,
		Timestamp:    time.Now().Add(-time.Minute),
	})

	quoter := &fixedQuoter{prices: map[domain.TokenRef]float64{
		tokenA: 150.0,
		tokenB: 1.0,
	}}
	notifier := &fakeNotifier{}
	runner := NewPairRunner(pair.NewTracker(quoter, store, testLogger()), store, notifier, testLogger())

	require.NoError(t, runner.Run(context.Background()))

	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "+50.00%")
}
