package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/ohlc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func ref(t *testing.T, address string) domain.TokenRef {
	t.Helper()
	r, err := domain.NewTokenRef(address, "solana")
	require.NoError(t, err)
	return r
}

// fakeFetcher serves canned snapshots per token.
type fakeFetcher struct {
	snaps map[domain.TokenRef]domain.Snapshot
	errs  map[domain.TokenRef]error
}

func (f *fakeFetcher) Snapshot(_ context.Context, r domain.TokenRef) (domain.Snapshot, error) {
	if err := f.errs[r]; err != nil {
		return domain.Snapshot{}, err
	}
	return f.snaps[r], nil
}

// fakeTokenStore serves a fixed distinct-ref list.
type fakeTokenStore struct {
	domain.TokenStore
	refs []domain.TokenRef
}

func (s *fakeTokenStore) ListDistinctRefs(_ context.Context) ([]domain.TokenRef, error) {
	return s.refs, nil
}

// fakeRuleStore serves rules per token and records MarkFired calls.
type fakeRuleStore struct {
	domain.AlertRuleStore
	rules    map[domain.TokenRef][]domain.AlertRule
	listErr  error
	fired    map[uuid.UUID]time.Time
	firedErr error
}

func (s *fakeRuleStore) ListEnabledForToken(_ context.Context, r domain.TokenRef) ([]domain.AlertRule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.rules[r], nil
}

func (s *fakeRuleStore) MarkFired(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.firedErr != nil {
		return s.firedErr
	}
	if s.fired == nil {
		s.fired = make(map[uuid.UUID]time.Time)
	}
	s.fired[id] = at
	return nil
}

// fakeNotifier records deliveries.
type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, _ int64, message string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, message)
	return nil
}

type candleKey struct {
	ref         domain.TokenRef
	interval    domain.Interval
	bucketStart time.Time
}

// memCandleStore backs a real aggregator in collector tests.
type memCandleStore struct {
	candles   map[candleKey]domain.Candle
	upsertErr error
}

func newMemCandleStore() *memCandleStore {
	return &memCandleStore{candles: make(map[candleKey]domain.Candle)}
}

func (s *memCandleStore) Upsert(_ context.Context, c domain.Candle) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.candles[candleKey{c.Ref, c.Interval, c.BucketStart}] = c
	return nil
}

func (s *memCandleStore) Get(_ context.Context, r domain.TokenRef, interval domain.Interval, bucketStart time.Time) (domain.Candle, error) {
	c, ok := s.candles[candleKey{r, interval, bucketStart}]
	if !ok {
		return domain.Candle{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *memCandleStore) Latest(_ context.Context, r domain.TokenRef, interval domain.Interval, limit int) ([]domain.Candle, error) {
	var out []domain.Candle
	for k, c := range s.candles {
		if k.ref == r && k.interval == interval {
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

func (s *memCandleStore) ListBefore(_ context.Context, _ time.Time) ([]domain.Candle, error) {
	return nil, nil
}

func (s *memCandleStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func TestCollectorRunRecordsPerTokenOutcomes(t *testing.T) {
	good := ref(t, "So11111111111111111111111111111111111111112")
	bad := ref(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	fetcher := &fakeFetcher{
		snaps: map[domain.TokenRef]domain.Snapshot{
			good: {Ref: good, Symbol: "SOL", PriceUSD: 150, ObservedAt: time.Now().UTC()},
		},
		errs: map[domain.TokenRef]error{
			bad: errors.New("upstream timeout"),
		},
	}
	candles := newMemCandleStore()
	collector := NewPriceCollector(
		fetcher,
		&fakeTokenStore{refs: []domain.TokenRef{good, bad}},
		&fakeRuleStore{},
		ohlc.NewAggregator(candles, testLogger()),
		&fakeNotifier{},
		0,
		testLogger(),
	)

	batch, err := collector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Items, 2)
	assert.NoError(t, batch.Items[0].Err)
	assert.Error(t, batch.Items[1].Err)

	// The good token's snapshot landed in both candle intervals.
	assert.Len(t, candles.candles, 2)
}

func TestCollectorRunAbortsOnStoreFailure(t *testing.T) {
	first := ref(t, "So11111111111111111111111111111111111111112")
	second := ref(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	fetcher := &fakeFetcher{
		snaps: map[domain.TokenRef]domain.Snapshot{
			first:  {Ref: first, PriceUSD: 1, ObservedAt: time.Now().UTC()},
			second: {Ref: second, PriceUSD: 2, ObservedAt: time.Now().UTC()},
		},
	}
	candles := newMemCandleStore()
	candles.upsertErr = errors.New("connection lost")

	collector := NewPriceCollector(
		fetcher,
		&fakeTokenStore{refs: []domain.TokenRef{first, second}},
		&fakeRuleStore{},
		ohlc.NewAggregator(candles, testLogger()),
		&fakeNotifier{},
		0,
		testLogger(),
	)

	batch, err := collector.Run(context.Background())
	require.Error(t, err)
	assert.True(t, isStoreFailure(err))
	// The pass stopped at the first token; the second was never attempted.
	require.Len(t, batch.Items, 1)
}

func TestCollectorFiresAlertsAndMarksCooldown(t *testing.T) {
	token := ref(t, "So11111111111111111111111111111111111111112")
	rule := domain.AlertRule{
		ID:           uuid.New(),
		SubscriberID: 7,
		Ref:          token,
		Kind:         domain.AlertPriceAbove,
		Threshold:    100,
		Enabled:      true,
	}

	fetcher := &fakeFetcher{
		snaps: map[domain.TokenRef]domain.Snapshot{
			token: {Ref: token, Name: "Wrapped SOL", Symbol: "SOL", PriceUSD: 150, ObservedAt: time.Now().UTC()},
		},
	}
	rules := &fakeRuleStore{rules: map[domain.TokenRef][]domain.AlertRule{token: {rule}}}
	notifier := &fakeNotifier{}

	collector := NewPriceCollector(
		fetcher,
		&fakeTokenStore{refs: []domain.TokenRef{token}},
		rules,
		ohlc.NewAggregator(newMemCandleStore(), testLogger()),
		notifier,
		0,
		testLogger(),
	)

	batch, err := collector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Succeeded)

	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "SOL")
	assert.Contains(t, rules.fired, rule.ID)
}

func TestCollectorDeliveryFailureIsNotFatal(t *testing.T) {
	token := ref(t, "So11111111111111111111111111111111111111112")
	rule := domain.AlertRule{
		ID:        uuid.New(),
		Ref:       token,
		Kind:      domain.AlertPriceAbove,
		Threshold: 100,
		Enabled:   true,
	}

	fetcher := &fakeFetcher{
		snaps: map[domain.TokenRef]domain.Snapshot{
			token: {Ref: token, PriceUSD: 150, ObservedAt: time.Now().UTC()},
		},
	}
	rules := &fakeRuleStore{rules: map[domain.TokenRef][]domain.AlertRule{token: {rule}}}

	collector := NewPriceCollector(
		fetcher,
		&fakeTokenStore{refs: []domain.TokenRef{token}},
		rules,
		ohlc.NewAggregator(newMemCandleStore(), testLogger()),
		&fakeNotifier{err: errors.New("chat unreachable")},
		0,
		testLogger(),
	)

	batch, err := collector.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Succeeded)
	// The cooldown stamp stands even though delivery failed.
	assert.Contains(t, rules.fired, rule.ID)
}
