package scanner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// fakeSource serves canned listings and snapshots.
type fakeSource struct {
	listings map[string][]domain.ScanCandidate
	listErr  map[string]error
	quotes   map[domain.TokenRef]domain.Snapshot
}

func (f *fakeSource) RecentlyUpdated(_ context.Context, network string) ([]domain.ScanCandidate, error) {
	if err := f.listErr[network]; err != nil {
		return nil, err
	}
	return f.listings[network], nil
}

func (f *fakeSource) Snapshot(_ context.Context, ref domain.TokenRef) (domain.Snapshot, error) {
	snap, ok := f.quotes[ref]
	if !ok {
		return domain.Snapshot{}, errors.New("quote unavailable")
	}
	return snap, nil
}

// memScanStore is an in-memory ScanStore.
type memScanStore struct {
	candidates map[domain.TokenRef]domain.ScanCandidate
}

func newMemScanStore() *memScanStore {
	return &memScanStore{candidates: make(map[domain.TokenRef]domain.ScanCandidate)}
}

func (s *memScanStore) UpsertCandidate(_ context.Context, c domain.ScanCandidate) error {
	if existing, ok := s.candidates[c.Ref]; ok {
		// First-seen and the breakout latch survive re-admission.
		c.FirstSeen = existing.FirstSeen
		c.BreakoutDetected = existing.BreakoutDetected
	}
	s.candidates[c.Ref] = c
	return nil
}

func (s *memScanStore) ListPending(_ context.Context) ([]domain.ScanCandidate, error) {
	var out []domain.ScanCandidate
	for _, c := range s.candidates {
		if !c.BreakoutDetected {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memScanStore) UpdateQuote(_ context.Context, ref domain.TokenRef, marketCapUSD, priceUSD float64, at time.Time) error {
	c := s.candidates[ref]
	c.MarketCapUSD = marketCapUSD
	c.PriceUSD = priceUSD
	c.LastUpdated = at
	s.candidates[ref] = c
	return nil
}

func (s *memScanStore) MarkBreakout(_ context.Context, ref domain.TokenRef) error {
	c := s.candidates[ref]
	c.BreakoutDetected = true
	s.candidates[ref] = c
	return nil
}

func (s *memScanStore) RecentBreakouts(_ context.Context, limit int) ([]domain.ScanCandidate, error) {
	var out []domain.ScanCandidate
	for _, c := range s.candidates {
		if c.BreakoutDetected {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func candidate(t *testing.T, address string) domain.ScanCandidate {
	t.Helper()
	ref, err := domain.NewTokenRef(address, "solana")
	require.NoError(t, err)
	return domain.ScanCandidate{Ref: ref}
}

func TestScanOnceAdmitsOnlyBandCandidates(t *testing.T) {
	inside := candidate(t, "So11111111111111111111111111111111111111112")
	below := candidate(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	above := candidate(t, "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")

	source := &fakeSource{
		listings: map[string][]domain.ScanCandidate{
			"solana": {inside, below, above},
		},
		quotes: map[domain.TokenRef]domain.Snapshot{
			inside.Ref: {Ref: inside.Ref, Symbol: "IN", MarketCapUSD: 900_000, PriceUSD: 0.09},
			below.Ref:  {Ref: below.Ref, Symbol: "LOW", MarketCapUSD: 500_000},
			above.Ref:  {Ref: above.Ref, Symbol: "BIG", MarketCapUSD: 5_000_000},
		},
	}
	store := newMemScanStore()
	sc := New(source, store, []string{"solana"}, 0, slog.New(slog.DiscardHandler))

	now := time.Now().UTC()
	admitted, err := sc.ScanOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, admitted)

	require.Len(t, store.candidates, 1)
	got := store.candidates[inside.Ref]
	assert.Equal(t, "IN", got.Symbol)
	assert.InDelta(t, 900_000, got.MarketCapUSD, 1e-9)
	assert.Equal(t, now, got.FirstSeen)
	assert.False(t, got.BreakoutDetected)
}

func TestScanOnceBandBoundaries(t *testing.T) {
	low := candidate(t, "So11111111111111111111111111111111111111112")
	high := candidate(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	source := &fakeSource{
		listings: map[string][]domain.ScanCandidate{"solana": {low, high}},
		quotes: map[domain.TokenRef]domain.Snapshot{
			low.Ref:  {Ref: low.Ref, MarketCapUSD: BandLowUSD},
			high.Ref: {Ref: high.Ref, MarketCapUSD: BandHighUSD},
		},
	}
	store := newMemScanStore()
	sc := New(source, store, []string{"solana"}, 0, slog.New(slog.DiscardHandler))

	admitted, err := sc.ScanOnce(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	// Both band edges are inclusive.
	assert.Equal(t, 2, admitted)
}

func TestScanOnceSkipsFailedNetworks(t *testing.T) {
	ok := candidate(t, "So11111111111111111111111111111111111111112")
	source := &fakeSource{
		listings: map[string][]domain.ScanCandidate{"solana": {ok}},
		listErr:  map[string]error{"avalanche": errors.New("listing down")},
		quotes: map[domain.TokenRef]domain.Snapshot{
			ok.Ref: {Ref: ok.Ref, MarketCapUSD: 850_000},
		},
	}
	store := newMemScanStore()
	sc := New(source, store, []string{"avalanche", "solana"}, 0, slog.New(slog.DiscardHandler))

	admitted, err := sc.ScanOnce(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, admitted)
}

func TestTrackBreakoutsLatches(t *testing.T) {
	ctx := context.Background()
	tracked := candidate(t, "So11111111111111111111111111111111111111112")
	store := newMemScanStore()
	require.NoError(t, store.UpsertCandidate(ctx, domain.ScanCandidate{
		Ref:          tracked.Ref,
		Symbol:       "IN",
		MarketCapUSD: 900_000,
	}))

	source := &fakeSource{
		quotes: map[domain.TokenRef]domain.Snapshot{
			tracked.Ref: {Ref: tracked.Ref, MarketCapUSD: 1_200_000, PriceUSD: 0.12},
		},
	}
	sc := New(source, store, []string{"solana"}, 0, slog.New(slog.DiscardHandler))

	breakouts, err := sc.TrackBreakouts(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, breakouts, 1)
	assert.True(t, breakouts[0].BreakoutDetected)
	assert.InDelta(t, 1_200_000, breakouts[0].MarketCapUSD, 1e-9)

	// Latched candidates drop out of the pending set; a second pass finds
	// nothing to quote.
	breakouts, err = sc.TrackBreakouts(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, breakouts)
}

func TestTrackBreakoutsAtMilestoneDoesNotLatch(t *testing.T) {
	ctx := context.Background()
	tracked := candidate(t, "So11111111111111111111111111111111111111112")
	store := newMemScanStore()
	require.NoError(t, store.UpsertCandidate(ctx, domain.ScanCandidate{
		Ref:          tracked.Ref,
		MarketCapUSD: 950_000,
	}))

	source := &fakeSource{
		quotes: map[domain.TokenRef]domain.Snapshot{
			tracked.Ref: {Ref: tracked.Ref, MarketCapUSD: BreakoutUSD},
		},
	}
	sc := New(source, store, []string{"solana"}, 0, slog.New(slog.DiscardHandler))

	// Exactly at the milestone is not a crossing.
	breakouts, err := sc.TrackBreakouts(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, breakouts)
	assert.False(t, store.candidates[tracked.Ref].BreakoutDetected)
	// The quote refresh still lands.
	assert.InDelta(t, float64(BreakoutUSD), store.candidates[tracked.Ref].MarketCapUSD, 1e-9)
}
