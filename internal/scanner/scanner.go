// Package scanner finds low-cap candidate tokens across configured networks
// and tracks them until their market cap crosses the breakout milestone.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// Candidate band and breakout milestone in USD market cap. A candidate
// enters tracking inside the band and latches BreakoutDetected once it
// crosses the milestone; latched candidates are never re-tracked.
const (
	BandLowUSD    = 800_000
	BandHighUSD   = 1_000_000
	BreakoutUSD   = 1_000_000
	maxPerNetwork = 50
)

// Lister enumerates recently refreshed tokens on a network.
type Lister interface {
	RecentlyUpdated(ctx context.Context, network string) ([]domain.ScanCandidate, error)
}

// Quoter fetches the current market quote for one token.
type Quoter interface {
	Snapshot(ctx context.Context, ref domain.TokenRef) (domain.Snapshot, error)
}

type Source interface {
	Lister
	Quoter
}

// Scanner runs the market-wide candidate scan.
type Scanner struct {
	source     Source
	store      domain.ScanStore
	networks   []string
	fetchDelay time.Duration
	logger     *slog.Logger
}

func New(source Source, store domain.ScanStore, networks []string, fetchDelay time.Duration, logger *slog.Logger) *Scanner {
	return &Scanner{
		source:     source,
		store:      store,
		networks:   networks,
		fetchDelay: fetchDelay,
		logger:     logger.With(slog.String("component", "scanner")),
	}
}

// ScanOnce walks each configured network's recent listings, quotes each
// token, and stores the ones whose market cap sits inside the candidate
// band. Per-token failures are logged and skipped; only store failures abort
// the pass.
func (s *Scanner) ScanOnce(ctx context.Context, now time.Time) (int, error) {
	var admitted int
	for _, network := range s.networks {
		listings, err := s.source.RecentlyUpdated(ctx, network)
		if err != nil {
			s.logger.Warn("listing fetch failed",
				slog.String("network", network),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(listings) > maxPerNetwork {
			listings = listings[:maxPerNetwork]
		}

		for _, listing := range listings {
			if err := s.pause(ctx); err != nil {
				return admitted, err
			}

			snap, err := s.source.Snapshot(ctx, listing.Ref)
			if err != nil {
				s.logger.Debug("candidate quote failed",
					slog.String("token", listing.Ref.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			if snap.MarketCapUSD < BandLowUSD || snap.MarketCapUSD > BandHighUSD {
				continue
			}

			candidate := domain.ScanCandidate{
				Ref:          listing.Ref,
				Name:         snap.Name,
				Symbol:       snap.Symbol,
				MarketCapUSD: snap.MarketCapUSD,
				PriceUSD:     snap.PriceUSD,
				FirstSeen:    now,
				LastUpdated:  now,
			}
			if err := s.store.UpsertCandidate(ctx, candidate); err != nil {
				return admitted, fmt.Errorf("scanner: upsert candidate %s: %w", listing.Ref, err)
			}
			admitted++

			s.logger.Info("candidate admitted",
				slog.String("token", listing.Ref.String()),
				slog.String("symbol", snap.Symbol),
				slog.Float64("market_cap_usd", snap.MarketCapUSD),
			)
		}
	}
	return admitted, nil
}

// TrackBreakouts re-quotes every pending candidate and latches the breakout
// flag on those whose market cap has crossed the milestone. It returns the
// candidates that broke out during this pass.
func (s *Scanner) TrackBreakouts(ctx context.Context, now time.Time) ([]domain.ScanCandidate, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: list pending: %w", err)
	}

	var breakouts []domain.ScanCandidate
	for _, candidate := range pending {
		if err := s.pause(ctx); err != nil {
			return breakouts, err
		}

		snap, err := s.source.Snapshot(ctx, candidate.Ref)
		if err != nil {
			s.logger.Debug("breakout quote failed",
				slog.String("token", candidate.Ref.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := s.store.UpdateQuote(ctx, candidate.Ref, snap.MarketCapUSD, snap.PriceUSD, now); err != nil {
			return breakouts, fmt.Errorf("scanner: update quote %s: %w", candidate.Ref, err)
		}

		if snap.MarketCapUSD <= BreakoutUSD {
			continue
		}
		if err := s.store.MarkBreakout(ctx, candidate.Ref); err != nil {
			return breakouts, fmt.Errorf("scanner: mark breakout %s: %w", candidate.Ref, err)
		}

		candidate.MarketCapUSD = snap.MarketCapUSD
		candidate.PriceUSD = snap.PriceUSD
		candidate.LastUpdated = now
		candidate.BreakoutDetected = true
		breakouts = append(breakouts, candidate)

		s.logger.Info("breakout detected",
			slog.String("token", candidate.Ref.String()),
			slog.String("symbol", candidate.Symbol),
			slog.Float64("market_cap_usd", snap.MarketCapUSD),
		)
	}
	return breakouts, nil
}

func (s *Scanner) pause(ctx context.Context) error {
	if s.fetchDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.fetchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
