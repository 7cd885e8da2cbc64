package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// ScanStore implements domain.ScanStore using PostgreSQL. The breakout flag
// only ever transitions false to true; re-scans of a latched candidate keep
// it latched.
type ScanStore struct {
	pool *pgxpool.Pool
}

// NewScanStore creates a new ScanStore backed by the given connection pool.
func NewScanStore(pool *pgxpool.Pool) *ScanStore {
	return &ScanStore{pool: pool}
}

// UpsertCandidate admits or refreshes a candidate. First-seen time and the
// breakout latch survive re-admission.
func (s *ScanStore) UpsertCandidate(ctx context.Context, c domain.ScanCandidate) error {
	const query = `
		INSERT INTO scan_candidates (address, network, name, symbol, market_cap_usd, price_usd, first_seen, last_updated, breakout_detected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		ON CONFLICT (address, network) DO UPDATE SET
			name           = EXCLUDED.name,
			symbol         = EXCLUDED.symbol,
			market_cap_usd = EXCLUDED.market_cap_usd,
			price_usd      = EXCLUDED.price_usd,
			last_updated   = EXCLUDED.last_updated`

	_, err := s.pool.Exec(ctx, query,
		c.Ref.Address, c.Ref.Network, c.Name, c.Symbol,
		c.MarketCapUSD, c.PriceUSD, c.FirstSeen, c.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert candidate %s: %w", c.Ref, err)
	}
	return nil
}

// ListPending returns candidates still awaiting a breakout.
func (s *ScanStore) ListPending(ctx context.Context) ([]domain.ScanCandidate, error) {
	const query = `
		SELECT address, network, name, symbol, market_cap_usd, price_usd, first_seen, last_updated, breakout_detected
		FROM scan_candidates
		WHERE NOT breakout_detected
		ORDER BY first_seen`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// UpdateQuote refreshes one candidate's market figures.
func (s *ScanStore) UpdateQuote(ctx context.Context, ref domain.TokenRef, marketCapUSD, priceUSD float64, at time.Time) error {
	const query = `
		UPDATE scan_candidates
		SET market_cap_usd = $3, price_usd = $4, last_updated = $5
		WHERE address = $1 AND network = $2`

	tag, err := s.pool.Exec(ctx, query, ref.Address, ref.Network, marketCapUSD, priceUSD, at)
	if err != nil {
		return fmt.Errorf("postgres: update quote %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkBreakout latches the breakout flag.
func (s *ScanStore) MarkBreakout(ctx context.Context, ref domain.TokenRef) error {
	const query = `
		UPDATE scan_candidates
		SET breakout_detected = TRUE
		WHERE address = $1 AND network = $2`

	tag, err := s.pool.Exec(ctx, query, ref.Address, ref.Network)
	if err != nil {
		return fmt.Errorf("postgres: mark breakout %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecentBreakouts returns the latest detected breakouts, newest first.
func (s *ScanStore) RecentBreakouts(ctx context.Context, limit int) ([]domain.ScanCandidate, error) {
	const query = `
		SELECT address, network, name, symbol, market_cap_usd, price_usd, first_seen, last_updated, breakout_detected
		FROM scan_candidates
		WHERE breakout_detected
		ORDER BY last_updated DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent breakouts: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func scanCandidates(rows pgx.Rows) ([]domain.ScanCandidate, error) {
	var candidates []domain.ScanCandidate
	for rows.Next() {
		var c domain.ScanCandidate
		if err := rows.Scan(
			&c.Ref.Address, &c.Ref.Network, &c.Name, &c.Symbol,
			&c.MarketCapUSD, &c.PriceUSD, &c.FirstSeen, &c.LastUpdated, &c.BreakoutDetected,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate candidates: %w", err)
	}
	return candidates, nil
}
