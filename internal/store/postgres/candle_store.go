package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// CandleStore implements domain.CandleStore using PostgreSQL. The upsert
// enforces the candle folding rules in SQL: open is written once, high/low
// widen monotonically, close and volume are last-write-wins. Concurrent
// writers to the same bucket therefore converge regardless of ordering.
type CandleStore struct {
	pool *pgxpool.Pool
}

// NewCandleStore creates a new CandleStore backed by the given connection pool.
func NewCandleStore(pool *pgxpool.Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// Upsert inserts or folds a candle into its (token, interval, bucket) row.
func (s *CandleStore) Upsert(ctx context.Context, c domain.Candle) error {
	const query = `
		INSERT INTO candles (address, network, interval, bucket_start, open, high, low, close, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (address, network, interval, bucket_start) DO UPDATE SET
			high       = GREATEST(candles.high, EXCLUDED.high),
			low        = LEAST(candles.low, EXCLUDED.low),
			close      = EXCLUDED.close,
			volume     = EXCLUDED.volume,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		c.Ref.Address, c.Ref.Network, string(c.Interval), c.BucketStart,
		c.Open, c.High, c.Low, c.Close, c.Volume,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert candle %s %s: %w", c.Ref, c.Interval, err)
	}
	return nil
}

// Get reads one candle by its bucket key.
func (s *CandleStore) Get(ctx context.Context, ref domain.TokenRef, interval domain.Interval, bucketStart time.Time) (domain.Candle, error) {
	const query = `
		SELECT address, network, interval, bucket_start, open, high, low, close, volume
		FROM candles
		WHERE address = $1 AND network = $2 AND interval = $3 AND bucket_start = $4`

	var c domain.Candle
	err := s.pool.QueryRow(ctx, query, ref.Address, ref.Network, string(interval), bucketStart).Scan(
		&c.Ref.Address, &c.Ref.Network, &c.Interval, &c.BucketStart,
		&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Candle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Candle{}, fmt.Errorf("postgres: get candle %s %s: %w", ref, interval, err)
	}
	return c, nil
}

// Latest returns up to limit candles ordered newest-first.
func (s *CandleStore) Latest(ctx context.Context, ref domain.TokenRef, interval domain.Interval, limit int) ([]domain.Candle, error) {
	const query = `
		SELECT address, network, interval, bucket_start, open, high, low, close, volume
		FROM candles
		WHERE address = $1 AND network = $2 AND interval = $3
		ORDER BY bucket_start DESC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, query, ref.Address, ref.Network, string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest candles %s %s: %w", ref, interval, err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// ListBefore returns every candle whose bucket started before the cutoff.
func (s *CandleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Candle, error) {
	const query = `
		SELECT address, network, interval, bucket_start, open, high, low, close, volume
		FROM candles
		WHERE bucket_start < $1
		ORDER BY bucket_start`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candles before %v: %w", before, err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// DeleteBefore removes candles older than the cutoff and reports the count.
func (s *CandleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM candles WHERE bucket_start < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete candles before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanCandles(rows pgx.Rows) ([]domain.Candle, error) {
	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(
			&c.Ref.Address, &c.Ref.Network, &c.Interval, &c.BucketStart,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate candles: %w", err)
	}
	return candles, nil
}
