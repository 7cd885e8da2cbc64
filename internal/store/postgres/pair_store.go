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

// PairStore implements domain.PairStore using PostgreSQL. Ratio samples are
// append-only; "previous sample" always means the newest row by recorded_at,
// so overlapping writers still converge on a consistent chain.
type PairStore struct {
	pool *pgxpool.Pool
}

// NewPairStore creates a new PairStore backed by the given connection pool.
func NewPairStore(pool *pgxpool.Pool) *PairStore {
	return &PairStore{pool: pool}
}

// Add inserts or replaces a watch on its (subscriber, name) key.
func (s *PairStore) Add(ctx context.Context, w domain.PairWatch) error {
	const query = `
		INSERT INTO pair_watches (
			id, subscriber_id, name,
			address_a, network_a, symbol_a,
			address_b, network_b, symbol_b,
			alert_enabled, periodic_enabled, change_threshold, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (subscriber_id, name) DO UPDATE SET
			address_a        = EXCLUDED.address_a,
			network_a        = EXCLUDED.network_a,
			symbol_a         = EXCLUDED.symbol_a,
			address_b        = EXCLUDED.address_b,
			network_b        = EXCLUDED.network_b,
			symbol_b         = EXCLUDED.symbol_b,
			alert_enabled    = EXCLUDED.alert_enabled,
			periodic_enabled = EXCLUDED.periodic_enabled,
			change_threshold = EXCLUDED.change_threshold`

	_, err := s.pool.Exec(ctx, query,
		w.ID, w.SubscriberID, w.Name,
		w.TokenA.Address, w.TokenA.Network, w.SymbolA,
		w.TokenB.Address, w.TokenB.Network, w.SymbolB,
		w.AlertEnabled, w.PeriodicEnabled, w.ChangeThreshold,
	)
	if err != nil {
		return fmt.Errorf("postgres: add pair %s: %w", w.Name, err)
	}
	return nil
}

// Remove deletes a watch and its sample history.
func (s *PairStore) Remove(ctx context.Context, subscriberID int64, name string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pair_watches WHERE subscriber_id = $1 AND name = $2`,
		subscriberID, name,
	)
	if err != nil {
		return fmt.Errorf("postgres: remove pair %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM ratio_samples WHERE subscriber_id = $1 AND pair_name = $2`,
		subscriberID, name,
	); err != nil {
		return fmt.Errorf("postgres: remove pair %s samples: %w", name, err)
	}
	return nil
}

const pairColumns = `
	id, subscriber_id, name,
	address_a, network_a, symbol_a,
	address_b, network_b, symbol_b,
	alert_enabled, periodic_enabled, change_threshold, created_at`

// ListBySubscriber returns all of one subscriber's watches.
func (s *PairStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.PairWatch, error) {
	query := `SELECT ` + pairColumns + ` FROM pair_watches WHERE subscriber_id = $1 ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pairs for %d: %w", subscriberID, err)
	}
	defer rows.Close()

	return scanPairs(rows)
}

// ListAlertEnabled returns every watch with breach alerts on.
func (s *PairStore) ListAlertEnabled(ctx context.Context) ([]domain.PairWatch, error) {
	query := `SELECT ` + pairColumns + ` FROM pair_watches WHERE alert_enabled ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alert-enabled pairs: %w", err)
	}
	defer rows.Close()

	return scanPairs(rows)
}

// ListPeriodicEnabled returns every watch with periodic status on.
func (s *PairStore) ListPeriodicEnabled(ctx context.Context) ([]domain.PairWatch, error) {
	query := `SELECT ` + pairColumns + ` FROM pair_watches WHERE periodic_enabled ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list periodic-enabled pairs: %w", err)
	}
	defer rows.Close()

	return scanPairs(rows)
}

// SetAlertEnabled toggles breach alerts on a watch.
func (s *PairStore) SetAlertEnabled(ctx context.Context, subscriberID int64, name string, enabled bool) error {
	return s.setFlag(ctx, "alert_enabled", subscriberID, name, enabled)
}

// SetPeriodicEnabled toggles the periodic status on a watch.
func (s *PairStore) SetPeriodicEnabled(ctx context.Context, subscriberID int64, name string, enabled bool) error {
	return s.setFlag(ctx, "periodic_enabled", subscriberID, name, enabled)
}

func (s *PairStore) setFlag(ctx context.Context, column string, subscriberID int64, name string, enabled bool) error {
	query := fmt.Sprintf(
		`UPDATE pair_watches SET %s = $3 WHERE subscriber_id = $1 AND name = $2`, column)

	tag, err := s.pool.Exec(ctx, query, subscriberID, name, enabled)
	if err != nil {
		return fmt.Errorf("postgres: set pair %s %s: %w", name, column, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendSample records one ratio observation.
func (s *PairStore) AppendSample(ctx context.Context, sample domain.RatioSample) error {
	const query = `
		INSERT INTO ratio_samples (subscriber_id, pair_name, ratio, price_a, price_b, change_percent, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		sample.SubscriberID, sample.PairName, sample.Ratio,
		sample.PriceA, sample.PriceB, sample.ChangePercent, sample.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append sample for %s: %w", sample.PairName, err)
	}
	return nil
}

// LastSample returns the newest sample for a watch.
func (s *PairStore) LastSample(ctx context.Context, subscriberID int64, name string) (domain.RatioSample, error) {
	const query = `
		SELECT subscriber_id, pair_name, ratio, price_a, price_b, change_percent, recorded_at
		FROM ratio_samples
		WHERE subscriber_id = $1 AND pair_name = $2
		ORDER BY recorded_at DESC
		LIMIT 1`

	var sample domain.RatioSample
	err := s.pool.QueryRow(ctx, query, subscriberID, name).Scan(
		&sample.SubscriberID, &sample.PairName, &sample.Ratio,
		&sample.PriceA, &sample.PriceB, &sample.ChangePercent, &sample.Timestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RatioSample{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RatioSample{}, fmt.Errorf("postgres: last sample for %s: %w", name, err)
	}
	return sample, nil
}

// History returns samples since the cutoff, oldest first, capped at limit.
func (s *PairStore) History(ctx context.Context, subscriberID int64, name string, since time.Time, limit int) ([]domain.RatioSample, error) {
	const query = `
		SELECT subscriber_id, pair_name, ratio, price_a, price_b, change_percent, recorded_at
		FROM ratio_samples
		WHERE subscriber_id = $1 AND pair_name = $2 AND recorded_at >= $3
		ORDER BY recorded_at
		LIMIT $4`

	rows, err := s.pool.Query(ctx, query, subscriberID, name, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: history for %s: %w", name, err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// ListSamplesBefore returns every sample recorded before the cutoff.
func (s *PairStore) ListSamplesBefore(ctx context.Context, before time.Time) ([]domain.RatioSample, error) {
	const query = `
		SELECT subscriber_id, pair_name, ratio, price_a, price_b, change_percent, recorded_at
		FROM ratio_samples
		WHERE recorded_at < $1
		ORDER BY recorded_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list samples before %v: %w", before, err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// DeleteSamplesBefore removes samples older than the cutoff.
func (s *PairStore) DeleteSamplesBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ratio_samples WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete samples before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanPairs(rows pgx.Rows) ([]domain.PairWatch, error) {
	var watches []domain.PairWatch
	for rows.Next() {
		var w domain.PairWatch
		if err := rows.Scan(
			&w.ID, &w.SubscriberID, &w.Name,
			&w.TokenA.Address, &w.TokenA.Network, &w.SymbolA,
			&w.TokenB.Address, &w.TokenB.Network, &w.SymbolB,
			&w.AlertEnabled, &w.PeriodicEnabled, &w.ChangeThreshold, &w.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan pair watch: %w", err)
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate pair watches: %w", err)
	}
	return watches, nil
}

func scanSamples(rows pgx.Rows) ([]domain.RatioSample, error) {
	var samples []domain.RatioSample
	for rows.Next() {
		var sample domain.RatioSample
		if err := rows.Scan(
			&sample.SubscriberID, &sample.PairName, &sample.Ratio,
			&sample.PriceA, &sample.PriceB, &sample.ChangePercent, &sample.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan ratio sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate ratio samples: %w", err)
	}
	return samples, nil
}
