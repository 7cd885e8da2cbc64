package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriberStore implements domain.SubscriberStore using PostgreSQL.
// Setting either flag creates the subscriber row on first touch.
type SubscriberStore struct {
	pool *pgxpool.Pool
}

// NewSubscriberStore creates a new SubscriberStore backed by the given pool.
func NewSubscriberStore(pool *pgxpool.Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// SetDailySummary toggles the daily-summary opt-in.
func (s *SubscriberStore) SetDailySummary(ctx context.Context, subscriberID int64, enabled bool) error {
	const query = `
		INSERT INTO subscribers (id, daily_summary_enabled)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET daily_summary_enabled = EXCLUDED.daily_summary_enabled`

	if _, err := s.pool.Exec(ctx, query, subscriberID, enabled); err != nil {
		return fmt.Errorf("postgres: set daily summary for %d: %w", subscriberID, err)
	}
	return nil
}

// SetBreakoutAlerts toggles the breakout-alert opt-in.
func (s *SubscriberStore) SetBreakoutAlerts(ctx context.Context, subscriberID int64, enabled bool) error {
	const query = `
		INSERT INTO subscribers (id, breakout_alerts_enabled)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET breakout_alerts_enabled = EXCLUDED.breakout_alerts_enabled`

	if _, err := s.pool.Exec(ctx, query, subscriberID, enabled); err != nil {
		return fmt.Errorf("postgres: set breakout alerts for %d: %w", subscriberID, err)
	}
	return nil
}

// ListDailySummaryEnabled returns subscribers opted into the daily summary.
func (s *SubscriberStore) ListDailySummaryEnabled(ctx context.Context) ([]int64, error) {
	return s.listEnabled(ctx, `SELECT id FROM subscribers WHERE daily_summary_enabled ORDER BY id`)
}

// ListBreakoutEnabled returns subscribers opted into breakout alerts.
func (s *SubscriberStore) ListBreakoutEnabled(ctx context.Context) ([]int64, error) {
	return s.listEnabled(ctx, `SELECT id FROM subscribers WHERE breakout_alerts_enabled ORDER BY id`)
}

func (s *SubscriberStore) listEnabled(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan subscriber id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate subscribers: %w", err)
	}
	return ids, nil
}
