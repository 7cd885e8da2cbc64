package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// AlertRuleStore implements domain.AlertRuleStore using PostgreSQL.
type AlertRuleStore struct {
	pool *pgxpool.Pool
}

// NewAlertRuleStore creates a new AlertRuleStore backed by the given pool.
func NewAlertRuleStore(pool *pgxpool.Pool) *AlertRuleStore {
	return &AlertRuleStore{pool: pool}
}

// Upsert inserts or replaces a rule on its (subscriber, token, kind) key,
// preserving the cooldown timestamp of an existing rule.
func (s *AlertRuleStore) Upsert(ctx context.Context, r domain.AlertRule) error {
	const query = `
		INSERT INTO alert_rules (id, subscriber_id, address, network, kind, threshold, enabled, last_fired_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (subscriber_id, address, network, kind) DO UPDATE SET
			threshold = EXCLUDED.threshold,
			enabled   = EXCLUDED.enabled`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.SubscriberID, r.Ref.Address, r.Ref.Network,
		string(r.Kind), r.Threshold, r.Enabled, r.LastFiredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert alert rule %s: %w", r.ID, err)
	}
	return nil
}

// Delete removes a rule by its natural key.
func (s *AlertRuleStore) Delete(ctx context.Context, subscriberID int64, ref domain.TokenRef, kind domain.AlertKind) error {
	const query = `
		DELETE FROM alert_rules
		WHERE subscriber_id = $1 AND address = $2 AND network = $3 AND kind = $4`

	tag, err := s.pool.Exec(ctx, query, subscriberID, ref.Address, ref.Network, string(kind))
	if err != nil {
		return fmt.Errorf("postgres: delete alert rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListEnabledForToken returns every enabled rule any subscriber holds on the
// token.
func (s *AlertRuleStore) ListEnabledForToken(ctx context.Context, ref domain.TokenRef) ([]domain.AlertRule, error) {
	const query = `
		SELECT id, subscriber_id, address, network, kind, threshold, enabled, last_fired_at, created_at
		FROM alert_rules
		WHERE address = $1 AND network = $2 AND enabled
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, ref.Address, ref.Network)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rules for %s: %w", ref, err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// ListBySubscriber returns all of one subscriber's rules.
func (s *AlertRuleStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.AlertRule, error) {
	const query = `
		SELECT id, subscriber_id, address, network, kind, threshold, enabled, last_fired_at, created_at
		FROM alert_rules
		WHERE subscriber_id = $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rules for subscriber %d: %w", subscriberID, err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// SetEnabled toggles a rule.
func (s *AlertRuleStore) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alert_rules SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("postgres: set rule %s enabled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFired advances the rule's cooldown timestamp. GREATEST keeps the
// timestamp monotonically non-decreasing under concurrent evaluation passes.
func (s *AlertRuleStore) MarkFired(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `
		UPDATE alert_rules
		SET last_fired_at = GREATEST(COALESCE(last_fired_at, 'epoch'::timestamptz), $2)
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres: mark rule %s fired: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]domain.AlertRule, error) {
	var rules []domain.AlertRule
	for rows.Next() {
		var r domain.AlertRule
		var kind string
		if err := rows.Scan(
			&r.ID, &r.SubscriberID, &r.Ref.Address, &r.Ref.Network,
			&kind, &r.Threshold, &r.Enabled, &r.LastFiredAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan alert rule: %w", err)
		}
		r.Kind = domain.AlertKind(kind)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate alert rules: %w", err)
	}
	return rules, nil
}
