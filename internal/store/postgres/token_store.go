package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a new TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Track inserts or refreshes a (subscriber, token) watch entry.
func (s *TokenStore) Track(ctx context.Context, t domain.TrackedToken) error {
	const query = `
		INSERT INTO tracked_tokens (subscriber_id, address, network, name, symbol, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (subscriber_id, address, network) DO UPDATE SET
			name   = EXCLUDED.name,
			symbol = EXCLUDED.symbol`

	_, err := s.pool.Exec(ctx, query,
		t.SubscriberID, t.Ref.Address, t.Ref.Network, t.Name, t.Symbol,
	)
	if err != nil {
		return fmt.Errorf("postgres: track %s: %w", t.Ref, err)
	}
	return nil
}

// Untrack removes a watch entry.
func (s *TokenStore) Untrack(ctx context.Context, subscriberID int64, ref domain.TokenRef) error {
	const query = `
		DELETE FROM tracked_tokens
		WHERE subscriber_id = $1 AND address = $2 AND network = $3`

	tag, err := s.pool.Exec(ctx, query, subscriberID, ref.Address, ref.Network)
	if err != nil {
		return fmt.Errorf("postgres: untrack %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListBySubscriber returns every token the subscriber watches.
func (s *TokenStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.TrackedToken, error) {
	const query = `
		SELECT subscriber_id, address, network, name, symbol, created_at
		FROM tracked_tokens
		WHERE subscriber_id = $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens for %d: %w", subscriberID, err)
	}
	defer rows.Close()

	var tokens []domain.TrackedToken
	for rows.Next() {
		var t domain.TrackedToken
		if err := rows.Scan(&t.SubscriberID, &t.Ref.Address, &t.Ref.Network, &t.Name, &t.Symbol, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan tracked token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate tracked tokens: %w", err)
	}
	return tokens, nil
}

// ListDistinctRefs returns every watched token once across all subscribers.
func (s *TokenStore) ListDistinctRefs(ctx context.Context) ([]domain.TokenRef, error) {
	const query = `
		SELECT DISTINCT address, network
		FROM tracked_tokens
		ORDER BY network, address`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list distinct refs: %w", err)
	}
	defer rows.Close()

	var refs []domain.TokenRef
	for rows.Next() {
		var ref domain.TokenRef
		if err := rows.Scan(&ref.Address, &ref.Network); err != nil {
			return nil, fmt.Errorf("postgres: scan token ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate token refs: %w", err)
	}
	return refs, nil
}
