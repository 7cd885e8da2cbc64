// Package redis stores subscriber dialog sessions in Redis using go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// SessionStore implements domain.SessionStore using Redis string keys with
// JSON-serialized sessions. Each Put refreshes the TTL, so a dialog stays
// alive as long as the subscriber keeps answering and expires on its own
// once abandoned.
//
// Key schema:
//
//	session:{subscriberID} - JSON DialogSession
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore connects to Redis, pings it to verify connectivity, and
// returns the store. It returns an error if the connection cannot be
// established.
func NewSessionStore(ctx context.Context, cfg ClientConfig, ttl time.Duration) (*SessionStore, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &SessionStore{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *SessionStore) Close() error {
	return s.rdb.Close()
}

func sessionKey(subscriberID int64) string {
	return "session:" + strconv.FormatInt(subscriberID, 10)
}

// Get retrieves the subscriber's dialog session. It returns
// domain.ErrNotFound when no session exists or it has expired.
func (s *SessionStore) Get(ctx context.Context, subscriberID int64) (domain.DialogSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(subscriberID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DialogSession{}, domain.ErrNotFound
		}
		return domain.DialogSession{}, fmt.Errorf("redis: get session %d: %w", subscriberID, err)
	}

	var session domain.DialogSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.DialogSession{}, fmt.Errorf("redis: unmarshal session %d: %w", subscriberID, err)
	}
	return session, nil
}

// Put stores the session and resets its expiry.
func (s *SessionStore) Put(ctx context.Context, session domain.DialogSession) error {
	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis: marshal session %d: %w", session.SubscriberID, err)
	}

	if err := s.rdb.Set(ctx, sessionKey(session.SubscriberID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: put session %d: %w", session.SubscriberID, err)
	}
	return nil
}

// Clear removes the subscriber's session; clearing a missing session is not
// an error.
func (s *SessionStore) Clear(ctx context.Context, subscriberID int64) error {
	if err := s.rdb.Del(ctx, sessionKey(subscriberID)).Err(); err != nil {
		return fmt.Errorf("redis: clear session %d: %w", subscriberID, err)
	}
	return nil
}
