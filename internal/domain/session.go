package domain

import (
	"context"
	"time"
)

// DialogSession is the finite-state record of what a subscriber is mid-way
// through entering on the command surface (e.g. step "pair_add_token_b" with
// the already-collected fields). It replaces per-process mutable state: the
// session lives in a shared store with an explicit expiry, so any instance
// can continue the dialog and abandoned dialogs disappear on their own.
type DialogSession struct {
	SubscriberID int64             `json:"subscriber_id"`
	Step         string            `json:"step"`
	Fields       map[string]string `json:"fields"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// WithField returns a copy of the session with one collected field added.
func (s DialogSession) WithField(key, value string) DialogSession {
	fields := make(map[string]string, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	fields[key] = value
	s.Fields = fields
	return s
}

// SessionStore holds dialog sessions keyed by subscriber id. Get returns
// ErrNotFound for a missing or expired session.
type SessionStore interface {
	Get(ctx context.Context, subscriberID int64) (DialogSession, error)
	Put(ctx context.Context, session DialogSession) error
	Clear(ctx context.Context, subscriberID int64) error
}
