package domain

import (
	"time"

	"github.com/google/uuid"
)

// PairWatch is a subscriber's named tracked ratio price(A)/price(B). Both
// tokens live on the same network. AlertEnabled controls breach alerts on the
// ratio change; PeriodicEnabled additionally sends an unconditional status
// message every sampling tick.
type PairWatch struct {
	ID              uuid.UUID
	SubscriberID    int64
	Name            string
	TokenA          TokenRef
	SymbolA         string
	TokenB          TokenRef
	SymbolB         string
	AlertEnabled    bool
	PeriodicEnabled bool
	ChangeThreshold float64
	CreatedAt       time.Time
}

// RatioSample is one append-only observation of a pair's ratio.
// ChangePercent is relative to the immediately preceding sample of the same
// (subscriber, pair); the first sample records 0.
type RatioSample struct {
	SubscriberID  int64
	PairName      string
	Ratio         float64
	PriceA        float64
	PriceB        float64
	ChangePercent float64
	Timestamp     time.Time
}
