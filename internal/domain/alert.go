package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind is the trigger condition family of an alert.
type AlertKind string

const (
	// Single-token kinds, persisted as AlertRule rows with a cooldown.
	AlertPriceAbove  AlertKind = "price_above"
	AlertPriceBelow  AlertKind = "price_below"
	AlertDailyChange AlertKind = "daily_change"

	// Pair kinds; their configuration lives on PairWatch and they carry no
	// cooldown timestamp (fire-every-breach for ratio changes, every tick
	// for periodic status).
	AlertPairRatioChange AlertKind = "pair_ratio_change"
	AlertPeriodicStatus  AlertKind = "periodic_status"
)

// AlertRule is a subscriber's standing single-token alert. LastFiredAt gates
// re-firing: once set it only moves forward, and a rule whose condition holds
// fires again only after the cooldown has elapsed.
type AlertRule struct {
	ID           uuid.UUID
	SubscriberID int64
	Ref          TokenRef
	Kind         AlertKind
	Threshold    float64
	Enabled      bool
	LastFiredAt  *time.Time
	CreatedAt    time.Time
}
