package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// evmNetworks are the chains whose addresses are case-insensitive hex; refs
// on these networks are stored lower-cased. Everything else (notably Solana's
// base58 addresses) is case-sensitive and preserved as given.
var evmNetworks = map[string]bool{
	"ethereum":  true,
	"bsc":       true,
	"polygon":   true,
	"arbitrum":  true,
	"avalanche": true,
	"optimism":  true,
	"base":      true,
}

// TokenRef identifies a token by contract address and network. It is the
// immutable identity key for every entity in the system; construct one with
// NewTokenRef so the normalization rules apply exactly once.
type TokenRef struct {
	Address string
	Network string
}

// NewTokenRef builds a normalized TokenRef. The network name is lower-cased;
// EVM addresses are validated as hex and lower-cased, other networks keep
// their address casing.
func NewTokenRef(address, network string) (TokenRef, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	address = strings.TrimSpace(address)

	if network == "" {
		return TokenRef{}, fmt.Errorf("domain: empty network: %w", ErrInvalidNetwork)
	}
	if address == "" {
		return TokenRef{}, fmt.Errorf("domain: empty address: %w", ErrInvalidAddress)
	}

	if evmNetworks[network] {
		if !common.IsHexAddress(address) {
			return TokenRef{}, fmt.Errorf("domain: %q is not a valid %s address: %w", address, network, ErrInvalidAddress)
		}
		address = strings.ToLower(address)
	}

	return TokenRef{Address: address, Network: network}, nil
}

// IsEVM reports whether the ref lives on a hex-addressed chain.
func (r TokenRef) IsEVM() bool {
	return evmNetworks[r.Network]
}

func (r TokenRef) String() string {
	return r.Network + ":" + r.Address
}

// TrackedToken is a (subscriber, token) watch entry. Name and symbol are
// cached from the last successful fetch for display purposes only.
type TrackedToken struct {
	SubscriberID int64
	Ref          TokenRef
	Name         string
	Symbol       string
	CreatedAt    time.Time
}

// Subscriber holds the per-subscriber opt-in flags for the broadcast-style
// notifications (daily summary, breakout alerts).
type Subscriber struct {
	ID                    int64
	DailySummaryEnabled   bool
	BreakoutAlertsEnabled bool
	CreatedAt             time.Time
}
