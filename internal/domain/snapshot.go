package domain

import "time"

// TradeSide is the direction of a sampled trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Snapshot is one normalized, point-in-time read of a token's market
// attributes. Snapshots are immutable: every fetch produces a new one, and
// nothing in the engine holds a Snapshot beyond a single evaluation pass.
//
// Numeric fields are zero-defaulted at the adapter boundary, so a 0 here can
// mean either "confirmed zero" or "upstream had no data"; callers that need
// the distinction must look at the raw upstream documents.
type Snapshot struct {
	Ref    TokenRef
	Name   string
	Symbol string

	PriceUSD     float64
	MarketCapUSD float64
	Volume24hUSD float64
	LiquidityUSD float64

	// Holders and Trades are populated only by the full (risk-check) fetch;
	// the cheap price fetch leaves them empty.
	Holders []Holder
	Trades  []Trade

	// CreatedAt is the upstream creation timestamp when reported; nil when
	// the vendor does not know it.
	CreatedAt *time.Time

	HasSocial  bool
	HasWebsite bool

	// TrustScore is the vendor's own 0-100 trust metric; 0 means unavailable.
	TrustScore float64

	ObservedAt time.Time
}

// Holder is one entry of a token's holder distribution, ordered by share.
type Holder struct {
	Address    string
	Percentage float64
	IsContract bool
}

// Trade is one sampled recent trade.
type Trade struct {
	Side      TradeSide
	AmountUSD float64
	Timestamp time.Time
}

// Pool is one liquidity pool the token trades in.
type Pool struct {
	Address       string
	Name          string
	Dex           string
	LiquidityUSD  float64
	Volume24hUSD  float64
	Transactions  int
	PriceChange24 float64
	CreatedAt     *time.Time
}

// TotalLiquidity sums the USD reserve across pools.
func TotalLiquidity(pools []Pool) float64 {
	var total float64
	for _, p := range pools {
		total += p.LiquidityUSD
	}
	return total
}
