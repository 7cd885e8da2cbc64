package domain

import "time"

// ScanCandidate is a token picked up by the market-wide scan because its
// market cap sat inside the candidate band. BreakoutDetected latches once the
// cap crosses the breakout milestone; the candidate is then excluded from
// further tracking passes.
type ScanCandidate struct {
	Ref              TokenRef
	Name             string
	Symbol           string
	MarketCapUSD     float64
	PriceUSD         float64
	FirstSeen        time.Time
	LastUpdated      time.Time
	BreakoutDetected bool
}
