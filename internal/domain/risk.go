package domain

import "time"

// RiskLevel buckets a raw risk score into a human-facing severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// RiskSignals are the derived inputs the scorer evaluated, kept alongside the
// score so a report can show what the rules saw.
type RiskSignals struct {
	LiquidityUSD  float64
	AgeDays       int
	TopHolderPct  float64
	Top5HolderPct float64
	PoolCount     int
	HasSocial     bool
	HasWebsite    bool
	TrustScore    float64
	SellRatio     float64
}

// RiskAssessment is the result of one scoring pass. It is a pure function of
// the inputs; it is recomputed fresh each time, never mutated.
type RiskAssessment struct {
	Ref        TokenRef
	Name       string
	Symbol     string
	Score      int
	Level      RiskLevel
	Indicators []string
	Signals    RiskSignals
	ComputedAt time.Time
}

// LevelForScore maps a raw additive score to a severity bucket.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskVeryHigh
	case score >= 50:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}
