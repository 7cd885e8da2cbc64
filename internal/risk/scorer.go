// Package risk computes the heuristic scam score for a token. Scoring is a
// pure function of one snapshot plus its pools, holder distribution, and
// sampled trades; it never fetches and never fails on valid input.
package risk

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// Tier boundaries for the additive rules. Tiers within a signal are mutually
// exclusive: the higher tier wins, points never double-add.
const (
	liquidityVeryLowUSD = 5_000
	liquidityLowUSD     = 50_000

	ageNewDays    = 7
	ageRecentDays = 30

	topHolderHighPct = 50
	topHolderWarnPct = 30

	top5HighPct = 90
	top5WarnPct = 80

	trustLowScore  = 30
	trustWarnScore = 50

	sellDominanceRatio = 0.8
)

// Score evaluates every rule against the snapshot and its derived signals.
// The indicator list preserves rule evaluation order: liquidity, age, holder
// concentration, pool count, social presence, trust score, trade skew.
func Score(snap domain.Snapshot, pools []domain.Pool, holders []domain.Holder, trades []domain.Trade, now time.Time) domain.RiskAssessment {
	signals := deriveSignals(snap, pools, holders, trades, now)

	var score int
	var indicators []string

	add := func(points int, indicator string) {
		score += points
		indicators = append(indicators, indicator)
	}

	switch {
	case signals.LiquidityUSD < liquidityVeryLowUSD:
		add(30, fmt.Sprintf("very low liquidity ($%.2f)", signals.LiquidityUSD))
	case signals.LiquidityUSD < liquidityLowUSD:
		add(15, fmt.Sprintf("low liquidity ($%.2f)", signals.LiquidityUSD))
	}

	switch {
	case signals.AgeDays < ageNewDays:
		add(20, fmt.Sprintf("recently created token (%d days ago)", signals.AgeDays))
	case signals.AgeDays < ageRecentDays:
		add(10, fmt.Sprintf("relatively new token (%d days ago)", signals.AgeDays))
	}

	switch {
	case signals.TopHolderPct > topHolderHighPct:
		add(25, fmt.Sprintf("single address holds %.2f%% of supply", signals.TopHolderPct))
	case signals.TopHolderPct > topHolderWarnPct:
		add(15, fmt.Sprintf("single address holds %.2f%% of supply", signals.TopHolderPct))
	}

	switch {
	case signals.Top5HolderPct > top5HighPct:
		add(15, fmt.Sprintf("top 5 addresses hold %.2f%% of supply", signals.Top5HolderPct))
	case signals.Top5HolderPct > top5WarnPct:
		add(10, fmt.Sprintf("top 5 addresses hold %.2f%% of supply", signals.Top5HolderPct))
	}

	switch signals.PoolCount {
	case 0:
		add(30, "no liquidity pools")
	case 1:
		add(10, "only one liquidity pool")
	}

	switch {
	case !signals.HasSocial && !signals.HasWebsite:
		add(20, "no social media and no website")
	case !signals.HasSocial:
		add(10, "no social media presence")
	case !signals.HasWebsite:
		add(5, "no website")
	}

	// A zero trust score means the vendor has not rated the token; only
	// rated tokens contribute here.
	if signals.TrustScore > 0 {
		switch {
		case signals.TrustScore < trustLowScore:
			add(15, fmt.Sprintf("low external trust score (%.0f)", signals.TrustScore))
		case signals.TrustScore < trustWarnScore:
			add(5, fmt.Sprintf("moderate external trust score (%.0f)", signals.TrustScore))
		}
	}

	if signals.SellRatio > sellDominanceRatio {
		add(15, fmt.Sprintf("sell-dominated trading (%.0f%% of sampled trades are sells)", signals.SellRatio*100))
	}

	return domain.RiskAssessment{
		Ref:        snap.Ref,
		Name:       snap.Name,
		Symbol:     snap.Symbol,
		Score:      score,
		Level:      domain.LevelForScore(score),
		Indicators: indicators,
		Signals:    signals,
		ComputedAt: now,
	}
}

// deriveSignals reduces the raw market documents to the scalar signals the
// rules evaluate.
func deriveSignals(snap domain.Snapshot, pools []domain.Pool, holders []domain.Holder, trades []domain.Trade, now time.Time) domain.RiskSignals {
	signals := domain.RiskSignals{
		LiquidityUSD: domain.TotalLiquidity(pools),
		PoolCount:    len(pools),
		HasSocial:    snap.HasSocial,
		HasWebsite:   snap.HasWebsite,
		TrustScore:   snap.TrustScore,
		AgeDays:      ageDays(snap, pools, now),
	}

	if len(holders) > 0 {
		signals.TopHolderPct = holders[0].Percentage
	}
	for i, h := range holders {
		if i >= 5 {
			break
		}
		signals.Top5HolderPct += h.Percentage
	}

	signals.SellRatio = sellRatio(trades)

	return signals
}

// ageDays estimates the token age from the oldest pool creation timestamp,
// falling back to the token's own creation time. An unknown age reads as 0
// days, which deliberately triggers the new-token rule: an unverifiable age
// is treated as suspicious, not neutral.
func ageDays(snap domain.Snapshot, pools []domain.Pool, now time.Time) int {
	var oldest *time.Time
	for _, p := range pools {
		if p.CreatedAt == nil {
			continue
		}
		if oldest == nil || p.CreatedAt.Before(*oldest) {
			oldest = p.CreatedAt
		}
	}
	if oldest == nil {
		oldest = snap.CreatedAt
	}
	if oldest == nil {
		return 0
	}
	days := int(now.Sub(*oldest).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func sellRatio(trades []domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var sells int
	for _, t := range trades {
		if t.Side == domain.TradeSell {
			sells++
		}
	}
	return float64(sells) / float64(len(trades))
}
