package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Name:     "Wrapped SOL",
		Symbol:   "SOL",
		PriceUSD: 150.00,
	}
}

func TestEvaluateRulePriceAbove(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	rule := domain.AlertRule{
		Kind:      domain.AlertPriceAbove,
		Threshold: 150.00,
		Enabled:   true,
	}

	// Exactly at the threshold fires: the condition is "at or above".
	firing, ok := EvaluateRule(rule, testSnapshot(), 0, now)
	require.True(t, ok)
	assert.Equal(t, now, firing.FiredAt)
	assert.Contains(t, firing.Message, "at or above")

	snap := testSnapshot()
	snap.PriceUSD = 149.99
	_, ok = EvaluateRule(rule, snap, 0, now)
	assert.False(t, ok)
}

func TestEvaluateRulePriceBelow(t *testing.T) {
	now := time.Now().UTC()
	rule := domain.AlertRule{
		Kind:      domain.AlertPriceBelow,
		Threshold: 100.00,
		Enabled:   true,
	}

	snap := testSnapshot()
	snap.PriceUSD = 99.50
	_, ok := EvaluateRule(rule, snap, 0, now)
	assert.True(t, ok)

	snap.PriceUSD = 100.01
	_, ok = EvaluateRule(rule, snap, 0, now)
	assert.False(t, ok)
}

func TestEvaluateRuleDailyChange(t *testing.T) {
	now := time.Now().UTC()
	rule := domain.AlertRule{
		Kind:      domain.AlertDailyChange,
		Threshold: 10.0,
		Enabled:   true,
	}

	// Moves in either direction breach the threshold.
	firing, ok := EvaluateRule(rule, testSnapshot(), 12.5, now)
	require.True(t, ok)
	assert.Contains(t, firing.Message, "+12.50%")

	firing, ok = EvaluateRule(rule, testSnapshot(), -11.0, now)
	require.True(t, ok)
	assert.Contains(t, firing.Message, "-11.00%")

	_, ok = EvaluateRule(rule, testSnapshot(), 9.9, now)
	assert.False(t, ok)
}

func TestEvaluateRuleCooldown(t *testing.T) {
	start := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	rule := domain.AlertRule{
		Kind:      domain.AlertPriceAbove,
		Threshold: 100.00,
		Enabled:   true,
	}

	firing, ok := EvaluateRule(rule, testSnapshot(), 0, start)
	require.True(t, ok)
	rule.LastFiredAt = &firing.FiredAt

	// Condition still holds 30 minutes later, but the cooldown suppresses it.
	_, ok = EvaluateRule(rule, testSnapshot(), 0, start.Add(30*time.Minute))
	assert.False(t, ok)

	// Past the cooldown it fires again.
	firing, ok = EvaluateRule(rule, testSnapshot(), 0, start.Add(61*time.Minute))
	require.True(t, ok)
	assert.Equal(t, start.Add(61*time.Minute), firing.FiredAt)
}

func TestEvaluateRuleDisabled(t *testing.T) {
	rule := domain.AlertRule{
		Kind:      domain.AlertPriceAbove,
		Threshold: 100.00,
		Enabled:   false,
	}
	_, ok := EvaluateRule(rule, testSnapshot(), 0, time.Now())
	assert.False(t, ok)
}

func TestPairBreach(t *testing.T) {
	watch := domain.PairWatch{
		Name:            "sol-eth",
		SymbolA:         "SOL",
		SymbolB:         "ETH",
		AlertEnabled:    true,
		ChangeThreshold: 5.0,
	}

	msg, ok := PairBreach(watch, domain.RatioSample{Ratio: 0.05, ChangePercent: -6.2})
	require.True(t, ok)
	assert.Contains(t, msg, "sol-eth")
	assert.Contains(t, msg, "-6.20%")

	_, ok = PairBreach(watch, domain.RatioSample{Ratio: 0.05, ChangePercent: 4.9})
	assert.False(t, ok)

	// Pair alerts carry no cooldown: consecutive breaches both fire.
	_, ok = PairBreach(watch, domain.RatioSample{Ratio: 0.05, ChangePercent: 8.0})
	assert.True(t, ok)
	_, ok = PairBreach(watch, domain.RatioSample{Ratio: 0.05, ChangePercent: 8.1})
	assert.True(t, ok)

	watch.AlertEnabled = false
	_, ok = PairBreach(watch, domain.RatioSample{Ratio: 0.05, ChangePercent: 50})
	assert.False(t, ok)

	watch.AlertEnabled = true
	watch.ChangeThreshold = 0
	_, ok = PairBreach(watch, domain.RatioSample{Ratio: 0.05, ChangePercent: 50})
	assert.False(t, ok)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "150.00", formatPrice(150))
	assert.Equal(t, "0.004210", formatPrice(0.00421))
	assert.Equal(t, "0.0000000420", formatPrice(0.000000042))
}
