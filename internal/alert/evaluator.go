// Package alert decides when subscriber alert rules fire and renders the
// notification text. Evaluation is stateless apart from each rule's cooldown
// timestamp: a rule whose condition holds fires, records the firing time, and
// is immediately eligible again once the cooldown elapses.
package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// Cooldown is the minimum gap between repeated firings of one rule.
const Cooldown = time.Hour

// Firing is one alert that should be delivered. FiredAt is what the caller
// persists as the rule's new LastFiredAt.
type Firing struct {
	Rule    domain.AlertRule
	Message string
	FiredAt time.Time
}

// cooledDown reports whether the rule is past its cooldown at now.
func cooledDown(rule domain.AlertRule, now time.Time) bool {
	return rule.LastFiredAt == nil || now.Sub(*rule.LastFiredAt) >= Cooldown
}

// EvaluateRule checks one single-token rule against the current snapshot and
// daily change figure. It returns a Firing when the condition holds and the
// cooldown has elapsed.
func EvaluateRule(rule domain.AlertRule, snap domain.Snapshot, dailyChange float64, now time.Time) (Firing, bool) {
	if !rule.Enabled || !cooledDown(rule, now) {
		return Firing{}, false
	}

	var message string
	switch rule.Kind {
	case domain.AlertPriceAbove:
		if snap.PriceUSD < rule.Threshold {
			return Firing{}, false
		}
		message = fmt.Sprintf("%s (%s) price $%s is at or above your $%s target",
			snap.Name, snap.Symbol, formatPrice(snap.PriceUSD), formatPrice(rule.Threshold))
	case domain.AlertPriceBelow:
		if snap.PriceUSD > rule.Threshold {
			return Firing{}, false
		}
		message = fmt.Sprintf("%s (%s) price $%s is at or below your $%s target",
			snap.Name, snap.Symbol, formatPrice(snap.PriceUSD), formatPrice(rule.Threshold))
	case domain.AlertDailyChange:
		if math.Abs(dailyChange) < rule.Threshold {
			return Firing{}, false
		}
		message = fmt.Sprintf("%s (%s) moved %+.2f%% over the last day (threshold %.2f%%)",
			snap.Name, snap.Symbol, dailyChange, rule.Threshold)
	default:
		return Firing{}, false
	}

	return Firing{Rule: rule, Message: message, FiredAt: now}, true
}

// PairBreach checks a ratio sample against the watch's change threshold.
// Pair alerts carry no cooldown: every sample that breaches fires, since the
// sampling cadence itself bounds the rate.
func PairBreach(watch domain.PairWatch, sample domain.RatioSample) (string, bool) {
	if !watch.AlertEnabled || watch.ChangeThreshold <= 0 {
		return "", false
	}
	if math.Abs(sample.ChangePercent) < watch.ChangeThreshold {
		return "", false
	}
	message := fmt.Sprintf("pair %s (%s/%s) ratio moved %+.2f%% to %.6f",
		watch.Name, watch.SymbolA, watch.SymbolB, sample.ChangePercent, sample.Ratio)
	return message, true
}

// PairStatus renders the unconditional periodic status line for a watch.
func PairStatus(watch domain.PairWatch, sample domain.RatioSample) string {
	return fmt.Sprintf("pair %s (%s/%s): ratio %.6f ($%s / $%s), %+.2f%% since last check",
		watch.Name, watch.SymbolA, watch.SymbolB,
		sample.Ratio, formatPrice(sample.PriceA), formatPrice(sample.PriceB),
		sample.ChangePercent)
}

// formatPrice renders a USD price with precision appropriate to magnitude;
// micro-cap tokens need more decimals than majors.
func formatPrice(v float64) string {
	switch {
	case v >= 1:
		return fmt.Sprintf("%.2f", v)
	case v >= 0.0001:
		return fmt.Sprintf("%.6f", v)
	default:
		return fmt.Sprintf("%.10f", v)
	}
}
