package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
	"github.com/alanyoungcy/tokenwatch/internal/pair"
	"github.com/alanyoungcy/tokenwatch/internal/pipeline"
	"github.com/alanyoungcy/tokenwatch/internal/risk"
	"github.com/alanyoungcy/tokenwatch/internal/scanner"
)

// checkHolderLimit and checkTradeLimit bound the data pulled for a one-shot
// risk check.
const (
	checkHolderLimit = 10
	checkTradeLimit  = 50
)

// MonitorMode runs the full long-lived monitor: price collection, pair
// sampling, network scanning, daily summaries, and archival, under one
// orchestrator.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	mon := a.cfg.Monitor

	collector := pipeline.NewPriceCollector(
		deps.Gecko,
		deps.TokenStore,
		deps.AlertRuleStore,
		deps.Aggregator,
		deps.Notifier,
		mon.FetchDelay.Duration,
		a.logger,
	)

	tracker := pair.NewTracker(deps.Gecko, deps.PairStore, a.logger)
	pairs := pipeline.NewPairRunner(tracker, deps.PairStore, deps.Notifier, a.logger)

	sc := scanner.New(deps.Gecko, deps.ScanStore, mon.ScanNetworks, mon.FetchDelay.Duration, a.logger)
	scan := pipeline.NewScanRunner(
		sc,
		deps.SubscriberStore,
		deps.Notifier,
		mon.ScanInterval.Duration,
		mon.BreakoutPasses,
		mon.BreakoutPassInterval.Duration,
		a.logger,
	)

	summary := pipeline.NewSummaryRunner(
		deps.Gecko,
		deps.TokenStore,
		deps.SubscriberStore,
		deps.Aggregator,
		deps.Notifier,
		mon.SummaryHour,
		mon.FetchDelay.Duration,
		a.logger,
	)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.S3.RetentionDays, a.logger)
	}

	orch := pipeline.NewOrchestrator(
		collector,
		pairs,
		scan,
		summary,
		archiver,
		mon.CollectInterval.Duration,
		mon.PairInterval.Duration,
		a.logger,
	)
	return orch.Run(ctx)
}

// CollectMode runs a single price collection pass and exits.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	collector := pipeline.NewPriceCollector(
		deps.Gecko,
		deps.TokenStore,
		deps.AlertRuleStore,
		deps.Aggregator,
		deps.Notifier,
		a.cfg.Monitor.FetchDelay.Duration,
		a.logger,
	)

	batch, err := collector.Run(ctx)
	a.logger.Info("collection pass finished",
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed),
	)
	if err != nil {
		return fmt.Errorf("app: collect: %w", err)
	}
	return nil
}

// ScanMode runs a single scan pass plus one breakout pass and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	mon := a.cfg.Monitor
	sc := scanner.New(deps.Gecko, deps.ScanStore, mon.ScanNetworks, mon.FetchDelay.Duration, a.logger)

	admitted, err := sc.ScanOnce(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}
	a.logger.Info("scan pass finished", slog.Int("admitted", admitted))

	breakouts, err := sc.TrackBreakouts(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("app: track breakouts: %w", err)
	}
	a.logger.Info("breakout pass finished", slog.Int("breakouts", len(breakouts)))
	return nil
}

// CheckMode runs a one-shot risk assessment of a single token and prints the
// result to stdout.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) error {
	if a.CheckToken == "" || a.CheckNetwork == "" {
		return fmt.Errorf("app: check mode requires -token and -network")
	}

	ref, err := domain.NewTokenRef(a.CheckToken, a.CheckNetwork)
	if err != nil {
		return fmt.Errorf("app: check: %w", err)
	}

	snap, err := deps.Gecko.Snapshot(ctx, ref)
	if err != nil {
		return fmt.Errorf("app: check: fetch snapshot: %w", err)
	}
	pools, err := deps.Gecko.Pools(ctx, ref)
	if err != nil {
		return fmt.Errorf("app: check: fetch pools: %w", err)
	}
	holders, err := deps.Gecko.Holders(ctx, ref, checkHolderLimit)
	if err != nil {
		a.logger.Warn("holder data unavailable", slog.String("error", err.Error()))
	}
	trades, err := deps.Gecko.Trades(ctx, ref, checkTradeLimit)
	if err != nil {
		a.logger.Warn("trade data unavailable", slog.String("error", err.Error()))
	}

	assessment := risk.Score(snap, pools, holders, trades, time.Now().UTC())
	printAssessment(os.Stdout, assessment)
	return nil
}

// printAssessment renders a risk assessment as a human-readable report.
func printAssessment(w io.Writer, ra domain.RiskAssessment) {
	fmt.Fprintf(w, "token:   %s (%s) on %s\n", ra.Name, ra.Symbol, ra.Ref.Network)
	fmt.Fprintf(w, "address: %s\n", ra.Ref.Address)
	fmt.Fprintf(w, "score:   %d (%s)\n", ra.Score, ra.Level)
	fmt.Fprintf(w, "signals: liquidity $%.2f, age %dd, top holder %.2f%%, top5 %.2f%%, pools %d\n",
		ra.Signals.LiquidityUSD, ra.Signals.AgeDays,
		ra.Signals.TopHolderPct, ra.Signals.Top5HolderPct, ra.Signals.PoolCount,
	)
	if len(ra.Indicators) == 0 {
		fmt.Fprintln(w, "no risk indicators detected")
		return
	}
	fmt.Fprintln(w, "indicators:")
	for _, ind := range ra.Indicators {
		fmt.Fprintf(w, "  - %s\n", ind)
	}
}
