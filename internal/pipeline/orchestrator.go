package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs every monitor schedule concurrently: price collection,
// pair sampling, market scanning, daily summaries, and archival. Schedules
// share the notifier and the store but coordinate nothing else; a stalled
// upstream call blocks only its own loop.
type Orchestrator struct {
	collector *PriceCollector
	pairs     *PairRunner
	scan      *ScanRunner
	summary   *SummaryRunner
	archiver  *Archiver

	collectInterval time.Duration
	pairInterval    time.Duration

	logger *slog.Logger
}

func NewOrchestrator(
	collector *PriceCollector,
	pairs *PairRunner,
	scan *ScanRunner,
	summary *SummaryRunner,
	archiver *Archiver,
	collectInterval time.Duration,
	pairInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		collector:       collector,
		pairs:           pairs,
		scan:            scan,
		summary:         summary,
		archiver:        archiver,
		collectInterval: collectInterval,
		pairInterval:    pairInterval,
		logger:          logger,
	}
}

// Run starts all schedules under one errgroup. Each loop treats context
// cancellation as clean shutdown; any other loop exit cancels the shared
// context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("monitor starting",
		slog.Duration("collect_interval", o.collectInterval),
		slog.Duration("pair_interval", o.pairInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting price collection loop")
		err := o.collector.RunLoop(ctx, o.collectInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("collector: %w", err)
	})

	g.Go(func() error {
		o.logger.Info("starting pair sampling loop")
		err := o.pairs.RunLoop(ctx, o.pairInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("pairs: %w", err)
	})

	g.Go(func() error {
		o.logger.Info("starting market scan loop")
		err := o.scan.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("scan: %w", err)
	})

	g.Go(func() error {
		o.logger.Info("starting daily summary loop")
		err := o.summary.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("summary: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver loop")
			err := o.archiver.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("monitor stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("monitor stopped cleanly")
	return nil
}
