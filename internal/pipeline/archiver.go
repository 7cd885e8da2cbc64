package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BlobArchiver moves aged rows out of the store into cold storage.
type BlobArchiver interface {
	ArchiveCandles(ctx context.Context, before time.Time) (int64, error)
	ArchiveRatioSamples(ctx context.Context, before time.Time) (int64, error)
}

// Archiver runs daily archival of frozen candles and old ratio samples.
// Candles past the retention window are immutable, so copying them out and
// deleting the rows loses nothing.
type Archiver struct {
	blob          BlobArchiver
	retentionDays int
	logger        *slog.Logger
}

func NewArchiver(blob BlobArchiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:          blob,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes one archive pass against the retention cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	candles, err := a.blob.ArchiveCandles(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving candles before %v: %w", cutoff, err)
	}

	samples, err := a.blob.ArchiveRatioSamples(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving ratio samples before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("candles_archived", candles),
		slog.Int64("samples_archived", samples),
	)
	return nil
}

// RunLoop runs one archive pass per day until the context is cancelled.
func (a *Archiver) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
