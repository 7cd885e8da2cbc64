package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// Narrow store interfaces for archival: only the time-ranged query and the
// matching delete, not the full domain store surface.

// CandleArchiveStore provides candle rows for archival.
type CandleArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Candle, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SampleArchiveStore provides ratio-sample rows for archival.
type SampleArchiveStore interface {
	ListSamplesBefore(ctx context.Context, before time.Time) ([]domain.RatioSample, error)
	DeleteSamplesBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads one object.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged candles and ratio samples to object storage as JSONL
// and deletes the archived rows. The upload happens first; rows are only
// deleted once the object is durably stored, so a failed upload leaves the
// database untouched and the next run retries the same window.
type Archiver struct {
	writer  BlobWriter
	candles CandleArchiveStore
	samples SampleArchiveStore
}

// NewArchiver creates an Archiver over the given writer and stores.
func NewArchiver(writer BlobWriter, candles CandleArchiveStore, samples SampleArchiveStore) *Archiver {
	return &Archiver{
		writer:  writer,
		candles: candles,
		samples: samples,
	}
}

// ArchiveCandles uploads every candle older than the cutoff to
// archive/candles/YYYY-MM.jsonl, then deletes the rows. Returns the number
// of candles archived.
func (a *Archiver) ArchiveCandles(ctx context.Context, before time.Time) (int64, error) {
	candles, err := a.candles.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive candles query: %w", err)
	}
	if len(candles) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(candles)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive candles marshal: %w", err)
	}

	path := archivePath("candles", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive candles upload: %w", err)
	}

	if _, err := a.candles.DeleteBefore(ctx, before); err != nil {
		return 0, fmt.Errorf("s3blob: archive candles delete: %w", err)
	}
	return int64(len(candles)), nil
}

// ArchiveRatioSamples uploads every ratio sample older than the cutoff to
// archive/ratio_samples/YYYY-MM.jsonl, then deletes the rows.
func (a *Archiver) ArchiveRatioSamples(ctx context.Context, before time.Time) (int64, error) {
	samples, err := a.samples.ListSamplesBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive samples query: %w", err)
	}
	if len(samples) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(samples)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive samples marshal: %w", err)
	}

	path := archivePath("ratio_samples", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive samples upload: %w", err)
	}

	if _, err := a.samples.DeleteSamplesBefore(ctx, before); err != nil {
		return 0, fmt.Errorf("s3blob: archive samples delete: %w", err)
	}
	return int64(len(samples)), nil
}

// archivePath builds the S3 key, partitioned by the cutoff's year-month:
//
//	archive/candles/2025-01.jsonl
//	archive/ratio_samples/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
