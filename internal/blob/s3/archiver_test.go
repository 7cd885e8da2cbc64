package s3blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// fakeWriter records uploaded objects.
type fakeWriter struct {
	objects map[string]string
	err     error
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string]string)
	}
	w.objects[path] = string(body)
	return nil
}

// fakeCandleArchive serves a fixed row set and records deletes.
type fakeCandleArchive struct {
	rows    []domain.Candle
	deleted bool
}

func (s *fakeCandleArchive) ListBefore(_ context.Context, _ time.Time) ([]domain.Candle, error) {
	return s.rows, nil
}

func (s *fakeCandleArchive) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	s.deleted = true
	n := int64(len(s.rows))
	s.rows = nil
	return n, nil
}

type fakeSampleArchive struct {
	rows    []domain.RatioSample
	deleted bool
}

func (s *fakeSampleArchive) ListSamplesBefore(_ context.Context, _ time.Time) ([]domain.RatioSample, error) {
	return s.rows, nil
}

func (s *fakeSampleArchive) DeleteSamplesBefore(_ context.Context, _ time.Time) (int64, error) {
	s.deleted = true
	n := int64(len(s.rows))
	s.rows = nil
	return n, nil
}

func testCandles(t *testing.T, n int) []domain.Candle {
	t.Helper()
	ref, err := domain.NewTokenRef("So11111111111111111111111111111111111111112", "solana")
	require.NoError(t, err)

	rows := make([]domain.Candle, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, domain.Candle{
			Ref:         ref,
			Interval:    domain.Interval1d,
			BucketStart: time.Date(2025, 10, 1+i, 0, 0, 0, 0, time.UTC),
			Open:        1, High: 2, Low: 0.5, Close: 1.5, Volume: 1000,
		})
	}
	return rows
}

func TestArchiveCandles(t *testing.T) {
	writer := &fakeWriter{}
	candles := &fakeCandleArchive{rows: testCandles(t, 3)}
	arch := NewArchiver(writer, candles, &fakeSampleArchive{})

	cutoff := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveCandles(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, candles.deleted)

	body, ok := writer.objects["archive/candles/2026-01.jsonl"]
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"Interval":"1d"`)
}

func TestArchiveCandlesUploadFailureKeepsRows(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bucket unreachable")}
	candles := &fakeCandleArchive{rows: testCandles(t, 2)}
	arch := NewArchiver(writer, candles, &fakeSampleArchive{})

	_, err := arch.ArchiveCandles(context.Background(), time.Now().UTC())
	require.Error(t, err)
	// Rows are deleted only after a durable upload.
	assert.False(t, candles.deleted)
	assert.Len(t, candles.rows, 2)
}

func TestArchiveCandlesNothingToDo(t *testing.T) {
	writer := &fakeWriter{}
	candles := &fakeCandleArchive{}
	arch := NewArchiver(writer, candles, &fakeSampleArchive{})

	n, err := arch.ArchiveCandles(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.objects)
	assert.False(t, candles.deleted)
}

func TestArchiveRatioSamples(t *testing.T) {
	writer := &fakeWriter{}
	samples := &fakeSampleArchive{rows: []domain.RatioSample{
		{SubscriberID: 7, PairName: "sol-usdc", Ratio: 150, Timestamp: time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)},
	}}
	arch := NewArchiver(writer, &fakeCandleArchive{}, samples)

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveRatioSamples(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, samples.deleted)

	body, ok := writer.objects["archive/ratio_samples/2026-02.jsonl"]
	require.True(t, ok)
	assert.Contains(t, body, `"PairName":"sol-usdc"`)
}
