package domain

import "time"

// Interval is a candle bucket width.
type Interval string

const (
	Interval1h Interval = "1h"
	Interval1d Interval = "1d"
)

// Candle is an OHLCV aggregate over one time bucket, keyed by
// (Ref, Interval, BucketStart). Open is set by the first snapshot of the
// bucket and never changed; High/Low/Close move with later snapshots in the
// same bucket. Volume is the upstream rolling 24h figure, last write wins.
type Candle struct {
	Ref         TokenRef
	Interval    Interval
	BucketStart time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// OHLCVBar is a vendor-provided historical bar, kept distinct from Candle
// because it is read-only reference data rather than something we fold.
type OHLCVBar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
