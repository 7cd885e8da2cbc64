package gecko

import (
	"strings"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// parseTime parses the upstream's ISO 8601 timestamps. Returns nil for empty
// or malformed values; downstream treats a nil creation time as "unknown age".
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// nonNegative clamps upstream numerics at zero. The vendor occasionally
// reports small negative reserves on freshly indexed pools.
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// normalizeToken converts the token attributes document into a Snapshot.
// Missing or invalid optional numerics collapse to zero here, once, so
// nothing downstream ever sees a pointer or an option type.
func normalizeToken(url string, ref domain.TokenRef, doc tokenDocument, observedAt time.Time) (domain.Snapshot, error) {
	if doc.Data == nil {
		return domain.Snapshot{}, &ParseError{URL: url, Reason: "missing data envelope"}
	}
	attrs := doc.Data.Attributes

	// Market cap falls back to FDV when the vendor has no circulating figure.
	marketCap := attrs.MarketCapUSD.Or(attrs.FdvUSD)

	snap := domain.Snapshot{
		Ref:          ref,
		Name:         attrs.Name,
		Symbol:       attrs.Symbol,
		PriceUSD:     nonNegative(attrs.PriceUSD.Float()),
		MarketCapUSD: nonNegative(marketCap.Float()),
		Volume24hUSD: nonNegative(attrs.VolumeUSD24h.Float()),
		LiquidityUSD: nonNegative(attrs.TotalReserveInUSD.Float()),
		ObservedAt:   observedAt,
	}

	if t := parseTime(attrs.CreatedAt); t != nil {
		snap.CreatedAt = t
	} else if t := parseTime(attrs.PoolCreatedAt); t != nil {
		snap.CreatedAt = t
	}

	return snap, nil
}

// applyInfo folds the socials/info document into an existing Snapshot.
func applyInfo(snap *domain.Snapshot, doc infoDocument) {
	if doc.Data == nil {
		return
	}
	attrs := doc.Data.Attributes

	snap.HasSocial = attrs.TwitterHandle != "" || attrs.TelegramHandle != "" || attrs.DiscordURL != ""
	for _, site := range attrs.Websites {
		if strings.TrimSpace(site) != "" {
			snap.HasWebsite = true
			break
		}
	}
	snap.TrustScore = nonNegative(attrs.GtScore.Float())
}

func normalizePools(url string, doc poolsDocument) ([]domain.Pool, error) {
	if doc.Data == nil {
		return nil, &ParseError{URL: url, Reason: "missing data envelope"}
	}
	pools := make([]domain.Pool, 0, len(*doc.Data))
	for _, entry := range *doc.Data {
		attrs := entry.Attributes
		pools = append(pools, domain.Pool{
			Address:       attrs.Address,
			Name:          attrs.Name,
			Dex:           attrs.DexID,
			LiquidityUSD:  nonNegative(attrs.ReserveInUSD.Float()),
			Volume24hUSD:  nonNegative(attrs.VolumeUSD24h.Float()),
			Transactions:  int(nonNegative(attrs.Transactions24h.Float())),
			PriceChange24: attrs.PriceChangePercentage24h.Float(),
			CreatedAt:     parseTime(attrs.PoolCreatedAt),
		})
	}
	return pools, nil
}

func normalizeHolders(url string, doc holdersDocument) ([]domain.Holder, error) {
	if doc.Data == nil {
		return nil, &ParseError{URL: url, Reason: "missing data envelope"}
	}
	holders := make([]domain.Holder, 0, len(*doc.Data))
	for _, entry := range *doc.Data {
		attrs := entry.Attributes
		holders = append(holders, domain.Holder{
			Address:    attrs.Address,
			Percentage: nonNegative(attrs.Percentage.Float()),
			IsContract: attrs.IsContract,
		})
	}
	return holders, nil
}

func normalizeTrades(url string, doc tradesDocument) ([]domain.Trade, error) {
	if doc.Data == nil {
		return nil, &ParseError{URL: url, Reason: "missing data envelope"}
	}
	trades := make([]domain.Trade, 0, len(*doc.Data))
	for _, entry := range *doc.Data {
		attrs := entry.Attributes

		side := domain.TradeBuy
		if strings.EqualFold(attrs.Type, "sell") {
			side = domain.TradeSell
		}

		trade := domain.Trade{
			Side:      side,
			AmountUSD: nonNegative(attrs.AmountUSD.Float()),
		}
		if t := parseTime(attrs.Timestamp); t != nil {
			trade.Timestamp = *t
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func normalizeOHLCV(url string, doc ohlcvDocument) ([]domain.OHLCVBar, error) {
	if doc.Data == nil {
		return nil, &ParseError{URL: url, Reason: "missing data envelope"}
	}
	raw := doc.Data.Attributes.Bars
	bars := make([]domain.OHLCVBar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.OHLCVBar{
			Timestamp: time.Unix(int64(b[0]), 0).UTC(),
			Open:      b[1],
			High:      b[2],
			Low:       b[3],
			Close:     b[4],
			Volume:    b[5],
		})
	}
	return bars, nil
}
