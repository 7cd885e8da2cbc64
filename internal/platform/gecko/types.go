package gecko

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Number is an optional numeric field. The upstream API encodes numbers
// inconsistently (bare numbers, quoted strings, null, or absent), so Number
// absorbs all of those without failing the surrounding document. Presence is
// tracked explicitly; the value collapses to zero only at the Snapshot
// boundary via Float.
type Number struct {
	val float64
	ok  bool
}

// NumberOf wraps a known value; used by tests and fixtures.
func NumberOf(v float64) Number {
	return Number{val: v, ok: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*n = Number{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*n = Number{}
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*n = Number{}
			return nil
		}
		*n = Number{val: f, ok: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*n = Number{}
		return nil
	}
	*n = Number{val: f, ok: true}
	return nil
}

// Valid reports whether the upstream actually sent a numeric value.
func (n Number) Valid() bool {
	return n.ok
}

// Float returns the value, or 0 when the field was missing or non-numeric.
func (n Number) Float() float64 {
	if !n.ok {
		return 0
	}
	return n.val
}

// Or returns n when it is valid, otherwise the fallback.
func (n Number) Or(fallback Number) Number {
	if n.ok {
		return n
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Upstream document shapes. One struct per endpoint; each is validated once
// in the adapter and never re-parsed downstream.
// ---------------------------------------------------------------------------

type tokenDocument struct {
	Data *struct {
		Attributes tokenAttributes `json:"attributes"`
	} `json:"data"`
}

type tokenAttributes struct {
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	PriceUSD          Number `json:"price_usd"`
	MarketCapUSD      Number `json:"market_cap_usd"`
	FdvUSD            Number `json:"fdv_usd"`
	VolumeUSD24h      Number `json:"volume_usd_24h"`
	TotalReserveInUSD Number `json:"total_reserve_in_usd"`
	PoolCreatedAt     string `json:"pool_created_at"`
	CreatedAt         string `json:"created_at"`
}

type infoDocument struct {
	Data *struct {
		Attributes infoAttributes `json:"attributes"`
	} `json:"data"`
}

type infoAttributes struct {
	TwitterHandle  string   `json:"twitter_handle"`
	TelegramHandle string   `json:"telegram_handle"`
	DiscordURL     string   `json:"discord_url"`
	Websites       []string `json:"websites"`
	GtScore        Number   `json:"gt_score"`
}

type poolsDocument struct {
	Data *[]struct {
		Attributes poolAttributes `json:"attributes"`
	} `json:"data"`
}

type poolAttributes struct {
	Address                  string `json:"address"`
	Name                     string `json:"name"`
	DexID                    string `json:"dex_id"`
	ReserveInUSD             Number `json:"reserve_in_usd"`
	VolumeUSD24h             Number `json:"volume_usd_24h"`
	Transactions24h          Number `json:"transactions_24h"`
	PriceChangePercentage24h Number `json:"price_change_percentage_24h"`
	PoolCreatedAt            string `json:"pool_created_at"`
}

type holdersDocument struct {
	Data *[]struct {
		Attributes holderAttributes `json:"attributes"`
	} `json:"data"`
}

type holderAttributes struct {
	Address    string `json:"address"`
	Percentage Number `json:"percentage"`
	IsContract bool   `json:"is_contract"`
}

type tradesDocument struct {
	Data *[]struct {
		Attributes tradeAttributes `json:"attributes"`
	} `json:"data"`
}

type tradeAttributes struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	AmountUSD Number `json:"amount_usd"`
	TxHash    string `json:"tx_hash"`
	PoolName  string `json:"pool_name"`
}

type ohlcvDocument struct {
	Data *struct {
		Attributes struct {
			Bars []ohlcvBar `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// ohlcvBar is a positional [timestamp, open, high, low, close, volume] array.
type ohlcvBar [6]float64

type listingsDocument struct {
	Data *[]struct {
		Attributes listingAttributes `json:"attributes"`
	} `json:"data"`
}

type listingAttributes struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}
