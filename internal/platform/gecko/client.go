// Package gecko is the REST client for the upstream market-data provider.
// It owns the retry policy, the typed document shapes, and the normalization
// of those documents into domain values.
package gecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenwatch/internal/domain"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.geckoterminal.com/api/v2"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// networkSlugs maps our human network names to the vendor's slugs. Unknown
// networks pass through lower-cased unchanged, so a newly supported chain
// degrades to "address not found" rather than a hard failure here.
var networkSlugs = map[string]string{
	"ethereum":  "eth",
	"bsc":       "bsc",
	"polygon":   "polygon_pos",
	"arbitrum":  "arbitrum",
	"avalanche": "avax",
	"optimism":  "optimism",
	"base":      "base",
	"solana":    "solana",
}

// Slug returns the vendor network slug for a human network name.
func Slug(network string) string {
	network = strings.ToLower(network)
	if slug, ok := networkSlugs[network]; ok {
		return slug
	}
	return network
}

// Client is the REST client. It is safe for concurrent use; each request
// carries its own retry state.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimited RetryPolicy
	transient   RetryPolicy
	logger      *slog.Logger
}

// NewClient creates a Client. baseURL defaults to DefaultBaseURL when empty.
func NewClient(baseURL string, timeout time.Duration, rateLimited, transient RetryPolicy, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		rateLimited: rateLimited,
		transient:   transient,
		logger:      logger.With(slog.String("component", "gecko")),
	}
}

// doGet issues one GET with the composed retry policies. 429 responses retry
// under the rate-limit policy and transport errors under the transient
// policy; any other non-2xx status is returned immediately as a typed
// *FetchError. When the 429 attempts are exhausted the last-seen status is
// surfaced on the error rather than silently swallowed.
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	rateDelays := c.rateLimited.delays()
	transientDelays := c.transient.delays()
	rateAttempts, transientAttempts := 1, 1

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, &FetchError{URL: u, Err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &FetchError{URL: u, Err: ctx.Err()}
			}
			if transientAttempts >= c.transient.MaxAttempts {
				return nil, &FetchError{URL: u, Err: err}
			}
			delay := transientDelays.NextBackOff()
			c.logger.Warn("transport error, retrying",
				slog.String("url", u),
				slog.Int("attempt", transientAttempts),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			transientAttempts++
			if err := sleep(ctx, delay); err != nil {
				return nil, &FetchError{URL: u, Err: err}
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()

		c.logger.Debug("fetch attempt",
			slog.String("url", u),
			slog.Int("status", resp.StatusCode),
		)

		if readErr != nil {
			return nil, &FetchError{URL: u, StatusCode: resp.StatusCode, Err: readErr}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if rateAttempts >= c.rateLimited.MaxAttempts {
				return nil, &FetchError{
					URL:        u,
					StatusCode: resp.StatusCode,
					Body:       truncateBody(body),
					Err:        domain.ErrRateLimited,
				}
			}
			delay := rateDelays.NextBackOff()
			c.logger.Warn("rate limited, backing off",
				slog.String("url", u),
				slog.Int("attempt", rateAttempts),
				slog.Duration("delay", delay),
			)
			rateAttempts++
			if err := sleep(ctx, delay); err != nil {
				return nil, &FetchError{URL: u, Err: err}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &FetchError{URL: u, StatusCode: resp.StatusCode, Body: truncateBody(body)}
		}

		return body, nil
	}
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}

func (c *Client) tokenPath(ref domain.TokenRef, suffix string) string {
	return fmt.Sprintf("/networks/%s/tokens/%s%s",
		url.PathEscape(Slug(ref.Network)), url.PathEscape(ref.Address), suffix)
}

// Snapshot fetches the token attributes document plus the socials/info
// document and normalizes them into one Snapshot. The info document is
// best-effort: when it fails the snapshot simply carries no social flags and
// no trust score, matching the adapter's degrade-don't-fail policy for
// optional data.
func (c *Client) Snapshot(ctx context.Context, ref domain.TokenRef) (domain.Snapshot, error) {
	path := c.tokenPath(ref, "")

	body, err := c.doGet(ctx, path, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("gecko: get token %s: %w", ref, err)
	}

	var doc tokenDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.Snapshot{}, &ParseError{URL: path, Reason: "invalid json: " + err.Error()}
	}

	snap, err := normalizeToken(path, ref, doc, time.Now().UTC())
	if err != nil {
		return domain.Snapshot{}, err
	}

	infoPath := c.tokenPath(ref, "/info")
	infoBody, err := c.doGet(ctx, infoPath, nil)
	if err != nil {
		c.logger.Debug("token info unavailable",
			slog.String("token", ref.String()),
			slog.String("error", err.Error()),
		)
		return snap, nil
	}

	var info infoDocument
	if err := json.Unmarshal(infoBody, &info); err == nil {
		applyInfo(&snap, info)
	}

	return snap, nil
}

// Price fetches just the current USD price.
func (c *Client) Price(ctx context.Context, ref domain.TokenRef) (float64, error) {
	snap, err := c.Snapshot(ctx, ref)
	if err != nil {
		return 0, err
	}
	return snap.PriceUSD, nil
}

// Pools fetches the token's liquidity pools.
func (c *Client) Pools(ctx context.Context, ref domain.TokenRef) ([]domain.Pool, error) {
	path := c.tokenPath(ref, "/pools")

	body, err := c.doGet(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("gecko: get pools %s: %w", ref, err)
	}

	var doc poolsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{URL: path, Reason: "invalid json: " + err.Error()}
	}
	return normalizePools(path, doc)
}

// Holders fetches the token's top holder distribution, largest first.
func (c *Client) Holders(ctx context.Context, ref domain.TokenRef, limit int) ([]domain.Holder, error) {
	path := c.tokenPath(ref, "/holders")
	params := url.Values{}
	params.Set("page", "1")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("gecko: get holders %s: %w", ref, err)
	}

	var doc holdersDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{URL: path, Reason: "invalid json: " + err.Error()}
	}
	return normalizeHolders(path, doc)
}

// Trades fetches the token's most recent trades.
func (c *Client) Trades(ctx context.Context, ref domain.TokenRef, limit int) ([]domain.Trade, error) {
	path := c.tokenPath(ref, "/trades")
	params := url.Values{}
	params.Set("page", "1")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("gecko: get trades %s: %w", ref, err)
	}

	var doc tradesDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{URL: path, Reason: "invalid json: " + err.Error()}
	}
	return normalizeTrades(path, doc)
}

// OHLCV fetches vendor-side historical bars for the token's primary pool.
// timeframe is the vendor timeframe ("hour", "day").
func (c *Client) OHLCV(ctx context.Context, ref domain.TokenRef, timeframe string, limit int) ([]domain.OHLCVBar, error) {
	path := c.tokenPath(ref, "/ohlcv/"+url.PathEscape(timeframe))
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("gecko: get ohlcv %s: %w", ref, err)
	}

	var doc ohlcvDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{URL: path, Reason: "invalid json: " + err.Error()}
	}
	return normalizeOHLCV(path, doc)
}

// RecentlyUpdated lists tokens the vendor recently refreshed on a network.
// Listings carry no quote; callers fetch a Snapshot per token for prices.
func (c *Client) RecentlyUpdated(ctx context.Context, network string) ([]domain.ScanCandidate, error) {
	const path = "/tokens/info_recently_updated"
	params := url.Values{}
	params.Set("network", Slug(network))

	body, err := c.doGet(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("gecko: recently updated %s: %w", network, err)
	}

	var doc listingsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{URL: path, Reason: "invalid json: " + err.Error()}
	}
	if doc.Data == nil {
		return nil, &ParseError{URL: path, Reason: "missing data envelope"}
	}

	candidates := make([]domain.ScanCandidate, 0, len(*doc.Data))
	for _, entry := range *doc.Data {
		ref, err := domain.NewTokenRef(entry.Attributes.Address, network)
		if err != nil {
			c.logger.Debug("skipping listing with invalid address",
				slog.String("address", entry.Attributes.Address),
				slog.String("network", network),
			)
			continue
		}
		candidates = append(candidates, domain.ScanCandidate{
			Ref:    ref,
			Name:   entry.Attributes.Name,
			Symbol: entry.Attributes.Symbol,
		})
	}
	return candidates, nil
}
