// Package spot fetches current spot prices for the assets behind
// spot-indexed markets.
package spot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Source provides the current USD spot price for an asset ("btc", "eth").
type Source interface {
	Price(ctx context.Context, asset string) (float64, error)
}

var coinIDs = map[string]string{
	"btc": "bitcoin",
	"eth": "ethereum",
}

// CoinGecko fetches simple prices from the CoinGecko API (free, no key)
// and caches them behind a short TTL so repeated gate checks within one
// invocation cost a single request.
type CoinGecko struct {
	endpoint string
	ttl      time.Duration
	httpc    *http.Client

	mu        sync.Mutex
	prices    map[string]float64
	fetchedAt time.Time
}

func NewCoinGecko(endpoint string, ttl time.Duration) *CoinGecko {
	return &CoinGecko{
		endpoint: endpoint,
		ttl:      ttl,
		httpc:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *CoinGecko) Price(ctx context.Context, asset string) (float64, error) {
	id, ok := coinIDs[strings.ToLower(asset)]
	if !ok {
		return 0, fmt.Errorf("unknown spot asset %q", asset)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prices != nil && time.Since(c.fetchedAt) < c.ttl {
		if p, ok := c.prices[id]; ok {
			return p, nil
		}
	}

	prices, err := c.fetchAll(ctx)
	if err != nil {
		return 0, err
	}
	c.prices = prices
	c.fetchedAt = time.Now()

	p, ok := prices[id]
	if !ok {
		return 0, fmt.Errorf("no spot price returned for %s", id)
	}
	return p, nil
}

func (c *CoinGecko) fetchAll(ctx context.Context) (map[string]float64, error) {
	ids := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		ids = append(ids, id)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building spot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching spot prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spot price request failed: status %d: %s", resp.StatusCode, body)
	}

	var raw map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding spot response: %w", err)
	}

	prices := make(map[string]float64, len(raw))
	for id, cur := range raw {
		if usd, ok := cur["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}
