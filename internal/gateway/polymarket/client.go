// Package polymarket reads prediction-market snapshots from the Gamma events API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/text"
	"updown/internal/types"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Proxy   string
}

// Client handles communication with the Gamma API. Calls are not retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://gamma-api.polymarket.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout, Transport: transportFor(cfg.Proxy)},
	}
}

// GetMarketBySlug fetches exactly the event behind slug. It returns (nil, nil) when the
// venue has no such event or none of its markets parse.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (*types.MarketSnapshot, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}
	body, status, err := c.get(ctx, "/events/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		metrics.MarketLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	if status == http.StatusNotFound {
		metrics.MarketLookups.WithLabelValues("not_found").Inc()
		return nil, nil
	}
	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.MarketLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode event %s: %w", slug, err)
	}
	snap := pickMarket(slug, ev)
	if snap == nil {
		metrics.MarketLookups.WithLabelValues("not_found").Inc()
		return nil, nil
	}
	metrics.MarketLookups.WithLabelValues("found").Inc()
	return snap, nil
}

func pickMarket(slug string, ev event) *types.MarketSnapshot {
	var fallback *types.MarketSnapshot
	for _, m := range ev.Markets {
		snap, err := toSnapshot(slug, m)
		if err != nil {
			metrics.MarketLookups.WithLabelValues("excluded").Inc()
			logger.Warnf("polymarket %s: market %s excluded: %v", slug, m.ID, err)
			continue
		}
		if m.Slug == slug {
			return &snap
		}
		if fallback == nil {
			fallback = &snap
		}
	}
	return fallback
}

// ListActiveMarkets lists open events whose title contains titleFilter (case-insensitive).
// Markets that fail to parse are skipped.
func (c *Client) ListActiveMarkets(ctx context.Context, titleFilter string, limit int) ([]types.MarketSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))
	body, status, err := c.get(ctx, "/events", q)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var events []event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	filter := strings.ToLower(strings.TrimSpace(titleFilter))
	out := make([]types.MarketSnapshot, 0)
	for _, ev := range events {
		if filter != "" && !strings.Contains(strings.ToLower(ev.Title), filter) {
			continue
		}
		for _, m := range ev.Markets {
			snap, err := toSnapshot(m.Slug, m)
			if err != nil {
				logger.Debugf("polymarket event %s: market %s excluded: %v", ev.Slug, m.ID, err)
				continue
			}
			out = append(out, snap)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, int, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text.Truncate(string(body), 256))
	}
	return body, resp.StatusCode, nil
}
