// Package taapi fetches technical indicators from the taapi.io REST API.
//
// Every fetch degrades instead of failing: after the retry budget is spent the caller
// receives nil or an empty series and the failure is only logged.
package taapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/circuit"
	"updown/internal/pkg/convert"
	"updown/internal/pkg/retry"
	"updown/internal/pkg/text"
)

const (
	precision   = 4
	backendName = "taapi"
)

type Client struct {
	cfg     Config
	breaker *circuit.CircuitBreaker
}

func New(cfg Config) *Client {
	final := cfg.withDefaults()
	breaker := circuit.NewCircuitBreaker(backendName, final.BreakerThreshold, final.BreakerCooldown)
	breaker.SetStateChangeHandler(onBreakerChange)
	return &Client{cfg: final, breaker: breaker}
}

func onBreakerChange(name string, from, to circuit.State) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(to))
	logger.Warnf("circuit %s: %s -> %s", name, from, to)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// FetchValue returns the latest value under key, rounded, or nil when unavailable.
func (c *Client) FetchValue(ctx context.Context, indicator, symbol, interval string, params map[string]any, key string) *float64 {
	body, ok := c.fetch(ctx, indicator, symbol, interval, 0, params)
	if !ok {
		return nil
	}
	res := gjson.GetBytes(body, keyOrDefault(key))
	if res.Type != gjson.Number {
		logger.Warnf("taapi %s %s %s: response lacks numeric %q", indicator, symbol, interval, keyOrDefault(key))
		return nil
	}
	v := convert.Round(res.Float(), precision)
	return &v
}

// FetchSeries returns the last results values under key. Numeric entries are rounded,
// anything else is passed through unchanged. Empty when unavailable.
func (c *Client) FetchSeries(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any, key string) []any {
	body, ok := c.fetch(ctx, indicator, symbol, interval, results, params)
	if !ok {
		return []any{}
	}
	res := gjson.GetBytes(body, keyOrDefault(key))
	if !res.IsArray() {
		logger.Warnf("taapi %s %s %s: response lacks array %q", indicator, symbol, interval, keyOrDefault(key))
		return []any{}
	}
	return seriesOf(res)
}

// GetHistoricalData returns the whole decoded response object, or an empty map when unavailable.
// Multi-output indicators such as bbands or macd come back as several keyed arrays.
func (c *Client) GetHistoricalData(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any) map[string]any {
	body, ok := c.fetch(ctx, indicator, symbol, interval, results, params)
	if !ok {
		return map[string]any{}
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		logger.Warnf("taapi %s %s %s: response is not an object", indicator, symbol, interval)
		return map[string]any{}
	}
	out := make(map[string]any)
	res.ForEach(func(k, v gjson.Result) bool {
		if v.IsArray() {
			out[k.String()] = seriesOf(v)
			return true
		}
		out[k.String()] = v.Value()
		return true
	})
	return out
}

func seriesOf(arr gjson.Result) []any {
	items := arr.Array()
	raw := make([]any, 0, len(items))
	for _, item := range items {
		if item.Type == gjson.Number {
			raw = append(raw, item.Float())
			continue
		}
		raw = append(raw, item.Value())
	}
	return convert.RoundSeries(raw, precision)
}

func keyOrDefault(key string) string {
	if key == "" {
		return "value"
	}
	return key
}

// fetch 带重试地请求一次上游；失败只记录日志，返回 ok=false。
func (c *Client) fetch(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any) ([]byte, bool) {
	endpoint, err := c.buildURL(indicator, symbol, interval, results, params)
	if err != nil {
		logger.Warnf("taapi %s: %v", indicator, err)
		return nil, false
	}
	attempts := 0
	opts := retry.Options{
		MaxAttempts: c.cfg.RetryAttempts,
		BackoffBase: c.cfg.RetryBackoff,
		Sleep:       c.cfg.Sleep,
		// 单次请求超时照常重试，只有调用方 ctx 结束才停。
		Retryable: func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Debugf("taapi %s %s %s attempt %d failed, retry in %s: %v", indicator, symbol, interval, attempt, delay, err)
		},
	}
	var body []byte
	err = c.breaker.Execute(func() error {
		var ferr error
		body, ferr = retry.DoValue(ctx, opts, func(ctx context.Context) ([]byte, error) {
			attempts++
			return c.get(ctx, endpoint)
		})
		return ferr
	})
	switch {
	case errors.Is(err, circuit.ErrOpen):
		metrics.IndicatorFetches.WithLabelValues(backendName, "short_circuit").Inc()
		logger.Debugf("taapi %s %s %s skipped: circuit open", indicator, symbol, interval)
		return nil, false
	case err != nil:
		metrics.IndicatorFetches.WithLabelValues(backendName, "degraded").Inc()
		logger.Warnf("taapi %s %s %s degraded after %d attempts: %v", indicator, symbol, interval, attempts, err)
		return nil, false
	}
	metrics.IndicatorFetches.WithLabelValues(backendName, "ok").Inc()
	return body, true
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: text.Truncate(string(body), 256)}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json body: %s", text.Truncate(string(body), 256))
	}
	return body, nil
}

func (c *Client) buildURL(indicator, symbol, interval string, results int, params map[string]any) (string, error) {
	if indicator == "" || symbol == "" || interval == "" {
		return "", fmt.Errorf("indicator, symbol and interval are required")
	}
	u, err := url.Parse(c.cfg.BaseURL + "/" + url.PathEscape(indicator))
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.cfg.Secret)
	q.Set("exchange", c.cfg.Exchange)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	if results > 0 {
		q.Set("results", strconv.Itoa(results))
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, fmt.Sprint(params[k]))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
