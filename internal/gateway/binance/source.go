package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	symbolpkg "updown/internal/pkg/symbol"
	"updown/internal/types"
)

const maxKlineLimit = 1500

// Client 基于 go-binance futures SDK 提供现价与 K 线。
type Client struct {
	cfg    Config
	client *futures.Client
	nowFn  func() time.Time
}

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid binance proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Client{cfg: final, client: client, nowFn: time.Now}, nil
}

func (c *Client) pair(asset string) (string, error) {
	sym := symbolpkg.Parse(asset, c.cfg.QuoteAsset)
	if !sym.Valid() {
		return "", fmt.Errorf("invalid asset %q", asset)
	}
	return sym.Binance(), nil
}

// CurrentPrice returns the last traded futures price for the asset.
func (c *Client) CurrentPrice(ctx context.Context, asset string) (float64, error) {
	pair, err := c.pair(asset)
	if err != nil {
		return 0, err
	}
	prices, err := c.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: %w", pair, err)
	}
	for _, p := range prices {
		if p == nil || !strings.EqualFold(p.Symbol, pair) {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("binance price %s: parse %q: %w", pair, p.Price, err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("binance price %s: empty response", pair)
}

// FetchKlines returns closed candles, oldest first. The still-forming candle is dropped.
func (c *Client) FetchKlines(ctx context.Context, asset, interval string, limit int) ([]types.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	pair, err := c.pair(asset)
	if err != nil {
		return nil, err
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	// 多取一根，丢弃未收盘的那根后仍够 limit
	kls, err := c.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit + 1).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", pair, interval, err)
	}
	nowMs := c.nowFn().UnixMilli()
	out := make([]types.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil || kl.CloseTime >= nowMs {
			continue
		}
		out = append(out, types.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
