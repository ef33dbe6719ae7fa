// Package clob places limit orders on the prediction-market order book.
package clob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/text"
)

const orderPath = "/order"

var ErrMissingCredentials = errors.New("clob credentials missing")

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderRequest struct {
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    Side    `json:"side"`
}

// OrderConfirmation 交易所回执，Raw 原样保留。
type OrderConfirmation struct {
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"`
	Raw     json.RawMessage `json:"raw"`
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clob status=%d body=%s", e.Status, text.Truncate(e.Body, 300))
}

type Config struct {
	Host       string
	APIKey     string
	APISecret  string
	Passphrase string
	Address    string
	Timeout    time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	nowFn      func() time.Time
}

func New(cfg Config) *Client {
	cfg.Host = strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if cfg.Host == "" {
		cfg.Host = "https://clob.polymarket.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, nowFn: time.Now}
}

func (c *Client) hasCredentials() bool {
	return strings.TrimSpace(c.cfg.APIKey) != "" &&
		strings.TrimSpace(c.cfg.APISecret) != "" &&
		strings.TrimSpace(c.cfg.Passphrase) != ""
}

// PlaceOrder submits a GTC limit order. Price is rounded to the 0.01 tick, size truncated to 2 decimals.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderConfirmation, error) {
	if !c.hasCredentials() {
		metrics.Orders.WithLabelValues("no_credentials").Inc()
		return nil, ErrMissingCredentials
	}
	order, err := normalizeOrder(req)
	if err != nil {
		metrics.Orders.WithLabelValues("invalid").Inc()
		return nil, err
	}
	payload := map[string]any{
		"tokenID":   order.TokenID,
		"price":     order.price.String(),
		"size":      order.size.String(),
		"side":      string(order.Side),
		"orderType": "GTC",
		"owner":     c.cfg.APIKey,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+orderPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	headers, err := c.l2Headers(http.MethodPost, orderPath, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.Orders.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("clob request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.Orders.WithLabelValues("rejected").Inc()
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	var parsed struct {
		OrderID  string `json:"orderID"`
		Status   string `json:"status"`
		ErrorMsg string `json:"errorMsg"`
		Success  *bool  `json:"success"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if parsed.Success != nil && !*parsed.Success {
		metrics.Orders.WithLabelValues("rejected").Inc()
		return nil, &APIError{Status: resp.StatusCode, Body: parsed.ErrorMsg}
	}
	metrics.Orders.WithLabelValues("placed").Inc()
	logger.Infof("clob order placed id=%s token=%s %s %s@%s", parsed.OrderID, order.TokenID, order.Side, order.size, order.price)
	return &OrderConfirmation{OrderID: parsed.OrderID, Status: parsed.Status, Raw: respBody}, nil
}

// l2Headers 按 L2 规则签名：HMAC-SHA256(secret, ts+method+path+body)，URL-safe base64。
func (c *Client) l2Headers(method, path string, body []byte) (map[string]string, error) {
	ts := strconv.FormatInt(c.nowFn().Unix(), 10)
	sig, err := sign(c.cfg.APISecret, ts, method, path, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"POLY_ADDRESS":    c.cfg.Address,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    c.cfg.APIKey,
		"POLY_PASSPHRASE": c.cfg.Passphrase,
	}, nil
}

func sign(secret, ts, method, path string, body []byte) (string, error) {
	key, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		// 有些 key 以标准 base64 下发
		key, err = base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return "", fmt.Errorf("decode api secret: %w", err)
		}
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(ts + method + path + string(body)))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

type normalizedOrder struct {
	OrderRequest
	price decimal.Decimal
	size  decimal.Decimal
}

var (
	tick     = decimal.RequireFromString("0.01")
	minPrice = tick
	maxPrice = decimal.RequireFromString("0.99")
)

func normalizeOrder(req OrderRequest) (normalizedOrder, error) {
	req.TokenID = strings.TrimSpace(req.TokenID)
	if req.TokenID == "" {
		return normalizedOrder{}, fmt.Errorf("token id is required")
	}
	switch req.Side {
	case SideBuy, SideSell:
	default:
		return normalizedOrder{}, fmt.Errorf("invalid side %q", req.Side)
	}
	price := decimal.NewFromFloat(req.Price).Round(2)
	if price.LessThan(minPrice) || price.GreaterThan(maxPrice) {
		return normalizedOrder{}, fmt.Errorf("price %s outside [%s, %s]", price, minPrice, maxPrice)
	}
	size := decimal.NewFromFloat(req.Size).Truncate(2)
	if !size.IsPositive() {
		return normalizedOrder{}, fmt.Errorf("size must be positive, got %s", size)
	}
	req.Price = price.InexactFloat64()
	req.Size = size.InexactFloat64()
	return normalizedOrder{OrderRequest: req, price: price, size: size}, nil
}
