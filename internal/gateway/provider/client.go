// Package provider talks to OpenAI-compatible chat completion endpoints.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"updown/internal/logger"
	"updown/internal/pkg/retry"
	"updown/internal/pkg/text"
)

// ErrMalformedResponse marks a 2xx reply whose envelope could not be decoded.
var ErrMalformedResponse = errors.New("malformed chat completion response")

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.Code, e.Message)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// OpenAIChatClient：兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口（/v1/chat/completions）。
type OpenAIChatClient struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// 仅对 429/5xx 做有限重试，0 表示不重试
	MaxRetries   int
	ExtraHeaders map[string]string

	HTTPClient *http.Client
	Sleep      func(ctx context.Context, d time.Duration) error
}

func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	// 用户可能把完整的 /chat/completions 写进了配置
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.HTTPClient = &http.Client{Timeout: timeout}
	return c.HTTPClient
}

func (c *OpenAIChatClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	url := c.endpoint()
	logger.Debugf("[LLM] POST %s headers=%v bytes=%d", url, c.maskedHeaders(), len(body))

	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = retry.SleepContext
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, wait, err := c.do(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		var se *StatusError
		if !errors.As(err, &se) || !se.Transient() || attempt == maxRetries {
			break
		}
		if wait == 0 {
			// 基本指数退避：0.8s, 1.6s, 3.2s ...
			wait = 800 * time.Millisecond << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		logger.Warnf("[LLM] %v, retry %d/%d in %s", err, attempt+1, maxRetries, wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, errors.Join(lastErr, err)
		}
	}
	return nil, lastErr
}

// do 发送一次请求；非 2xx 时同时返回 Retry-After 建议的等待时间。
func (c *OpenAIChatClient) do(ctx context.Context, url string, body []byte) (*ChatResponse, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &eresp)
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = text.Truncate(strings.TrimSpace(string(raw)), 256)
		}
		if msg == "" {
			msg = resp.Status
		}
		var wait time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		return nil, wait, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	var out ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out.Raw = raw
	return &out, 0, nil
}

func (c *OpenAIChatClient) maskedHeaders() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		h["Authorization"] = "Bearer " + mask(c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = mask(v)
		}
		h[k] = v
	}
	return h
}

// mask 仅保留后 4 位。
func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
