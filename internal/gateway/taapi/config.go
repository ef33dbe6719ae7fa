package taapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"updown/internal/pkg/retry"
)

type Config struct {
	BaseURL  string
	Secret   string
	Exchange string
	Timeout  time.Duration

	RetryAttempts int
	RetryBackoff  time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration

	HTTPClient *http.Client
	// Sleep 仅测试替换。
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) withDefaults() Config {
	out := *c
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if out.BaseURL == "" {
		out.BaseURL = "https://api.taapi.io"
	}
	out.Exchange = strings.TrimSpace(out.Exchange)
	if out.Exchange == "" {
		out.Exchange = "binance"
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.RetryAttempts <= 0 {
		out.RetryAttempts = retry.DefaultMaxAttempts
	}
	if out.RetryBackoff < 0 {
		out.RetryBackoff = 0
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: out.Timeout}
	}
	return out
}
