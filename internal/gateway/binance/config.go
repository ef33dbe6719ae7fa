package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	// ProxyURL 为空时直连。
	ProxyURL string
	// QuoteAsset pairs bare tickers, BTC -> BTCUSDT.
	QuoteAsset string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 10 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	out.QuoteAsset = strings.ToUpper(strings.TrimSpace(out.QuoteAsset))
	return out
}
