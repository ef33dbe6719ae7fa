// Package symbol maps a bare asset ticker to the pair formats each upstream expects.
package symbol

import (
	"strings"
)

const DefaultQuote = "USDT"

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Valid() bool {
	return s.Base != "" && s.Quote != ""
}

// Slash form used by the indicator service, e.g. BTC/USDT.
func (s Symbol) Slash() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Binance form, e.g. BTCUSDT.
func (s Symbol) Binance() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + s.Quote
}

var knownQuotes = []string{"USDT", "USDC", "BUSD", "FDUSD"}

// Parse accepts "BTC", "btc/usdt", "BTCUSDT" or "BTC/USDT:USDT".
// A bare ticker is paired with the given quote.
func Parse(s, quote string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = DefaultQuote
	}
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
	}
	for _, q := range knownQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return Symbol{Base: s[:len(s)-len(q)], Quote: q}
		}
	}
	if !isTicker(s) {
		return Symbol{}
	}
	return Symbol{Base: s, Quote: quote}
}

func isTicker(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Asset returns the normalized base ticker, e.g. "eth" -> "ETH".
func Asset(s string) string {
	return Parse(s, "").Base
}
