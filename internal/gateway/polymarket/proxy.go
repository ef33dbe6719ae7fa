package polymarket

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"updown/internal/logger"
)

// ParseProxy accepts a full URL or the compact host:port[:user:pass] form.
func ParseProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy")
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}
		if u.Host == "" {
			return nil, fmt.Errorf("proxy url missing host")
		}
		return u, nil
	}
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 2:
		return &url.URL{Scheme: "http", Host: parts[0] + ":" + parts[1]}, nil
	case 4:
		return &url.URL{
			Scheme: "http",
			Host:   parts[0] + ":" + parts[1],
			User:   url.UserPassword(parts[2], parts[3]),
		}, nil
	default:
		return nil, fmt.Errorf("proxy must be host:port or host:port:user:pass")
	}
}

// transportFor 代理构造失败时回退直连，不阻断启动。
func transportFor(proxy string) http.RoundTripper {
	if strings.TrimSpace(proxy) == "" {
		return http.DefaultTransport
	}
	u, err := ParseProxy(proxy)
	if err != nil {
		logger.Warnf("polymarket proxy ignored, using direct connection: %v", err)
		return http.DefaultTransport
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok || base == nil {
		logger.Warnf("polymarket proxy ignored: default transport is not *http.Transport")
		return http.DefaultTransport
	}
	t := base.Clone()
	t.Proxy = http.ProxyURL(u)
	logger.Infof("polymarket requests routed through proxy %s", u.Host)
	return t
}
