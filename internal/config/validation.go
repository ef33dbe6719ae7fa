package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Indicators.validate(); err != nil {
		return err
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if err := c.Polymarket.validate(); err != nil {
		return err
	}
	if err := c.CLOB.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	return nil
}

func (i *IndicatorsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(i.Provider)) {
	case "taapi":
		if err := checkURL("indicators.base_url", i.BaseURL); err != nil {
			return err
		}
	case "local":
	default:
		return fmt.Errorf("indicators.provider must be taapi or local, got %q", i.Provider)
	}
	if i.ThrottleMS < 0 {
		return fmt.Errorf("indicators.throttle_ms must be >= 0")
	}
	if i.RetryAttempts <= 0 {
		return fmt.Errorf("indicators.retry_attempts must be > 0")
	}
	if i.RetryBackoffMS < 0 {
		return fmt.Errorf("indicators.retry_backoff_ms must be >= 0")
	}
	if i.SeriesResults <= 0 || i.SeriesResults > 300 {
		return fmt.Errorf("indicators.series_results must be within 1..300")
	}
	return nil
}

func (l *LLMConfig) validate() error {
	if err := checkURL("llm.base_url", l.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0")
	}
	if l.Temperature != nil && (*l.Temperature < 0 || *l.Temperature > 2) {
		return fmt.Errorf("llm.temperature must be within 0..2")
	}
	return nil
}

func (p *PolymarketConfig) validate() error {
	return checkURL("polymarket.gamma_base_url", p.GammaBaseURL)
}

func (c *CLOBConfig) validate() error {
	if !c.Enabled {
		if c.AutoOrder {
			return fmt.Errorf("clob.auto_order requires clob.enabled")
		}
		return nil
	}
	return checkURL("clob.host", c.Host)
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if len(s.Symbols) == 0 {
		return fmt.Errorf("scheduler.symbols requires at least one symbol when enabled")
	}
	if s.OffsetSeconds < 0 || s.OffsetSeconds >= 900 {
		return fmt.Errorf("scheduler.offset_seconds must be within 0..899")
	}
	return nil
}

func checkURL(key, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid url: %q", key, raw)
	}
	return nil
}
