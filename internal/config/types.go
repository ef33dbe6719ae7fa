package config

import (
	"strings"
	"time"
)

// Config 是 updown 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Indicators IndicatorsConfig `toml:"indicators"`
	Binance    BinanceConfig    `toml:"binance"`
	LLM        LLMConfig        `toml:"llm"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	CLOB       CLOBConfig       `toml:"clob"`
	Store      StoreConfig      `toml:"store"`
	Notify     NotifyConfig     `toml:"notify"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Tracing    TracingConfig    `toml:"tracing"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload"`
}

// IndicatorsConfig 指标源设置。provider=taapi 走远端接口，local 用 K 线本地计算。
type IndicatorsConfig struct {
	Provider               string   `toml:"provider"`
	BaseURL                string   `toml:"base_url"`
	Secret                 string   `toml:"secret"`
	Exchange               string   `toml:"exchange"`
	TimeoutSeconds         int      `toml:"timeout_seconds"`
	ThrottleMS             int      `toml:"throttle_ms"`
	RetryAttempts          int      `toml:"retry_attempts"`
	RetryBackoffMS         int      `toml:"retry_backoff_ms"`
	SeriesResults          int      `toml:"series_results"`
	IntradayTimeframe      string   `toml:"intraday_timeframe"`
	LongTermTimeframe      string   `toml:"long_term_timeframe"`
	IntradayIDs            []string `toml:"intraday_ids"`
	LongTermIDs            []string `toml:"long_term_ids"`
	CatalogPath            string   `toml:"catalog_path"`
	BreakerThreshold       int      `toml:"breaker_threshold"`
	BreakerCooldownSeconds int      `toml:"breaker_cooldown_seconds"`
}

func (c IndicatorsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c IndicatorsConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

func (c IndicatorsConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

func (c IndicatorsConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

type BinanceConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	QuoteAsset     string `toml:"quote_asset"`
	ProxyURL       string `toml:"proxy_url"`
}

func (c BinanceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type LLMConfig struct {
	BaseURL         string   `toml:"base_url"`
	APIKey          string   `toml:"api_key"`
	Model           string   `toml:"model"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	MaxRetries      int      `toml:"max_retries"`
	Temperature     *float64 `toml:"temperature"`
	MaxToolRounds   int      `toml:"max_tool_rounds"`
	PolicyPath      string   `toml:"policy_path"`
	MaxContextBytes int      `toml:"max_context_bytes"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PolymarketConfig struct {
	GammaBaseURL   string `toml:"gamma_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// Proxy 支持 host:port:user:pass 或完整 URL。
	Proxy string `toml:"proxy"`
}

func (c PolymarketConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type CLOBConfig struct {
	Enabled        bool   `toml:"enabled"`
	AutoOrder      bool   `toml:"auto_order"`
	Host           string `toml:"host"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	Passphrase     string `toml:"passphrase"`
	Address        string `toml:"address"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func (c CLOBConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// SchedulerConfig 控制按 15 分钟窗口自动预测。
type SchedulerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Symbols        []string `toml:"symbols"`
	OffsetSeconds  int      `toml:"offset_seconds"`
	RunImmediately bool     `toml:"run_immediately"`
}

type TracingConfig struct {
	Enabled bool `toml:"enabled"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}
