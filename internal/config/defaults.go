package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":9991"
	defaultIndicatorProvider = "taapi"
	defaultTaapiBaseURL      = "https://api.taapi.io"
	defaultTaapiExchange     = "binance"
	defaultIndicatorTimeout  = 10
	defaultThrottleMS        = 1000
	defaultRetryAttempts     = 3
	defaultRetryBackoffMS    = 500
	defaultSeriesResults     = 10
	defaultIntradayTF        = "5m"
	defaultLongTermTF        = "4h"
	defaultBreakerThreshold  = 5
	defaultBreakerCooldown   = 60
	defaultBinanceREST       = "https://fapi.binance.com"
	defaultBinanceTimeout    = 10
	defaultQuoteAsset        = "USDT"
	defaultLLMBaseURL        = "https://api.openai.com/v1"
	defaultLLMModel          = "gpt-4o-mini"
	defaultLLMTimeout        = 60
	defaultLLMMaxRetries     = 2
	defaultLLMMaxToolRounds  = 3
	defaultLLMContextBytes   = 64 * 1024
	defaultGammaBaseURL      = "https://gamma-api.polymarket.com"
	defaultGammaTimeout      = 15
	defaultCLOBHost          = "https://clob.polymarket.com"
	defaultCLOBTimeout       = 15
	defaultStorePath         = "data/predictions.db"
	defaultSchedulerOffset   = 5
)

// applyDefaults 为所有子配置应用默认值；配置文件或环境变量里出现过的键不覆盖。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Indicators.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
	c.Polymarket.applyDefaults(keys)
	c.CLOB.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (i *IndicatorsConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("indicators.provider", &i.Provider, defaultIndicatorProvider),
		stringFieldDefault("indicators.base_url", &i.BaseURL, defaultTaapiBaseURL),
		stringFieldDefault("indicators.exchange", &i.Exchange, defaultTaapiExchange),
		stringFieldDefault("indicators.intraday_timeframe", &i.IntradayTimeframe, defaultIntradayTF),
		stringFieldDefault("indicators.long_term_timeframe", &i.LongTermTimeframe, defaultLongTermTF),
		intFieldDefault("indicators.timeout_seconds", &i.TimeoutSeconds, defaultIndicatorTimeout),
		intFieldDefault("indicators.retry_attempts", &i.RetryAttempts, defaultRetryAttempts),
		intFieldDefault("indicators.retry_backoff_ms", &i.RetryBackoffMS, defaultRetryBackoffMS),
		intFieldDefault("indicators.series_results", &i.SeriesResults, defaultSeriesResults),
		intFieldDefault("indicators.breaker_threshold", &i.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("indicators.breaker_cooldown_seconds", &i.BreakerCooldownSeconds, defaultBreakerCooldown),
		// throttle_ms: 0 是合法值（关闭节流），只在未配置时补默认。
		fieldDefault{
			key:   "indicators.throttle_ms",
			apply: func() { i.ThrottleMS = defaultThrottleMS },
		},
	)
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("binance.rest_base_url", &b.RESTBaseURL, defaultBinanceREST),
		stringFieldDefault("binance.quote_asset", &b.QuoteAsset, defaultQuoteAsset),
		intFieldDefault("binance.timeout_seconds", &b.TimeoutSeconds, defaultBinanceTimeout),
	)
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("llm.base_url", &l.BaseURL, defaultLLMBaseURL),
		stringFieldDefault("llm.model", &l.Model, defaultLLMModel),
		intFieldDefault("llm.timeout_seconds", &l.TimeoutSeconds, defaultLLMTimeout),
		intFieldDefault("llm.max_tool_rounds", &l.MaxToolRounds, defaultLLMMaxToolRounds),
		intFieldDefault("llm.max_context_bytes", &l.MaxContextBytes, defaultLLMContextBytes),
		fieldDefault{
			key:   "llm.max_retries",
			apply: func() { l.MaxRetries = defaultLLMMaxRetries },
		},
	)
}

func (p *PolymarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("polymarket.gamma_base_url", &p.GammaBaseURL, defaultGammaBaseURL),
		intFieldDefault("polymarket.timeout_seconds", &p.TimeoutSeconds, defaultGammaTimeout),
	)
}

func (c *CLOBConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("clob.host", &c.Host, defaultCLOBHost),
		intFieldDefault("clob.timeout_seconds", &c.TimeoutSeconds, defaultCLOBTimeout),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultStorePath))
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "scheduler.offset_seconds",
			apply: func() { s.OffsetSeconds = defaultSchedulerOffset },
		},
	)
	s.Symbols = normalizeSymbolList(s.Symbols)
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func normalizeSymbolList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
