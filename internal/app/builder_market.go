package app

import (
	"fmt"
	"strings"

	localind "updown/internal/analysis/indicator"
	brcfg "updown/internal/config"
	"updown/internal/gateway/binance"
	"updown/internal/gateway/taapi"
	"updown/internal/indicator"
	"updown/internal/logger"
	"updown/internal/market"
	"updown/internal/pkg/throttle"
)

func buildPriceSource(cfg brcfg.BinanceConfig) (*binance.Client, error) {
	return binance.New(binance.Config{
		RESTBaseURL: cfg.RESTBaseURL,
		HTTPTimeout: cfg.Timeout(),
		ProxyURL:    cfg.ProxyURL,
		QuoteAsset:  cfg.QuoteAsset,
	})
}

// buildIndicatorSource 按 indicators.provider 选择远端 taapi 或本地 talib 计算。
func buildIndicatorSource(cfg brcfg.IndicatorsConfig, override market.IndicatorSource, klines *binance.Client) (market.IndicatorSource, error) {
	if override != nil {
		return override, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "local":
		if klines == nil {
			return nil, fmt.Errorf("local indicators require a kline source")
		}
		logger.Infof("✓ 指标源: local (talib, binance klines)")
		return localind.NewBackend(klines), nil
	case "", "taapi":
		logger.Infof("✓ 指标源: taapi %s exchange=%s", cfg.BaseURL, cfg.Exchange)
		return taapi.New(taapi.Config{
			BaseURL:          cfg.BaseURL,
			Secret:           cfg.Secret,
			Exchange:         cfg.Exchange,
			Timeout:          cfg.Timeout(),
			RetryAttempts:    cfg.RetryAttempts,
			RetryBackoff:     cfg.RetryBackoff(),
			BreakerThreshold: cfg.BreakerThreshold,
			BreakerCooldown:  cfg.BreakerCooldown(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown indicator provider %q", cfg.Provider)
	}
}

func buildAggregator(cfg *brcfg.Config, indicators market.IndicatorSource, prices market.PriceSource, catalog *indicator.Catalog) *market.Aggregator {
	return market.NewAggregator(indicators, prices, catalog, market.Options{
		QuoteAsset:        cfg.Binance.QuoteAsset,
		IntradayTimeframe: cfg.Indicators.IntradayTimeframe,
		LongTermTimeframe: cfg.Indicators.LongTermTimeframe,
		SeriesResults:     cfg.Indicators.SeriesResults,
		IntradayIDs:       cfg.Indicators.IntradayIDs,
		LongTermIDs:       cfg.Indicators.LongTermIDs,
		Throttle:          throttle.NewFactory(cfg.Indicators.Throttle()),
	})
}
