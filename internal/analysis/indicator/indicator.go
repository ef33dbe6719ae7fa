// Package indicator computes catalog indicators locally from exchange klines with TA-Lib.
// It serves the same fetch contract as the remote indicator API and is selected
// with indicators.provider=local.
package indicator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/convert"
	"updown/internal/pkg/text"
	"updown/internal/types"
)

const (
	precision   = 4
	warmup      = 250
	maxCandles  = 1500
	backendName = "local"
)

// KlineSource 提供已收盘 K 线，旧在前。
type KlineSource interface {
	FetchKlines(ctx context.Context, asset, interval string, limit int) ([]types.Candle, error)
}

type Backend struct {
	klines KlineSource
}

func NewBackend(klines KlineSource) *Backend {
	return &Backend{klines: klines}
}

func (b *Backend) FetchValue(ctx context.Context, indicator, symbol, interval string, params map[string]any, key string) *float64 {
	out, ok := b.compute(ctx, indicator, symbol, interval, 1, params)
	if !ok {
		return nil
	}
	series, ok := out[keyOrDefault(key)]
	if !ok || len(series) == 0 {
		logger.Warnf("local indicator %s %s: no output %q", indicator, symbol, keyOrDefault(key))
		return nil
	}
	v := series[len(series)-1]
	return &v
}

func (b *Backend) FetchSeries(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any, key string) []any {
	out, ok := b.compute(ctx, indicator, symbol, interval, results, params)
	if !ok {
		return []any{}
	}
	series, ok := out[keyOrDefault(key)]
	if !ok {
		logger.Warnf("local indicator %s %s: no output %q", indicator, symbol, keyOrDefault(key))
		return []any{}
	}
	return toAny(series)
}

func (b *Backend) GetHistoricalData(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any) map[string]any {
	out, ok := b.compute(ctx, indicator, symbol, interval, results, params)
	if !ok {
		return map[string]any{}
	}
	res := make(map[string]any, len(out))
	for k, series := range out {
		res[k] = toAny(series)
	}
	return res
}

func (b *Backend) compute(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any) (map[string][]float64, bool) {
	if results <= 0 {
		results = 1
	}
	limit := results + warmup
	if limit > maxCandles {
		limit = maxCandles
	}
	candles, err := b.klines.FetchKlines(ctx, symbol, interval, limit)
	if err != nil {
		metrics.IndicatorFetches.WithLabelValues(backendName, "degraded").Inc()
		logger.Warnf("local indicator %s %s %s: klines unavailable: %s", indicator, symbol, interval, text.Truncate(err.Error(), 200))
		return nil, false
	}
	out, err := Compute(indicator, params, candles)
	if err != nil {
		metrics.IndicatorFetches.WithLabelValues(backendName, "degraded").Inc()
		logger.Warnf("local indicator %s %s %s: %v", indicator, symbol, interval, err)
		return nil, false
	}
	for k, series := range out {
		out[k] = tail(series, results)
	}
	metrics.IndicatorFetches.WithLabelValues(backendName, "ok").Inc()
	return out, true
}

// Compute evaluates one indicator over candles. Output keys follow the remote API's
// naming (value, valueMACD, valueUpperBand, ...) so catalog definitions work for both backends.
func Compute(indicator string, params map[string]any, candles []types.Candle) (map[string][]float64, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles")
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}
	period := intParam(params, "period", 14)
	if period < 2 {
		return nil, fmt.Errorf("period must be >= 2")
	}
	if len(candles) <= period {
		return nil, fmt.Errorf("need more than %d candles, got %d", period, len(candles))
	}

	switch strings.ToLower(strings.TrimSpace(indicator)) {
	case "rsi":
		return single(talib.Rsi(closes, period)), nil
	case "ema":
		return single(talib.Ema(closes, period)), nil
	case "sma":
		return single(talib.Sma(closes, period)), nil
	case "atr":
		return single(talib.Atr(highs, lows, closes, period)), nil
	case "adx":
		return single(talib.Adx(highs, lows, closes, period)), nil
	case "cci":
		return single(talib.Cci(highs, lows, closes, period)), nil
	case "mfi":
		return single(talib.Mfi(highs, lows, closes, volumes, period)), nil
	case "obv":
		return single(talib.Obv(closes, volumes)), nil
	case "macd":
		macd, signal, hist := talib.Macd(closes,
			intParam(params, "optInFastPeriod", 12),
			intParam(params, "optInSlowPeriod", 26),
			intParam(params, "optInSignalPeriod", 9))
		return map[string][]float64{
			"valueMACD":       sanitize(macd),
			"valueMACDSignal": sanitize(signal),
			"valueMACDHist":   sanitize(hist),
		}, nil
	case "bbands":
		dev := floatParam(params, "stddev", 2)
		upper, middle, lower := talib.BBands(closes, intParam(params, "period", 20), dev, dev, talib.SMA)
		return map[string][]float64{
			"valueUpperBand":  sanitize(upper),
			"valueMiddleBand": sanitize(middle),
			"valueLowerBand":  sanitize(lower),
		}, nil
	case "stoch":
		k, d := talib.Stoch(highs, lows, closes,
			intParam(params, "kPeriod", 14), intParam(params, "kSmooth", 3), talib.SMA,
			intParam(params, "dPeriod", 3), talib.SMA)
		return map[string][]float64{
			"valueK": sanitize(k),
			"valueD": sanitize(d),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported indicator %q", indicator)
	}
}

func single(series []float64) map[string][]float64 {
	return map[string][]float64{"value": sanitize(series)}
}

func sanitize(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, convert.Round(v, precision))
	}
	return out
}

func tail(series []float64, n int) []float64 {
	if n <= 0 || len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

func toAny(series []float64) []any {
	out := make([]any, len(series))
	for i, v := range series {
		out[i] = v
	}
	return out
}

func keyOrDefault(key string) string {
	if key == "" {
		return "value"
	}
	return key
}

func intParam(params map[string]any, key string, def int) int {
	if f, ok := convert.Float(params[key]); ok && f > 0 {
		return int(f)
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	if f, ok := convert.Float(params[key]); ok && f > 0 {
		return f
	}
	return def
}
