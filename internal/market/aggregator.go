// Package market gathers indicator bundles and the spot price into one MarketSection per asset.
package market

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"updown/internal/indicator"
	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/convert"
	symbolpkg "updown/internal/pkg/symbol"
	"updown/internal/pkg/throttle"
	"updown/internal/trace"
)

// IndicatorSource 与指标网关契约一致：从不返回错误，失败时给 nil/空。
type IndicatorSource interface {
	FetchValue(ctx context.Context, indicator, symbol, interval string, params map[string]any, key string) *float64
	FetchSeries(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any, key string) []any
	GetHistoricalData(ctx context.Context, indicator, symbol, interval string, results int, params map[string]any) map[string]any
}

type PriceSource interface {
	CurrentPrice(ctx context.Context, asset string) (float64, error)
}

type Options struct {
	QuoteAsset        string
	IntradayTimeframe string
	LongTermTimeframe string
	SeriesResults     int
	IntradayIDs       []string
	LongTermIDs       []string
	// Throttle 为每个指标组新建一个节流器，组内调用串行且间隔固定。
	Throttle throttle.Factory
}

func (o Options) withDefaults() Options {
	if o.IntradayTimeframe == "" {
		o.IntradayTimeframe = "5m"
	}
	if o.LongTermTimeframe == "" {
		o.LongTermTimeframe = "4h"
	}
	if o.SeriesResults <= 0 {
		o.SeriesResults = 10
	}
	if o.Throttle == nil {
		o.Throttle = throttle.NewFactory(time.Second)
	}
	return o
}

// Request overrides the configured indicator lists for one call; empty lists keep the configured ones.
type Request struct {
	Assets      []string
	IntradayIDs []string
	LongTermIDs []string
}

type Aggregator struct {
	indicators IndicatorSource
	prices     PriceSource
	catalog    *indicator.Catalog
	opts       Options
	nowFn      func() time.Time
}

func NewAggregator(indicators IndicatorSource, prices PriceSource, catalog *indicator.Catalog, opts Options) *Aggregator {
	if catalog == nil {
		catalog = indicator.Default()
	}
	return &Aggregator{
		indicators: indicators,
		prices:     prices,
		catalog:    catalog,
		opts:       opts.withDefaults(),
		nowFn:      time.Now,
	}
}

// GetCurrentMarketData returns one section per asset that was gathered completely, in request order.
// A failed asset is logged and left out; it never aborts the others.
func (a *Aggregator) GetCurrentMarketData(ctx context.Context, req Request) []MarketSection {
	ctx, span := trace.Start(ctx, "aggregate", attribute.StringSlice("assets", req.Assets))
	defer span.End()

	intradayIDs := firstNonEmpty(req.IntradayIDs, a.opts.IntradayIDs)
	longTermIDs := firstNonEmpty(req.LongTermIDs, a.opts.LongTermIDs)
	intraday := a.catalog.Resolve(intradayIDs, indicator.Intraday)
	longTerm := a.catalog.Resolve(longTermIDs, indicator.LongTerm)

	out := make([]MarketSection, 0, len(req.Assets))
	for _, asset := range req.Assets {
		section, err := a.gatherAsset(ctx, asset, intraday, longTerm)
		if err != nil {
			metrics.AggregatedAssets.WithLabelValues("omitted").Inc()
			logger.Warnf("market data for %s omitted: %v", asset, err)
			continue
		}
		metrics.AggregatedAssets.WithLabelValues("ok").Inc()
		out = append(out, section)
	}
	return out
}

func (a *Aggregator) gatherAsset(ctx context.Context, asset string, intradayDefs, longTermDefs []indicator.Definition) (MarketSection, error) {
	sym := symbolpkg.Parse(asset, a.opts.QuoteAsset)
	if !sym.Valid() {
		return MarketSection{}, fmt.Errorf("invalid asset %q", asset)
	}
	var (
		intraday IndicatorBundle
		longTerm IndicatorBundle
		price    *float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard("intraday", func() (err error) {
		intraday, err = a.gatherBundle(gctx, sym.Slash(), a.opts.IntradayTimeframe, intradayDefs)
		return err
	}))
	g.Go(guard("long_term", func() (err error) {
		longTerm, err = a.gatherBundle(gctx, sym.Slash(), a.opts.LongTermTimeframe, longTermDefs)
		return err
	}))
	g.Go(guard("price", func() error {
		p, err := a.prices.CurrentPrice(gctx, sym.Base)
		if err != nil {
			logger.Warnf("current price for %s unavailable: %v", sym.Base, err)
			return nil
		}
		price = &p
		return nil
	}))
	if err := g.Wait(); err != nil {
		return MarketSection{}, err
	}
	return MarketSection{
		Asset:        sym.Base,
		CurrentPrice: price,
		Timestamp:    a.nowFn().UTC(),
		Intraday:     intraday,
		LongTerm:     longTerm,
	}, nil
}

// gatherBundle 组内按定义顺序串行抓取，两次调用之间由节流器隔开。
func (a *Aggregator) gatherBundle(ctx context.Context, symbol, timeframe string, defs []indicator.Definition) (IndicatorBundle, error) {
	bundle := newBundle(timeframe)
	th := a.opts.Throttle()
	for _, def := range defs {
		if err := th.Wait(ctx); err != nil {
			return IndicatorBundle{}, fmt.Errorf("%s bundle interrupted: %w", timeframe, err)
		}
		latest, series := a.readDefinition(ctx, def, symbol, timeframe)
		for id, v := range latest {
			bundle.Latest[id] = v
		}
		for id, v := range series {
			bundle.Series[id] = v
		}
	}
	return bundle, nil
}

// readDefinition 按定义的形态取一次数据；multi 一次调用拆成多个输出。
func (a *Aggregator) readDefinition(ctx context.Context, def indicator.Definition, symbol, timeframe string) (map[string]*float64, map[string][]any) {
	latest := make(map[string]*float64)
	seriesOut := make(map[string][]any)
	switch def.Shape {
	case indicator.ShapeSingle:
		latest[def.ID] = a.indicators.FetchValue(ctx, def.Indicator, symbol, timeframe, def.Params, def.Key)
	case indicator.ShapeSeries:
		series := a.indicators.FetchSeries(ctx, def.Indicator, symbol, timeframe, a.opts.SeriesResults, def.Params, def.Key)
		seriesOut[def.ID] = series
		latest[def.ID] = convert.LastNumber(series)
	case indicator.ShapeMulti:
		raw := a.indicators.GetHistoricalData(ctx, def.Indicator, symbol, timeframe, a.opts.SeriesResults, def.Params)
		for _, out := range def.Outputs {
			series := seriesValue(raw[out.Key])
			id := def.OutputID(out)
			seriesOut[id] = series
			latest[id] = convert.LastNumber(series)
		}
	}
	return latest, seriesOut
}

// ReadIndicator fetches one catalog indicator for one asset outside of a full aggregation.
// An empty timeframe means the intraday timeframe.
func (a *Aggregator) ReadIndicator(ctx context.Context, asset, id, timeframe string) (map[string]any, error) {
	def, ok := a.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown indicator %q", id)
	}
	sym := symbolpkg.Parse(asset, a.opts.QuoteAsset)
	if !sym.Valid() {
		return nil, fmt.Errorf("invalid asset %q", asset)
	}
	if timeframe == "" {
		timeframe = a.opts.IntradayTimeframe
	}
	latest, series := a.readDefinition(ctx, def, sym.Slash(), timeframe)
	return map[string]any{
		"asset":     sym.Base,
		"indicator": def.ID,
		"timeframe": timeframe,
		"latest":    latest,
		"series":    series,
	}, nil
}

func seriesValue(v any) []any {
	switch t := v.(type) {
	case []any:
		return convert.RoundSeries(t, 4)
	case nil:
		return []any{}
	default:
		// 单值输出也按长度为 1 的序列处理
		return convert.RoundSeries([]any{t}, 4)
	}
}

// guard turns a panic inside a gather into an error so one asset cannot take the batch down.
func guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("%s gather panic: %v\n%s", name, r, debug.Stack())
				err = fmt.Errorf("%s gather panic: %v", name, r)
			}
		}()
		return fn()
	}
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
