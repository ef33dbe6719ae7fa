package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"updown/internal/indicator"
	"updown/internal/pkg/throttle"
)

type fakeIndicators struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeIndicators) record(kind, ind, symbol, interval string) {
	if strings.HasPrefix(symbol, "DOGE") {
		panic("upstream exploded")
	}
	f.mu.Lock()
	f.calls = append(f.calls, kind+":"+ind+":"+symbol+":"+interval)
	f.mu.Unlock()
}

func (f *fakeIndicators) FetchValue(_ context.Context, ind, symbol, interval string, _ map[string]any, _ string) *float64 {
	f.record("value", ind, symbol, interval)
	v := 1.5
	return &v
}

func (f *fakeIndicators) FetchSeries(_ context.Context, ind, symbol, interval string, results int, _ map[string]any, _ string) []any {
	f.record("series", ind, symbol, interval)
	out := make([]any, 0, results)
	for i := 0; i < results; i++ {
		out = append(out, float64(i))
	}
	return out
}

func (f *fakeIndicators) GetHistoricalData(_ context.Context, ind, symbol, interval string, _ int, _ map[string]any) map[string]any {
	f.record("hist", ind, symbol, interval)
	return map[string]any{
		"valueUpperBand":  []any{11.0, 12.123456},
		"valueMiddleBand": []any{10.0, 10.5},
		"valueLowerBand":  []any{9.0, 8.5},
	}
}

type fakePrices struct {
	prices map[string]float64
}

func (f fakePrices) CurrentPrice(_ context.Context, asset string) (float64, error) {
	p, ok := f.prices[asset]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

type countingThrottle struct {
	waits *int32
}

func (c countingThrottle) Wait(ctx context.Context) error {
	atomic.AddInt32(c.waits, 1)
	return ctx.Err()
}

func newTestCatalog(t *testing.T) *indicator.Catalog {
	t.Helper()
	defs := []indicator.Definition{
		{ID: "rsi_14", Indicator: "rsi", Shape: indicator.ShapeSeries},
		{ID: "atr_14", Indicator: "atr", Shape: indicator.ShapeSingle},
		{ID: "bbands", Indicator: "bbands", Shape: indicator.ShapeMulti, Outputs: []indicator.Output{
			{Name: "upper", Key: "valueUpperBand"},
			{Name: "middle", Key: "valueMiddleBand"},
			{Name: "lower", Key: "valueLowerBand"},
		}},
	}
	c, err := indicator.New(defs, map[indicator.Horizon][]string{
		indicator.Intraday: {"rsi_14", "bbands"},
		indicator.LongTerm: {"atr_14"},
	})
	require.NoError(t, err)
	return c
}

func newTestAggregator(t *testing.T, ind IndicatorSource, prices PriceSource, waits *int32) *Aggregator {
	return NewAggregator(ind, prices, newTestCatalog(t), Options{
		SeriesResults: 3,
		Throttle:      func() throttle.Throttle { return countingThrottle{waits: waits} },
	})
}

func TestGetCurrentMarketData(t *testing.T) {
	var waits int32
	ind := &fakeIndicators{}
	agg := newTestAggregator(t, ind, fakePrices{prices: map[string]float64{"BTC": 97000}}, &waits)

	sections := agg.GetCurrentMarketData(context.Background(), Request{Assets: []string{"btc"}})
	require.Len(t, sections, 1)
	s := sections[0]

	assert.Equal(t, "BTC", s.Asset)
	require.NotNil(t, s.CurrentPrice)
	assert.Equal(t, 97000.0, *s.CurrentPrice)
	assert.Equal(t, "5m", s.Intraday.Timeframe)
	assert.Equal(t, "4h", s.LongTerm.Timeframe)

	assert.Equal(t, []any{0.0, 1.0, 2.0}, s.Intraday.Series["rsi_14"])
	assert.Equal(t, 2.0, *s.Intraday.Latest["rsi_14"])
	assert.Equal(t, []any{11.0, 12.1235}, s.Intraday.Series["bbands_upper"])
	assert.Equal(t, 8.5, *s.Intraday.Latest["bbands_lower"])
	assert.Equal(t, 1.5, *s.LongTerm.Latest["atr_14"])
	_, hasSeries := s.LongTerm.Series["atr_14"]
	assert.False(t, hasSeries)

	// one wait per definition: two intraday, one long-term
	assert.Equal(t, int32(3), atomic.LoadInt32(&waits))
	assert.Contains(t, ind.calls, "series:rsi:BTC/USDT:5m")
	assert.Contains(t, ind.calls, "value:atr:BTC/USDT:4h")
}

func TestFailedAssetIsOmitted(t *testing.T) {
	var waits int32
	agg := newTestAggregator(t, &fakeIndicators{}, fakePrices{prices: map[string]float64{"BTC": 1, "ETH": 2, "DOGE": 3}}, &waits)

	sections := agg.GetCurrentMarketData(context.Background(), Request{Assets: []string{"BTC", "DOGE", "ETH"}})
	require.Len(t, sections, 2)
	assert.Equal(t, "BTC", sections[0].Asset)
	assert.Equal(t, "ETH", sections[1].Asset)
	for _, s := range sections {
		assert.NotEmpty(t, s.Intraday.Latest)
		assert.NotEmpty(t, s.LongTerm.Latest)
	}
}

func TestMissingPriceKeepsAsset(t *testing.T) {
	var waits int32
	agg := newTestAggregator(t, &fakeIndicators{}, fakePrices{}, &waits)

	sections := agg.GetCurrentMarketData(context.Background(), Request{Assets: []string{"SOL"}})
	require.Len(t, sections, 1)
	assert.Nil(t, sections[0].CurrentPrice)
}

func TestRequestOverridesIDs(t *testing.T) {
	var waits int32
	ind := &fakeIndicators{}
	agg := newTestAggregator(t, ind, fakePrices{}, &waits)

	sections := agg.GetCurrentMarketData(context.Background(), Request{
		Assets:      []string{"BTC"},
		IntradayIDs: []string{"atr_14"},
		LongTermIDs: []string{"unknown"},
	})
	require.Len(t, sections, 1)
	assert.Len(t, sections[0].Intraday.Latest, 1)
	assert.Empty(t, sections[0].LongTerm.Latest)
}

func TestCancelledContextOmitsEverything(t *testing.T) {
	var waits int32
	agg := newTestAggregator(t, &fakeIndicators{}, fakePrices{}, &waits)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, agg.GetCurrentMarketData(ctx, Request{Assets: []string{"BTC"}}))
}

func TestReadIndicator(t *testing.T) {
	var waits int32
	ind := &fakeIndicators{}
	agg := newTestAggregator(t, ind, fakePrices{}, &waits)

	out, err := agg.ReadIndicator(context.Background(), "eth", "bbands", "")
	require.NoError(t, err)
	assert.Equal(t, "ETH", out["asset"])
	assert.Equal(t, "5m", out["timeframe"])
	series := out["series"].(map[string][]any)
	assert.Equal(t, []any{10.0, 10.5}, series["bbands_middle"])
	assert.Equal(t, []string{"hist:bbands:ETH/USDT:5m"}, ind.calls)
	assert.Zero(t, atomic.LoadInt32(&waits))

	_, err = agg.ReadIndicator(context.Background(), "eth", "nope", "4h")
	assert.Error(t, err)
}
