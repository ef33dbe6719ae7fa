package indicator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"updown/internal/types"
)

type mockKlines struct {
	mock.Mock
}

func (m *mockKlines) FetchKlines(ctx context.Context, asset, interval string, limit int) ([]types.Candle, error) {
	args := m.Called(ctx, asset, interval, limit)
	candles, _ := args.Get(0).([]types.Candle)
	return candles, args.Error(1)
}

func syntheticCandles(n int) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		base := 100 + 5*math.Sin(float64(i)/6)
		out[i] = types.Candle{
			OpenTime: int64(i) * 300_000,
			Open:     base - 0.3,
			High:     base + 1,
			Low:      base - 1,
			Close:    base,
			Volume:   1000 + float64(i%7)*10,
		}
	}
	return out
}

func TestBackendSeriesAndValue(t *testing.T) {
	src := &mockKlines{}
	src.On("FetchKlines", mock.Anything, "BTC/USDT", "5m", 10+warmup).Return(syntheticCandles(260), nil)
	src.On("FetchKlines", mock.Anything, "BTC/USDT", "5m", 1+warmup).Return(syntheticCandles(260), nil)
	b := NewBackend(src)

	series := b.FetchSeries(context.Background(), "rsi", "BTC/USDT", "5m", 10, map[string]any{"period": 14}, "value")
	require.Len(t, series, 10)
	for _, v := range series {
		f, ok := v.(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 100.0)
	}

	latest := b.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", map[string]any{"period": 14}, "value")
	require.NotNil(t, latest)
	assert.Equal(t, series[len(series)-1], *latest)
}

func TestBackendMultiOutputs(t *testing.T) {
	src := &mockKlines{}
	src.On("FetchKlines", mock.Anything, "ETH/USDT", "4h", 5+warmup).Return(syntheticCandles(260), nil)
	b := NewBackend(src)

	got := b.GetHistoricalData(context.Background(), "bbands", "ETH/USDT", "4h", 5, nil)
	require.NotEmpty(t, got)
	upper := got["valueUpperBand"].([]any)
	lower := got["valueLowerBand"].([]any)
	require.Len(t, upper, 5)
	require.Len(t, lower, 5)
	assert.Greater(t, upper[4].(float64), lower[4].(float64))
}

func TestBackendDegrades(t *testing.T) {
	src := &mockKlines{}
	src.On("FetchKlines", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	b := NewBackend(src)

	assert.Nil(t, b.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", nil, "value"))
	assert.Equal(t, []any{}, b.FetchSeries(context.Background(), "rsi", "BTC/USDT", "5m", 10, nil, "value"))
	assert.Empty(t, b.GetHistoricalData(context.Background(), "macd", "BTC/USDT", "5m", 10, nil))
}

func TestComputeRejectsUnknown(t *testing.T) {
	_, err := Compute("ichimoku", nil, syntheticCandles(50))
	assert.Error(t, err)
	_, err = Compute("rsi", map[string]any{"period": 14}, syntheticCandles(10))
	assert.Error(t, err)
}
