package taapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"updown/internal/logger"
	"updown/internal/metrics"
	"updown/internal/pkg/circuit"
)

type sleeps struct{ got []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.got = append(s.got, d)
	return nil
}

func newClient(t *testing.T, h http.HandlerFunc, mutate func(*Config)) (*Client, *sleeps) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	rec := &sleeps{}
	cfg := Config{
		BaseURL:       srv.URL,
		Secret:        "s3cret",
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
		Sleep:         rec.sleep,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), rec
}

func TestFetchValue(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rsi", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "s3cret", q.Get("secret"))
		assert.Equal(t, "binance", q.Get("exchange"))
		assert.Equal(t, "BTC/USDT", q.Get("symbol"))
		assert.Equal(t, "5m", q.Get("interval"))
		assert.Equal(t, "14", q.Get("period"))
		fmt.Fprint(w, `{"value": 54.321987}`)
	}, nil)

	v := c.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", map[string]any{"period": 14}, "value")
	require.NotNil(t, v)
	assert.Equal(t, 54.322, *v)
}

func TestFetchValueMissingKey(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"other": 1}`)
	}, nil)
	assert.Nil(t, c.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", nil, ""))
}

func TestFetchSeriesPassesNonNumeric(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("results"))
		fmt.Fprint(w, `{"value": [1.234567, "n/a", 2]}`)
	}, nil)

	got := c.FetchSeries(context.Background(), "ema", "ETH/USDT", "4h", 10, nil, "value")
	assert.Equal(t, []any{1.2346, "n/a", 2.0}, got)
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int32
	c, rec := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"value": 7}`)
	}, nil)

	v := c.FetchValue(context.Background(), "atr", "BTC/USDT", "4h", nil, "value")
	require.NotNil(t, v)
	assert.Equal(t, 7.0, *v)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, rec.got)
}

func TestFetchDegradesAfterExhaustion(t *testing.T) {
	var calls int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	assert.Nil(t, c.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", nil, "value"))
	assert.Equal(t, []any{}, c.FetchSeries(context.Background(), "rsi", "BTC/USDT", "5m", 10, nil, "value"))
	assert.Empty(t, c.GetHistoricalData(context.Background(), "bbands", "BTC/USDT", "5m", 10, nil))
	assert.Equal(t, int32(9), atomic.LoadInt32(&calls))
}

func TestDegradedLogReportsAttempts(t *testing.T) {
	var buf bytes.Buffer
	logger.SetFormat("text")
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, func(cfg *Config) { cfg.RetryAttempts = 2 })

	assert.Nil(t, c.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", nil, "value"))
	assert.Contains(t, buf.String(), "degraded after 2 attempts")
}

func TestBreakerShortCircuits(t *testing.T) {
	var calls int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.RetryAttempts = 1
		cfg.BreakerThreshold = 2
		cfg.BreakerCooldown = time.Hour
	})

	for i := 0; i < 4; i++ {
		assert.Nil(t, c.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", nil, "value"))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, circuit.StateOpen, c.breaker.State())
	assert.Eventually(t, func() bool {
		var m dto.Metric
		require.NoError(t, metrics.BreakerState.WithLabelValues(backendName).Write(&m))
		return m.GetGauge().GetValue() == float64(circuit.StateOpen)
	}, time.Second, 10*time.Millisecond)
}

func TestFetchRetriesAfterTimeout(t *testing.T) {
	var calls int32
	c, rec := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(300 * time.Millisecond):
			}
			return
		}
		fmt.Fprint(w, `{"value": 1.5}`)
	}, func(cfg *Config) {
		cfg.Timeout = 100 * time.Millisecond
	})

	v := c.FetchValue(context.Background(), "rsi", "BTC/USDT", "5m", nil, "value")
	require.NotNil(t, v)
	assert.Equal(t, 1.5, *v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.got)
}

func TestFetchStopsWhenCallerCancels(t *testing.T) {
	var buf bytes.Buffer
	logger.SetFormat("text")
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int32
	c, rec := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		cancel()
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	assert.Nil(t, c.FetchValue(ctx, "rsi", "BTC/USDT", "5m", nil, "value"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, rec.got)
	assert.Contains(t, buf.String(), "degraded after 1 attempts")
}

func TestGetHistoricalDataMulti(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"valueUpperBand":[101.123456,102],"valueMiddleBand":[100,100.5],"valueLowerBand":[99,98.99999]}`)
	}, nil)

	got := c.GetHistoricalData(context.Background(), "bbands", "BTC/USDT", "5m", 2, nil)
	require.NotEmpty(t, got)
	assert.Equal(t, []any{101.1235, 102.0}, got["valueUpperBand"])
	assert.Equal(t, []any{99.0, 99.0}, got["valueLowerBand"])
}
