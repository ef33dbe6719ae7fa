package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{RESTBaseURL: srv.URL, QuoteAsset: "USDT"})
	require.NoError(t, err)
	return c
}

func TestCurrentPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ticker/price", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"symbol":"ETHUSDT","price":"3120.55","time":1770690600000}`)
	})

	price, err := c.CurrentPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, 3120.55, price)
}

func TestCurrentPriceUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"code":-1000,"msg":"boom"}`)
	})
	_, err := c.CurrentPrice(context.Background(), "BTC")
	assert.Error(t, err)
}

func TestFetchKlinesDropsOpenCandle(t *testing.T) {
	now := time.UnixMilli(1770690900000)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		fmt.Fprint(w, `[
[1770690000000,"1","2","0.5","1.5","10",1770690299999,"0",5,"0","0","0"],
[1770690300000,"1.5","2","1","1.8","12",1770690599999,"0",6,"0","0","0"],
[1770690600000,"1.8","2","1","1.9","3",1770690899999,"0",2,"0","0","0"],
[1770690900000,"1.9","2","1","1.9","1",1770691199999,"0",1,"0","0","0"]
]`)
	})
	c.nowFn = func() time.Time { return now }

	candles, err := c.FetchKlines(context.Background(), "BTC", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1.8, candles[0].Close)
	assert.Equal(t, 1.9, candles[1].Close)
	assert.Equal(t, int64(2), candles[1].Trades)
}

func TestInvalidAsset(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	_, err = c.CurrentPrice(context.Background(), "b t c")
	assert.Error(t, err)
}
