package clob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"updown/internal/types"
)

var testSecret = base64.URLEncoding.EncodeToString([]byte("super-secret"))

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{Host: srv.URL, APIKey: "key", APISecret: testSecret, Passphrase: "pass", Address: "0xabc"})
	c.nowFn = func() time.Time { return time.Unix(1770690605, 0) }
	return c
}

func TestPlaceOrderSignsAndRounds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)
		body, _ := io.ReadAll(r.Body)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "0.53", payload["price"])
		assert.Equal(t, "19.23", payload["size"])
		assert.Equal(t, "BUY", payload["side"])
		assert.Equal(t, "tok-up", payload["tokenID"])

		assert.Equal(t, "1770690605", r.Header.Get("POLY_TIMESTAMP"))
		assert.Equal(t, "key", r.Header.Get("POLY_API_KEY"))
		assert.Equal(t, "pass", r.Header.Get("POLY_PASSPHRASE"))
		assert.Equal(t, "0xabc", r.Header.Get("POLY_ADDRESS"))
		mac := hmac.New(sha256.New, []byte("super-secret"))
		mac.Write([]byte("1770690605POST/order" + string(body)))
		assert.Equal(t, base64.URLEncoding.EncodeToString(mac.Sum(nil)), r.Header.Get("POLY_SIGNATURE"))

		fmt.Fprint(w, `{"success":true,"orderID":"0x1","status":"live"}`)
	})

	conf, err := c.PlaceOrder(context.Background(), OrderRequest{TokenID: "tok-up", Price: 0.5251, Size: 19.239, Side: SideBuy})
	require.NoError(t, err)
	assert.Equal(t, "0x1", conf.OrderID)
	assert.Equal(t, "live", conf.Status)
}

func TestPlaceOrderMissingCredentials(t *testing.T) {
	c := New(Config{APIKey: "key"})
	_, err := c.PlaceOrder(context.Background(), OrderRequest{TokenID: "t", Price: 0.5, Size: 1, Side: SideBuy})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestPlaceOrderRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"not enough balance"}`)
	})
	_, err := c.PlaceOrder(context.Background(), OrderRequest{TokenID: "t", Price: 0.5, Size: 1, Side: SideBuy})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "balance")

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"errorMsg":"market closed"}`)
	})
	_, err = c.PlaceOrder(context.Background(), OrderRequest{TokenID: "t", Price: 0.5, Size: 1, Side: SideBuy})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "market closed", apiErr.Body)
}

func TestPlaceOrderValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid orders must not reach the exchange")
	})
	for name, req := range map[string]OrderRequest{
		"no token":   {Price: 0.5, Size: 1, Side: SideBuy},
		"bad side":   {TokenID: "t", Price: 0.5, Size: 1, Side: "HOLD"},
		"price zero": {TokenID: "t", Price: 0.001, Size: 1, Side: SideBuy},
		"price one":  {TokenID: "t", Price: 1, Size: 1, Side: SideBuy},
		"tiny size":  {TokenID: "t", Price: 0.5, Size: 0.001, Side: SideBuy},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.PlaceOrder(context.Background(), req)
			assert.Error(t, err)
		})
	}
}

func TestFromDecision(t *testing.T) {
	snap := types.MarketSnapshot{
		MarketSlug:    "btc-updown-15m-1770690600",
		OutcomePrices: []float64{0.52, 0.48},
		TokenIDs:      []string{"up", "down"},
	}

	req, ok, err := FromDecision(snap, types.DirectionDown, 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, OrderRequest{TokenID: "down", Price: 0.48, Size: 25, Side: SideBuy}, req)

	req, ok, err = FromDecision(snap, types.DirectionUp, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 19.23, req.Size)

	_, ok, err = FromDecision(snap, types.DirectionNoBet, 10)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = FromDecision(types.MarketSnapshot{OutcomePrices: []float64{0.5, 0.5}}, types.DirectionUp, 10)
	assert.Error(t, err)
}
