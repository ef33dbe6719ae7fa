package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestTelegramSendTextRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["chat_id"])
		assert.Equal(t, "hello", body["text"])
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Retry.Sleep = noSleep
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTelegramSendTextGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Retry.Sleep = noSleep
	err := tg.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")

	assert.Error(t, NewTelegram("", "42").SendText(context.Background(), "x"))
}

func TestRenderMarkdown(t *testing.T) {
	msg := Message{
		Icon:  "📈",
		Title: "BTC UP",
		Sections: []Section{
			{Title: "Decision", Lines: []string{"size 10", "", "edge ```0.6```"}},
			{Title: "Empty", Lines: []string{" "}},
		},
		Footer:    "trace abc",
		Timestamp: time.Date(2026, 2, 10, 2, 30, 0, 0, time.UTC),
	}
	out := msg.RenderMarkdown()
	assert.True(t, strings.HasPrefix(out, "📈 BTC UP\n\n```\nDecision\n  size 10\n  edge '''0.6'''\n```"))
	assert.NotContains(t, out, "Empty")
	assert.Contains(t, out, "trace abc")
	assert.Contains(t, out, "2026-02-10 02:30:00 UTC")

	long := Message{Sections: []Section{{Lines: []string{strings.Repeat("x", 5000)}}}}
	assert.LessOrEqual(t, len(long.RenderMarkdown()), maxMessageBytes+3)
}
