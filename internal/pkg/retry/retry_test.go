package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestDoValue(t *testing.T) {
	t.Run("succeeds on third attempt with doubling backoff", func(t *testing.T) {
		rec := &sleepRecorder{}
		calls := 0
		v, err := DoValue(context.Background(), Options{MaxAttempts: 3, BackoffBase: 500 * time.Millisecond, Sleep: rec.sleep},
			func(context.Context) (string, error) {
				calls++
				if calls < 3 {
					return "", errors.New("flaky")
				}
				return "ok", nil
			})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, rec.delays)
	})

	t.Run("returns last error after exhausting attempts", func(t *testing.T) {
		rec := &sleepRecorder{}
		calls := 0
		err := Do(context.Background(), Options{MaxAttempts: 3, BackoffBase: 10 * time.Millisecond, Sleep: rec.sleep},
			func(context.Context) error {
				calls++
				return errors.New("fail " + string(rune('0'+calls)))
			})
		require.Error(t, err)
		assert.Equal(t, "fail 3", err.Error())
		assert.Len(t, rec.delays, 2)
	})

	t.Run("non retryable error stops immediately", func(t *testing.T) {
		rec := &sleepRecorder{}
		permanent := errors.New("permanent")
		calls := 0
		err := Do(context.Background(), Options{
			MaxAttempts: 5,
			Sleep:       rec.sleep,
			Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
		}, func(context.Context) error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
		assert.Empty(t, rec.delays)
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Do(ctx, Options{MaxAttempts: 3}, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDelay(t *testing.T) {
	o := Options{BackoffBase: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, o.Delay(1))
	assert.Equal(t, 200*time.Millisecond, o.Delay(2))
	assert.Equal(t, 400*time.Millisecond, o.Delay(3))
}
