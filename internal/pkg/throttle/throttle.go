// Package throttle spaces out consecutive upstream calls.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type Throttle interface {
	// Wait blocks until the next call may proceed. The first call never waits.
	Wait(ctx context.Context) error
}

// limiterThrottle 用于串行调用：调用方进入 Wait 时上一次调用已经结束，
// 所以间隔从上一次调用结束算起，而不是从开始算起。
type limiterThrottle struct {
	every   rate.Limit
	started bool
}

// Every waits a full interval between the end of one call and the start of the next.
func Every(interval time.Duration) Throttle {
	if interval <= 0 {
		return None()
	}
	return &limiterThrottle{every: rate.Every(interval)}
}

func (t *limiterThrottle) Wait(ctx context.Context) error {
	if !t.started {
		t.started = true
		return ctx.Err()
	}
	// 新桶初始是满的，先取走令牌，重试耗掉的时间不会抵扣间隔。
	lim := rate.NewLimiter(t.every, 1)
	lim.Allow()
	return lim.Wait(ctx)
}

type noop struct{}

func (noop) Wait(ctx context.Context) error { return ctx.Err() }

func None() Throttle { return noop{} }

// Factory builds a fresh throttle per sequence of calls.
type Factory func() Throttle

func NewFactory(interval time.Duration) Factory {
	return func() Throttle { return Every(interval) }
}
