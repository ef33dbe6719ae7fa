// Package retry runs an operation up to a fixed number of attempts with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// Options 控制重试次数与退避；第 k 次失败后等待 BackoffBase * 2^(k-1)。
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	// Retryable 为空时所有错误都重试。
	Retryable func(error) bool
	// OnRetry is invoked before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep can be replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffBase < 0 {
		o.BackoffBase = 0
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	return o
}

// Delay returns the wait after the given failed attempt (1-based).
func (o Options) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return o.BackoffBase * time.Duration(1<<uint(attempt-1))
}

// Do calls fn until it succeeds or attempts run out, returning the last error.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func DoValue[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.normalized()
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, errors.Join(lastErr, err)
			}
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if opts.Retryable != nil && !opts.Retryable(err) {
			return zero, err
		}
		if attempt == opts.MaxAttempts {
			break
		}
		delay := opts.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}
		if err := opts.Sleep(ctx, delay); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}
	return zero, lastErr
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
