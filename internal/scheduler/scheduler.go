// Package scheduler triggers a prediction for each configured symbol at every 15-minute window.
package scheduler

import (
	"context"
	"time"

	"updown/internal/logger"
)

const DefaultWindow = 15 * time.Minute

// Task 对单个 symbol 执行一次预测。
type Task func(ctx context.Context, symbol string) error

type Config struct {
	Symbols        []string
	Window         time.Duration
	Offset         time.Duration
	RunImmediately bool
}

// WindowScheduler 对齐到窗口起点 + Offset 执行，同一轮内按 symbol 顺序串行。
type WindowScheduler struct {
	cfg   Config
	task  Task
	nowFn func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func New(cfg Config, task Task) *WindowScheduler {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Offset < 0 {
		logger.Warnf("scheduler: negative offset=%s, clamp to 0", cfg.Offset)
		cfg.Offset = 0
	}
	return &WindowScheduler{cfg: cfg, task: task, nowFn: time.Now, after: time.After}
}

// NextRun returns the first aligned trigger strictly after now.
func (s *WindowScheduler) NextRun(now time.Time) time.Time {
	now = now.UTC()
	at := now.Truncate(s.cfg.Window).Add(s.cfg.Offset)
	for !at.After(now) {
		at = at.Add(s.cfg.Window)
	}
	return at
}

// Run blocks until ctx is done.
func (s *WindowScheduler) Run(ctx context.Context) {
	if s.task == nil || len(s.cfg.Symbols) == 0 {
		logger.Warnf("scheduler: nothing to run, exit")
		return
	}
	logger.Infof("scheduler: started window=%s offset=%s symbols=%v run_immediately=%v",
		s.cfg.Window, s.cfg.Offset, s.cfg.Symbols, s.cfg.RunImmediately)
	if s.cfg.RunImmediately {
		s.runCycle(ctx)
	}
	for {
		now := s.nowFn()
		next := s.NextRun(now)
		logger.Infof("scheduler: next run %s (in %s)", next.Format(time.RFC3339), next.Sub(now).Truncate(time.Second))
		select {
		case <-ctx.Done():
			logger.Infof("scheduler: ctx done, exit")
			return
		case <-s.after(next.Sub(now)):
		}
		s.runCycle(ctx)
	}
}

func (s *WindowScheduler) runCycle(ctx context.Context) {
	for _, sym := range s.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := s.task(ctx, sym); err != nil {
			logger.Warnf("scheduler: %s failed: %v", sym, err)
		}
	}
}
