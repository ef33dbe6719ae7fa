// Package app is the composition root: config in, a running prediction service out.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"updown/internal/agent"
	"updown/internal/config"
	"updown/internal/logger"
	"updown/internal/scheduler"
	"updown/internal/store"
	httpapi "updown/internal/transport/http/api"
)

// App 持有长生命周期组件：HTTP 接口、窗口调度器与预测库。
type App struct {
	cfg       *config.Config
	service   *agent.Service
	server    *httpapi.Server
	scheduler *scheduler.WindowScheduler
	store     *store.Store
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves HTTP and, when enabled, the window scheduler until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.server != nil {
		group.Go(func() error {
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.scheduler != nil {
		group.Go(func() error {
			a.scheduler.Run(ctx)
			return nil
		})
	}
	return group.Wait()
}

func (a *App) Close() {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.Warnf("close prediction store: %v", err)
	}
}

// Service exposes the prediction service (for CLI one-shots and tests).
func (a *App) Service() *agent.Service {
	if a == nil {
		return nil
	}
	return a.service
}
