package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"updown/internal/agent"
	brcfg "updown/internal/config"
	"updown/internal/decision"
	"updown/internal/gateway/binance"
	"updown/internal/gateway/polymarket"
	"updown/internal/gateway/provider"
	"updown/internal/indicator"
	"updown/internal/logger"
	"updown/internal/market"
	"updown/internal/predict"
	"updown/internal/scheduler"
	"updown/internal/store"
)

type AppBuilder struct {
	cfg *brcfg.Config

	priceSourceFn     func(brcfg.BinanceConfig) (*binance.Client, error)
	indicatorSourceFn func(brcfg.IndicatorsConfig, market.IndicatorSource, *binance.Client) (market.IndicatorSource, error)
	chatClientFn      func(brcfg.LLMConfig) provider.ChatClient
	storeFn           func(string) (*store.Store, error)

	// indicatorOverride 仅测试使用，替换远端/本地指标源。
	indicatorOverride market.IndicatorSource
}

type AppBuilderOption func(*AppBuilder)

func WithIndicatorSource(src market.IndicatorSource) AppBuilderOption {
	return func(b *AppBuilder) { b.indicatorOverride = src }
}

func WithChatClient(client provider.ChatClient) AppBuilderOption {
	return func(b *AppBuilder) {
		b.chatClientFn = func(brcfg.LLMConfig) provider.ChatClient { return client }
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:               cfg,
		priceSourceFn:     buildPriceSource,
		indicatorSourceFn: buildIndicatorSource,
		chatClientFn:      buildChatClient,
		storeFn:           store.Open,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppBuilder(cfg *brcfg.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	catalog, err := loadCatalog(cfg.Indicators.CatalogPath)
	if err != nil {
		return nil, err
	}
	prices, err := b.priceSourceFn(cfg.Binance)
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}
	indicators, err := b.indicatorSourceFn(cfg.Indicators, b.indicatorOverride, prices)
	if err != nil {
		return nil, err
	}
	aggregator := buildAggregator(cfg, indicators, prices, catalog)
	markets := polymarket.New(polymarket.Config{
		BaseURL: cfg.Polymarket.GammaBaseURL,
		Timeout: cfg.Polymarket.Timeout(),
		Proxy:   cfg.Polymarket.Proxy,
	})

	policy, policyDesc, err := loadPolicy(cfg.LLM.PolicyPath)
	if err != nil {
		return nil, err
	}
	engine, err := decision.NewEngine(b.chatClientFn(cfg.LLM), policy, aggregator, decision.Config{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
		IndicatorIDs:  catalog.IDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化决策引擎失败: %w", err)
	}
	predictor := predict.New(aggregator, markets, engine, predict.Options{MaxContextBytes: cfg.LLM.MaxContextBytes})

	repo, err := b.storeFn(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("打开预测库失败: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = repo.Close()
		}
	}()

	svc, err := agent.NewService(agent.Deps{
		Predictor:  predictor,
		Repository: repo,
		Aggregator: aggregator,
		Trades:     engine,
		Markets:    markets,
		Orders:     buildOrderPlacer(cfg.CLOB),
		Notifier:   buildNotifier(cfg.Notify),
	}, agent.Options{
		AutoOrder:       cfg.CLOB.Enabled && cfg.CLOB.AutoOrder,
		MaxContextBytes: cfg.LLM.MaxContextBytes,
	})
	if err != nil {
		return nil, err
	}
	server, err := buildHTTPServer(cfg.App, svc)
	if err != nil {
		return nil, err
	}
	sched := buildScheduler(cfg.Scheduler, svc)

	success = true
	return &App{
		cfg:       cfg,
		service:   svc,
		server:    server,
		scheduler: sched,
		store:     repo,
		Summary:   newStartupSummary(cfg, catalog, policyDesc),
	}, nil
}

func loadCatalog(path string) (*indicator.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return indicator.Default(), nil
	}
	catalog, err := indicator.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载指标目录失败: %w", err)
	}
	logger.Infof("✓ 指标目录 %s 已加载 (%d 项)", path, len(catalog.IDs()))
	return catalog, nil
}

// loadPolicy 有 policy_path 时热加载文件，否则使用内置策略。
func loadPolicy(path string) (decision.PolicySource, string, error) {
	if strings.TrimSpace(path) == "" {
		return decision.StaticPolicy(decision.DefaultPolicy()), "builtin", nil
	}
	ps, err := decision.LoadPolicy(path)
	if err != nil {
		return nil, "", fmt.Errorf("加载决策策略失败: %w", err)
	}
	ps.Watch()
	logger.Infof("✓ 决策策略 %s 已加载（热更新）", path)
	return ps, path, nil
}

func buildChatClient(cfg brcfg.LLMConfig) provider.ChatClient {
	return &provider.OpenAIChatClient{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
	}
}

func buildScheduler(cfg brcfg.SchedulerConfig, svc *agent.Service) *scheduler.WindowScheduler {
	if !cfg.Enabled || len(cfg.Symbols) == 0 {
		return nil
	}
	return scheduler.New(scheduler.Config{
		Symbols:        cfg.Symbols,
		Window:         time.Duration(predict.WindowSeconds) * time.Second,
		Offset:         time.Duration(cfg.OffsetSeconds) * time.Second,
		RunImmediately: cfg.RunImmediately,
	}, func(ctx context.Context, symbol string) error {
		_, err := svc.RunPrediction(ctx, symbol)
		return err
	})
}
