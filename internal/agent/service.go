// Package agent wires one prediction cycle to persistence, notification and optional order placement.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"updown/internal/decision"
	"updown/internal/gateway/clob"
	"updown/internal/gateway/notifier"
	"updown/internal/logger"
	"updown/internal/market"
	"updown/internal/metrics"
	"updown/internal/predict"
	"updown/internal/store"
	"updown/internal/trace"
	"updown/internal/types"
)

var (
	ErrOrdersDisabled = errors.New("order placement disabled")
	ErrNothingToOrder = errors.New("prediction has no order to place")
)

type Predictor interface {
	Predict(ctx context.Context, symbol string) (*predict.Prediction, error)
}

type Repository interface {
	Create(ctx context.Context, rec *store.PredictionRecord) error
	FindMany(ctx context.Context, f store.Filter) ([]store.PredictionRecord, error)
	FindByID(ctx context.Context, id string) (*store.PredictionRecord, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req clob.OrderRequest) (*clob.OrderConfirmation, error)
}

type TradeDecider interface {
	DecideTrades(ctx context.Context, assets []string, contextPayload string) (decision.TradeResult, error)
}

type MarketLister interface {
	ListActiveMarkets(ctx context.Context, titleFilter string, limit int) ([]types.MarketSnapshot, error)
}

type DataAggregator interface {
	GetCurrentMarketData(ctx context.Context, req market.Request) []market.MarketSection
}

type Options struct {
	// AutoOrder 为 true 且配置了 OrderPlacer 时，落库后立即按决策下单。
	AutoOrder       bool
	MaxContextBytes int
}

// Deps 中除 Predictor 与 Repository 外都可以为 nil。
type Deps struct {
	Predictor  Predictor
	Repository Repository
	Aggregator DataAggregator
	Trades     TradeDecider
	Markets    MarketLister
	Orders     OrderPlacer
	Notifier   notifier.TextNotifier
}

type Service struct {
	deps Deps
	opts Options
}

func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Predictor == nil || deps.Repository == nil {
		return nil, fmt.Errorf("agent service requires a predictor and a repository")
	}
	return &Service{deps: deps, opts: opts}, nil
}

// RunPrediction predicts symbol's current window and persists the result. A failed cycle
// persists nothing.
func (s *Service) RunPrediction(ctx context.Context, symbol string) (*store.PredictionRecord, error) {
	traceID := uuid.NewString()
	ctx = trace.WithRequestID(ctx, traceID)
	log := logger.With("asset", strings.ToUpper(symbol), "trace_id", traceID)
	started := time.Now()

	pred, err := s.deps.Predictor.Predict(ctx, symbol)
	if err != nil {
		reason := failureReason(err)
		metrics.PredictionFailures.WithLabelValues(reason).Inc()
		log.Warn("prediction failed", "reason", reason, "error", err)
		return nil, err
	}
	rec, err := newRecord(traceID, pred)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Repository.Create(ctx, rec); err != nil {
		metrics.PredictionFailures.WithLabelValues("store").Inc()
		return nil, err
	}
	metrics.Predictions.WithLabelValues(rec.Symbol, rec.Direction).Inc()
	metrics.PredictionDuration.Observe(time.Since(started).Seconds())
	log.Info("prediction stored", "id", rec.ID, "direction", rec.Direction, "size_usd", rec.SizeUSD, "market", rec.MarketSlug)

	s.notify(ctx, rec)
	if s.opts.AutoOrder && s.deps.Orders != nil {
		if _, err := s.placeOrder(ctx, rec); err != nil && !errors.Is(err, ErrNothingToOrder) {
			log.Warn("auto order failed", "id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

func (s *Service) History(ctx context.Context, f store.Filter) ([]store.PredictionRecord, error) {
	return s.deps.Repository.FindMany(ctx, f)
}

func (s *Service) Prediction(ctx context.Context, id string) (*store.PredictionRecord, error) {
	return s.deps.Repository.FindByID(ctx, id)
}

// PlaceOrderForRecord 对已落库的预测手动下单，记录本身不修改。
func (s *Service) PlaceOrderForRecord(ctx context.Context, id string) (*clob.OrderConfirmation, error) {
	if s.deps.Orders == nil {
		return nil, ErrOrdersDisabled
	}
	rec, err := s.deps.Repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.placeOrder(ctx, rec)
}

func (s *Service) placeOrder(ctx context.Context, rec *store.PredictionRecord) (*clob.OrderConfirmation, error) {
	snap, err := rec.Snapshot()
	if err != nil {
		return nil, err
	}
	dir, _ := types.ParseDirection(rec.Direction)
	req, ok, err := clob.FromDecision(snap, dir, rec.SizeUSD)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNothingToOrder
	}
	conf, err := s.deps.Orders.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Infof("order %s placed for prediction %s (%s)", conf.OrderID, rec.ID, rec.MarketSlug)
	return conf, nil
}

// Analysis 多资产分析结果，不落库。
type Analysis struct {
	Markets []market.MarketSection `json:"markets"`
	Result  decision.TradeResult   `json:"result"`
}

func (s *Service) AnalyzeAssets(ctx context.Context, symbols []string) (*Analysis, error) {
	if s.deps.Aggregator == nil || s.deps.Trades == nil {
		return nil, fmt.Errorf("multi-asset analysis not configured")
	}
	assets := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			assets = append(assets, sym)
		}
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	ctx = trace.WithRequestID(ctx, uuid.NewString())

	sections := s.deps.Aggregator.GetCurrentMarketData(ctx, market.Request{Assets: assets})
	if len(sections) == 0 {
		return nil, fmt.Errorf("market data unavailable for %s", strings.Join(assets, ","))
	}
	covered := make([]string, 0, len(sections))
	for _, sec := range sections {
		covered = append(covered, sec.Asset)
	}
	payload, err := decision.BuildContext(sections, "Review each asset and propose one trade per asset.", s.opts.MaxContextBytes)
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Trades.DecideTrades(ctx, covered, payload)
	if err != nil {
		return nil, err
	}
	return &Analysis{Markets: sections, Result: res}, nil
}

func (s *Service) ListMarkets(ctx context.Context, filter string, limit int) ([]types.MarketSnapshot, error) {
	if s.deps.Markets == nil {
		return nil, fmt.Errorf("market listing not configured")
	}
	return s.deps.Markets.ListActiveMarkets(ctx, filter, limit)
}

func newRecord(id string, p *predict.Prediction) (*store.PredictionRecord, error) {
	d := p.Result.Decision
	rec := &store.PredictionRecord{
		ID:           id,
		Symbol:       p.Asset,
		Timestamp:    p.MarketData.Timestamp,
		WindowStart:  p.WindowStart,
		CurrentPrice: p.MarketData.CurrentPrice,
		Direction:    string(d.Direction),
		SizeUSD:      d.SizeUSD,
		MaxLossUSD:   d.MaxLossUSD,
		EdgeProb:     d.EdgeProb,
		Reasoning:    p.Result.Reasoning,
	}
	if err := rec.SetSnapshot(p.Market); err != nil {
		return nil, fmt.Errorf("encode market: %w", err)
	}
	brief, err := encodeBrief(p.MarketData)
	if err != nil {
		return nil, fmt.Errorf("encode market data: %w", err)
	}
	rec.MarketData = brief
	return rec, nil
}

func failureReason(err error) string {
	if errors.Is(err, predict.ErrMarketNotFound) {
		return "market_not_found"
	}
	return string(decision.Classify(err))
}
