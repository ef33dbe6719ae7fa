// Package predict runs one prediction cycle for one asset and its current 15-minute market.
package predict

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"updown/internal/decision"
	"updown/internal/logger"
	"updown/internal/market"
	"updown/internal/trace"
	"updown/internal/types"
)

// WindowSeconds 市场窗口长度，15 分钟。
const WindowSeconds int64 = 900

// ErrMarketNotFound 表示计算出的窗口还没有对应市场，属于预期内的终止条件，不重试。
var ErrMarketNotFound = errors.New("market not found")

// WindowStart floors t to the start of its 15-minute window.
func WindowStart(t time.Time) time.Time {
	s := t.Unix()
	start := s - s%WindowSeconds
	if s%WindowSeconds < 0 {
		start -= WindowSeconds
	}
	return time.Unix(start, 0).UTC()
}

// ComputeSlug returns <asset>-updown-15m-<window start epoch seconds>.
func ComputeSlug(asset string, t time.Time) string {
	return fmt.Sprintf("%s-updown-15m-%d", strings.ToLower(strings.TrimSpace(asset)), WindowStart(t).Unix())
}

type DataAggregator interface {
	GetCurrentMarketData(ctx context.Context, req market.Request) []market.MarketSection
}

type MarketFinder interface {
	GetMarketBySlug(ctx context.Context, slug string) (*types.MarketSnapshot, error)
}

type Decider interface {
	Decide(ctx context.Context, m types.MarketSnapshot, contextPayload string) (decision.Result, error)
}

type Options struct {
	MaxContextBytes int
}

// Prediction 一次预测周期的完整结果，由调用方落库。
type Prediction struct {
	Asset       string               `json:"asset"`
	WindowStart time.Time            `json:"window_start"`
	Market      types.MarketSnapshot `json:"market"`
	MarketData  market.MarketSection `json:"market_data"`
	Result      decision.Result      `json:"result"`
}

type Orchestrator struct {
	aggregator DataAggregator
	markets    MarketFinder
	decider    Decider
	opts       Options
	nowFn      func() time.Time
}

func New(aggregator DataAggregator, markets MarketFinder, decider Decider, opts Options) *Orchestrator {
	return &Orchestrator{
		aggregator: aggregator,
		markets:    markets,
		decider:    decider,
		opts:       opts,
		nowFn:      time.Now,
	}
}

func (o *Orchestrator) Predict(ctx context.Context, symbol string) (pred *Prediction, err error) {
	asset := strings.ToUpper(strings.TrimSpace(symbol))
	ctx, span := trace.Start(ctx, "predict", attribute.String("asset", asset))
	defer func() { trace.End(span, err) }()
	if asset == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	sections := o.aggregator.GetCurrentMarketData(ctx, market.Request{Assets: []string{asset}})
	if len(sections) == 0 {
		return nil, fmt.Errorf("market data for %s unavailable", asset)
	}
	section := sections[0]

	now := o.nowFn()
	slug := ComputeSlug(asset, now)
	snap, err := o.markets.GetMarketBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", slug, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, slug)
	}

	payload, err := decision.BuildContext([]market.MarketSection{section}, taskText(asset, slug), o.opts.MaxContextBytes)
	if err != nil {
		return nil, err
	}
	res, err := o.decider.Decide(ctx, *snap, payload)
	if err != nil {
		return nil, fmt.Errorf("decide %s: %w", slug, err)
	}
	logger.Infof("prediction %s: %s size=%.2f edge=%.2f", slug, res.Decision.Direction, res.Decision.SizeUSD, res.Decision.EdgeProb)
	return &Prediction{
		Asset:       asset,
		WindowStart: WindowStart(now),
		Market:      *snap,
		MarketData:  section,
		Result:      res,
	}, nil
}

func taskText(asset, slug string) string {
	return fmt.Sprintf("Decide whether %s finishes the 15-minute window of market %s UP or DOWN, or decline with NO_BET.", asset, slug)
}
