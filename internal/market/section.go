package market

import "time"

// IndicatorBundle 保存一个周期下的指标：最新值与最近若干个值。
// multi 指标按输出拆开，键形如 bbands_upper。
type IndicatorBundle struct {
	Timeframe string              `json:"timeframe"`
	Latest    map[string]*float64 `json:"latest"`
	Series    map[string][]any    `json:"series"`
}

func newBundle(timeframe string) IndicatorBundle {
	return IndicatorBundle{
		Timeframe: timeframe,
		Latest:    make(map[string]*float64),
		Series:    make(map[string][]any),
	}
}

// MarketSection 是单个资产在一个预测周期内的完整快照，只在本周期内使用。
type MarketSection struct {
	Asset        string          `json:"asset"`
	CurrentPrice *float64        `json:"current_price"`
	Timestamp    time.Time       `json:"timestamp"`
	Intraday     IndicatorBundle `json:"intraday"`
	LongTerm     IndicatorBundle `json:"long_term"`
}

// Brief keeps the price and latest indicator values only; used for persistence.
func (s MarketSection) Brief() map[string]any {
	return map[string]any{
		"asset":         s.Asset,
		"current_price": s.CurrentPrice,
		"timestamp":     s.Timestamp,
		"intraday":      s.Intraday.Latest,
		"long_term":     s.LongTerm.Latest,
	}
}
