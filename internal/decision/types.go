package decision

import "updown/internal/types"

// Decision 单个市场的结构化决策。
type Decision struct {
	MarketSlug string          `json:"market_slug"`
	Direction  types.Direction `json:"direction"`
	SizeUSD    float64         `json:"size_usd"`
	MaxLossUSD float64         `json:"max_loss_usd"`
	EdgeProb   float64         `json:"edge_prob"`
}

type Result struct {
	Reasoning string   `json:"reasoning"`
	Decision  Decision `json:"decision"`
}

// TradeAction 多资产交易提示词下的动作。
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
	ActionHold TradeAction = "HOLD"
)

type TradeDecision struct {
	Asset      string      `json:"asset"`
	Action     TradeAction `json:"action"`
	SizeUSD    float64     `json:"size_usd"`
	Confidence float64     `json:"confidence"`
	Rationale  string      `json:"rationale"`
}

type TradeResult struct {
	Reasoning  string          `json:"reasoning"`
	Trades     []TradeDecision `json:"trades"`
	ToolRounds int             `json:"tool_rounds"`
}
