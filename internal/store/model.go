package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"updown/internal/types"
)

// PredictionRecord 预测审计行：资产、时间、价格、市场快照、决策与推理，创建后不再修改。
type PredictionRecord struct {
	ID            string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	Symbol        string         `gorm:"column:symbol;index" json:"symbol"`
	Timestamp     time.Time      `gorm:"column:timestamp;index" json:"timestamp"`
	WindowStart   time.Time      `gorm:"column:window_start" json:"window_start"`
	CurrentPrice  *float64       `gorm:"column:current_price" json:"current_price"`
	MarketSlug    string         `gorm:"column:market_slug;index" json:"market_slug"`
	Question      string         `gorm:"column:question" json:"question"`
	Outcomes      datatypes.JSON `gorm:"column:outcomes" json:"outcomes"`
	OutcomePrices datatypes.JSON `gorm:"column:outcome_prices" json:"outcome_prices"`
	TokenIDs      datatypes.JSON `gorm:"column:token_ids" json:"token_ids"`
	Direction     string         `gorm:"column:direction;index" json:"direction"`
	SizeUSD       float64        `gorm:"column:size_usd" json:"size_usd"`
	MaxLossUSD    float64        `gorm:"column:max_loss_usd" json:"max_loss_usd"`
	EdgeProb      float64        `gorm:"column:edge_prob" json:"edge_prob"`
	Reasoning     string         `gorm:"column:reasoning;type:text" json:"reasoning"`
	MarketData    datatypes.JSON `gorm:"column:market_data" json:"market_data"`
	CreatedAt     time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (PredictionRecord) TableName() string { return "predictions" }

// SetSnapshot 把市场快照的列表字段编码为 JSON 列。
func (r *PredictionRecord) SetSnapshot(m types.MarketSnapshot) error {
	var err error
	r.MarketSlug = m.MarketSlug
	r.Question = m.Question
	if r.Outcomes, err = encodeJSON(m.Outcomes); err != nil {
		return err
	}
	if r.OutcomePrices, err = encodeJSON(m.OutcomePrices); err != nil {
		return err
	}
	r.TokenIDs, err = encodeJSON(m.TokenIDs)
	return err
}

// Snapshot rebuilds the market snapshot stored on the row.
func (r PredictionRecord) Snapshot() (types.MarketSnapshot, error) {
	m := types.MarketSnapshot{MarketSlug: r.MarketSlug, Question: r.Question}
	if err := decodeJSON(r.Outcomes, &m.Outcomes); err != nil {
		return m, fmt.Errorf("outcomes: %w", err)
	}
	if err := decodeJSON(r.OutcomePrices, &m.OutcomePrices); err != nil {
		return m, fmt.Errorf("outcome prices: %w", err)
	}
	if err := decodeJSON(r.TokenIDs, &m.TokenIDs); err != nil {
		return m, fmt.Errorf("token ids: %w", err)
	}
	return m, nil
}

func encodeJSON(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON(raw datatypes.JSON, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
