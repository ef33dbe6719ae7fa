package types

import "strings"

// MarketSnapshot 是一个 15 分钟涨跌二元市场在某一时刻的只读视图。
// Outcomes / OutcomePrices / TokenIDs 按下标一一对应。
type MarketSnapshot struct {
	MarketSlug    string    `json:"market_slug"`
	Question      string    `json:"question"`
	Outcomes      []string  `json:"outcomes"`
	OutcomePrices []float64 `json:"outcome_prices"`
	TokenIDs      []string  `json:"token_ids,omitempty"`
	EndDate       string    `json:"end_date,omitempty"`
	Active        bool      `json:"active"`
	Closed        bool      `json:"closed"`
}

// PriceOf returns the implied probability of the outcome whose label matches (case-insensitive).
func (m MarketSnapshot) PriceOf(outcome string) (float64, bool) {
	i := m.IndexOf(outcome)
	if i < 0 || i >= len(m.OutcomePrices) {
		return 0, false
	}
	return m.OutcomePrices[i], true
}

func (m MarketSnapshot) IndexOf(outcome string) int {
	for i, o := range m.Outcomes {
		if strings.EqualFold(strings.TrimSpace(o), outcome) {
			return i
		}
	}
	return -1
}

type Direction string

const (
	DirectionUp    Direction = "UP"
	DirectionDown  Direction = "DOWN"
	DirectionNoBet Direction = "NO_BET"
)

// ParseDirection 不认识的值一律视为 NO_BET。
func ParseDirection(raw string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, true
	case DirectionDown:
		return DirectionDown, true
	case DirectionNoBet:
		return DirectionNoBet, true
	default:
		return DirectionNoBet, false
	}
}

// OutcomeIndex maps a direction to its outcome position: UP is index 0, DOWN index 1.
func (d Direction) OutcomeIndex() int {
	switch d {
	case DirectionUp:
		return 0
	case DirectionDown:
		return 1
	default:
		return -1
	}
}
