package clob

import (
	"fmt"

	"github.com/shopspring/decimal"

	"updown/internal/types"
)

// FromDecision 把方向和下注金额换成买单：UP 买 outcome 0，DOWN 买 outcome 1，
// 价格取隐含概率，份数 = 金额 / 价格。NO_BET 或金额为 0 时返回 ok=false。
func FromDecision(snap types.MarketSnapshot, dir types.Direction, sizeUSD float64) (OrderRequest, bool, error) {
	idx := dir.OutcomeIndex()
	if idx < 0 || sizeUSD <= 0 {
		return OrderRequest{}, false, nil
	}
	if idx >= len(snap.TokenIDs) || idx >= len(snap.OutcomePrices) {
		return OrderRequest{}, false, fmt.Errorf("market %s has no outcome %d", snap.MarketSlug, idx)
	}
	price := decimal.NewFromFloat(snap.OutcomePrices[idx])
	if !price.IsPositive() {
		return OrderRequest{}, false, fmt.Errorf("market %s outcome %d has no price", snap.MarketSlug, idx)
	}
	size := decimal.NewFromFloat(sizeUSD).Div(price).Truncate(2)
	return OrderRequest{
		TokenID: snap.TokenIDs[idx],
		Price:   snap.OutcomePrices[idx],
		Size:    size.InexactFloat64(),
		Side:    SideBuy,
	}, true, nil
}
