package decision

import (
	"strings"

	"github.com/tidwall/gjson"

	"updown/internal/logger"
	"updown/internal/pkg/convert"
	"updown/internal/pkg/jsonutil"
	"updown/internal/types"
)

const defaultEdgeProb = 0.5

// parseObject 返回回复中的 JSON 对象文本：整体合法优先，其次从代码块或闲聊里抽取。
func parseObject(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", false
	}
	if gjson.Valid(content) && gjson.Parse(content).IsObject() {
		return content, true
	}
	obj, ok := jsonutil.ExtractObject(content)
	if !ok || !gjson.Valid(obj) {
		return "", false
	}
	return obj, true
}

// coerceResult 是解析后的兜底：字段缺失或类型不对时回落到安全默认值，
// 只有 decision 对象本身缺失或不是对象才报结构错误。
func coerceResult(raw, requestedSlug string) (Result, error) {
	root := gjson.Parse(raw)
	dec := root.Get("decision")
	if !dec.Exists() || dec.Type == gjson.Null {
		return Result{}, structural(raw, "missing decision object")
	}
	if !dec.IsObject() {
		return Result{}, structural(raw, "decision is not an object")
	}

	out := Result{Reasoning: stringField(root.Get("reasoning"))}
	d := Decision{
		MarketSlug: stringField(dec.Get("market_slug")),
		SizeUSD:    nonNegative(dec.Get("size_usd")),
		MaxLossUSD: nonNegative(dec.Get("max_loss_usd")),
		EdgeProb:   probability(dec.Get("edge_prob"), defaultEdgeProb),
	}
	switch {
	case d.MarketSlug == "":
		d.MarketSlug = requestedSlug
	case requestedSlug != "" && !strings.EqualFold(d.MarketSlug, requestedSlug):
		logger.Warnf("decision slug %q does not match requested %q, keeping requested", d.MarketSlug, requestedSlug)
		d.MarketSlug = requestedSlug
	}
	dir, ok := types.ParseDirection(stringField(dec.Get("direction")))
	if !ok {
		dir = types.DirectionNoBet
	}
	d.Direction = dir
	if d.Direction == types.DirectionNoBet {
		d.SizeUSD = 0
		d.MaxLossUSD = 0
	}
	if d.MaxLossUSD > d.SizeUSD {
		d.MaxLossUSD = d.SizeUSD
	}
	out.Decision = d
	return out, nil
}

func coerceTrades(raw string, allowed []string) (TradeResult, error) {
	root := gjson.Parse(raw)
	trades := root.Get("trades")
	if !trades.Exists() || !trades.IsArray() {
		return TradeResult{}, structural(raw, "missing trades array")
	}
	want := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		want[strings.ToUpper(a)] = true
	}
	out := TradeResult{Reasoning: stringField(root.Get("reasoning"))}
	seen := make(map[string]bool)
	trades.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		asset := strings.ToUpper(stringField(item.Get("asset")))
		if asset == "" || seen[asset] || (len(want) > 0 && !want[asset]) {
			return true
		}
		seen[asset] = true
		td := TradeDecision{
			Asset:      asset,
			Action:     parseAction(stringField(item.Get("action"))),
			SizeUSD:    nonNegative(item.Get("size_usd")),
			Confidence: probability(item.Get("confidence"), 0),
			Rationale:  stringField(item.Get("rationale")),
		}
		if td.Action == ActionHold {
			td.SizeUSD = 0
		}
		out.Trades = append(out.Trades, td)
		return true
	})
	// 漏掉的资产补 HOLD
	for _, a := range allowed {
		a = strings.ToUpper(a)
		if !seen[a] {
			out.Trades = append(out.Trades, TradeDecision{Asset: a, Action: ActionHold})
		}
	}
	return out, nil
}

func parseAction(raw string) TradeAction {
	switch TradeAction(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActionBuy:
		return ActionBuy
	case ActionSell:
		return ActionSell
	default:
		return ActionHold
	}
}

func stringField(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(r.Str)
}

func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return convert.Float(r.Num)
	case gjson.String:
		return convert.Float(r.Str)
	default:
		return 0, false
	}
}

func nonNegative(r gjson.Result) float64 {
	v, ok := number(r)
	if !ok || v < 0 {
		return 0
	}
	return v
}

func probability(r gjson.Result, fallback float64) float64 {
	v, ok := number(r)
	if !ok {
		return fallback
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
