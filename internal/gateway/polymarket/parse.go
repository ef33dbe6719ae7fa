package polymarket

import (
	"encoding/json"
	"fmt"
	"strings"

	"updown/internal/pkg/convert"
	"updown/internal/types"
)

// decodeList 兼容两种形态：真正的 JSON 数组，或被再编码一次的字符串 "[\"Up\",\"Down\"]"。
func decodeList(raw json.RawMessage) ([]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("missing")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		trimmed = strings.TrimSpace(inner)
	}
	var out []any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeStrings(raw json.RawMessage) ([]string, error) {
	items, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, convert.FormatPlain(v))
		default:
			return nil, fmt.Errorf("unexpected element %T", it)
		}
	}
	return out, nil
}

func decodePrices(raw json.RawMessage) ([]float64, error) {
	items, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(items))
	for _, it := range items {
		f, ok := convert.Float(it)
		if !ok || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid price %v", it)
		}
		out = append(out, f)
	}
	return out, nil
}

// toSnapshot 解析失败返回 error，调用方据此把该市场排除，而不是整体失败。
func toSnapshot(slug string, m eventMarket) (types.MarketSnapshot, error) {
	outcomes, err := decodeStrings(m.Outcomes)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("outcomes: %w", err)
	}
	prices, err := decodePrices(m.OutcomePrices)
	if err != nil {
		return types.MarketSnapshot{}, fmt.Errorf("outcomePrices: %w", err)
	}
	if len(outcomes) == 0 || len(outcomes) != len(prices) {
		return types.MarketSnapshot{}, fmt.Errorf("outcomes/prices length mismatch %d/%d", len(outcomes), len(prices))
	}
	tokens, err := decodeStrings(m.ClobTokenIDs)
	if err != nil || len(tokens) != len(outcomes) {
		tokens = nil
	}
	if slug == "" {
		slug = m.Slug
	}
	return types.MarketSnapshot{
		MarketSlug:    slug,
		Question:      m.Question,
		Outcomes:      outcomes,
		OutcomePrices: prices,
		TokenIDs:      tokens,
		EndDate:       m.EndDate,
		Active:        m.Active,
		Closed:        m.Closed,
	}, nil
}
