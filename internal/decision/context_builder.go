package decision

import (
	"encoding/json"
	"fmt"

	"updown/internal/logger"
	"updown/internal/market"
)

const DefaultMaxContextBytes = 64 << 10

type contextPayload struct {
	Task    string                 `json:"task"`
	Markets []market.MarketSection `json:"markets"`
}

// BuildContext 把聚合结果和任务说明序列化为一段 JSON。
// 超过 maxBytes 时逐级裁剪：序列截到最近 3 个，再去掉序列只留最新值。
func BuildContext(sections []market.MarketSection, task string, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContextBytes
	}
	var last []byte
	for _, keep := range []int{-1, 3, 0} {
		payload := contextPayload{Task: task, Markets: trimSections(sections, keep)}
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal context: %w", err)
		}
		if len(raw) <= maxBytes {
			return string(raw), nil
		}
		last = raw
	}
	logger.Warnf("context still %d bytes after trimming series (limit %d)", len(last), maxBytes)
	return string(last), nil
}

// keep<0 不裁剪。
func trimSections(sections []market.MarketSection, keep int) []market.MarketSection {
	if keep < 0 {
		return sections
	}
	out := make([]market.MarketSection, len(sections))
	for i, s := range sections {
		s.Intraday = trimBundle(s.Intraday, keep)
		s.LongTerm = trimBundle(s.LongTerm, keep)
		out[i] = s
	}
	return out
}

func trimBundle(b market.IndicatorBundle, keep int) market.IndicatorBundle {
	series := make(map[string][]any, len(b.Series))
	if keep > 0 {
		for id, vals := range b.Series {
			if len(vals) > keep {
				vals = vals[len(vals)-keep:]
			}
			series[id] = vals
		}
	}
	b.Series = series
	return b
}
