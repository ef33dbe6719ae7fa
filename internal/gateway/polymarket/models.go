package polymarket

import "encoding/json"

// event 对应 Gamma API 的 event；outcomes 等字段是 JSON 编码后的字符串数组。
type event struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	EndDate string        `json:"endDate"`
	Active  bool          `json:"active"`
	Closed  bool          `json:"closed"`
	Markets []eventMarket `json:"markets"`
}

type eventMarket struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Question      string          `json:"question"`
	EndDate       string          `json:"endDate"`
	Active        bool            `json:"active"`
	Closed        bool            `json:"closed"`
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	ClobTokenIDs  json.RawMessage `json:"clobTokenIds"`
}
