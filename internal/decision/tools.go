package decision

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"updown/internal/gateway/provider"
	"updown/internal/logger"
	"updown/internal/pkg/jsonutil"
	"updown/internal/trace"
)

const toolFetchIndicator = "fetch_indicator"

// IndicatorReader 执行 fetch_indicator 工具调用，通常由行情聚合器实现。
type IndicatorReader interface {
	ReadIndicator(ctx context.Context, asset, id, timeframe string) (map[string]any, error)
}

func fetchIndicatorTool(ids []string) provider.Tool {
	indicatorProp := map[string]any{
		"type":        "string",
		"description": "Indicator id from the catalog, e.g. rsi_14 or bbands.",
	}
	if len(ids) > 0 {
		enum := make([]any, 0, len(ids))
		for _, id := range ids {
			enum = append(enum, id)
		}
		indicatorProp["enum"] = enum
	}
	return provider.Tool{
		Type: "function",
		Function: provider.ToolFunction{
			Name:        toolFetchIndicator,
			Description: "Fetch one technical indicator for an asset. Returns the latest value and the most recent series.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"asset":     map[string]any{"type": "string", "description": "Ticker such as BTC."},
					"indicator": indicatorProp,
					"timeframe": map[string]any{"type": "string", "description": "Candle interval such as 5m or 4h. Empty means the intraday timeframe."},
				},
				"required":             []any{"asset", "indicator"},
				"additionalProperties": false,
			},
		},
	}
}

// runTool 永远返回一段 JSON 给模型，失败时是 {"error": ...}，不会中断对话。
func (e *Engine) runTool(ctx context.Context, call provider.ToolCall) string {
	name := call.Function.Name
	args := call.Function.Arguments
	result := func() string {
		if name != toolFetchIndicator {
			return jsonutil.Compact(map[string]string{"error": "unknown tool " + name})
		}
		if e.reader == nil {
			return jsonutil.Compact(map[string]string{"error": "tool unavailable"})
		}
		if !gjson.Valid(args) {
			return jsonutil.Compact(map[string]string{"error": "arguments are not valid JSON"})
		}
		parsed := gjson.Parse(args)
		asset := strings.TrimSpace(parsed.Get("asset").String())
		id := strings.TrimSpace(parsed.Get("indicator").String())
		if asset == "" || id == "" {
			return jsonutil.Compact(map[string]string{"error": "asset and indicator are required"})
		}
		out, err := e.reader.ReadIndicator(ctx, asset, id, strings.TrimSpace(parsed.Get("timeframe").String()))
		if err != nil {
			return jsonutil.Compact(map[string]string{"error": err.Error()})
		}
		return jsonutil.Compact(out)
	}()
	logger.LogLLMToolCall(e.cfg.Model, trace.RequestID(ctx), name, jsonutil.Pretty(args), jsonutil.Pretty(result))
	return result
}
