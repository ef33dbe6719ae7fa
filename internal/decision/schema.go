package decision

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	decisionSchemaName = "updown_decision"
	tradeSchemaName    = "trade_decisions"
)

// decisionSchema 与 strict 模式要求一致：所有字段必填，禁止额外字段。
func decisionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reasoning": map[string]any{"type": "string"},
			"decision": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"market_slug":  map[string]any{"type": "string"},
					"direction":    map[string]any{"type": "string", "enum": []any{"UP", "DOWN", "NO_BET"}},
					"size_usd":     map[string]any{"type": "number", "minimum": 0},
					"max_loss_usd": map[string]any{"type": "number", "minimum": 0},
					"edge_prob":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
				"required":             []any{"market_slug", "direction", "size_usd", "max_loss_usd", "edge_prob"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"reasoning", "decision"},
		"additionalProperties": false,
	}
}

func tradeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reasoning": map[string]any{"type": "string"},
			"trades": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"asset":      map[string]any{"type": "string"},
						"action":     map[string]any{"type": "string", "enum": []any{"BUY", "SELL", "HOLD"}},
						"size_usd":   map[string]any{"type": "number", "minimum": 0},
						"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
						"rationale":  map[string]any{"type": "string"},
					},
					"required":             []any{"asset", "action", "size_usd", "confidence", "rationale"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"reasoning", "trades"},
		"additionalProperties": false,
	}
}

func compileSchema(name string, data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// validateRaw 只做校验报告，调用方决定是否在意。
func validateRaw(schema *jsonschema.Schema, raw string) error {
	if schema == nil {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}
