// Package convert holds the loose numeric conversions shared by gateways and coercion.
package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Float reports whether v carries a finite number, accepting numeric strings.
func Float(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	out, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return out
}

// RoundSeries rounds numeric entries and passes anything else through unchanged.
// Numeric strings are not rounded; only real numbers are.
func RoundSeries(values []any, places int32) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case float64, float32, int, int64, int32, json.Number:
			f, ok := Float(n)
			if !ok {
				out = append(out, v)
				continue
			}
			out = append(out, Round(f, places))
		default:
			out = append(out, v)
		}
	}
	return out
}

// LastNumber returns the last numeric entry of a series.
func LastNumber(values []any) *float64 {
	for i := len(values) - 1; i >= 0; i-- {
		switch values[i].(type) {
		case string, nil, bool:
			continue
		}
		if f, ok := Float(values[i]); ok {
			return &f
		}
	}
	return nil
}

func Ptr(v float64) *float64 {
	return &v
}

// FormatPlain renders a float without exponent, e.g. large token ids decoded as numbers.
func FormatPlain(v float64) string {
	return decimal.NewFromFloat(v).String()
}
