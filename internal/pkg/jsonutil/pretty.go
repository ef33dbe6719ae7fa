package jsonutil

import (
	"encoding/json"
	"strings"
)

// Pretty reindents raw JSON for transcripts; invalid input is returned untouched.
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(buf)
}

// Compact marshals v without indentation and returns "{}" on failure.
func Compact(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(buf)
}
