package point

import (
	"encoding/json"
	"math"
	"strconv"
)

// Sentinel keys used when a value descriptor cannot be parsed as JSON.
// The raw string is preserved under these keys for diagnostics instead
// of being discarded; downstream code can always range over the decoded
// map without a parse error path.
const (
	ErrorValue1 = "ErrorValue1"
	ErrorValue2 = "ErrorValue2"
)

// Spec describes one data point: its code, value type, and a JSON-encoded
// value descriptor (range, min, max, scale, step, unit, label).
//
// Values is kept in its wire form (a JSON object string) because it is
// rewritten wholesale during normalization and merging; DecodeValues and
// SetValues are the only supported accessors.
type Spec struct {
	Code    string `json:"code"`
	Type    Type   `json:"type"`
	Values  string `json:"values"`
	PointID int    `json:"point_id,omitempty"`
}

// DecodeValues parses the value descriptor into a map.
//
// A descriptor that fails to parse as a JSON object is wrapped in the
// ErrorValue1 sentinel so callers never see a parse error. An empty
// descriptor decodes to an empty map.
func (s *Spec) DecodeValues() map[string]any {
	m, ok := DecodeJSONObject(s.Values)
	if !ok {
		return map[string]any{ErrorValue1: s.Values}
	}
	return m
}

// SetValues re-encodes the descriptor map into the Values field.
// Encoding a map[string]any of JSON-compatible values cannot fail;
// anything unencodable is left untouched.
func (s *Spec) SetValues(m map[string]any) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	s.Values = string(raw)
}

// Clone returns an independent copy of the spec.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	cpy := *s
	return &cpy
}

// IsSentinel reports whether a decoded descriptor is an error sentinel
// produced by DecodeValues or the merge engine's cross-repair step.
func IsSentinel(m map[string]any) bool {
	if m == nil {
		return false
	}
	_, ok := m[ErrorValue1]
	return ok
}

// DecodeJSONObject parses raw as a JSON object. The second return is
// false when raw is not a syntactically valid JSON object; empty input
// yields an empty map.
func DecodeJSONObject(raw string) (map[string]any, bool) {
	if raw == "" || raw == "{}" {
		return map[string]any{}, true
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, true
}

// Number extracts a numeric descriptor field. Tuya descriptors encode
// numbers inconsistently (JSON number or quoted string), so both forms
// are accepted.
func Number(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int extracts an integral descriptor field, truncating toward zero.
func Int(m map[string]any, key string) (int, bool) {
	f, ok := Number(m, key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Strings extracts a string-list descriptor field such as "range" or
// "label". Non-string elements are skipped.
func Strings(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToStringList converts a []string to the []any form used inside
// decoded descriptor maps.
func ToStringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
