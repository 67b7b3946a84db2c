package merge

import (
	"encoding/json"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// mergeContainers deep-merges b's four containers into a's. Keys
// missing on the left are adopted; overlapping keys recurse through
// smartValue with the left-biased conflict policy.
func (e *Engine) mergeContainers(a, b *point.Device) {
	for code, vb := range b.Status {
		if va, ok := a.Status[code]; ok {
			a.Status[code] = e.smartValue(a.ID, "status."+code, va, vb)
		} else {
			a.Status[code] = vb
		}
	}

	for code, sb := range b.Function {
		if sa, ok := a.Function[code]; ok {
			e.mergeSpec(a.ID, "function."+code, sa, sb)
		} else {
			a.Function[code] = sb
		}
	}
	for code, sb := range b.StatusRange {
		if sa, ok := a.StatusRange[code]; ok {
			e.mergeSpec(a.ID, "status_range."+code, sa, sb)
		} else {
			a.StatusRange[code] = sb
		}
	}

	e.mergeStrategyTables(a, b)
}

// mergeStrategyTables unions the routing tables. A table synthesised
// from spec descriptors is a fallback for accounts with no strategy
// endpoint: a real table on either side supersedes it wholesale, since
// the two never share point ids. Between like tables entries union by
// id, left-biased, and a code never gains a second route.
func (e *Engine) mergeStrategyTables(a, b *point.Device) {
	if len(b.LocalStrategy) == 0 {
		return
	}
	if len(a.LocalStrategy) > 0 {
		aSynth := allSynthesised(a.LocalStrategy)
		bSynth := allSynthesised(b.LocalStrategy)
		switch {
		case aSynth && !bSynth:
			e.logger.Debug("synthesised strategy table superseded by real table",
				"device", a.ID)
			for id := range a.LocalStrategy {
				delete(a.LocalStrategy, id)
			}
		case bSynth && !aSynth:
			e.logger.Debug("synthesised strategy table dropped, real table kept",
				"device", a.ID)
			return
		}
	}

	for id, eb := range b.LocalStrategy {
		if ea, ok := a.LocalStrategy[id]; ok {
			e.mergeStrategy(a.ID, ea, eb)
			continue
		}
		if _, routed := a.StrategyByCode(eb.StatusCode); routed {
			// Already routed under another id; a second route would
			// make code lookups order-dependent.
			continue
		}
		a.LocalStrategy[id] = eb
	}
}

// allSynthesised reports whether every entry of a non-empty table was
// synthesised from spec descriptors.
func allSynthesised(table map[int]*point.StrategyEntry) bool {
	for _, entry := range table {
		if !entry.Synthesised {
			return false
		}
	}
	return true
}

// mergeSpec merges one overlapping spec pair. The type was already
// arbitrated, so the left type stands; the descriptors deep-merge.
func (e *Engine) mergeSpec(deviceID, path string, left, right *point.Spec) {
	if left.PointID == 0 {
		left.PointID = right.PointID
	}
	ml := left.DecodeValues()
	mr := right.DecodeValues()
	merged := e.mergeMap(deviceID, path+".values", ml, mr)
	left.SetValues(merged)
}

// mergeStrategy merges one overlapping strategy entry pair. Write
// routing fields were reconciled earlier; what remains is unioning the
// alias lists and the embedded config items.
func (e *Engine) mergeStrategy(deviceID string, left, right *point.StrategyEntry) {
	left.StatusCodeAliases = unionStrings(left.StatusCodeAliases, right.StatusCodeAliases)
	if left.AccessMode == "" {
		left.AccessMode = right.AccessMode
	}

	switch {
	case left.ConfigItem == nil:
		left.ConfigItem = right.ConfigItem
	case right.ConfigItem != nil:
		cl, cr := left.ConfigItem, right.ConfigItem
		if cl.StatusFormat == "" {
			cl.StatusFormat = cr.StatusFormat
		}
		if cl.ValueType == "" {
			cl.ValueType = cr.ValueType
		}
		if cl.PID == "" {
			cl.PID = cr.PID
		}
		switch {
		case cl.ValueDesc == "":
			cl.ValueDesc = cr.ValueDesc
		case cr.ValueDesc != "":
			cl.ValueDesc = e.mergeString(deviceID,
				"local_strategy."+left.StatusCode+".value_desc",
				cl.ValueDesc, cr.ValueDesc)
		}
		if cl.EnumMapping == nil {
			cl.EnumMapping = cr.EnumMapping
		} else {
			for k, v := range cr.EnumMapping {
				if _, ok := cl.EnumMapping[k]; !ok {
					cl.EnumMapping[k] = v
				}
			}
		}
	}
}

// smartValue merges two values of arbitrary shape:
//
//   - nil is always overridden by a non-nil counterpart
//   - maps union their keys and recurse on overlaps
//   - sequences union their elements, left order first
//   - strings that both parse as JSON containers recurse into the
//     parsed structure and re-serialize
//   - anything else is a scalar leaf: the left value wins and a
//     disagreement is reported
//
// A genuine shape mismatch (map on one side, list on the other) is not
// fixable; it is reported and the left value is kept.
func (e *Engine) smartValue(deviceID, path string, left, right any) any {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}

	switch lv := left.(type) {
	case map[string]any:
		if rv, ok := right.(map[string]any); ok {
			return e.mergeMap(deviceID, path, lv, rv)
		}
	case []any:
		if rv, ok := right.([]any); ok {
			return unionSequence(lv, rv)
		}
	case string:
		if rv, ok := right.(string); ok {
			return e.mergeString(deviceID, path, lv, rv)
		}
	default:
		if leafEqual(left, right) {
			return left
		}
		e.report(deviceID, path, left, right)
		return left
	}

	// Mismatched container kinds.
	e.report(deviceID, path, left, right)
	return left
}

// mergeMap unions two maps, recursing on overlapping keys.
func (e *Engine) mergeMap(deviceID, path string, left, right map[string]any) map[string]any {
	for k, rv := range right {
		if lv, ok := left[k]; ok {
			left[k] = e.smartValue(deviceID, path+"."+k, lv, rv)
		} else {
			left[k] = rv
		}
	}
	return left
}

// mergeString merges two string leaves. Strings holding JSON container
// payloads are structurally merged and re-serialized; everything else
// is compared as a scalar.
func (e *Engine) mergeString(deviceID, path, left, right string) string {
	if left == right {
		return left
	}
	lv, okL := decodeJSONContainer(left)
	rv, okR := decodeJSONContainer(right)
	if okL && okR {
		merged := e.smartValue(deviceID, path, lv, rv)
		return encodeAny(merged, left)
	}
	e.report(deviceID, path, left, right)
	return left
}

// unionSequence unions two sequences preserving insertion order of
// left then right. Element identity is structural.
func unionSequence(left, right []any) []any {
	out := make([]any, 0, len(left)+len(right))
	out = append(out, left...)
	for _, rv := range right {
		found := false
		for _, lv := range out {
			if leafEqual(lv, rv) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, rv)
		}
	}
	return out
}

// leafEqual compares two leaves, treating numerically equal values as
// equal regardless of their concrete Go type: the two cloud decoders
// hand back a mix of int and float64 for the same wire value.
func leafEqual(a, b any) bool {
	if fa, okA := asFloat(a); okA {
		if fb, okB := asFloat(b); okB {
			return fa == fb
		}
		return false
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// decodeJSONContainer parses s when it holds a JSON object or array.
// Scalar JSON ("5", "true") stays a string leaf on purpose: status
// values are routinely numeric strings and must not be restructured.
func decodeJSONContainer(s string) (any, bool) {
	if len(s) == 0 {
		return nil, false
	}
	if s[0] != '{' && s[0] != '[' {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

// encodeAny re-serializes a merged JSON structure, falling back to the
// original string on the (unreachable) encode failure.
func encodeAny(v any, fallback string) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(raw)
}

// encodeObject marshals a descriptor map back to its wire form.
func encodeObject(m map[string]any) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
