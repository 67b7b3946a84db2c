package merge

import (
	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// minEnumOverlap is the overlap guard for enum range union: two range
// lists are only merged when they already share more than this many
// elements. Lists that share at most one element are treated as
// unrelated enumerations that happen to collide on a code.
const minEnumOverlap = 1

// crossRepairValues fixes malformed value descriptors using the other
// side: when exactly one side of a shared point parses, the parseable
// descriptor is copied across; when neither parses, both sides get the
// paired sentinel preserving both raw strings.
func (e *Engine) crossRepairValues(a, b *point.Device) {
	repair := func(deviceID, table, code string, va, vb *string) {
		ma, okA := point.DecodeJSONObject(*va)
		mb, okB := point.DecodeJSONObject(*vb)
		// A sentinel left behind by the normalizer is still "broken":
		// the other side may be able to supply the real descriptor.
		brokenA := !okA || point.IsSentinel(ma)
		brokenB := !okB || point.IsSentinel(mb)
		switch {
		case !brokenA && !brokenB:
			return
		case !brokenA:
			*vb = *va
		case !brokenB:
			*va = *vb
		case *va == *vb:
			// Both sides already hold the same (paired) sentinel from
			// an earlier merge; nothing further to reconcile.
			return
		default:
			e.logger.Warn("value descriptor malformed on both sides",
				"device", deviceID, "table", table, "code", code)
			paired := encodeObject(map[string]any{
				point.ErrorValue1: sentinelRaw(ma, *va),
				point.ErrorValue2: sentinelRaw(mb, *vb),
			})
			*va = paired
			*vb = paired
		}
	}

	for code, sa := range a.Function {
		if sb, ok := b.Function[code]; ok {
			repair(a.ID, "function", code, &sa.Values, &sb.Values)
		}
	}
	for code, sa := range a.StatusRange {
		if sb, ok := b.StatusRange[code]; ok {
			repair(a.ID, "status_range", code, &sa.Values, &sb.Values)
		}
	}
	for _, ea := range a.LocalStrategy {
		eb, ok := strategyCounterpart(b, ea)
		if !ok || ea.ConfigItem == nil || eb.ConfigItem == nil {
			continue
		}
		if ea.ConfigItem.ValueDesc == "" && eb.ConfigItem.ValueDesc == "" {
			continue
		}
		repair(a.ID, "local_strategy", ea.StatusCode,
			&ea.ConfigItem.ValueDesc, &eb.ConfigItem.ValueDesc)
	}
}

// sentinelRaw recovers the original raw string from a sentinel wrap,
// falling back to the descriptor string itself.
func sentinelRaw(m map[string]any, fallback string) string {
	if point.IsSentinel(m) {
		if s, ok := m[point.ErrorValue1].(string); ok {
			return s
		}
	}
	return fallback
}

// alignDescriptors computes one aligned value descriptor per shared
// point and writes it back to both sides: the loosest numeric bounds
// (max of max and scale, min of min and step) and the union of enum
// ranges, guarded by minEnumOverlap.
func (e *Engine) alignDescriptors(a, b *point.Device) {
	for code, sa := range a.StatusRange {
		if sb, ok := b.StatusRange[code]; ok {
			alignSpecPair(sa, sb)
		}
	}
	for code, sa := range a.Function {
		if sb, ok := b.Function[code]; ok {
			alignSpecPair(sa, sb)
		}
	}
	for _, ea := range a.LocalStrategy {
		eb, ok := strategyCounterpart(b, ea)
		if !ok || ea.ConfigItem == nil || eb.ConfigItem == nil {
			continue
		}
		ma, okA := point.DecodeJSONObject(ea.ConfigItem.ValueDesc)
		mb, okB := point.DecodeJSONObject(eb.ConfigItem.ValueDesc)
		if !okA || !okB || point.IsSentinel(ma) || point.IsSentinel(mb) {
			continue
		}
		aligned := alignedDescriptor(ma, mb)
		ea.ConfigItem.ValueDesc = encodeObject(aligned)
		eb.ConfigItem.ValueDesc = encodeObject(cloneDescriptor(aligned))
	}
}

// alignSpecPair aligns the descriptors of one spec pair in place.
func alignSpecPair(sa, sb *point.Spec) {
	ma := sa.DecodeValues()
	mb := sb.DecodeValues()
	if point.IsSentinel(ma) || point.IsSentinel(mb) {
		return
	}
	aligned := alignedDescriptor(ma, mb)
	sa.SetValues(aligned)
	sb.SetValues(cloneDescriptor(aligned))
}

// alignedDescriptor merges two descriptor maps field by field. Fields
// outside the aligned set keep the left value; fields present on only
// one side are carried through unchanged.
func alignedDescriptor(ma, mb map[string]any) map[string]any {
	out := cloneDescriptor(mb)
	for k, v := range ma {
		out[k] = v
	}

	alignNumeric(out, ma, mb, "min", pickMin)
	alignNumeric(out, ma, mb, "max", pickMax)
	alignNumeric(out, ma, mb, "scale", pickMax)
	alignNumeric(out, ma, mb, "step", pickMin)
	alignNumeric(out, ma, mb, "maxlen", pickMax)

	ra := point.Strings(ma, "range")
	rb := point.Strings(mb, "range")
	switch {
	case len(ra) == 0 && len(rb) > 0:
		out["range"] = point.ToStringList(rb)
	case len(ra) > 0 && len(rb) > 0 && !equalStrings(ra, rb):
		if overlapCount(ra, rb) > minEnumOverlap {
			out["range"] = point.ToStringList(unionStrings(ra, rb))
		} else {
			out["range"] = point.ToStringList(ra)
		}
	}

	return out
}

// alignNumeric writes pick(left, right) for one numeric field when both
// sides declare it; a single-sided field keeps its declared value.
func alignNumeric(out, ma, mb map[string]any, key string, pick func(x, y float64) float64) {
	va, okA := point.Number(ma, key)
	vb, okB := point.Number(mb, key)
	switch {
	case okA && okB:
		out[key] = pick(va, vb)
	case okB && !okA:
		out[key] = vb
	}
}

func pickMin(x, y float64) float64 {
	if x < y {
		return x
	}
	return y
}

func pickMax(x, y float64) float64 {
	if x > y {
		return x
	}
	return y
}

// cloneDescriptor shallow-copies a descriptor map. Descriptor values
// are scalars and string lists; the lists are copied too so the two
// sides do not share slice backing.
func cloneDescriptor(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if list, ok := v.([]any); ok {
			cpy := make([]any, len(list))
			copy(cpy, list)
			out[k] = cpy
			continue
		}
		out[k] = v
	}
	return out
}

// unionStrings appends the elements of b not already in a, preserving
// insertion order of a then b.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// overlapCount returns how many distinct elements a and b share.
func overlapCount(a, b []string) int {
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	count := 0
	for _, v := range b {
		if seen[v] {
			seen[v] = false
			count++
		}
	}
	return count
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
