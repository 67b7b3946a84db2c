package merge

import (
	"strings"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// Side identifies which input of a pairwise comparison won.
type Side int

// Side values. NoDecision means neither type is more plausible; the
// caller keeps the left value without logging.
const (
	NoDecision Side = iota
	Left
	Right
)

// MostPlausible decides which of two conflicting declared types is more
// likely correct for a point whose current live value is live (nil when
// no status has been observed yet).
//
// Precedence, first match wins:
//
//	(a) an empty type loses to any declared type
//	(b) Raw loses to any recognized concrete type
//	(c) String loses to Json
//	(d) Boolean wins when the live value is boolean-like
//	(e) otherwise no decision
func MostPlausible(a, b point.Type, live any) Side {
	switch {
	case a == b:
		return NoDecision
	case a == "" && b != "":
		return Right
	case b == "" && a != "":
		return Left
	case a == point.TypeRaw && b.Valid():
		return Right
	case b == point.TypeRaw && a.Valid():
		return Left
	case a == point.TypeString && b == point.TypeJSON:
		return Right
	case b == point.TypeString && a == point.TypeJSON:
		return Left
	case a == point.TypeBoolean && booleanLike(live):
		return Left
	case b == point.TypeBoolean && booleanLike(live):
		return Right
	default:
		return NoDecision
	}
}

// booleanLike reports whether a live status value is literally a
// boolean or one of the boolean string spellings.
func booleanLike(v any) bool {
	switch val := v.(type) {
	case bool:
		return true
	case string:
		lower := strings.ToLower(val)
		return lower == "true" || lower == "false"
	default:
		return false
	}
}

// arbitrateTypes applies MostPlausible to every point declared with a
// different type on the two sides, in all three tables, and propagates
// the winning type together with its paired value descriptor to the
// losing side.
func (e *Engine) arbitrateTypes(a, b *point.Device) {
	arbitrate := func(sa, sb *point.Spec) {
		if sa.Type == sb.Type {
			return
		}
		switch MostPlausible(sa.Type, sb.Type, liveValue(a, b, sa.Code)) {
		case Left:
			sb.Type = sa.Type
			sb.Values = sa.Values
		case Right:
			sa.Type = sb.Type
			sa.Values = sb.Values
		case NoDecision:
			// Keep left, no log: the declared types are incomparable
			// and the smart merge will surface the values disagreement.
		}
	}

	for code, sa := range a.StatusRange {
		if sb, ok := b.StatusRange[code]; ok {
			arbitrate(sa, sb)
		}
	}
	for code, sa := range a.Function {
		if sb, ok := b.Function[code]; ok {
			arbitrate(sa, sb)
		}
	}
	for _, ea := range a.LocalStrategy {
		eb, ok := strategyCounterpart(b, ea)
		if !ok || ea.ConfigItem == nil || eb.ConfigItem == nil {
			continue
		}
		ca, cb := ea.ConfigItem, eb.ConfigItem
		if ca.ValueType == cb.ValueType {
			continue
		}
		switch MostPlausible(ca.ValueType, cb.ValueType, liveValue(a, b, ea.StatusCode)) {
		case Left:
			cb.ValueType = ca.ValueType
			cb.ValueDesc = ca.ValueDesc
		case Right:
			ca.ValueType = cb.ValueType
			ca.ValueDesc = cb.ValueDesc
		case NoDecision:
		}
	}
}

// reconcileWritePreference resolves how matching strategy entries issue
// writes: prefer the side that does not need the OpenAPI-style call,
// then the side that does not need a shadow-property update. The value
// convert strategy follows the same pass because it rides on the same
// entry pairing: a non-default transform beats the literal default.
func (e *Engine) reconcileWritePreference(a, b *point.Device) {
	for _, ea := range a.LocalStrategy {
		eb, ok := strategyCounterpart(b, ea)
		if !ok {
			continue
		}

		winner, loser := ea, eb
		switch {
		case ea.UseOpenAPI && !eb.UseOpenAPI:
			winner, loser = eb, ea
		case ea.UseOpenAPI == eb.UseOpenAPI && ea.PropertyUpdate && !eb.PropertyUpdate:
			winner, loser = eb, ea
		}
		loser.UseOpenAPI = winner.UseOpenAPI
		loser.PropertyUpdate = winner.PropertyUpdate
		loser.StatusCode = winner.StatusCode

		if ea.ValueConvert == point.ValueConvertDefault && eb.ValueConvert != point.ValueConvertDefault && eb.ValueConvert != "" {
			ea.ValueConvert = eb.ValueConvert
		}
		if eb.ValueConvert == point.ValueConvertDefault && ea.ValueConvert != point.ValueConvertDefault && ea.ValueConvert != "" {
			eb.ValueConvert = ea.ValueConvert
		}
	}
}

// strategyCounterpart finds the entry in other that addresses the same
// logical point as entry: same point id when both tables key it, or a
// status-code/alias match otherwise.
func strategyCounterpart(other *point.Device, entry *point.StrategyEntry) (*point.StrategyEntry, bool) {
	if e, ok := other.LocalStrategy[entry.PointID]; ok {
		return e, true
	}
	for _, e := range other.LocalStrategy {
		if e.Matches(entry.StatusCode) || entry.Matches(e.StatusCode) {
			return e, true
		}
	}
	return nil, false
}

// liveValue returns the current observed status for a code from either
// side, preferring left.
func liveValue(a, b *point.Device, code string) any {
	if v, ok := a.Status[code]; ok {
		return v
	}
	if v, ok := b.Status[code]; ok {
		return v
	}
	return nil
}
