package normalize

import (
	"sort"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// Logger defines the logging interface used by the Normalizer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Normalizer makes one device's metadata tables self-consistent.
// All methods are idempotent and never fail; see the package
// documentation for the recoverable-data policy.
type Normalizer struct {
	logger Logger
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{logger: noopLogger{}}
}

// SetLogger sets the logger for the normalizer.
func (n *Normalizer) SetLogger(logger Logger) {
	n.logger = logger
}

// Apply runs every normalization pass on the device, in dependency
// order: later passes assume earlier passes already ran (orphan
// removal, for example, relies on point ids having been back-annotated
// onto the spec tables first).
func (n *Normalizer) Apply(d *point.Device) {
	if d == nil {
		return
	}
	d.EnsureContainers()

	n.unifyTypes(d)
	n.synthesiseStrategy(d)
	n.defaultStrategyFields(d)
	n.annotatePointIDs(d)
	n.repairValues(d)
	n.fixPercentScale(d)
	n.unionEnumRanges(d)
	n.dedupeAliases(d)
	n.removeOrphans(d)
	n.stripBitmapMetadata(d)
	n.canonicalizeUnits(d)
}

// unifyTypes coerces every declared type to the canonical enumeration,
// accepting known legacy spellings from the sharing API.
func (n *Normalizer) unifyTypes(d *point.Device) {
	for _, s := range d.Function {
		s.Type = point.ParseType(string(s.Type))
	}
	for _, s := range d.StatusRange {
		s.Type = point.ParseType(string(s.Type))
	}
	for _, e := range d.LocalStrategy {
		if e.ConfigItem != nil {
			e.ConfigItem.ValueType = point.ParseType(string(e.ConfigItem.ValueType))
		}
	}
}

// synthesiseStrategy builds a local strategy table from the spec
// descriptors when the source supplied none. IoT-platform accounts
// have no strategy endpoint, so without synthesis every spec entry
// would be an unroutable orphan. Declared point ids are kept; codes
// without one get sequential ids in sorted-code order so repeated runs
// produce the same table. A non-empty table is authoritative and is
// never touched.
func (n *Normalizer) synthesiseStrategy(d *point.Device) {
	if len(d.LocalStrategy) > 0 {
		return
	}

	type candidate struct {
		spec     *point.Spec
		writable bool
	}
	candidates := make(map[string]candidate)
	for code, s := range d.StatusRange {
		candidates[code] = candidate{spec: s}
	}
	for code, s := range d.Function {
		candidates[code] = candidate{spec: s, writable: true}
	}
	if len(candidates) == 0 {
		return
	}

	codes := make([]string, 0, len(candidates))
	used := make(map[int]bool)
	for code, c := range candidates {
		codes = append(codes, code)
		if c.spec.PointID > 0 {
			used[c.spec.PointID] = true
		}
	}
	sort.Strings(codes)

	next := 1
	for _, code := range codes {
		c := candidates[code]
		id := c.spec.PointID
		if id <= 0 {
			for used[next] {
				next++
			}
			id = next
			used[id] = true
		}
		mode := point.AccessReadOnly
		if c.writable {
			mode = point.AccessReadWrite
		}
		d.LocalStrategy[id] = &point.StrategyEntry{
			PointID:           id,
			StatusCode:        code,
			StatusCodeAliases: []string{},
			AccessMode:        mode,
			UseOpenAPI:        true,
			ValueConvert:      point.ValueConvertDefault,
			Synthesised:       true,
			ConfigItem: &point.ConfigItem{
				ValueDesc: c.spec.Values,
				ValueType: c.spec.Type,
			},
		}
	}
	n.logger.Debug("strategy table synthesised from spec descriptors",
		"device", d.ID, "entries", len(d.LocalStrategy))
}

// defaultStrategyFields populates optional strategy fields so later
// code never branches on absence: nil alias lists become empty, a
// missing point id is taken from the table key, and an unset value
// convert strategy becomes the literal default.
func (n *Normalizer) defaultStrategyFields(d *point.Device) {
	for id, e := range d.LocalStrategy {
		if e.StatusCodeAliases == nil {
			e.StatusCodeAliases = []string{}
		}
		if e.PointID == 0 {
			e.PointID = id
		}
		if e.ValueConvert == "" {
			e.ValueConvert = point.ValueConvertDefault
		}
		if e.AccessMode == "" {
			e.AccessMode = point.AccessReadWrite
		}
	}
}

// annotatePointIDs copies each strategy entry's point id onto the
// matching Function and StatusRange specs, matched by status code or
// by alias. The spec tables have no ids of their own on the wire; the
// strategy table is the authority.
func (n *Normalizer) annotatePointIDs(d *point.Device) {
	for _, e := range d.LocalStrategy {
		for code, s := range d.Function {
			if e.Matches(code) {
				s.PointID = e.PointID
			}
		}
		for code, s := range d.StatusRange {
			if e.Matches(code) {
				s.PointID = e.PointID
			}
		}
	}
}

// repairValues replaces unparseable value descriptors with the
// ErrorValue1 sentinel object so downstream descriptor access never
// hits a parse error. The raw string is preserved for diagnostics.
func (n *Normalizer) repairValues(d *point.Device) {
	repair := func(table string, s *point.Spec) {
		if _, ok := point.DecodeJSONObject(s.Values); ok {
			return
		}
		n.logger.Warn("malformed value descriptor wrapped in sentinel",
			"device", d.ID, "table", table, "code", s.Code)
		s.SetValues(map[string]any{point.ErrorValue1: s.Values})
	}
	for _, s := range d.Function {
		repair("function", s)
	}
	for _, s := range d.StatusRange {
		repair("status_range", s)
	}
	for _, e := range d.LocalStrategy {
		c := e.ConfigItem
		if c == nil || c.ValueDesc == "" {
			continue
		}
		if _, ok := point.DecodeJSONObject(c.ValueDesc); ok {
			continue
		}
		n.logger.Warn("malformed value descriptor wrapped in sentinel",
			"device", d.ID, "table", "local_strategy", "code", e.StatusCode)
		raw := c.ValueDesc
		c.ValueDesc = encodeObject(map[string]any{point.ErrorValue1: raw})
	}
}

// fixPercentScale infers the correct scale for percentage points whose
// declared maximum is 100 shifted by a power of ten (a common defect:
// max=1000 with scale=0 instead of scale=1).
func (n *Normalizer) fixPercentScale(d *point.Device) {
	fix := func(m map[string]any) bool {
		unit, _ := m["unit"].(string)
		if unit != "%" {
			return false
		}
		maxVal, ok := point.Number(m, "max")
		if !ok || maxVal <= 100 {
			return false
		}
		shift := 0
		v := maxVal
		for v > 100 {
			if int64(v)%10 != 0 {
				return false
			}
			v /= 10
			shift++
		}
		if v != 100 {
			return false
		}
		if cur, _ := point.Int(m, "scale"); cur == shift {
			return false
		}
		m["scale"] = float64(shift)
		return true
	}

	n.forEachDescriptor(d, func(code string, m map[string]any) bool {
		if fix(m) {
			n.logger.Debug("percentage scale corrected", "device", d.ID, "code", code)
			return true
		}
		return false
	})
}

// unionEnumRanges collects every observed enum value for a point from
// all three tables and writes the union back to each, so no table is
// missing options the others know about.
func (n *Normalizer) unionEnumRanges(d *point.Device) {
	// Gather per-code unions first, then write back, so the result does
	// not depend on table iteration order.
	unions := make(map[string][]string)

	gather := func(code string, m map[string]any) {
		if r := point.Strings(m, "range"); len(r) > 0 {
			unions[code] = unionStrings(unions[code], r)
		}
	}

	for code, s := range d.Function {
		if s.Type == point.TypeEnum {
			gather(code, s.DecodeValues())
		}
	}
	for code, s := range d.StatusRange {
		if s.Type == point.TypeEnum {
			gather(code, s.DecodeValues())
		}
	}
	ids := make([]int, 0, len(d.LocalStrategy))
	for id := range d.LocalStrategy {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		e := d.LocalStrategy[id]
		c := e.ConfigItem
		if c == nil || c.ValueType != point.TypeEnum {
			continue
		}
		if m, ok := point.DecodeJSONObject(c.ValueDesc); ok {
			gather(e.StatusCode, m)
		}
		// Enum mapping values are a second observation channel for the
		// same option list. Sorted so the union order is stable across
		// runs (idempotence).
		if len(c.EnumMapping) > 0 {
			mapped := make([]string, 0, len(c.EnumMapping))
			for _, v := range c.EnumMapping {
				mapped = append(mapped, v)
			}
			sort.Strings(mapped)
			unions[e.StatusCode] = unionStrings(unions[e.StatusCode], mapped)
		}
	}

	for code, union := range unions {
		n.forEachDescriptorFor(d, code, func(m map[string]any) bool {
			existing := point.Strings(m, "range")
			if equalStrings(existing, union) {
				return false
			}
			m["range"] = point.ToStringList(union)
			return true
		})
	}
}

// dedupeAliases merges any alias that also exists as an independent
// key in Status, StatusRange, or Function into the canonical status
// code entry, and deletes the duplicate key. After this pass an alias
// is only ever a name, never a table entry.
func (n *Normalizer) dedupeAliases(d *point.Device) {
	for _, e := range d.LocalStrategy {
		canonical := e.StatusCode
		if canonical == "" {
			continue
		}
		for _, alias := range e.StatusCodeAliases {
			if alias == canonical {
				continue
			}
			if v, ok := d.Status[alias]; ok {
				if _, exists := d.Status[canonical]; !exists {
					d.Status[canonical] = v
				}
				delete(d.Status, alias)
				n.logger.Debug("alias status folded into canonical code",
					"device", d.ID, "alias", alias, "code", canonical)
			}
			if s, ok := d.Function[alias]; ok {
				if _, exists := d.Function[canonical]; !exists {
					s.Code = canonical
					d.Function[canonical] = s
				}
				delete(d.Function, alias)
			}
			if s, ok := d.StatusRange[alias]; ok {
				if _, exists := d.StatusRange[canonical]; !exists {
					s.Code = canonical
					d.StatusRange[canonical] = s
				}
				delete(d.StatusRange, alias)
			}
		}
	}
}

// removeOrphans deletes Function and StatusRange entries that no
// strategy entry can route: without a point id there is no API call
// that can exercise them, so they are noise that would otherwise
// surface as mismatched-descriptor warnings later.
func (n *Normalizer) removeOrphans(d *point.Device) {
	orphaned := func(code string, s *point.Spec) bool {
		if s.PointID == 0 {
			return true
		}
		e, ok := d.LocalStrategy[s.PointID]
		return !ok || !e.Matches(code)
	}
	for code, s := range d.Function {
		if orphaned(code, s) {
			n.logger.Debug("orphan function entry removed", "device", d.ID, "code", code)
			delete(d.Function, code)
		}
	}
	for code, s := range d.StatusRange {
		if orphaned(code, s) {
			n.logger.Debug("orphan status_range entry removed", "device", d.ID, "code", code)
			delete(d.StatusRange, code)
		}
	}
}

// stripBitmapMetadata discards every descriptor sub-field except the
// bit-name label list for bitmap points. The numeric range fields are
// meaningless for bitmaps and trip descriptor-mismatch checks.
func (n *Normalizer) stripBitmapMetadata(d *point.Device) {
	strip := func(s *point.Spec) {
		if s.Type != point.TypeBitmap {
			return
		}
		m := s.DecodeValues()
		if point.IsSentinel(m) || len(m) <= 1 {
			return
		}
		kept := map[string]any{}
		if label, ok := m["label"]; ok {
			kept["label"] = label
		}
		if len(kept) == len(m) {
			return
		}
		s.SetValues(kept)
	}
	for _, s := range d.Function {
		strip(s)
	}
	for _, s := range d.StatusRange {
		strip(s)
	}
}

// canonicalizeUnits maps known non-standard unit strings to their
// canonical form, consistently across all three tables.
func (n *Normalizer) canonicalizeUnits(d *point.Device) {
	n.forEachDescriptor(d, func(_ string, m map[string]any) bool {
		unit, ok := m["unit"].(string)
		if !ok {
			return false
		}
		canonical, known := canonicalUnits[unit]
		if !known || canonical == unit {
			return false
		}
		m["unit"] = canonical
		return true
	})
}

// forEachDescriptor visits every decoded value descriptor in the three
// tables and writes it back when fn reports a change. Sentinel
// descriptors are skipped: there is nothing meaningful to edit.
func (n *Normalizer) forEachDescriptor(d *point.Device, fn func(code string, m map[string]any) bool) {
	for code, s := range d.Function {
		m := s.DecodeValues()
		if !point.IsSentinel(m) && fn(code, m) {
			s.SetValues(m)
		}
	}
	for code, s := range d.StatusRange {
		m := s.DecodeValues()
		if !point.IsSentinel(m) && fn(code, m) {
			s.SetValues(m)
		}
	}
	for _, e := range d.LocalStrategy {
		c := e.ConfigItem
		if c == nil || c.ValueDesc == "" {
			continue
		}
		m, ok := point.DecodeJSONObject(c.ValueDesc)
		if !ok || point.IsSentinel(m) {
			continue
		}
		if fn(e.StatusCode, m) {
			c.ValueDesc = encodeObject(m)
		}
	}
}

// forEachDescriptorFor is forEachDescriptor restricted to one code.
func (n *Normalizer) forEachDescriptorFor(d *point.Device, code string, fn func(m map[string]any) bool) {
	n.forEachDescriptor(d, func(c string, m map[string]any) bool {
		if c != code {
			return false
		}
		return fn(m)
	})
}
