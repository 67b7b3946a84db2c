package normalize

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// snapshotDevice builds a device with the defects each pass repairs.
func snapshotDevice() *point.Device {
	d := point.New("bf0001")
	d.Category = "cz"

	d.Function["switch_1"] = &point.Spec{Code: "switch_1", Type: "bool", Values: "{}"}
	d.Function["fan_speed"] = &point.Spec{
		Code: "fan_speed", Type: "enum",
		Values: `{"range":["low","high"]}`,
	}
	d.StatusRange["switch_1"] = &point.Spec{Code: "switch_1", Type: "Boolean", Values: "{}"}
	d.StatusRange["battery"] = &point.Spec{
		Code: "battery", Type: "value",
		Values: `{"unit":"%","min":0,"max":1000,"scale":0,"step":1}`,
	}
	d.StatusRange["fan_speed"] = &point.Spec{
		Code: "fan_speed", Type: "Enum",
		Values: `{"range":["low","mid"]}`,
	}
	d.StatusRange["fault"] = &point.Spec{
		Code: "fault", Type: "Bitmap",
		Values: `{"label":["ov_cr","ov_vol"],"min":0,"max":3,"scale":0}`,
	}
	d.StatusRange["temp"] = &point.Spec{
		Code: "temp", Type: "Integer",
		Values: `{"unit":"℃","min":-200,"max":500,"scale":1}`,
	}
	// No strategy entry ever routes this one.
	d.StatusRange["ghost"] = &point.Spec{Code: "ghost", Type: "Integer", Values: "{}"}

	d.LocalStrategy[1] = &point.StrategyEntry{
		StatusCode:        "switch_1",
		StatusCodeAliases: []string{"switch"},
	}
	d.LocalStrategy[7] = &point.StrategyEntry{StatusCode: "battery"}
	d.LocalStrategy[8] = &point.StrategyEntry{
		StatusCode: "fan_speed",
		ConfigItem: &point.ConfigItem{
			ValueType:   "enum",
			ValueDesc:   `{"range":["low","sleep"]}`,
			EnumMapping: map[string]string{"3": "turbo"},
		},
	}
	d.LocalStrategy[12] = &point.StrategyEntry{StatusCode: "fault"}
	d.LocalStrategy[15] = &point.StrategyEntry{StatusCode: "temp"}

	// The alias also exists as an independent status key.
	d.Status["switch"] = true

	return d
}

func TestApplyIdempotent(t *testing.T) {
	n := New()

	once := snapshotDevice()
	n.Apply(once)

	twice := snapshotDevice()
	n.Apply(twice)
	n.Apply(twice)

	if !reflect.DeepEqual(decodeAll(t, once), decodeAll(t, twice)) {
		t.Errorf("second Apply changed the device:\nonce:  %#v\ntwice: %#v",
			decodeAll(t, once), decodeAll(t, twice))
	}
}

// decodeAll renders the metadata tables with descriptors decoded, so
// idempotence comparison ignores JSON key ordering in Values strings.
func decodeAll(t *testing.T, d *point.Device) map[string]any {
	t.Helper()
	out := map[string]any{
		"status": d.Status,
	}
	fn := map[string]any{}
	for code, s := range d.Function {
		fn[code] = []any{s.Type, s.PointID, s.DecodeValues()}
	}
	sr := map[string]any{}
	for code, s := range d.StatusRange {
		sr[code] = []any{s.Type, s.PointID, s.DecodeValues()}
	}
	ls := map[int]any{}
	for id, e := range d.LocalStrategy {
		entry := []any{e.StatusCode, e.StatusCodeAliases, e.ValueConvert}
		if e.ConfigItem != nil {
			var m map[string]any
			_ = json.Unmarshal([]byte(e.ConfigItem.ValueDesc), &m)
			entry = append(entry, e.ConfigItem.ValueType, m)
		}
		ls[id] = entry
	}
	out["function"] = fn
	out["status_range"] = sr
	out["local_strategy"] = ls
	return out
}

func TestTypeUnification(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	if got := d.Function["switch_1"].Type; got != point.TypeBoolean {
		t.Errorf("function type = %q, want Boolean", got)
	}
	if got := d.StatusRange["battery"].Type; got != point.TypeInteger {
		t.Errorf("status_range type = %q, want Integer", got)
	}
	if got := d.LocalStrategy[8].ConfigItem.ValueType; got != point.TypeEnum {
		t.Errorf("config item type = %q, want Enum", got)
	}
}

func TestDefaultStrategyFields(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	for id, e := range d.LocalStrategy {
		if e.StatusCodeAliases == nil {
			t.Errorf("entry %d: aliases not defaulted", id)
		}
		if e.PointID != id {
			t.Errorf("entry %d: point id = %d, want table key", id, e.PointID)
		}
		if e.ValueConvert == "" {
			t.Errorf("entry %d: value convert not defaulted", id)
		}
	}
}

func TestPointIDBackAnnotation(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	if got := d.Function["switch_1"].PointID; got != 1 {
		t.Errorf("function point id = %d, want 1", got)
	}
	if got := d.StatusRange["battery"].PointID; got != 7 {
		t.Errorf("status_range point id = %d, want 7", got)
	}
}

func TestMalformedValuesSentinel(t *testing.T) {
	d := point.New("bf0002")
	d.StatusRange["colour_data"] = &point.Spec{
		Code: "colour_data", Type: point.TypeJSON, Values: "oops",
	}
	d.LocalStrategy[5] = &point.StrategyEntry{
		StatusCode: "colour_data",
		ConfigItem: &point.ConfigItem{ValueType: point.TypeJSON, ValueDesc: "not json either"},
	}
	New().Apply(d)

	m := d.StatusRange["colour_data"].DecodeValues()
	if m[point.ErrorValue1] != "oops" {
		t.Errorf("spec sentinel = %v, want raw string preserved", m)
	}

	cm, ok := point.DecodeJSONObject(d.LocalStrategy[5].ConfigItem.ValueDesc)
	if !ok || cm[point.ErrorValue1] != "not json either" {
		t.Errorf("config item sentinel = %v (%v)", cm, ok)
	}
}

func TestPercentScaleCorrection(t *testing.T) {
	tests := []struct {
		name      string
		values    string
		wantScale float64
		wantFix   bool
	}{
		{"max 1000 becomes scale 1", `{"unit":"%","max":1000,"scale":0}`, 1, true},
		{"max 10000 becomes scale 2", `{"unit":"%","max":10000,"scale":0}`, 2, true},
		{"max 100 untouched", `{"unit":"%","max":100,"scale":0}`, 0, false},
		{"max 500 untouched", `{"unit":"%","max":500,"scale":0}`, 0, false},
		{"non-percent untouched", `{"unit":"W","max":1000,"scale":0}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := point.New("bf0003")
			d.StatusRange["p"] = &point.Spec{Code: "p", Type: point.TypeInteger, Values: tt.values}
			d.LocalStrategy[2] = &point.StrategyEntry{StatusCode: "p"}
			New().Apply(d)

			m := d.StatusRange["p"].DecodeValues()
			scale, _ := point.Number(m, "scale")
			if scale != tt.wantScale {
				t.Errorf("scale = %v, want %v", scale, tt.wantScale)
			}
			if tt.wantFix {
				maxVal, _ := point.Number(m, "max")
				for i := float64(0); i < scale; i++ {
					maxVal /= 10
				}
				if maxVal != 100 {
					t.Errorf("max / 10^scale = %v, want 100", maxVal)
				}
			}
		})
	}
}

func TestEnumRangeUnion(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	want := []string{"low", "high", "mid", "sleep", "turbo"}

	for name, m := range map[string]map[string]any{
		"function":     d.Function["fan_speed"].DecodeValues(),
		"status_range": d.StatusRange["fan_speed"].DecodeValues(),
	} {
		if got := point.Strings(m, "range"); !reflect.DeepEqual(got, want) {
			t.Errorf("%s range = %v, want %v", name, got, want)
		}
	}

	cm, _ := point.DecodeJSONObject(d.LocalStrategy[8].ConfigItem.ValueDesc)
	if got := point.Strings(cm, "range"); !reflect.DeepEqual(got, want) {
		t.Errorf("strategy range = %v, want %v", got, want)
	}
}

func TestAliasDeduplication(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	if _, ok := d.Status["switch"]; ok {
		t.Error("alias key should be removed from status")
	}
	if v, ok := d.Status["switch_1"]; !ok || v != true {
		t.Errorf("alias value not folded into canonical code: %v (%v)", v, ok)
	}
}

func TestOrphanRemoval(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	if _, ok := d.StatusRange["ghost"]; ok {
		t.Error("unroutable status_range entry should be removed")
	}
	if _, ok := d.StatusRange["battery"]; !ok {
		t.Error("routable entry must survive orphan removal")
	}
}

// iotPlatformDevice builds a device the way an IoT-platform account
// delivers it: full spec tables, no strategy table, no dp ids.
func iotPlatformDevice() *point.Device {
	d := point.New("bf0002")
	d.Category = "cz"
	d.Status["switch_1"] = true
	d.Status["cur_power"] = float64(1250)
	d.Function["switch_1"] = &point.Spec{Code: "switch_1", Type: "Boolean", Values: "{}"}
	d.Function["countdown_1"] = &point.Spec{
		Code: "countdown_1", Type: "Integer",
		Values: `{"unit":"s","min":0,"max":86400,"scale":0,"step":1}`,
	}
	d.StatusRange["switch_1"] = &point.Spec{Code: "switch_1", Type: "Boolean", Values: "{}"}
	d.StatusRange["cur_power"] = &point.Spec{
		Code: "cur_power", Type: "Integer",
		Values: `{"unit":"W","min":0,"max":50000,"scale":1,"step":1}`,
	}
	return d
}

func TestStrategySynthesis(t *testing.T) {
	d := iotPlatformDevice()
	New().Apply(d)

	if len(d.Function) != 2 || len(d.StatusRange) != 2 {
		t.Fatalf("spec tables gutted without a strategy table: fn=%d sr=%d",
			len(d.Function), len(d.StatusRange))
	}
	if len(d.LocalStrategy) != 3 {
		t.Fatalf("synthesised %d strategy entries, want 3", len(d.LocalStrategy))
	}

	sw, ok := d.StrategyByCode("switch_1")
	if !ok {
		t.Fatal("no strategy entry for switch_1")
	}
	if sw.AccessMode != point.AccessReadWrite {
		t.Errorf("function-backed code access = %q, want rw", sw.AccessMode)
	}
	power, ok := d.StrategyByCode("cur_power")
	if !ok {
		t.Fatal("no strategy entry for cur_power")
	}
	if power.AccessMode != point.AccessReadOnly {
		t.Errorf("status-only code access = %q, want ro", power.AccessMode)
	}
	if s := point.FindPoint(d, []string{"cur_power"}, point.TypeInteger, false); s == nil {
		t.Error("FindPoint cannot locate a synthesised point")
	}

	// Ids must be stable across runs and the table untouched once built.
	again := iotPlatformDevice()
	n := New()
	n.Apply(again)
	n.Apply(again)
	if sw2, _ := again.StrategyByCode("switch_1"); sw2.PointID != sw.PointID {
		t.Errorf("synthesised id changed between runs: %d vs %d", sw2.PointID, sw.PointID)
	}
}

func TestStrategySynthesisKeepsSuppliedTable(t *testing.T) {
	d := snapshotDevice()
	before := len(d.LocalStrategy)
	New().Apply(d)

	if len(d.LocalStrategy) != before {
		t.Errorf("supplied strategy table grew from %d to %d entries",
			before, len(d.LocalStrategy))
	}
}

func TestBitmapMetadataStripping(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	m := d.StatusRange["fault"].DecodeValues()
	if len(m) != 1 {
		t.Errorf("bitmap descriptor should keep only label, got %v", m)
	}
	if got := point.Strings(m, "label"); !reflect.DeepEqual(got, []string{"ov_cr", "ov_vol"}) {
		t.Errorf("bitmap label = %v", got)
	}
}

func TestUnitCanonicalization(t *testing.T) {
	d := snapshotDevice()
	New().Apply(d)

	m := d.StatusRange["temp"].DecodeValues()
	if got, _ := m["unit"].(string); got != "°C" {
		t.Errorf("unit = %q, want °C", got)
	}
}
