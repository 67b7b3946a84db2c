package point

import (
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Type
	}{
		{"canonical boolean", "Boolean", TypeBoolean},
		{"legacy bool", "bool", TypeBoolean},
		{"legacy lowercase boolean", "boolean", TypeBoolean},
		{"canonical integer", "Integer", TypeInteger},
		{"legacy value", "value", TypeInteger},
		{"legacy uppercase value", "VALUE", TypeInteger},
		{"canonical enum", "Enum", TypeEnum},
		{"legacy enum", "enum", TypeEnum},
		{"canonical json", "Json", TypeJSON},
		{"legacy json", "json", TypeJSON},
		{"canonical raw", "Raw", TypeRaw},
		{"canonical bitmap", "Bitmap", TypeBitmap},
		{"legacy str", "str", TypeString},
		{"unknown passes through", "Mystery", Type("Mystery")},
		{"empty passes through", "", Type("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseType(tt.input); got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.Valid() {
			t.Errorf("expected %q to be valid", typ)
		}
	}
	if Type("Mystery").Valid() {
		t.Error("expected unknown type to be invalid")
	}
	if Type("").Valid() {
		t.Error("expected empty type to be invalid")
	}
}

func TestDecodeValuesSentinel(t *testing.T) {
	s := &Spec{Code: "temp_current", Type: TypeInteger, Values: "oops"}

	m := s.DecodeValues()
	if !IsSentinel(m) {
		t.Fatal("expected sentinel for unparseable values")
	}
	if m[ErrorValue1] != "oops" {
		t.Errorf("sentinel should preserve raw string, got %v", m[ErrorValue1])
	}
}

func TestDecodeValuesValid(t *testing.T) {
	s := &Spec{
		Code:   "temp_current",
		Type:   TypeInteger,
		Values: `{"min":-100,"max":500,"scale":1,"step":1,"unit":"c"}`,
	}

	m := s.DecodeValues()
	if IsSentinel(m) {
		t.Fatal("unexpected sentinel for valid values")
	}

	if got, ok := Number(m, "min"); !ok || got != -100 {
		t.Errorf("min = %v (%v), want -100", got, ok)
	}
	if got, ok := Number(m, "max"); !ok || got != 500 {
		t.Errorf("max = %v (%v), want 500", got, ok)
	}
	if got, ok := Int(m, "scale"); !ok || got != 1 {
		t.Errorf("scale = %v (%v), want 1", got, ok)
	}
}

func TestDecodeValuesEmpty(t *testing.T) {
	s := &Spec{Code: "switch_1", Type: TypeBoolean}

	m := s.DecodeValues()
	if IsSentinel(m) {
		t.Fatal("empty values must not be a sentinel")
	}
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestSetValuesRoundTrip(t *testing.T) {
	s := &Spec{Code: "fan_speed", Type: TypeEnum}
	s.SetValues(map[string]any{"range": []any{"low", "mid", "high"}})

	got := Strings(s.DecodeValues(), "range")
	want := []string{"low", "mid", "high"}
	if len(got) != len(want) {
		t.Fatalf("range = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNumberAcceptsQuotedValues(t *testing.T) {
	m := map[string]any{"min": "0", "max": float64(1000), "scale": "2"}

	if got, ok := Number(m, "min"); !ok || got != 0 {
		t.Errorf("quoted min = %v (%v), want 0", got, ok)
	}
	if got, ok := Number(m, "max"); !ok || got != 1000 {
		t.Errorf("max = %v (%v), want 1000", got, ok)
	}
	if got, ok := Int(m, "scale"); !ok || got != 2 {
		t.Errorf("quoted scale = %v (%v), want 2", got, ok)
	}
	if _, ok := Number(m, "absent"); ok {
		t.Error("absent key must not report ok")
	}
}

func TestStrategyEntryMatches(t *testing.T) {
	e := &StrategyEntry{
		PointID:           1,
		StatusCode:        "switch_led",
		StatusCodeAliases: []string{"led_switch", "switch"},
	}

	if !e.Matches("switch_led") {
		t.Error("should match status code")
	}
	if !e.Matches("led_switch") {
		t.Error("should match alias")
	}
	if e.Matches("switch_2") {
		t.Error("should not match unrelated code")
	}
}

func TestStrategyEntryClone(t *testing.T) {
	e := &StrategyEntry{
		PointID:           20,
		StatusCode:        "bright_value",
		StatusCodeAliases: []string{"bright_value_v2"},
		ConfigItem: &ConfigItem{
			ValueType:   TypeInteger,
			EnumMapping: map[string]string{"0": "off"},
		},
	}

	c := e.Clone()
	c.StatusCodeAliases[0] = "changed"
	c.ConfigItem.EnumMapping["0"] = "changed"

	if e.StatusCodeAliases[0] != "bright_value_v2" {
		t.Error("clone shares alias slice with original")
	}
	if e.ConfigItem.EnumMapping["0"] != "off" {
		t.Error("clone shares enum mapping with original")
	}
}
