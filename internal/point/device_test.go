package point

import "testing"

func testDevice() *Device {
	d := New("bf1234")
	d.Function["switch_1"] = &Spec{Code: "switch_1", Type: TypeBoolean, PointID: 1}
	d.StatusRange["switch_1"] = &Spec{Code: "switch_1", Type: TypeBoolean, PointID: 1}
	d.StatusRange["cur_power"] = &Spec{Code: "cur_power", Type: TypeInteger, PointID: 19}
	d.LocalStrategy[1] = &StrategyEntry{
		PointID:           1,
		StatusCode:        "switch_1",
		StatusCodeAliases: []string{"switch"},
		AccessMode:        AccessReadWrite,
	}
	d.LocalStrategy[19] = &StrategyEntry{
		PointID:    19,
		StatusCode: "cur_power",
		AccessMode: AccessReadOnly,
	}
	return d
}

func TestAdoptContainers(t *testing.T) {
	a := testDevice()
	b := New("bf1234")
	b.AdoptContainers(a)

	a.Status["switch_1"] = true
	if v, ok := b.Status["switch_1"]; !ok || v != true {
		t.Fatal("write through a not visible through b")
	}

	b.Status["cur_power"] = float64(42)
	if v, ok := a.Status["cur_power"]; !ok || v != float64(42) {
		t.Fatal("write through b not visible through a")
	}

	if !a.SharesContainers(b) {
		t.Error("SharesContainers should report shared status container")
	}
}

func TestStrategyByCode(t *testing.T) {
	d := testDevice()

	if e, ok := d.StrategyByCode("switch_1"); !ok || e.PointID != 1 {
		t.Errorf("lookup by status code failed: %v %v", e, ok)
	}
	if e, ok := d.StrategyByCode("switch"); !ok || e.PointID != 1 {
		t.Errorf("lookup by alias failed: %v %v", e, ok)
	}
	if _, ok := d.StrategyByCode("nonexistent"); ok {
		t.Error("lookup of unknown code should fail")
	}
}

func TestMaxPointID(t *testing.T) {
	d := testDevice()
	if got := d.MaxPointID(); got != 19 {
		t.Errorf("MaxPointID = %d, want 19", got)
	}
	if got := New("x").MaxPointID(); got != 0 {
		t.Errorf("MaxPointID on empty device = %d, want 0", got)
	}
}

func TestFindPoint(t *testing.T) {
	d := testDevice()

	tests := []struct {
		name           string
		codes          []string
		filter         Type
		preferFunction bool
		wantCode       string
		wantNil        bool
	}{
		{"function first", []string{"switch_1"}, "", true, "switch_1", false},
		{"status range fallback", []string{"cur_power"}, "", true, "cur_power", false},
		{"first matching code wins", []string{"missing", "cur_power"}, "", false, "cur_power", false},
		{"type filter excludes", []string{"switch_1"}, TypeInteger, true, "", true},
		{"type filter matches", []string{"cur_power"}, TypeInteger, false, "cur_power", false},
		{"no match", []string{"humidity"}, "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindPoint(d, tt.codes, tt.filter, tt.preferFunction)
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.Code != tt.wantCode {
				t.Errorf("FindPoint = %+v, want code %q", got, tt.wantCode)
			}
		})
	}
}
