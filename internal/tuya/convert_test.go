package tuya

import (
	"testing"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

func TestConvertDevice(t *testing.T) {
	model := DeviceModel{
		ID:          "bf9x",
		Name:        "Garage Plug",
		Category:    "cz",
		ProductID:   "p100",
		ProductName: "Smart Plug",
		LocalKey:    "lk",
		UUID:        "uuid-1",
		TimeZone:    "+01:00",
		Sub:         false,
		Online:      true,
		ActiveTime:  1700000000,
		Status: []StatusEntry{
			{Code: "switch_1", Value: true},
			{Code: "cur_power", Value: float64(1234)},
		},
	}
	spec := &SpecificationResult{
		Category: "cz",
		Functions: []SpecEntry{
			{Code: "switch_1", Type: "Boolean", Values: "{}", DPID: 1},
		},
		Status: []SpecEntry{
			{Code: "switch_1", Type: "Boolean", Values: "{}", DPID: 1},
			{Code: "cur_power", Type: "value", Values: `{"min":0,"max":26000,"scale":1,"unit":"W"}`, DPID: 19},
		},
	}
	strategy := []DPStatusRelation{
		{
			DPID:         1,
			StatusCode:   "switch_1",
			ValueType:    "Boolean",
			ValueDesc:    "{}",
			SupportLocal: true,
		},
		{
			DPID:         19,
			StatusCode:   "cur_power",
			ValueType:    "value",
			ValueDesc:    `{"min":0,"max":26000,"scale":1,"unit":"W"}`,
			SupportLocal: false,
		},
		{DPID: 0, StatusCode: "ghost"}, // no point id: dropped
	}

	d := ConvertDevice(model, spec, strategy, "sharing")

	if d.ID != "bf9x" || d.Name != "Garage Plug" || d.Category != "cz" {
		t.Errorf("identity fields not carried: %+v", d)
	}
	if d.Source != "sharing" {
		t.Errorf("source = %q", d.Source)
	}
	if d.Status["switch_1"] != true {
		t.Error("status not carried")
	}
	if got := d.StatusRange["cur_power"]; got == nil || got.Type != point.TypeInteger {
		t.Errorf("legacy type spelling not parsed: %+v", got)
	}
	if got := d.Function["switch_1"]; got == nil || got.PointID != 1 {
		t.Errorf("function entry = %+v", got)
	}

	entry := d.LocalStrategy[19]
	if entry == nil {
		t.Fatal("strategy entry for dp 19 missing")
	}
	if !entry.UseOpenAPI {
		t.Error("supportLocal=false must map to the OpenAPI write path")
	}
	if entry.ValueConvert != point.ValueConvertDefault {
		t.Errorf("empty valueConvert should default, got %q", entry.ValueConvert)
	}
	if entry.ConfigItem == nil || entry.ConfigItem.ValueType != point.TypeInteger {
		t.Errorf("config item = %+v", entry.ConfigItem)
	}
	if d.LocalStrategy[1].UseOpenAPI {
		t.Error("supportLocal=true must stay off the OpenAPI path")
	}
	if _, ok := d.LocalStrategy[0]; ok {
		t.Error("zero point id must be dropped")
	}
}

func TestConvertDeviceNilSpec(t *testing.T) {
	d := ConvertDevice(DeviceModel{ID: "x"}, nil, nil, "openapi")
	if d.Status == nil || d.Function == nil || d.StatusRange == nil || d.LocalStrategy == nil {
		t.Error("containers must be allocated even for an empty conversion")
	}
}

func TestDecodePushReport(t *testing.T) {
	raw := []byte(`{
		"protocol": 4,
		"t": 1700000000000,
		"data": {
			"devId": "bf9x",
			"status": [{"code": "switch_1", "value": false, "dpId": 1}]
		}
	}`)

	msg, err := DecodePush(raw)
	if err != nil {
		t.Fatalf("DecodePush: %v", err)
	}
	if msg.Protocol != ProtocolReport {
		t.Errorf("protocol = %d", msg.Protocol)
	}
	if msg.DeviceID != "bf9x" {
		t.Errorf("device id = %q", msg.DeviceID)
	}
	if len(msg.Status) != 1 || msg.Status[0].Code != "switch_1" || msg.Status[0].DPID != 1 {
		t.Errorf("status = %+v", msg.Status)
	}
}

func TestDecodePushBizData(t *testing.T) {
	raw := []byte(`{
		"protocol": 20,
		"data": {
			"bizCode": "nameUpdate",
			"bizData": {"devId": "bf9x", "name": "New Name"}
		}
	}`)

	msg, err := DecodePush(raw)
	if err != nil {
		t.Fatalf("DecodePush: %v", err)
	}
	if msg.Protocol != ProtocolOther || msg.DeviceID != "bf9x" || msg.BizCode != "nameUpdate" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestDecodePushRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`not json`, `{"protocol":4,"data":{}}`} {
		if _, err := DecodePush([]byte(raw)); err == nil {
			t.Errorf("DecodePush(%q) succeeded, want error", raw)
		}
	}
}
