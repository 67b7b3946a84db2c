package tuya

import (
	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// ConvertDevice maps one wire device, its specification, and its
// strategy table into the canonical model. strategy may be nil (the
// OpenAPI flavour has no table); registration then synthesises a
// table from the spec descriptors (normalize.Apply), so the entries
// stay routable.
func ConvertDevice(model DeviceModel, spec *SpecificationResult, strategy []DPStatusRelation, source string) *point.Device {
	d := point.New(model.ID)
	d.Name = model.Name
	d.Category = model.Category
	d.ProductID = model.ProductID
	d.ProductName = model.ProductName
	d.LocalKey = model.LocalKey
	d.UUID = model.UUID
	d.AssetID = model.AssetID
	d.Icon = model.Icon
	d.IP = model.IP
	d.TimeZone = model.TimeZone
	d.Model = model.Model
	d.Sub = model.Sub
	d.Online = model.Online
	d.ActiveTime = model.ActiveTime
	d.CreateTime = model.CreateTime
	d.UpdateTime = model.UpdateTime
	d.Source = source

	for _, s := range model.Status {
		d.Status[s.Code] = s.Value
	}
	if spec != nil {
		if spec.Category != "" && d.Category == "" {
			d.Category = spec.Category
		}
		for _, e := range spec.Functions {
			d.Function[e.Code] = convertSpecEntry(e)
		}
		for _, e := range spec.Status {
			d.StatusRange[e.Code] = convertSpecEntry(e)
		}
	}
	for _, r := range strategy {
		if r.DPID == 0 || r.StatusCode == "" {
			continue
		}
		d.LocalStrategy[r.DPID] = convertStrategy(r)
	}
	return d
}

func convertSpecEntry(e SpecEntry) *point.Spec {
	return &point.Spec{
		Code:    e.Code,
		Type:    point.ParseType(e.Type),
		Values:  e.Values,
		PointID: e.DPID,
	}
}

func convertStrategy(r DPStatusRelation) *point.StrategyEntry {
	mode := point.AccessMode(r.AccessMode)
	if mode == "" {
		mode = point.AccessReadWrite
	}
	convert := r.ValueConvert
	if convert == "" {
		convert = point.ValueConvertDefault
	}
	return &point.StrategyEntry{
		PointID:           r.DPID,
		StatusCode:        r.StatusCode,
		StatusCodeAliases: []string{},
		AccessMode:        mode,
		UseOpenAPI:        !r.SupportLocal,
		PropertyUpdate:    r.PropertyUpdate,
		ValueConvert:      convert,
		ConfigItem: &point.ConfigItem{
			StatusFormat: r.StatusFormat,
			ValueDesc:    r.ValueDesc,
			ValueType:    point.ParseType(r.ValueType),
			EnumMapping:  r.EnumMappingMap,
			PID:          r.PID,
		},
	}
}
