package normalize

import "encoding/json"

// canonicalUnits maps unit spellings observed in cloud descriptors to
// their canonical form. Devices report full-width glyphs, bare letters,
// and mixed casings for the same physical unit depending on which API
// and firmware produced the descriptor.
var canonicalUnits = map[string]string{
	"℃":     "°C",
	"℉":     "°F",
	"C":     "°C",
	"F":     "°F",
	"c":     "°C",
	"f":     "°F",
	"v":     "V",
	"mv":    "mV",
	"w":     "W",
	"kw":    "kW",
	"kwh":   "kWh",
	"KWH":   "kWh",
	"kW·h":  "kWh",
	"ma":    "mA",
	"Lux":   "lx",
	"lux":   "lx",
	"PA":    "Pa",
	"hpa":   "hPa",
	"ug/m3": "µg/m³",
	"mg/m3": "mg/m³",
}

// encodeObject marshals a descriptor map back to its wire form.
// Descriptor maps only ever hold JSON-compatible values, so the error
// path is unreachable in practice; an empty object is the fallback.
func encodeObject(m map[string]any) string {
	raw, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// unionStrings appends the elements of b not already present in a,
// preserving insertion order of a then b.
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

// equalStrings reports whether two string slices are element-wise equal.
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
