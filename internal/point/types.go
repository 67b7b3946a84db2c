package point

import "strings"

// Type classifies a point's value. The set is closed; every spec that
// enters the system has its type coerced to one of these by the
// normalizer (internal/normalize).
type Type string

// Type constants. The spellings match the Tuya OpenAPI specification
// responses; legacy spellings from the sharing API are mapped by ParseType.
const (
	TypeBoolean Type = "Boolean"
	TypeInteger Type = "Integer"
	TypeEnum    Type = "Enum"
	TypeString  Type = "String"
	TypeJSON    Type = "Json"
	TypeRaw     Type = "Raw"
	TypeBitmap  Type = "Bitmap"
)

// AllTypes returns all valid point type values.
func AllTypes() []Type {
	return []Type{
		TypeBoolean, TypeInteger, TypeEnum, TypeString,
		TypeJSON, TypeRaw, TypeBitmap,
	}
}

// legacyTypes maps known alternative spellings to the canonical type.
// The sharing API reports lowercase short names while the IoT platform
// reports capitalised long names; local strategy tables use yet another
// mix. All observed variants are listed here.
var legacyTypes = map[string]Type{
	"boolean": TypeBoolean,
	"bool":    TypeBoolean,
	"integer": TypeInteger,
	"value":   TypeInteger,
	"enum":    TypeEnum,
	"string":  TypeString,
	"str":     TypeString,
	"json":    TypeJSON,
	"raw":     TypeRaw,
	"bitmap":  TypeBitmap,
}

// ParseType coerces a type string to the canonical enumeration.
// Unknown spellings are returned unchanged: the normalizer never
// invents data, and downstream comparisons treat an unknown type the
// same as an empty one.
func ParseType(s string) Type {
	for _, t := range AllTypes() {
		if s == string(t) {
			return t
		}
	}
	if t, ok := legacyTypes[strings.ToLower(s)]; ok {
		return t
	}
	return Type(s)
}

// Valid reports whether t is one of the canonical type values.
func (t Type) Valid() bool {
	for _, v := range AllTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// AccessMode describes how a point may be exercised through the cloud.
type AccessMode string

// AccessMode constants.
const (
	AccessReadOnly  AccessMode = "ro"
	AccessReadWrite AccessMode = "rw"
	AccessWriteOnly AccessMode = "wo"
)

// Writable reports whether the mode permits writes.
func (m AccessMode) Writable() bool {
	return m == AccessReadWrite || m == AccessWriteOnly
}
