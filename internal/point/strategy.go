package point

// ValueConvertDefault is the pass-through value conversion strategy.
// Any other string names a source-specific transform; the merge engine
// prefers a non-default strategy over the literal default.
const ValueConvertDefault = "default"

// ConfigItem is the type/range metadata embedded in a local strategy
// entry. ValueDesc carries the same JSON object shape as Spec.Values.
type ConfigItem struct {
	StatusFormat string            `json:"statusFormat,omitempty"`
	ValueDesc    string            `json:"valueDesc,omitempty"`
	ValueType    Type              `json:"valueType,omitempty"`
	EnumMapping  map[string]string `json:"enumMappingMap,omitempty"`
	PID          string            `json:"pid,omitempty"`
}

// Clone returns an independent copy of the config item.
func (c *ConfigItem) Clone() *ConfigItem {
	if c == nil {
		return nil
	}
	cpy := *c
	if c.EnumMapping != nil {
		cpy.EnumMapping = make(map[string]string, len(c.EnumMapping))
		for k, v := range c.EnumMapping {
			cpy.EnumMapping[k] = v
		}
	}
	return &cpy
}

// StrategyEntry is the lowest-level, most-authoritative routing metadata
// for one data point: which account flavour must carry a write, whether
// the write is a plain command or a shadow-property update, and the
// alias codes the point appears under in other tables.
type StrategyEntry struct {
	PointID           int         `json:"point_id"`
	StatusCode        string      `json:"status_code"`
	StatusCodeAliases []string    `json:"status_code_aliases"`
	AccessMode        AccessMode  `json:"access_mode"`
	UseOpenAPI        bool        `json:"use_open_api"`
	PropertyUpdate    bool        `json:"property_update"`
	ValueConvert      string      `json:"value_convert,omitempty"`
	ConfigItem        *ConfigItem `json:"config_item,omitempty"`

	// Synthesised marks an entry built from spec descriptors because
	// the source supplied no strategy table. A real table supersedes
	// synthesised entries during merging.
	Synthesised bool `json:"synthesised,omitempty"`
}

// Matches reports whether code is the entry's status code or one of
// its aliases.
func (e *StrategyEntry) Matches(code string) bool {
	if e.StatusCode == code {
		return true
	}
	for _, alias := range e.StatusCodeAliases {
		if alias == code {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the entry.
func (e *StrategyEntry) Clone() *StrategyEntry {
	if e == nil {
		return nil
	}
	cpy := *e
	if e.StatusCodeAliases != nil {
		cpy.StatusCodeAliases = make([]string, len(e.StatusCodeAliases))
		copy(cpy.StatusCodeAliases, e.StatusCodeAliases)
	}
	cpy.ConfigItem = e.ConfigItem.Clone()
	return &cpy
}
