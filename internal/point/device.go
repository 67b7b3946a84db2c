package point

// Device is one physical device as described by one source account,
// or the merged view once two snapshots have been reconciled.
//
// The four containers (Status, Function, StatusRange, LocalStrategy)
// must only ever be mutated in place; see the package documentation
// for the aliasing invariant.
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	LocalKey    string `json:"local_key,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	AssetID     string `json:"asset_id,omitempty"`
	Icon        string `json:"icon,omitempty"`
	IP          string `json:"ip,omitempty"`
	TimeZone    string `json:"time_zone,omitempty"`
	Model       string `json:"model,omitempty"`
	DataModel   string `json:"data_model,omitempty"`
	Sub         bool   `json:"sub"`
	Online      bool   `json:"online"`

	ActiveTime int64 `json:"active_time"`
	CreateTime int64 `json:"create_time"`
	UpdateTime int64 `json:"update_time"`

	// Source is the name of the account the snapshot was fetched from.
	// After a merge it names the side the merge was anchored on.
	Source string `json:"source,omitempty"`

	Status        map[string]any         `json:"status"`
	Function      map[string]*Spec       `json:"function"`
	StatusRange   map[string]*Spec       `json:"status_range"`
	LocalStrategy map[int]*StrategyEntry `json:"local_strategy"`
}

// New creates a device with all four containers allocated.
func New(id string) *Device {
	d := &Device{ID: id}
	d.EnsureContainers()
	return d
}

// EnsureContainers allocates any nil container so later code never
// branches on absence.
func (d *Device) EnsureContainers() {
	if d.Status == nil {
		d.Status = make(map[string]any)
	}
	if d.Function == nil {
		d.Function = make(map[string]*Spec)
	}
	if d.StatusRange == nil {
		d.StatusRange = make(map[string]*Spec)
	}
	if d.LocalStrategy == nil {
		d.LocalStrategy = make(map[int]*StrategyEntry)
	}
}

// AdoptContainers points d's four containers at the same underlying
// maps held by src. This establishes the aliasing invariant: any
// in-place mutation through either device is visible through both.
func (d *Device) AdoptContainers(src *Device) {
	d.Status = src.Status
	d.Function = src.Function
	d.StatusRange = src.StatusRange
	d.LocalStrategy = src.LocalStrategy
}

// Clone returns a deep copy of the device. The copy shares nothing
// with the original, so it can be read or serialised without holding
// the lock that guards the live containers.
func (d *Device) Clone() *Device {
	cpy := *d
	cpy.Status = make(map[string]any, len(d.Status))
	for k, v := range d.Status {
		cpy.Status[k] = v
	}
	cpy.Function = make(map[string]*Spec, len(d.Function))
	for k, s := range d.Function {
		cpy.Function[k] = s.Clone()
	}
	cpy.StatusRange = make(map[string]*Spec, len(d.StatusRange))
	for k, s := range d.StatusRange {
		cpy.StatusRange[k] = s.Clone()
	}
	cpy.LocalStrategy = make(map[int]*StrategyEntry, len(d.LocalStrategy))
	for id, e := range d.LocalStrategy {
		cpy.LocalStrategy[id] = e.Clone()
	}
	return &cpy
}

// SharesContainers reports whether d and other hold the same status
// container. Used by tests and diagnostics to verify the invariant.
func (d *Device) SharesContainers(other *Device) bool {
	// Two map headers are the same container iff a write through one
	// is visible through the other. Probe with a temporary key.
	const probe = "__container_probe__"
	d.Status[probe] = true
	_, shared := other.Status[probe]
	delete(d.Status, probe)
	return shared
}

// StrategyByCode finds the local strategy entry whose status code or
// alias list matches code.
func (d *Device) StrategyByCode(code string) (*StrategyEntry, bool) {
	for _, e := range d.LocalStrategy {
		if e != nil && e.Matches(code) {
			return e, true
		}
	}
	return nil, false
}

// MaxPointID returns the highest point id present in the local
// strategy table, or 0 when the table is empty.
func (d *Device) MaxPointID() int {
	maxID := 0
	for id := range d.LocalStrategy {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// FindPoint locates the spec for any of the given codes, preferring
// Function entries when preferFunction is set and falling back to
// StatusRange (or the reverse). A non-empty typeFilter restricts the
// match to specs of that type.
//
// This is the lookup surface exposed to entity/platform collaborators:
// they hold a list of candidate codes per descriptor and take the
// first one the device actually carries.
func FindPoint(d *Device, codes []string, typeFilter Type, preferFunction bool) *Spec {
	first := d.Function
	second := d.StatusRange
	if !preferFunction {
		first, second = second, first
	}
	for _, table := range []map[string]*Spec{first, second} {
		for _, code := range codes {
			s, ok := table[code]
			if !ok || s == nil {
				continue
			}
			if typeFilter != "" && s.Type != typeFilter {
				continue
			}
			return s
		}
	}
	return nil
}
