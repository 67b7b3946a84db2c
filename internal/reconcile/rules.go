package reconcile

// Kind classifies what a virtual-state rule computes before commit.
type Kind string

// Kind constants.
const (
	// Summed marks a property whose reports carry deltas; the stored
	// value is treated as a running total and the delta is added to it.
	Summed Kind = "summed_in_reporting"

	// CopyValue mirrors the just-computed value into synthetic sibling
	// codes.
	CopyValue Kind = "copy_value"

	// CopyDelta mirrors the difference from the previously stored
	// value into synthetic sibling codes.
	CopyDelta Kind = "copy_delta"
)

// Rule is one virtual-state rule, applying to a point code within a
// device category.
//
// MultiSource marks properties both sources report independently with
// potentially conflicting values; only these are arbitrated, all other
// properties pass through unfiltered.
type Rule struct {
	Code        string
	Kind        Kind
	Targets     []string
	MultiSource bool
}

// RuleSet holds virtual-state rules grouped by device category.
type RuleSet struct {
	byCategory map[string][]Rule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{byCategory: make(map[string][]Rule)}
}

// Add registers a rule for a category.
func (r *RuleSet) Add(category string, rule Rule) {
	r.byCategory[category] = append(r.byCategory[category], rule)
}

// For returns the rules for a category. The returned slice is shared;
// callers must not modify it.
func (r *RuleSet) For(category string) []Rule {
	return r.byCategory[category]
}

// TrackedCodes returns the codes within a batch that are subject to
// source arbitration for the given category.
func (r *RuleSet) TrackedCodes(category string, codes []string) []string {
	rules := r.byCategory[category]
	if len(rules) == 0 {
		return nil
	}
	var out []string
	for _, code := range codes {
		for _, rule := range rules {
			if rule.MultiSource && rule.Code == code {
				out = append(out, code)
				break
			}
		}
	}
	return out
}

// DefaultRules returns the built-in rule set for the device categories
// known to need virtual-state handling: energy meters and metering
// sockets whose consumption counter ("add_ele") arrives as a delta per
// report, with the running total mirrored into a synthetic sibling
// that survives counter resets.
func DefaultRules() *RuleSet {
	rs := NewRuleSet()

	// Energy meters, metering breakers, metering power strips and
	// sockets: every one of these reports add_ele as an increment.
	for _, category := range []string{"zndb", "dlq", "pc", "cz", "kg", "wkcz"} {
		rs.Add(category, Rule{Code: "add_ele", Kind: Summed, MultiSource: true})
		rs.Add(category, Rule{
			Code:    "add_ele",
			Kind:    CopyValue,
			Targets: []string{"add_ele_total"},
		})
	}

	// Meters that expose a lifetime total: mirror the per-report
	// difference into a synthetic consumption-delta sibling.
	for _, category := range []string{"zndb", "dlq"} {
		rs.Add(category, Rule{
			Code:        "forward_energy_total",
			Kind:        CopyDelta,
			Targets:     []string{"forward_energy_delta"},
			MultiSource: true,
		})
	}

	return rs
}
