package reconcile

import (
	"sync"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// DefaultHysteresis is the default arbitration threshold: a challenger
// source must pull ahead of the incumbent's report counter by at least
// this much before it takes over a disputed property.
//
// The value is a tunable with no derived rationale; it is exposed in
// configuration rather than trusted blindly.
const DefaultHysteresis = 1

// Arbiter decides, per (device, point code), which source's concurrent
// status reports are authoritative.
//
// All methods are safe for concurrent use: push deliveries for the two
// sources arrive on independent connections and interleave freely.
type Arbiter struct {
	mu        sync.Mutex
	threshold int
	devices   map[string]map[string]*track
}

// track is the per-(device, code) arbitration state. Created lazily on
// first observation of a tracked property, never destroyed.
type track struct {
	counts  map[string]int
	allowed string
}

// NewArbiter creates an arbiter with the given hysteresis threshold.
// A threshold below 1 is coerced to DefaultHysteresis.
func NewArbiter(threshold int) *Arbiter {
	if threshold < 1 {
		threshold = DefaultHysteresis
	}
	return &Arbiter{
		threshold: threshold,
		devices:   make(map[string]map[string]*track),
	}
}

// RegisterReport counts one source's report of the given codes.
// Callers pass only tracked-worthy codes; the arbiter itself does not
// know the virtual-state rules.
func (a *Arbiter) RegisterReport(deviceID, source string, codes []string) {
	if len(codes) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, code := range codes {
		t := a.trackFor(deviceID, code)
		t.counts[source]++
	}
}

// AllowedSource returns the source currently authoritative for a
// tracked property. The first call decides by highest counter and
// remembers the winner; later calls only move to a challenger whose
// counter leads the incumbent's by at least the hysteresis threshold.
//
// An untracked (never registered) property returns "", meaning no
// arbitration applies.
func (a *Arbiter) AllowedSource(deviceID, code string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	codes, ok := a.devices[deviceID]
	if !ok {
		return ""
	}
	t, ok := codes[code]
	if !ok {
		return ""
	}

	leader, count := t.leader()
	switch {
	case t.allowed == "":
		t.allowed = leader
	case leader != t.allowed && count >= t.counts[t.allowed]+a.threshold:
		t.allowed = leader
	}
	return t.allowed
}

// FilterBatch drops every entry whose code is tracked for this device
// and whose authoritative source is not the reporting source. Entries
// for untracked codes pass through unchanged.
func (a *Arbiter) FilterBatch(deviceID, source string, batch []point.StatusUpdate) []point.StatusUpdate {
	out := make([]point.StatusUpdate, 0, len(batch))
	for _, s := range batch {
		if allowed := a.AllowedSource(deviceID, s.Code); allowed != "" && allowed != source {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Tracked reports whether arbitration state exists for the property.
func (a *Arbiter) Tracked(deviceID, code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	codes, ok := a.devices[deviceID]
	if !ok {
		return false
	}
	_, ok = codes[code]
	return ok
}

// Forget drops all arbitration state for a device. Called when a
// source reports deletion or unbinding.
func (a *Arbiter) Forget(deviceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.devices, deviceID)
}

// trackFor returns the arbitration state for (deviceID, code),
// creating it on first use. Caller holds a.mu.
func (a *Arbiter) trackFor(deviceID, code string) *track {
	codes, ok := a.devices[deviceID]
	if !ok {
		codes = make(map[string]*track)
		a.devices[deviceID] = codes
	}
	t, ok := codes[code]
	if !ok {
		t = &track{counts: make(map[string]int)}
		codes[code] = t
	}
	return t
}

// leader returns the source with the highest counter. Ties keep the
// currently allowed source when it is one of the leaders, so a tie
// never looks like a challenger pulling ahead.
func (t *track) leader() (string, int) {
	best := ""
	bestCount := -1
	for source, count := range t.counts {
		switch {
		case count > bestCount:
			best, bestCount = source, count
		case count == bestCount && source == t.allowed:
			best = source
		}
	}
	return best, bestCount
}
