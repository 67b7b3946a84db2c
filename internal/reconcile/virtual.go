package reconcile

import (
	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// VirtualPointIDBase is the first point id used for synthetic sibling
// entries. Real device point ids are small integers; starting the
// search this high keeps the virtual range collision-free.
const VirtualPointIDBase = 0x10000

// Logger defines the logging interface used by the Handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handler runs the full inbound reconciliation for one status batch:
// source arbitration first, virtual-state computation second. The
// result is the batch the registry may commit.
type Handler struct {
	arbiter *Arbiter
	rules   *RuleSet
	logger  Logger
}

// NewHandler creates a handler over an arbiter and a rule set.
func NewHandler(arbiter *Arbiter, rules *RuleSet) *Handler {
	return &Handler{
		arbiter: arbiter,
		rules:   rules,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// Arbiter exposes the handler's arbiter for lifecycle operations
// (dropping state when a device is unbound).
func (h *Handler) Arbiter() *Arbiter {
	return h.arbiter
}

// Process prepares one source's status batch for commit. The order is
// load-bearing: filtering must see the raw batch (so a losing source
// cannot advance a running total), and virtual states must see the
// filtered batch (so synthetic siblings derive from the winning value
// only).
func (h *Handler) Process(dev *point.Device, source string, batch []point.StatusUpdate) []point.StatusUpdate {
	if dev == nil || len(batch) == 0 {
		return nil
	}

	tracked := h.rules.TrackedCodes(dev.Category, point.Codes(batch))
	h.arbiter.RegisterReport(dev.ID, source, tracked)

	filtered := h.arbiter.FilterBatch(dev.ID, source, batch)
	return h.applyVirtualStates(dev, filtered)
}

// applyVirtualStates runs the category's rules over a filtered batch,
// expanding it with synthetic sibling updates.
func (h *Handler) applyVirtualStates(dev *point.Device, batch []point.StatusUpdate) []point.StatusUpdate {
	rules := h.rules.For(dev.Category)
	if len(rules) == 0 {
		return batch
	}

	out := make([]point.StatusUpdate, 0, len(batch))
	for _, u := range batch {
		prev, hasPrev := toFloat(dev.Status[u.Code])

		// Delta-to-total conversion first: the copy flavours below
		// must see the computed value, not the raw delta.
		for _, r := range rules {
			if r.Kind != Summed || r.Code != u.Code {
				continue
			}
			if delta, ok := toFloat(u.Value); ok && hasPrev {
				u.Value = prev + delta
			}
		}
		out = append(out, u)

		for _, r := range rules {
			if r.Code != u.Code {
				continue
			}
			switch r.Kind {
			case CopyValue:
				for _, target := range r.Targets {
					h.ensureSibling(dev, u.Code, target)
					out = append(out, point.StatusUpdate{Code: target, Value: u.Value})
				}
			case CopyDelta:
				cur, ok := toFloat(u.Value)
				if !ok || !hasPrev {
					continue
				}
				for _, target := range r.Targets {
					h.ensureSibling(dev, u.Code, target)
					out = append(out, point.StatusUpdate{Code: target, Value: cur - prev})
				}
			case Summed:
				// Handled above.
			}
		}
	}
	return out
}

// ensureSibling creates the status_range and local_strategy entries
// for a synthetic sibling code on first use, cloning the source
// point's metadata. The containers are mutated in place so the entries
// appear through every device sharing them.
func (h *Handler) ensureSibling(dev *point.Device, sourceCode, target string) {
	if _, ok := dev.StatusRange[target]; ok {
		return
	}

	id := nextVirtualPointID(dev)

	spec := dev.StatusRange[sourceCode]
	if spec == nil {
		spec = dev.Function[sourceCode]
	}
	sibling := spec.Clone()
	if sibling == nil {
		sibling = &point.Spec{Type: point.TypeInteger, Values: "{}"}
	}
	sibling.Code = target
	sibling.PointID = id
	dev.StatusRange[target] = sibling

	var entry *point.StrategyEntry
	if src, ok := dev.StrategyByCode(sourceCode); ok {
		entry = src.Clone()
	} else {
		entry = &point.StrategyEntry{ValueConvert: point.ValueConvertDefault}
	}
	entry.PointID = id
	entry.StatusCode = target
	entry.StatusCodeAliases = []string{}
	entry.AccessMode = point.AccessReadOnly
	dev.LocalStrategy[id] = entry

	h.logger.Debug("virtual sibling created",
		"device", dev.ID, "source_code", sourceCode, "code", target, "point_id", id)
}

// nextVirtualPointID finds the first unused id in the virtual range.
func nextVirtualPointID(dev *point.Device) int {
	id := VirtualPointIDBase
	for {
		if _, ok := dev.LocalStrategy[id]; !ok {
			return id
		}
		id++
	}
}

// toFloat coerces the numeric shapes a status value shows up in.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
