package merge

import (
	"github.com/nerrad567/tuya-fusion-core/internal/normalize"
	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// Logger defines the logging interface used by the Engine.
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

// Discrepancy describes one cross-source disagreement found while
// merging. Path is a dotted locator within the device (for example
// "status_range.temp_current.values.max").
type Discrepancy struct {
	DeviceID string
	Path     string
	Left     any
	Right    any
}

// Recorder receives every discrepancy the engine could not resolve
// algorithmically. Implementations must not block; recording is on the
// merge path. A nil recorder is valid.
type Recorder interface {
	Record(d Discrepancy)
}

// Engine merges device snapshots. Safe for concurrent use on distinct
// device pairs; two concurrent merges of the same pair are not.
type Engine struct {
	normalizer *normalize.Normalizer
	logger     Logger
	recorder   Recorder
}

// New creates a merge engine with its own normalizer.
func New() *Engine {
	return &Engine{
		normalizer: normalize.New(),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the engine and its normalizer.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
	e.normalizer.SetLogger(logger)
}

// SetRecorder sets the discrepancy recorder.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Merge reconciles b into a and returns a as the authoritative device.
// Both inputs are left holding the same underlying containers; see the
// package documentation. Merge(a, a) and Merge with a nil side are
// no-ops returning the non-nil argument.
func (e *Engine) Merge(a, b *point.Device) *point.Device {
	if a == nil {
		return b
	}
	if b == nil || a == b {
		return a
	}

	e.normalizer.Apply(a)
	e.normalizer.Apply(b)

	e.crossRepairValues(a, b)
	e.reconcileScalars(a, b)
	e.arbitrateTypes(a, b)
	e.reconcileWritePreference(a, b)
	e.alignDescriptors(a, b)
	e.mergeContainers(a, b)

	b.AdoptContainers(a)
	return a
}

// reconcileScalars resolves the device-level identity fields: prefer
// whichever side carries a value; when both do and they differ, keep
// the left value and record the disagreement. Timestamps differ
// benignly between the two APIs and are reconciled without logging.
func (e *Engine) reconcileScalars(a, b *point.Device) {
	e.pickString(a.ID, &a.Name, &b.Name, "name")
	e.pickString(a.ID, &a.Category, &b.Category, "category")
	e.pickString(a.ID, &a.ProductID, &b.ProductID, "product_id")
	e.pickString(a.ID, &a.ProductName, &b.ProductName, "product_name")
	e.pickString(a.ID, &a.LocalKey, &b.LocalKey, "local_key")
	e.pickString(a.ID, &a.UUID, &b.UUID, "uuid")
	e.pickString(a.ID, &a.AssetID, &b.AssetID, "asset_id")
	e.pickString(a.ID, &a.Icon, &b.Icon, "icon")
	e.pickString(a.ID, &a.IP, &b.IP, "ip")
	e.pickString(a.ID, &a.TimeZone, &b.TimeZone, "time_zone")
	e.pickString(a.ID, &a.Model, &b.Model, "model")
	e.pickString(a.ID, &a.DataModel, &b.DataModel, "data_model")

	// Booleans: a set flag on either side wins over the default.
	sub := a.Sub || b.Sub
	a.Sub, b.Sub = sub, sub
	online := a.Online || b.Online
	a.Online, b.Online = online, online

	pickTime(&a.ActiveTime, &b.ActiveTime)
	pickTime(&a.CreateTime, &b.CreateTime)
	pickTime(&a.UpdateTime, &b.UpdateTime)
}

// pickString applies the non-default-wins rule to one string field,
// writing the winner to both sides.
func (e *Engine) pickString(deviceID string, left, right *string, field string) {
	switch {
	case *left == "" && *right != "":
		*left = *right
	case *right == "" && *left != "":
		*right = *left
	case *left != *right:
		e.report(deviceID, field, *left, *right)
		*right = *left
	}
}

// pickTime prefers the positive nonzero value. Both APIs stamp these
// independently, so disagreement is expected and not reported.
func pickTime(left, right *int64) {
	switch {
	case *left <= 0 && *right > 0:
		*left = *right
	case *right <= 0 && *left > 0:
		*right = *left
	case *left != *right && *left > 0:
		*right = *left
	}
}

// report logs one unresolvable disagreement and forwards it to the
// recorder when one is attached.
func (e *Engine) report(deviceID, path string, left, right any) {
	e.logger.Debug("cross-source disagreement, keeping left value",
		"device", deviceID, "path", path, "left", left, "right", right)
	if e.recorder != nil {
		e.recorder.Record(Discrepancy{
			DeviceID: deviceID,
			Path:     path,
			Left:     left,
			Right:    right,
		})
	}
}
