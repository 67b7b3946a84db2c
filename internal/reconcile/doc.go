// Package reconcile turns raw per-source status pushes into the batch
// that may safely be committed into a merged device's shared status
// container.
//
// Two sources watching the same physical device both push the same
// state changes, not always with the same values and never in a
// guaranteed order. Two mechanisms keep the committed state stable:
//
// # Source arbitration
//
// For properties marked multi-source in the virtual-state rules, an
// Arbiter counts which source reports the property and lets exactly
// one source's value through. The winning source only changes when a
// challenger pulls ahead of the incumbent's counter by the configured
// hysteresis threshold, so two sources alternating reports do not make
// the committed value flap.
//
// Properties without the multi-source mark pass through untouched;
// arbitration state is created lazily on first observation and lives
// for the process lifetime of the device.
//
// # Virtual states
//
// Some properties need computation before commit: meters that report
// deltas rather than totals, and properties whose value must be
// mirrored into synthetic sibling codes that the device never exposes
// natively. Sibling metadata (status_range and local_strategy entries)
// is created on first use by cloning the source property and
// allocating a point id from the virtual range, well above any real
// device point id.
//
// # Ordering
//
// Handler.Process enforces the strict order: filter first, virtual
// states second, and only then is the batch fit to commit. The
// registry never writes a raw push payload into device status.
package reconcile
