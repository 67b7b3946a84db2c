// Package point defines the canonical data model for Tuya Fusion Core.
//
// Every device known to the system, whatever cloud account it came from,
// is represented as a point.Device: a set of scalar identity fields plus
// four containers describing its data points:
//
//   - Status: point code -> current value (heterogeneous)
//   - Function: point code -> Spec for a writable capability
//   - StatusRange: point code -> Spec for a readable capability
//   - LocalStrategy: numeric point id -> StrategyEntry (routing metadata)
//
// # Container aliasing
//
// After two source snapshots of the same physical device are merged
// (internal/merge), both Device values hold the *same* four map headers.
// Go maps are reference types, so an in-place mutation through either
// device is immediately visible through the other. This is the mechanism
// that keeps the merged view current without periodic re-merging.
//
// The invariant imposes one rule on every caller: mutate the containers
// in place, never replace them wholesale. Assigning a fresh map to
// dev.Status silently breaks the aliasing for that device only.
//
// # Key Types
//
//   - Type: closed enumeration of point value types (Boolean, Integer, ...)
//   - Spec: normalized metadata for one point (type + JSON value descriptor)
//   - StrategyEntry: per-point write routing and transform metadata
//   - Device: one device as known to one source, or the merged view
package point
