// Package snapshot persists merged devices and merge discrepancies to
// SQLite.
//
// Snapshots make restarts cheap: the registry is preloaded from the
// last-known merged state, so entities exist before the first cloud
// fetch completes. The discrepancy table is the merge engine's audit
// log made queryable — every cross-source disagreement the engine
// resolved by keeping the left side ends up as one row.
//
// Both repositories follow the usual shape: an interface for callers,
// a SQLite implementation, JSON-marshalled maps in text columns.
package snapshot
