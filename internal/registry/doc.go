// Package registry owns the canonical device map.
//
// A Manager aggregates any number of source accounts into one merged
// view. Each source contributes full device snapshots (fetch time) and
// live status batches (push time); the manager runs the merge engine
// over snapshots and the reconcile handler over batches, then commits
// into the shared containers and notifies listeners.
//
//	          snapshots                 push payloads
//	    Source.Refresh ─────┐     ┌──── Manager.OnMessage
//	                        ▼     ▼
//	                     ┌───────────┐
//	                     │  Manager  │── listeners (device id, codes)
//	                     └───────────┘
//	                        ▲     │
//	         merge engine ──┘     └── command routing back to a source
//
// Outbound commands route per entry: a virtual function registered for
// the device's category is handled locally; anything else is carried
// by whichever source the point's local strategy names, as a plain
// command batch or a shadow-property update. A command no source can
// carry is dropped with a warning, never an error: the calling layer
// has no recovery path beyond "the device did not respond".
//
// Commits for one device are serialised by a per-device mutex; commits
// for different devices proceed concurrently. Code outside the commit
// path reads merged state through Snapshot or SnapshotMap, which deep
// copy under that mutex; Device and DeviceMap hand out the live
// objects and are only safe while holding the commit lock.
package registry
