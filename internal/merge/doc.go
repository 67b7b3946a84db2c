// Package merge reconciles two snapshots of the same physical device,
// fetched from two different cloud accounts, into one authoritative
// device backed by shared containers.
//
// # Pipeline
//
// Merge runs a fixed pipeline; order matters because later steps assume
// the form established by earlier ones:
//
//  1. Normalize both snapshots (internal/normalize)
//  2. Cross-repair malformed value descriptors
//  3. Reconcile scalar identity fields
//  4. Arbitrate conflicting declared types (MostPlausible)
//  5. Prefer the cheaper write path per strategy entry
//  6. Prefer a non-default value-convert strategy
//  7. Align numeric descriptors (min/max/scale/step/range)
//  8. Smart-merge the four containers, left-biased
//  9. Point both devices at the same containers
//
// After step 9 the two inputs share their Status, Function, StatusRange
// and LocalStrategy maps by reference. A live status commit through
// either device is immediately visible through the other, which is what
// keeps the merged view valid without periodic re-merging.
//
// # Conflict policy
//
// Conflicts that cannot be resolved algorithmically are never raised.
// The left value is kept unconditionally, and the disagreement goes to
// the logger and the optional Recorder for later inspection. Genuinely
// mismatched container shapes (a map on one side, a list on the other)
// are a known data-quality trap and follow the same rule.
package merge
