// Package normalize repairs and aligns the three parallel data-point
// metadata tables of a single device snapshot (Function, StatusRange,
// LocalStrategy) before any cross-source comparison happens.
//
// The cloud APIs routinely disagree with themselves: legacy type
// spellings, value descriptors that are not valid JSON, percentage
// points whose scale is wrong by a power of ten, enum ranges split
// across tables, and alias codes duplicated as independent entries.
// Each pass here fixes one class of defect. IoT-platform accounts
// additionally ship no strategy table at all; a synthesis pass builds
// one from the spec descriptors so those points stay routable.
//
// # Failure semantics
//
// No pass may fail. A field that cannot be parsed or fixed is left as
// a best-effort sentinel and the device continues to load; at worst a
// point is miscategorised until the next specification refresh. This
// mirrors the policy that one bad descriptor must never block a whole
// account from loading.
//
// # Idempotence
//
// Apply is idempotent: running it twice on the same device produces the
// same result as running it once. The merge engine relies on this, as
// it re-normalizes both sides before every merge.
package normalize
