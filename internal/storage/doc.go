// Package storage holds the interval sequences that shards serve.
//
// A Store is immutable once built: intervals are generated (or loaded) at shard
// start-up, validated for the gap-free invariant, and then only read. Because
// nothing writes after construction, MemoryStore serves any number of
// concurrent readers without locking.
//
// # Invariants
//
// For every store built through NewMemoryStore:
//   - the store is non-empty (ErrEmptyStore otherwise)
//   - every interval has End > Start
//   - interval[i].End == interval[i+1].Start
//   - indices are dense: interval[i+1].Index == interval[i].Index + 1
//
// Violations are reported as ErrNotContiguous.
//
// # Positional access
//
// Store.At is O(1) by position. Routers depend on this: a remote binary search
// issues one point lookup per probe, so a store that answered by scanning
// would turn each probe into O(n) work on the shard.
//
// # Synthetic data
//
// Generate produces a deterministic timeline with durations drawn from a
// configured range, matching what shard processes create at start-up.
package storage
