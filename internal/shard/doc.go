// Package shard implements the Shard Store: the leaf process that holds one
// contiguous slice of the global timeline and answers two read-only queries.
//
// # Overview
//
// A shard owns the intervals with global indices [Offset, Offset+Length).
// Intervals are generated once at start-up and never change, so the shard
// needs no locks on its read path and tolerates any number of concurrent
// callers. Operation counters use atomics.
//
//	┌─────────────────────────────────────┐
//	│               SHARD                 │
//	├─────────────────────────────────────┤
//	│  RangeSummary()   O(1)              │
//	│    {shardId, start, end,            │
//	│     length, offset}                 │
//	│                                     │
//	│  LookupByIndex(i) O(1)              │
//	│    interval | ErrIndexOutOfRange    │
//	├─────────────────────────────────────┤
//	│  storage.Store (immutable, indexed) │
//	└─────────────────────────────────────┘
//
// # Why positional access
//
// Routers never ask a shard "which interval covers T". They binary-search the
// index space remotely, one LookupByIndex round-trip per probe. The shard's
// only obligation is that each probe is a direct positional read.
//
// # HTTP surface
//
// NewHandler exposes the shard:
//
//	GET /health
//	GET /range          -> {"result": RangeSummary}
//	GET /query?index=N  -> {"result": Interval} | 404 {"result": null}
//	GET /stats          -> {"result": ShardInfo}
//
// A non-numeric index is a 400. An optional per-response delay emulates
// network distance when load testing a single machine.
//
// # Failure modes
//
// An empty store cannot be wrapped (NewShard fails) and the shard binary
// exits at start-up. At runtime the only failure is an out-of-range index.
package shard
