// Package coordinator implements the routing layer: it learns where each
// shard's slice of the timeline lives and answers point-in-time queries by
// searching the owning shard remotely.
//
// # Overview
//
//	              ┌──────────────────────────────┐
//	  T ────────► │ Router                       │
//	              │  Directory (atomic snapshot) │
//	              │  Searcher  (binary | linear) │
//	              └──────┬───────────────┬───────┘
//	        /range once  │               │ /query?index=mid, ~log2(n) times
//	      ┌──────────────▼──┐   ┌────────▼────────┐
//	      │ Shard 0         │   │ Shard 1         │
//	      │ [0, 1000]       │   │ [1000, 2000]    │
//	      └─────────────────┘   └─────────────────┘
//
// # Directory
//
// BuildDirectory asks every configured shard for its range summary at the same
// time and waits for all of them. Shards that fail are left out and listed in
// Directory.Missing; their time ranges are unroutable until the next build.
// Entries are sorted by start and never overlap. A Directory is never edited:
// a rebuild produces a new one, which the Router publishes atomically with a
// higher Version.
//
// # Remote binary search
//
// A shard exposes only positional lookups. BinarySearch treats the shard's
// global index range as a sorted array and compares by containment instead of
// equality: T before the probed interval moves left, T after it moves right,
// otherwise the probe is the answer. Because intervals are gap-free this
// halves the candidates on every round-trip, so a search costs at most
// ceil(log2(length))+1 lookups instead of the length lookups of LinearScan.
//
// Neighbouring intervals share their boundary timestamp. Such a timestamp
// always resolves to the lower-indexed interval, both within a shard and
// across two directory entries that share a boundary.
//
// # Errors
//
// Every Router result falls into one Outcome (see Classify):
//   - Success
//   - ClientError: ErrInvalidTimestamp, rejected before any remote call
//   - NotFound: ErrNoShard (no entry covers T) or ErrSegmentNotFound (search
//     exhausted inside a covering shard)
//   - SystemError: ErrDataIntegrity (a shard returned missing or inconsistent
//     data mid-search) or a *cluster.TransportError (unreachable shard or
//     per-call timeout, retryable)
//
// Nothing is retried inside this package.
//
// # Health monitoring
//
// HealthMonitor probes shards periodically and reports transitions through
// callbacks. The router binary wires OnHealthy to Router.ShardRecovered so a
// shard missing from the directory is picked up by a full rebuild.
package coordinator
