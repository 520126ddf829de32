package cluster

import (
	"encoding/json"
	"fmt"
)

// Interval is one record of the ordered timeline, typically a media segment.
// Index is global across all shards.
type Interval struct {
	Index    int64 `json:"index"`
	Start    int64 `json:"start"`
	End      int64 `json:"end"`
	Duration int64 `json:"duration"`
}

// Contains reports whether ts falls inside [Start, End].
// Both bounds are inclusive, so a timestamp equal to a shared boundary is
// contained by two neighbouring intervals; callers decide the tie-break.
func (iv Interval) Contains(ts int64) bool {
	return iv.Start <= ts && ts <= iv.End
}

// Validate checks the fields a router relies on during a search.
func (iv Interval) Validate() error {
	if iv.End <= iv.Start {
		return fmt.Errorf("interval %d: end %d not after start %d", iv.Index, iv.End, iv.Start)
	}
	if iv.Index < 0 {
		return fmt.Errorf("interval has negative index %d", iv.Index)
	}
	return nil
}

// RangeSummary is a shard's aggregate boundary report.
// Offset is the global index of the shard's first interval.
type RangeSummary struct {
	ShardID int   `json:"shardId"`
	Start   int64 `json:"start"`
	End     int64 `json:"end"`
	Length  int64 `json:"length"`
	Offset  int64 `json:"offset"`
}

// Validate rejects summaries that cannot be routed to.
func (r RangeSummary) Validate() error {
	if r.Length <= 0 {
		return fmt.Errorf("shard %d: empty range (length %d)", r.ShardID, r.Length)
	}
	if r.End <= r.Start {
		return fmt.Errorf("shard %d: end %d not after start %d", r.ShardID, r.End, r.Start)
	}
	if r.Offset < 0 {
		return fmt.Errorf("shard %d: negative offset %d", r.ShardID, r.Offset)
	}
	return nil
}

// DirectoryEntry is one row of a router's routing table.
type DirectoryEntry struct {
	ShardID int    `json:"shardId"`
	Addr    string `json:"addr"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Length  int64  `json:"length"`
	Offset  int64  `json:"offset"`
}

// Covers reports whether ts falls inside the entry's time range.
func (e DirectoryEntry) Covers(ts int64) bool {
	return e.Start <= ts && ts <= e.End
}

// LastIndex is the global index of the entry's final interval.
func (e DirectoryEntry) LastIndex() int64 {
	return e.Offset + e.Length - 1
}

// ShardTarget is a statically configured shard location.
type ShardTarget struct {
	ID   int    `json:"id" yaml:"id"`
	Addr string `json:"addr" yaml:"addr"`
}

// Response is the JSON envelope used by every endpoint in the system.
// Successful responses set Result; failures set Error and may carry a null Result.
type Response struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}
