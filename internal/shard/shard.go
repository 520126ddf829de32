package shard

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/storage"
)

// ErrIndexOutOfRange is returned by LookupByIndex for indices this shard does not hold.
var ErrIndexOutOfRange = errors.New("index out of range")

// Shard serves one contiguous slice of the global timeline.
// Its store is immutable, so every method is safe for concurrent use.
type Shard struct {
	ID     int           // Unique shard identifier
	Offset int64         // Global index of the first interval
	Store  storage.Store // Immutable interval sequence
	Stats  *ShardStats   // Operation statistics
}

// ShardStats tracks operation counts
type ShardStats struct {
	Summaries uint64 `json:"summaries"` // Range summaries served
	Lookups   uint64 `json:"lookups"`   // Point lookups served
	Misses    uint64 `json:"misses"`    // Point lookups outside the shard
}

// ShardInfo contains metadata about a shard
type ShardInfo struct {
	ID    int                  `json:"id"`
	Range cluster.RangeSummary `json:"range"`
	Stats ShardStats           `json:"stats"`
}

// NewShard wraps a store. The offset is taken from the store's first interval.
// An empty store is a configuration error.
func NewShard(id int, store storage.Store) (*Shard, error) {
	if store == nil || store.Len() == 0 {
		return nil, fmt.Errorf("shard %d: %w", id, storage.ErrEmptyStore)
	}
	first, _ := store.At(0)
	return &Shard{
		ID:     id,
		Offset: first.Index,
		Store:  store,
		Stats:  &ShardStats{},
	}, nil
}

// RangeSummary reports the shard's boundaries and size. O(1).
func (s *Shard) RangeSummary() cluster.RangeSummary {
	atomic.AddUint64(&s.Stats.Summaries, 1)
	return s.summary()
}

func (s *Shard) summary() cluster.RangeSummary {
	st := s.Store.Stats()
	return cluster.RangeSummary{
		ShardID: s.ID,
		Start:   st.Start,
		End:     st.End,
		Length:  st.Intervals,
		Offset:  s.Offset,
	}
}

// LookupByIndex returns the interval at global index i.
// Returns ErrIndexOutOfRange when i is outside [Offset, Offset+Len).
func (s *Shard) LookupByIndex(i int64) (cluster.Interval, error) {
	atomic.AddUint64(&s.Stats.Lookups, 1)
	iv, ok := s.Store.At(i - s.Offset)
	if !ok {
		atomic.AddUint64(&s.Stats.Misses, 1)
		return cluster.Interval{}, fmt.Errorf("shard %d: index %d: %w", s.ID, i, ErrIndexOutOfRange)
	}
	return iv, nil
}

// GetStats returns current shard statistics
func (s *Shard) GetStats() ShardStats {
	return ShardStats{
		Summaries: atomic.LoadUint64(&s.Stats.Summaries),
		Lookups:   atomic.LoadUint64(&s.Stats.Lookups),
		Misses:    atomic.LoadUint64(&s.Stats.Misses),
	}
}

// Info returns metadata about the shard without counting as a summary request.
func (s *Shard) Info() ShardInfo {
	return ShardInfo{
		ID:    s.ID,
		Range: s.summary(),
		Stats: s.GetStats(),
	}
}
