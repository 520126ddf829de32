package storage

import (
	"errors"
	"fmt"

	"github.com/dreamware/seglookup/internal/cluster"
)

var (
	// ErrEmptyStore is returned when a store is built from no intervals.
	ErrEmptyStore = errors.New("store has no intervals")

	// ErrNotContiguous is returned when intervals are unordered or leave a gap.
	ErrNotContiguous = errors.New("intervals are not contiguous")
)

// Store is an immutable, positionally indexed sequence of intervals.
// All implementations must be safe for any number of concurrent readers.
type Store interface {
	// Len returns the number of intervals held.
	Len() int64

	// At returns the interval at local position pos (0-based).
	// The boolean is false when pos is outside [0, Len()).
	At(pos int64) (cluster.Interval, bool)

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Intervals int64 // Number of intervals
	Start     int64 // Start of the first interval
	End       int64 // End of the last interval
}

// MemoryStore implements Store over a slice that is never mutated after
// construction, so reads take no locks.
type MemoryStore struct {
	intervals []cluster.Interval
}

// NewMemoryStore validates and copies intervals into a new store.
//
// The input must be non-empty, every interval must satisfy end > start, and
// consecutive intervals must share their boundary with dense indices.
func NewMemoryStore(intervals []cluster.Interval) (*MemoryStore, error) {
	if len(intervals) == 0 {
		return nil, ErrEmptyStore
	}
	if err := VerifyContiguous(intervals); err != nil {
		return nil, err
	}

	stored := make([]cluster.Interval, len(intervals))
	copy(stored, intervals)
	return &MemoryStore{intervals: stored}, nil
}

// Len returns the number of intervals held.
func (m *MemoryStore) Len() int64 {
	return int64(len(m.intervals))
}

// At returns the interval at local position pos.
func (m *MemoryStore) At(pos int64) (cluster.Interval, bool) {
	if pos < 0 || pos >= int64(len(m.intervals)) {
		return cluster.Interval{}, false
	}
	return m.intervals[pos], true
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	return StoreStats{
		Intervals: int64(len(m.intervals)),
		Start:     m.intervals[0].Start,
		End:       m.intervals[len(m.intervals)-1].End,
	}
}

// VerifyContiguous checks the gap-free invariant:
// interval[i].end == interval[i+1].start and interval[i+1].index == interval[i].index+1.
func VerifyContiguous(intervals []cluster.Interval) error {
	for i, iv := range intervals {
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrNotContiguous, err)
		}
		if i == 0 {
			continue
		}
		prev := intervals[i-1]
		if prev.End != iv.Start {
			return fmt.Errorf("%w: interval %d ends at %d, interval %d starts at %d",
				ErrNotContiguous, prev.Index, prev.End, iv.Index, iv.Start)
		}
		if iv.Index != prev.Index+1 {
			return fmt.Errorf("%w: index %d follows %d", ErrNotContiguous, iv.Index, prev.Index)
		}
	}
	return nil
}
