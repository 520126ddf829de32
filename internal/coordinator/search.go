package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreamware/seglookup/internal/cluster"
)

// IndexLookuper is the one shard capability a search needs: fetch the
// interval at a global index. Each call is one network round-trip.
type IndexLookuper interface {
	LookupByIndex(ctx context.Context, index int64) (cluster.Interval, error)
}

// Searcher finds the interval covering ts inside one directory entry.
// It returns the number of point lookups issued alongside the result.
type Searcher interface {
	Name() string
	Search(ctx context.Context, shard IndexLookuper, entry cluster.DirectoryEntry, ts int64) (cluster.Interval, int, error)
}

// Searcher names accepted by SearcherByName.
const (
	SearchBinary = "binary"
	SearchLinear = "linear"
)

// SearcherByName returns the named search variant.
func SearcherByName(name string) (Searcher, error) {
	switch name {
	case "", SearchBinary:
		return BinarySearch{}, nil
	case SearchLinear:
		return LinearScan{}, nil
	default:
		return nil, fmt.Errorf("unknown search %q (want %s or %s)", name, SearchBinary, SearchLinear)
	}
}

// BinarySearch narrows the entry's index range by half on every probe, so a
// search costs at most ceil(log2(length))+1 round-trips.
//
// Neighbouring intervals share a boundary timestamp. A probe whose start equals
// ts is treated as being after ts unless it is the entry's first interval, so a
// boundary always resolves to the lower-indexed interval.
type BinarySearch struct{}

func (BinarySearch) Name() string { return SearchBinary }

func (BinarySearch) Search(ctx context.Context, shard IndexLookuper, entry cluster.DirectoryEntry, ts int64) (cluster.Interval, int, error) {
	low, high := entry.Offset, entry.LastIndex()
	probes := 0

	for low <= high {
		mid := low + (high-low)/2
		probes++
		iv, err := probe(ctx, shard, entry, mid)
		if err != nil {
			return cluster.Interval{}, probes, err
		}

		switch {
		case ts < iv.Start, ts == iv.Start && mid > entry.Offset:
			high = mid - 1
		case ts > iv.End:
			low = mid + 1
		default:
			return iv, probes, nil
		}
	}
	return cluster.Interval{}, probes, fmt.Errorf("shard %d: %w", entry.ShardID, ErrSegmentNotFound)
}

// LinearScan probes indices in order from the entry's first interval. It
// costs up to length round-trips and exists as a baseline to measure
// BinarySearch against.
type LinearScan struct{}

func (LinearScan) Name() string { return SearchLinear }

func (LinearScan) Search(ctx context.Context, shard IndexLookuper, entry cluster.DirectoryEntry, ts int64) (cluster.Interval, int, error) {
	probes := 0
	for i := entry.Offset; i <= entry.LastIndex(); i++ {
		probes++
		iv, err := probe(ctx, shard, entry, i)
		if err != nil {
			return cluster.Interval{}, probes, err
		}
		if iv.Contains(ts) {
			return iv, probes, nil
		}
		if ts < iv.Start {
			break
		}
	}
	return cluster.Interval{}, probes, fmt.Errorf("shard %d: %w", entry.ShardID, ErrSegmentNotFound)
}

// probe fetches one interval and checks it is the one asked for.
// Transport failures pass through untouched so callers can retry them; any
// other failure means the shard's data cannot be trusted.
func probe(ctx context.Context, shard IndexLookuper, entry cluster.DirectoryEntry, index int64) (cluster.Interval, error) {
	iv, err := shard.LookupByIndex(ctx, index)
	if err != nil {
		var te *cluster.TransportError
		if errors.As(err, &te) {
			return cluster.Interval{}, err
		}
		return cluster.Interval{}, fmt.Errorf("shard %d index %d: %w: %v", entry.ShardID, index, ErrDataIntegrity, err)
	}
	if iv.Index != index {
		return cluster.Interval{}, fmt.Errorf("shard %d: asked for index %d, got %d: %w", entry.ShardID, index, iv.Index, ErrDataIntegrity)
	}
	if err := iv.Validate(); err != nil {
		return cluster.Interval{}, fmt.Errorf("shard %d: %w: %v", entry.ShardID, ErrDataIntegrity, err)
	}
	return iv, nil
}
