package coordinator

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/seglookup/internal/cluster"
)

// maxParallelSummaries bounds the directory fan-out.
const maxParallelSummaries = 64

// ShardConn is the query surface a router needs from one shard.
type ShardConn interface {
	IndexLookuper
	RangeSummary(ctx context.Context) (cluster.RangeSummary, error)
}

// Dialer returns a connection to a configured shard.
type Dialer func(cluster.ShardTarget) ShardConn

// HTTPDialer dials shards through client.
func HTTPDialer(client *cluster.Client) Dialer {
	return func(t cluster.ShardTarget) ShardConn {
		return client.Shard(t)
	}
}

// Directory is an immutable routing table snapshot.
//
// Entries are sorted by Start and never overlap; neighbouring entries may
// share a boundary timestamp. Missing lists configured shards that could not
// be summarized when the snapshot was built; their time ranges are unroutable
// until the next build.
type Directory struct {
	Entries []cluster.DirectoryEntry `json:"entries"`
	Missing []int                    `json:"missing"`
	Version uint64                   `json:"version"`
	BuiltAt time.Time                `json:"builtAt"`
}

// Find returns the entry whose range covers ts. When ts sits on a shared
// boundary the earlier entry wins.
func (d *Directory) Find(ts int64) (cluster.DirectoryEntry, bool) {
	for _, e := range d.Entries {
		if e.Covers(ts) {
			return e, true
		}
		if ts < e.Start {
			break
		}
	}
	return cluster.DirectoryEntry{}, false
}

// IsMissing reports whether shardID was left out of this snapshot.
func (d *Directory) IsMissing(shardID int) bool {
	return slices.Contains(d.Missing, shardID)
}

// BuildDirectory asks every target for its range summary concurrently and
// waits for all of them. A shard that fails is left out and reported in both
// Missing and the returned error; the directory is still usable.
func BuildDirectory(ctx context.Context, targets []cluster.ShardTarget, dial Dialer) (*Directory, error) {
	summaries := make([]*cluster.RangeSummary, len(targets))
	failures := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(maxParallelSummaries)
	for i, t := range targets {
		g.Go(func() error {
			rs, err := dial(t).RangeSummary(ctx)
			switch {
			case err != nil:
				failures[i] = fmt.Errorf("shard %d (%s): %w", t.ID, t.Addr, err)
			case rs.ShardID != t.ID:
				failures[i] = fmt.Errorf("shard %d (%s): reports shard id %d", t.ID, t.Addr, rs.ShardID)
			default:
				summaries[i] = &rs
			}
			return nil
		})
	}
	// Every goroutine reports through failures; Wait is only the join.
	_ = g.Wait()

	dir := &Directory{BuiltAt: time.Now()}
	for i, t := range targets {
		if summaries[i] == nil {
			dir.Missing = append(dir.Missing, t.ID)
			continue
		}
		rs := summaries[i]
		dir.Entries = append(dir.Entries, cluster.DirectoryEntry{
			ShardID: t.ID,
			Addr:    t.Addr,
			Start:   rs.Start,
			End:     rs.End,
			Length:  rs.Length,
			Offset:  rs.Offset,
		})
	}

	slices.SortFunc(dir.Entries, func(a, b cluster.DirectoryEntry) int {
		return cmp.Compare(a.Start, b.Start)
	})

	kept := dir.Entries[:0]
	for _, e := range dir.Entries {
		if n := len(kept); n > 0 && e.Start < kept[n-1].End {
			prev := kept[n-1]
			failures = append(failures, fmt.Errorf("shard %d [%d,%d] overlaps shard %d [%d,%d]",
				e.ShardID, e.Start, e.End, prev.ShardID, prev.Start, prev.End))
			dir.Missing = append(dir.Missing, e.ShardID)
			continue
		}
		kept = append(kept, e)
	}
	dir.Entries = kept
	slices.Sort(dir.Missing)

	return dir, multierr.Combine(failures...)
}
