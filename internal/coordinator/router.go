package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/logger"
	"github.com/dreamware/seglookup/internal/metrics"
)

// Config wires a Router.
type Config struct {
	Shards   []cluster.ShardTarget // Static shard list; one entry is the single-shard variant
	Dial     Dialer                // Defaults to HTTPDialer with cluster.DefaultTimeout
	Searcher Searcher              // Defaults to BinarySearch
	Logger   *zap.Logger
	Metrics  metrics.RouterMetrics
}

// Router answers "which interval covers timestamp T" by picking a shard from
// its Directory snapshot and searching that shard remotely.
//
// The directory is published through an atomic pointer: readers never see a
// partially built table, and a query that started on one snapshot finishes on
// it even if a rebuild publishes a newer one meanwhile.
type Router struct {
	shards   []cluster.ShardTarget
	dial     Dialer
	searcher Searcher
	log      *zap.Logger
	metrics  metrics.RouterMetrics

	dir     atomic.Pointer[Directory]
	buildMu sync.Mutex // serializes builds
	version uint64     // guarded by buildMu
}

// NewRouter validates cfg and returns a Router with no directory yet.
// Call Rebuild at start-up, or let the first query build it.
func NewRouter(cfg Config) (*Router, error) {
	topo := cluster.Topology{Shards: cfg.Shards}
	if err := topo.Validate(); err != nil {
		return nil, err
	}

	r := &Router{
		shards:   append([]cluster.ShardTarget(nil), cfg.Shards...),
		dial:     cfg.Dial,
		searcher: cfg.Searcher,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if r.dial == nil {
		r.dial = HTTPDialer(cluster.NewClient(cluster.DefaultTimeout))
	}
	if r.searcher == nil {
		r.searcher = BinarySearch{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = metrics.NopRouter()
	}
	return r, nil
}

// Shards returns the configured shard list.
func (r *Router) Shards() []cluster.ShardTarget {
	return append([]cluster.ShardTarget(nil), r.shards...)
}

// Snapshot returns the current directory, or nil if none was built yet.
func (r *Router) Snapshot() *Directory {
	return r.dir.Load()
}

// Rebuild re-runs the whole aggregation and publishes the result. Partial
// failures are returned but the reduced directory is still published.
func (r *Router) Rebuild(ctx context.Context) (*Directory, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	return r.rebuildLocked(ctx)
}

func (r *Router) rebuildLocked(ctx context.Context) (*Directory, error) {
	dir, err := BuildDirectory(ctx, r.shards, r.dial)
	r.version++
	dir.Version = r.version
	r.dir.Store(dir)

	r.metrics.DirectoryBuilt(len(dir.Entries), len(dir.Missing))
	fields := []zap.Field{
		zap.Uint64("version", dir.Version),
		zap.Int("entries", len(dir.Entries)),
		zap.Ints("missing", dir.Missing),
	}
	if err != nil {
		r.log.Warn("Directory built with missing shards", append(fields, zap.Error(err))...)
	} else {
		r.log.Info("Directory built", fields...)
	}
	return dir, err
}

// Directory returns the current snapshot, building it on first use.
// Concurrent first callers share a single build. The error is non-nil only
// when that build left the directory with no entries at all.
func (r *Router) Directory(ctx context.Context) (*Directory, error) {
	if d := r.dir.Load(); d != nil {
		return d, nil
	}
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if d := r.dir.Load(); d != nil {
		return d, nil
	}
	// The build outlives the request that triggered it.
	d, err := r.rebuildLocked(context.WithoutCancel(ctx))
	if len(d.Entries) == 0 {
		return d, err
	}
	return d, nil
}

// ShardRecovered rebuilds the directory if shardID is absent from the current
// snapshot. It is a no-op for shards that are already routable.
func (r *Router) ShardRecovered(ctx context.Context, shardID int) error {
	if d := r.dir.Load(); d != nil && !d.IsMissing(shardID) {
		return nil
	}
	r.log.Info("Rebuilding directory for recovered shard", zap.Int("shard_id", shardID))
	_, err := r.Rebuild(ctx)
	return err
}

// GetRange returns the directory entries, sorted by start, so callers can
// discover the valid query domain. It fails when no shard is routable.
func (r *Router) GetRange(ctx context.Context) ([]cluster.DirectoryEntry, error) {
	d, err := r.Directory(ctx)
	if d == nil || len(d.Entries) == 0 {
		if err == nil {
			err = ErrNoShard
		}
		return nil, err
	}
	return append([]cluster.DirectoryEntry(nil), d.Entries...), nil
}

// FindSegment returns the interval covering ts.
//
// Errors fall into the categories reported by Classify: ErrNoShard and
// ErrSegmentNotFound are NotFound; ErrDataIntegrity and transport failures are
// SystemError. Nothing is retried here.
func (r *Router) FindSegment(ctx context.Context, ts int64) (iv cluster.Interval, err error) {
	defer func() {
		r.metrics.LookupCompleted(Classify(err).String())
	}()

	// Build failures are logged by the build and leave shards out of d.
	d, _ := r.Directory(ctx)
	entry, ok := d.Find(ts)
	if !ok {
		return cluster.Interval{}, ErrNoShard
	}

	conn := instrumented{
		IndexLookuper: r.dial(cluster.ShardTarget{ID: entry.ShardID, Addr: entry.Addr}),
		metrics:       r.metrics,
	}
	iv, probes, err := r.searcher.Search(ctx, conn, entry, ts)
	r.metrics.SearchProbes(probes)

	log := logger.FromContext(ctx, r.log).With(zap.Int64("position", ts), zap.Int("shard_id", entry.ShardID), zap.Int("probes", probes))
	switch Classify(err) {
	case Success:
		log.Debug("Segment found", zap.Int64("index", iv.Index))
	case NotFound:
		log.Info("Segment not found in covering shard")
	default:
		log.Error("Segment search failed", zap.Bool("retryable", Retryable(err)), zap.Error(err))
	}
	return iv, err
}

// instrumented times each point lookup.
type instrumented struct {
	IndexLookuper
	metrics metrics.RouterMetrics
}

func (i instrumented) LookupByIndex(ctx context.Context, index int64) (cluster.Interval, error) {
	defer i.metrics.ProbeDuration().ObserveDuration()
	return i.IndexLookuper.LookupByIndex(ctx, index)
}
