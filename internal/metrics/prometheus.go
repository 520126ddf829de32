package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// latencyBuckets are in seconds; shard round-trips sit in the low milliseconds.
var latencyBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5,
}

type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

type routerMetrics struct {
	lookups          *prometheus.CounterVec
	probesPerSearch  prometheus.Histogram
	probeDuration    prometheus.Histogram
	directoryEntries prometheus.Gauge
	directoryMissing prometheus.Gauge
	directoryBuilds  prometheus.Counter
}

// NewRouter registers router collectors with reg.
func NewRouter(reg prometheus.Registerer) RouterMetrics {
	m := &routerMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seglookup_router_lookups_total",
			Help: "Segment lookups by outcome",
		}, []string{"outcome"}),

		probesPerSearch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seglookup_router_search_probes",
			Help:    "Point lookups issued per remote search",
			Buckets: prometheus.LinearBuckets(1, 2, 16),
		}),

		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seglookup_router_probe_duration_seconds",
			Help:    "Latency of a single shard point lookup",
			Buckets: latencyBuckets,
		}),

		directoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seglookup_router_directory_entries",
			Help: "Shards present in the current directory",
		}),

		directoryMissing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seglookup_router_directory_missing",
			Help: "Configured shards absent from the current directory",
		}),

		directoryBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seglookup_router_directory_builds_total",
			Help: "Directory builds completed",
		}),
	}

	reg.MustRegister(
		m.lookups,
		m.probesPerSearch,
		m.probeDuration,
		m.directoryEntries,
		m.directoryMissing,
		m.directoryBuilds,
	)
	return m
}

func (m *routerMetrics) LookupCompleted(outcome string) {
	m.lookups.WithLabelValues(outcome).Inc()
}

func (m *routerMetrics) SearchProbes(n int) {
	m.probesPerSearch.Observe(float64(n))
}

func (m *routerMetrics) ProbeDuration() Timer {
	return newTimer(m.probeDuration)
}

func (m *routerMetrics) DirectoryBuilt(entries, missing int) {
	m.directoryBuilds.Inc()
	m.directoryEntries.Set(float64(entries))
	m.directoryMissing.Set(float64(missing))
}

type shardMetrics struct {
	queries *prometheus.CounterVec
}

// NewShard registers shard collectors with reg, labelled with the shard ID.
func NewShard(reg prometheus.Registerer, shardID int) ShardMetrics {
	m := &shardMetrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seglookup_shard_queries_total",
			Help:        "Shard queries by endpoint and result",
			ConstLabels: prometheus.Labels{"shard_id": strconv.Itoa(shardID)},
		}, []string{"endpoint", "found"}),
	}
	reg.MustRegister(m.queries)
	return m
}

func (m *shardMetrics) QueryServed(endpoint string, found bool) {
	m.queries.WithLabelValues(endpoint, strconv.FormatBool(found)).Inc()
}

var (
	_ RouterMetrics = (*routerMetrics)(nil)
	_ ShardMetrics  = (*shardMetrics)(nil)
)
