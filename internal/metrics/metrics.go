// Package metrics defines the instrumentation surface of the router and shard
// processes. Components depend on the interfaces here; the Prometheus
// implementation is wired in by the binaries and the no-op one by tests.
package metrics

// Timer measures one operation. Call ObserveDuration when it completes.
type Timer interface {
	ObserveDuration()
}

// Lookup outcomes, used as label values.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeNotFound    = "not_found"
	OutcomeSystemError = "system_error"
)

// RouterMetrics instruments shard selection, remote search and directory builds.
type RouterMetrics interface {
	// LookupCompleted counts one FindSegment call by outcome.
	LookupCompleted(outcome string)
	// SearchProbes records how many point lookups one search issued.
	SearchProbes(n int)
	// ProbeDuration times a single point lookup round-trip.
	ProbeDuration() Timer
	// DirectoryBuilt records the result of one directory build.
	DirectoryBuilt(entries, missing int)
}

// ShardMetrics instruments the shard query surface.
type ShardMetrics interface {
	// QueryServed counts one request by endpoint and whether it found data.
	QueryServed(endpoint string, found bool)
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

type nopRouter struct{}

func (nopRouter) LookupCompleted(string) {}
func (nopRouter) SearchProbes(int)       {}
func (nopRouter) ProbeDuration() Timer   { return nopTimer{} }
func (nopRouter) DirectoryBuilt(int, int) {}

type nopShard struct{}

func (nopShard) QueryServed(string, bool) {}

// NopRouter returns RouterMetrics that record nothing.
func NopRouter() RouterMetrics { return nopRouter{} }

// NopShard returns ShardMetrics that record nothing.
func NopShard() ShardMetrics { return nopShard{} }
