package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRouter(reg)
	require.NotNil(t, m)

	m.LookupCompleted(OutcomeSuccess)
	m.LookupCompleted(OutcomeSuccess)
	m.LookupCompleted(OutcomeNotFound)
	m.SearchProbes(17)
	timer := m.ProbeDuration()
	require.NotNil(t, timer)
	timer.ObserveDuration()
	m.DirectoryBuilt(3, 1)

	rm := m.(*routerMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(rm.lookups.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.lookups.WithLabelValues(OutcomeNotFound)))
	assert.Equal(t, 3.0, testutil.ToFloat64(rm.directoryEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.directoryMissing))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.directoryBuilds))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestNewShard(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShard(reg, 2)

	m.QueryServed("query", true)
	m.QueryServed("query", false)
	m.QueryServed("range", true)

	sm := m.(*shardMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.queries.WithLabelValues("query", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.queries.WithLabelValues("query", "false")))
	assert.Equal(t, 3, testutil.CollectAndCount(sm.queries, "seglookup_shard_queries_total"))
}

func TestNop(t *testing.T) {
	r := NopRouter()
	r.LookupCompleted(OutcomeSystemError)
	r.SearchProbes(1)
	r.ProbeDuration().ObserveDuration()
	r.DirectoryBuilt(0, 0)
	NopShard().QueryServed("range", true)
}
