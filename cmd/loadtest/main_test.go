package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/seglookup/internal/cluster"
)

// fakeRouter covers [1000, 2000] and has no segment for positions in [1500, 1599].
func fakeRouter(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/range", func(w http.ResponseWriter, _ *http.Request) {
		cluster.WriteResult(w, http.StatusOK, []cluster.DirectoryEntry{
			{ShardID: 0, Start: 1000, End: 1500},
			{ShardID: 1, Start: 1500, End: 2000},
		})
	})
	mux.HandleFunc("/media-segment", func(w http.ResponseWriter, r *http.Request) {
		pos, err := strconv.ParseInt(r.URL.Query().Get("position"), 10, 64)
		if !assert.NoError(t, err) {
			cluster.WriteError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		assert.GreaterOrEqual(t, pos, int64(1000))
		assert.LessOrEqual(t, pos, int64(2000))
		if pos >= 1500 && pos < 1600 {
			cluster.WriteError(w, http.StatusNotFound, "Segment not found")
			return
		}
		start := pos - pos%100
		cluster.WriteResult(w, http.StatusOK, cluster.Interval{Index: start / 100, Start: start, End: start + 100, Duration: 100})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestPositions tests that sampled positions stay inside the range
func TestPositions(t *testing.T) {
	points := positions(rand.New(rand.NewSource(1)), 10, 12, 200)
	require.Len(t, points, 200)
	seen := map[int64]bool{}
	for _, p := range points {
		assert.True(t, p >= 10 && p <= 12, p)
		seen[p] = true
	}
	assert.Len(t, seen, 3, "both ends are reachable")
}

// TestRun tests a full run against a fake router
func TestRun(t *testing.T) {
	server := fakeRouter(t)

	c := defaultConfig()
	c.Router = server.URL
	c.Queries = 200
	c.Concurrency = 4
	c.Seed = 7

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), c, &out, zap.NewNop()))

	var rep report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, 200, rep.Queries)
	assert.Equal(t, 200, rep.Found+rep.NotFound)
	assert.Positive(t, rep.Found)
	assert.Positive(t, rep.NotFound)
	assert.Zero(t, rep.Failed)
	assert.LessOrEqual(t, rep.Min, rep.Average)
	assert.LessOrEqual(t, rep.Average, rep.Max)
}

// TestRunCountsFailures tests that server errors are reported, not fatal
func TestRunCountsFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/range", func(w http.ResponseWriter, _ *http.Request) {
		cluster.WriteResult(w, http.StatusOK, []cluster.DirectoryEntry{{Start: 0, End: 10}})
	})
	mux.HandleFunc("/media-segment", func(w http.ResponseWriter, _ *http.Request) {
		cluster.WriteError(w, http.StatusBadGateway, "Shard unreachable")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := defaultConfig()
	c.Router = server.URL
	c.Queries = 5
	c.Seed = 1

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), c, &out, zap.NewNop()))
	var rep report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, 5, rep.Failed)
}

// TestRunNoShards tests that an empty directory stops the run
func TestRunNoShards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cluster.WriteError(w, http.StatusBadGateway, "no shards reachable")
	}))
	defer server.Close()

	c := defaultConfig()
	c.Router = server.URL
	err := run(context.Background(), c, &bytes.Buffer{}, zap.NewNop())
	assert.ErrorContains(t, err, "discover range")

	c.Queries = 0
	assert.Error(t, run(context.Background(), c, &bytes.Buffer{}, zap.NewNop()))
}
