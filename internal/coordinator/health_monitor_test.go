package coordinator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/dreamware/seglookup/internal/cluster"
)

func twoShards() []cluster.ShardTarget {
	return []cluster.ShardTarget{
		{ID: 0, Addr: "http://localhost:8901"},
		{ID: 1, Addr: "http://localhost:8902"},
	}
}

// TestNewHealthMonitor verifies the defaults of a fresh monitor.
func TestNewHealthMonitor(t *testing.T) {
	monitor := NewHealthMonitor(5*time.Second, cluster.NewClient(time.Second), nil)
	defer monitor.Stop()

	assert.Equal(t, 5*time.Second, monitor.interval)
	assert.Equal(t, 3, monitor.maxFailures)
	assert.NotNil(t, monitor.checkFunc)
	assert.NotNil(t, monitor.log)
	assert.Empty(t, monitor.GetAllShardHealth())
}

// TestHealthMonitorStart verifies every shard is checked on each tick.
func TestHealthMonitorStart(t *testing.T) {
	monitor := NewHealthMonitor(20*time.Millisecond, cluster.NewClient(time.Second), zaptest.NewLogger(t))
	defer monitor.Stop()

	var checks atomic.Int64
	monitor.SetCheckFunction(func(ctx context.Context, _ cluster.ShardTarget) error {
		checks.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, twoShards)

	// initial round plus two ticks, for both shards
	require.Eventually(t, func() bool { return checks.Load() >= 6 }, time.Second, 5*time.Millisecond)
	assert.True(t, monitor.IsHealthy(0))
	assert.True(t, monitor.IsHealthy(1))
}

// TestHealthMonitorShardFailure verifies a shard turns unhealthy after
// three consecutive failures and the callback fires once.
func TestHealthMonitorShardFailure(t *testing.T) {
	monitor := NewHealthMonitor(10*time.Millisecond, cluster.NewClient(time.Second), zap.NewNop())
	defer monitor.Stop()

	var failing atomic.Bool
	monitor.SetCheckFunction(func(ctx context.Context, s cluster.ShardTarget) error {
		if s.ID == 0 && failing.Load() {
			return errors.New("shard is down")
		}
		return nil
	})

	var mu sync.Mutex
	var unhealthy []int
	monitor.SetOnUnhealthy(func(id int) {
		mu.Lock()
		unhealthy = append(unhealthy, id)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, twoShards)

	require.Eventually(t, func() bool { return monitor.IsHealthy(0) && monitor.IsHealthy(1) }, time.Second, 5*time.Millisecond)

	failing.Store(true)
	require.Eventually(t, func() bool { return !monitor.IsHealthy(0) }, time.Second, 5*time.Millisecond)
	assert.True(t, monitor.IsHealthy(1))

	// more failing rounds must not repeat the callback
	time.Sleep(50 * time.Millisecond)

	health := monitor.GetShardHealth(0)
	require.NotNil(t, health)
	assert.Equal(t, healthStatusUnhealthy, health.Status)
	assert.GreaterOrEqual(t, health.ConsecutiveFails, 3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(unhealthy) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{0}, unhealthy)
	mu.Unlock()
}

// TestHealthMonitorShardRecovery verifies OnHealthy fires on the first
// success and again after an unhealthy shard recovers.
func TestHealthMonitorShardRecovery(t *testing.T) {
	monitor := NewHealthMonitor(10*time.Millisecond, cluster.NewClient(time.Second), zap.NewNop())
	defer monitor.Stop()

	var down atomic.Bool
	down.Store(true)
	monitor.SetCheckFunction(func(ctx context.Context, _ cluster.ShardTarget) error {
		if down.Load() {
			return errors.New("connection refused")
		}
		return nil
	})

	var healthy atomic.Int64
	monitor.SetOnHealthy(func(id int) {
		assert.Equal(t, 2, id)
		healthy.Add(1)
	})

	shards := func() []cluster.ShardTarget {
		return []cluster.ShardTarget{{ID: 2, Addr: "localhost:8903"}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, shards)

	require.Eventually(t, func() bool {
		h := monitor.GetShardHealth(2)
		return h != nil && h.Status == healthStatusUnhealthy
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, healthy.Load())

	down.Store(false)
	require.Eventually(t, func() bool { return monitor.IsHealthy(2) }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return healthy.Load() == 1 }, time.Second, 5*time.Millisecond)

	health := monitor.GetShardHealth(2)
	require.NotNil(t, health)
	assert.Equal(t, 0, health.ConsecutiveFails)
	assert.False(t, health.LastHealthy.IsZero())
}

// TestHealthMonitorShardRemoval verifies shards dropped from the provider are forgotten.
func TestHealthMonitorShardRemoval(t *testing.T) {
	monitor := NewHealthMonitor(10*time.Millisecond, cluster.NewClient(time.Second), zap.NewNop())
	defer monitor.Stop()
	monitor.SetCheckFunction(func(context.Context, cluster.ShardTarget) error { return nil })

	var mu sync.Mutex
	shards := twoShards()
	provider := func() []cluster.ShardTarget {
		mu.Lock()
		defer mu.Unlock()
		return shards
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, provider)

	require.Eventually(t, func() bool { return len(monitor.GetAllShardHealth()) == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	shards = shards[:1]
	mu.Unlock()

	require.Eventually(t, func() bool { return len(monitor.GetAllShardHealth()) == 1 }, time.Second, 5*time.Millisecond)
	all := monitor.GetAllShardHealth()
	assert.Contains(t, all, 0)
	assert.NotContains(t, all, 1)
	assert.Nil(t, monitor.GetShardHealth(1))
}

// TestHealthMonitorStop verifies no checks run after Stop returns.
func TestHealthMonitorStop(t *testing.T) {
	monitor := NewHealthMonitor(10*time.Millisecond, cluster.NewClient(time.Second), zap.NewNop())

	var checks atomic.Int64
	monitor.SetCheckFunction(func(context.Context, cluster.ShardTarget) error {
		checks.Add(1)
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Start(nil, twoShards) // use the monitor's own context
	}()

	require.Eventually(t, func() bool { return checks.Load() > 0 }, time.Second, 5*time.Millisecond)
	monitor.Stop()
	<-done

	before := checks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, checks.Load())
}

// TestHealthMonitorHTTPCheck verifies the default check hits the shard's /health.
func TestHealthMonitorHTTPCheck(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	monitor := NewHealthMonitor(time.Hour, cluster.NewClient(time.Second), zap.NewNop())
	defer monitor.Stop()

	target := cluster.ShardTarget{ID: 0, Addr: server.URL}
	ctx := context.Background()

	monitor.checkShard(ctx, target)
	assert.True(t, monitor.IsHealthy(0))

	up.Store(false)
	for i := 0; i < 3; i++ {
		monitor.checkShard(ctx, target)
	}
	assert.False(t, monitor.IsHealthy(0))
	assert.Equal(t, 3, monitor.GetShardHealth(0).ConsecutiveFails)
}

// TestHealthMonitorConcurrency exercises readers while the loop runs.
func TestHealthMonitorConcurrency(t *testing.T) {
	monitor := NewHealthMonitor(time.Millisecond, cluster.NewClient(time.Second), zap.NewNop())
	defer monitor.Stop()
	monitor.SetCheckFunction(func(context.Context, cluster.ShardTarget) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, twoShards)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				monitor.IsHealthy(id % 2)
				monitor.GetShardHealth(id % 2)
				monitor.GetAllShardHealth()
			}
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(monitor.GetAllShardHealth()) == 2 }, time.Second, 5*time.Millisecond)
}
