package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/seglookup/internal/cluster"
)

// Shard health states.
const (
	healthStatusUnknown   = "unknown"
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// ShardHealth tracks the health status of a single shard.
// Thread-safe: Protected by HealthMonitor's mutex when accessed.
type ShardHealth struct {
	LastCheck        time.Time // Timestamp of the last health check attempt
	LastHealthy      time.Time // Timestamp of the last successful health check
	ShardID          int       // Shard identifier
	Status           string    // Current status: "healthy", "unhealthy", "unknown"
	ConsecutiveFails int       // Number of consecutive failed health checks
}

// HealthMonitor periodically probes every configured shard.
//
// It never edits the routing directory itself. Instead it reports transitions
// through callbacks; the router binary uses OnHealthy to rebuild the directory
// when a shard that was left out becomes reachable again.
type HealthMonitor struct {
	shards      map[int]*ShardHealth                                  // Current health status per shard
	checkFunc   func(ctx context.Context, t cluster.ShardTarget) error // Performs one health check
	onUnhealthy func(shardID int)                                     // Called when a shard becomes unhealthy
	onHealthy   func(shardID int)                                     // Called when a shard becomes healthy
	log         *zap.Logger
	ctx         context.Context    // Context for cancellation
	cancel      context.CancelFunc // Cancel function for shutdown
	interval    time.Duration      // How often to check shard health
	mu          sync.RWMutex       // Protects shards map
	wg          sync.WaitGroup     // Tracks the loop and callbacks for shutdown
	maxFailures int                // Failures before marking unhealthy
}

// NewHealthMonitor creates a monitor that checks shards every interval using
// client. Shards are marked unhealthy after 3 consecutive failures.
func NewHealthMonitor(interval time.Duration, client *cluster.Client, log *zap.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = zap.NewNop()
	}

	return &HealthMonitor{
		interval:    interval,
		maxFailures: 3,
		shards:      make(map[int]*ShardHealth),
		checkFunc: func(ctx context.Context, t cluster.ShardTarget) error {
			return client.Shard(t).Health(ctx)
		},
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetOnUnhealthy sets the callback invoked when a shard becomes unhealthy.
func (h *HealthMonitor) SetOnUnhealthy(callback func(shardID int)) {
	h.onUnhealthy = callback
}

// SetOnHealthy sets the callback invoked when a shard's status changes to
// healthy, including its first successful check.
func (h *HealthMonitor) SetOnHealthy(callback func(shardID int)) {
	h.onHealthy = callback
}

// SetCheckFunction overrides the health check. Useful for tests.
func (h *HealthMonitor) SetCheckFunction(checkFunc func(ctx context.Context, t cluster.ShardTarget) error) {
	h.checkFunc = checkFunc
}

// Start runs the monitoring loop in the current goroutine until ctx or the
// monitor is canceled.
func (h *HealthMonitor) Start(ctx context.Context, shardProvider func() []cluster.ShardTarget) {
	h.wg.Add(1)
	defer h.wg.Done()

	if ctx == nil {
		ctx = h.ctx
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.log.Info("Health monitor started", zap.Duration("interval", h.interval))

	h.checkAll(ctx, shardProvider())

	for {
		select {
		case <-ticker.C:
			h.checkAll(ctx, shardProvider())
		case <-ctx.Done():
			h.log.Info("Health monitor stopping", zap.String("reason", "context canceled"))
			return
		case <-h.ctx.Done():
			h.log.Info("Health monitor stopping", zap.String("reason", "stopped"))
			return
		}
	}
}

// Stop cancels the loop and waits for it and any running callbacks.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
	h.log.Info("Health monitor stopped")
}

// checkAll checks every shard and forgets shards no longer provided.
func (h *HealthMonitor) checkAll(ctx context.Context, shards []cluster.ShardTarget) {
	current := make(map[int]bool, len(shards))
	for _, s := range shards {
		current[s.ID] = true
		h.checkShard(ctx, s)
	}

	h.mu.Lock()
	for id := range h.shards {
		if !current[id] {
			delete(h.shards, id)
			h.log.Info("Removed shard from health monitoring", zap.Int("shard_id", id))
		}
	}
	h.mu.Unlock()
}

// checkShard performs one check and applies the state transition.
func (h *HealthMonitor) checkShard(ctx context.Context, t cluster.ShardTarget) {
	h.mu.Lock()
	health, exists := h.shards[t.ID]
	if !exists {
		health = &ShardHealth{
			ShardID:     t.ID,
			Status:      healthStatusUnknown,
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		h.shards[t.ID] = health
	}
	h.mu.Unlock()

	// No lock held during network I/O.
	err := h.checkFunc(ctx, t)

	h.mu.Lock()
	defer h.mu.Unlock()

	health.LastCheck = time.Now()
	previous := health.Status

	if err != nil {
		health.ConsecutiveFails++
		h.log.Warn("Shard health check failed",
			zap.Int("shard_id", t.ID),
			zap.Int("attempt", health.ConsecutiveFails),
			zap.Int("max_failures", h.maxFailures),
			zap.Error(err))

		if health.ConsecutiveFails >= h.maxFailures {
			health.Status = healthStatusUnhealthy
			if previous != healthStatusUnhealthy {
				h.log.Warn("Shard marked unhealthy", zap.Int("shard_id", t.ID))
				h.notify(h.onUnhealthy, t.ID)
			}
		}
		return
	}

	health.Status = healthStatusHealthy
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
	if previous != healthStatusHealthy {
		if previous == healthStatusUnhealthy {
			h.log.Info("Shard recovered", zap.Int("shard_id", t.ID))
		}
		h.notify(h.onHealthy, t.ID)
	}
}

// notify runs callback outside the lock, tracked so Stop waits for it.
func (h *HealthMonitor) notify(callback func(int), shardID int) {
	if callback == nil {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		callback(shardID)
	}()
}

// GetShardHealth returns a copy of a shard's health, or nil if it is not monitored.
func (h *HealthMonitor) GetShardHealth(shardID int) *ShardHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.shards[shardID]
	if !exists {
		return nil
	}
	cp := *health
	return &cp
}

// GetAllShardHealth returns a copy of every monitored shard's health.
func (h *HealthMonitor) GetAllShardHealth() map[int]*ShardHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[int]*ShardHealth, len(h.shards))
	for id, health := range h.shards {
		cp := *health
		result[id] = &cp
	}
	return result
}

// IsHealthy reports whether a shard is currently healthy.
func (h *HealthMonitor) IsHealthy(shardID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.shards[shardID]
	return exists && health.Status == healthStatusHealthy
}
