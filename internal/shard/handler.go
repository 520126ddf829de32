package shard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/metrics"
)

// HandlerConfig tunes the shard's HTTP surface.
type HandlerConfig struct {
	// Delay is added before every /range and /query response to emulate
	// network distance in load tests. Zero disables it.
	Delay   time.Duration
	Logger  *zap.Logger
	Metrics metrics.ShardMetrics
}

type handler struct {
	shard   *Shard
	delay   time.Duration
	log     *zap.Logger
	metrics metrics.ShardMetrics
}

// NewHandler exposes a shard over HTTP:
//
//	GET /health         liveness
//	GET /range          range summary
//	GET /query?index=N  interval at global index N, 404 when not held
//	GET /stats          shard info and operation counts
func NewHandler(s *Shard, cfg HandlerConfig) http.Handler {
	h := &handler{
		shard:   s,
		delay:   cfg.Delay,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = metrics.NopShard()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/range", h.handleRange)
	mux.HandleFunc("/query", h.handleQuery)
	mux.HandleFunc("/stats", h.handleStats)
	return mux
}

func (h *handler) handleRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rs := h.shard.RangeSummary()
	h.metrics.QueryServed("range", true)
	if !h.wait(r) {
		return
	}
	cluster.WriteResult(w, http.StatusOK, rs)
}

func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	index, err := strconv.ParseInt(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		cluster.WriteError(w, http.StatusBadRequest, "invalid index")
		return
	}

	iv, err := h.shard.LookupByIndex(index)
	h.metrics.QueryServed("query", err == nil)
	if !h.wait(r) {
		return
	}
	if err != nil {
		if errors.Is(err, ErrIndexOutOfRange) {
			cluster.WriteResult(w, http.StatusNotFound, nil)
			return
		}
		h.log.Error("Lookup failed", zap.Int64("index", index), zap.Error(err))
		cluster.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cluster.WriteResult(w, http.StatusOK, iv)
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cluster.WriteResult(w, http.StatusOK, h.shard.Info())
}

// wait applies the configured delay; it returns false if the client went away.
func (h *handler) wait(r *http.Request) bool {
	if h.delay <= 0 {
		return true
	}
	t := time.NewTimer(h.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}
