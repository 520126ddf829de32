package coordinator

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/logger"
)

// RequestIDHeader carries the per-request ID on responses.
const RequestIDHeader = "X-Request-ID"

// NewHandler exposes a Router over HTTP:
//
//	GET  /health
//	GET  /range                  directory entries
//	GET  /media-segment?position=T
//	GET  /directory              current snapshot with version and missing shards
//	POST /directory/rebuild      full rebuild
func NewHandler(r *Router) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/range", r.handleRange)
	mux.HandleFunc("/media-segment", r.handleMediaSegment)
	mux.HandleFunc("/directory", r.handleDirectory)
	mux.HandleFunc("/directory/rebuild", r.handleRebuild)
	return r.withRequestID(mux)
}

// withRequestID tags every request with an ID and a logger carrying it.
func (r *Router) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logger.NewContextWithLogger(req.Context(), r.log.With(zap.String("request_id", id)))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) handleRange(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := r.GetRange(req.Context())
	if err != nil {
		cluster.WriteError(w, http.StatusBadGateway, "no shards reachable")
		return
	}
	cluster.WriteResult(w, http.StatusOK, entries)
}

func (r *Router) handleMediaSegment(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ts, err := ParseTimestamp(req.URL.Query().Get("position"))
	if err != nil {
		r.metrics.LookupCompleted(ClientError.String())
		cluster.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	iv, err := r.FindSegment(req.Context(), ts)
	if err != nil {
		status, msg := statusFor(err)
		cluster.WriteError(w, status, msg)
		return
	}
	cluster.WriteResult(w, http.StatusOK, iv)
}

func (r *Router) handleDirectory(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d, _ := r.Directory(req.Context())
	cluster.WriteResult(w, http.StatusOK, d)
}

func (r *Router) handleRebuild(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		cluster.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d, err := r.Rebuild(context.WithoutCancel(req.Context()))
	if err != nil {
		logger.FromContext(req.Context(), r.log).Warn("Rebuild incomplete", zap.Error(err))
	}
	cluster.WriteResult(w, http.StatusOK, d)
}

// statusFor maps a FindSegment error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	var te *cluster.TransportError
	switch {
	case errors.Is(err, ErrInvalidTimestamp):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, ErrNoShard):
		return http.StatusNotFound, "No shard contains this timestamp"
	case errors.Is(err, ErrSegmentNotFound):
		return http.StatusNotFound, "Segment not found"
	case errors.Is(err, ErrDataIntegrity):
		return http.StatusInternalServerError, "Invalid data from shard"
	case errors.As(err, &te) && te.Timeout():
		return http.StatusGatewayTimeout, "Shard timed out"
	case errors.As(err, &te):
		return http.StatusBadGateway, "Shard unreachable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
