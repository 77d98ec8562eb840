// Package handlers exposes the observability core's read-only query surface
// over HTTP: the aggregated health snapshot and the buffered log/metric
// histories. Authorization is the caller's concern; a permission hook can
// guard the debug routes.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/thc1006/obscore/pkg/core"
	"github.com/thc1006/obscore/pkg/health"
	"github.com/thc1006/obscore/pkg/logging"
)

// PermissionFunc decides whether a request may read the debug surface.
type PermissionFunc func(r *http.Request) bool

const defaultLogLimit = 100

// Handler serves the status and debug routes.
type Handler struct {
	core      *core.Core
	authorize PermissionFunc
	logger    *logging.Logger
}

// New creates a handler. A nil authorize leaves the debug routes open.
func New(c *core.Core, authorize PermissionFunc) *Handler {
	return &Handler{
		core:      c,
		authorize: authorize,
		logger:    c.Logger("status"),
	}
}

// Routes registers the handler's endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/debug/logs", h.guarded(h.handleLogs)).Methods(http.MethodGet)
	r.HandleFunc("/debug/metrics", h.guarded(h.handleMetrics)).Methods(http.MethodGet)
}

// healthStatusCode maps the aggregate status onto the HTTP convention:
// healthy 200, degraded 206, unhealthy 503.
func healthStatusCode(s health.Status) int {
	switch s {
	case health.StatusHealthy:
		return http.StatusOK
	case health.StatusDegraded:
		return http.StatusPartialContent
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.core.PerformHealthCheck(r.Context())
	h.writeJSON(w, healthStatusCode(snapshot.Overall), snapshot)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var level logging.Level
	if raw := r.URL.Query().Get("level"); raw != "" {
		level = logging.Level(raw)
		if !level.Valid() {
			http.Error(w, "invalid level", http.StatusBadRequest)
			return
		}
	}

	entries := h.core.RecentLogs(limit, level)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count": len(entries),
		"logs":  entries,
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	entries := h.core.QueryMetrics(name, since)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"metrics": entries,
	})
}

func (h *Handler) guarded(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.authorize != nil && !h.authorize(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", logging.Fields{
			"error": err.Error(),
		})
	}
}
