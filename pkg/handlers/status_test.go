package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thc1006/obscore/pkg/config"
	"github.com/thc1006/obscore/pkg/core"
	"github.com/thc1006/obscore/pkg/health"
)

func newTestRouter(t *testing.T, authorize PermissionFunc, probes map[string]health.ProbeFunc) (*mux.Router, *core.Core) {
	t.Helper()
	cfg := config.Default()
	cfg.ProbeTimeout = 500 * time.Millisecond
	c := core.New(cfg, nil)
	t.Cleanup(c.Close)

	for name, probe := range probes {
		c.RegisterProbe(name, probe)
	}

	router := mux.NewRouter()
	New(c, authorize).Routes(router)
	return router, c
}

func get(router *mux.Router, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func staticProbe(status health.Status) health.ProbeFunc {
	return func(ctx context.Context) (*health.Check, error) {
		return &health.Check{Status: status}, nil
	}
}

func TestHealthStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		statuses []health.Status
		expected int
	}{
		{"healthy", []health.Status{health.StatusHealthy}, http.StatusOK},
		{"degraded", []health.Status{health.StatusHealthy, health.StatusDegraded}, http.StatusPartialContent},
		{"unhealthy", []health.Status{health.StatusDegraded, health.StatusUnhealthy}, http.StatusServiceUnavailable},
		{"no probes", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probes := make(map[string]health.ProbeFunc)
			for i, st := range tt.statuses {
				probes[string(rune('a'+i))] = staticProbe(st)
			}
			router, _ := newTestRouter(t, nil, probes)

			rec := get(router, "/health")
			assert.Equal(t, tt.expected, rec.Code)

			var body health.SystemHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Services, len(tt.statuses))
		})
	}
}

func TestLogsEndpoint(t *testing.T) {
	router, c := newTestRouter(t, nil, nil)
	logger := c.Logger("api")
	logger.Info("hello", nil)
	logger.Error("bad", nil)
	logger.Error("worse", nil)

	rec := get(router, "/debug/logs?limit=5&level=error")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int              `json:"count"`
		Logs  []map[string]any `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	for _, entry := range body.Logs {
		assert.Equal(t, "error", entry["level"])
	}
}

func TestLogsEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil)

	assert.Equal(t, http.StatusBadRequest, get(router, "/debug/logs?limit=nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/debug/logs?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/debug/logs?level=fatal").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, c := newTestRouter(t, nil, nil)
	c.Metrics().Increment("http_requests_total", 1, nil)
	c.Metrics().Gauge("queue_depth", 4, nil)

	rec := get(router, "/debug/metrics?name=queue_depth")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int              `json:"count"`
		Metrics []map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "queue_depth", body.Metrics[0]["name"])
}

func TestMetricsEndpointSinceFilter(t *testing.T) {
	router, c := newTestRouter(t, nil, nil)
	c.Metrics().Increment("old_total", 1, nil)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := get(router, "/debug/metrics?since="+future)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	assert.Equal(t, http.StatusBadRequest, get(router, "/debug/metrics?since=yesterday").Code)
}

func TestPermissionHookGuardsDebugRoutes(t *testing.T) {
	deny := func(r *http.Request) bool { return r.Header.Get("X-Role") == "admin" }
	router, _ := newTestRouter(t, deny, nil)

	assert.Equal(t, http.StatusForbidden, get(router, "/debug/logs").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/debug/metrics").Code)
	// Health stays public.
	assert.Equal(t, http.StatusOK, get(router, "/health").Code)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/logs", nil)
	req.Header.Set("X-Role", "admin")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
