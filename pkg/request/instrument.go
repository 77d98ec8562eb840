// Package request instruments the lifecycle of inbound HTTP requests:
// entry log, request counter, and a completion callback recording duration
// and outcome. A gorilla/mux-compatible middleware wires it into a router.
package request

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thc1006/obscore/pkg/logging"
	"github.com/thc1006/obscore/pkg/metrics"
)

// Info describes an inbound request.
type Info struct {
	Method     string
	URL        string
	UserAgent  string
	RemoteAddr string
	// TraceID, when set, correlates the request's log entries; otherwise
	// one is generated per entry.
	TraceID string
}

// CompleteFunc finishes an instrumented request. Callers must invoke it
// exactly once: invoking it twice double-counts the duration timer and the
// error counter. That is documented behavior, not defended against.
type CompleteFunc func(statusCode int, err error)

// Instrumenter creates per-request instrumentation bound to a logger and a
// metrics registry.
type Instrumenter struct {
	logger  *logging.Logger
	metrics *metrics.Registry
}

// New creates an instrumenter emitting through logger and reg.
func New(logger *logging.Logger, reg *metrics.Registry) *Instrumenter {
	return &Instrumenter{logger: logger, metrics: reg}
}

// Begin records the start of a request: assigns a request id, logs an entry
// event, increments http_requests_total tagged by method and path (query
// string stripped), and captures the start time. The returned CompleteFunc
// logs the exit, emits the duration timer, and counts errors.
func (i *Instrumenter) Begin(info Info) (string, CompleteFunc) {
	requestID := uuid.NewString()
	start := time.Now()
	path := stripQuery(info.URL)

	fields := logging.Fields{
		logging.RequestIDKey: requestID,
		"method":             info.Method,
		"url":                info.URL,
		"user_agent":         info.UserAgent,
		"remote_addr":        info.RemoteAddr,
	}
	if info.TraceID != "" {
		fields[logging.TraceIDKey] = info.TraceID
	}
	i.logger.Info("request started", fields)

	i.metrics.Increment("http_requests_total", 1, map[string]string{
		"method": info.Method,
		"path":   path,
	})

	complete := func(statusCode int, err error) {
		elapsed := time.Since(start)
		status := strconv.Itoa(statusCode)

		i.metrics.Timer("http_request_duration_ms", elapsed, map[string]string{
			"method": info.Method,
			"status": status,
		})

		if err != nil {
			doneFields := logging.Fields{
				logging.RequestIDKey: requestID,
				"method":             info.Method,
				"url":                info.URL,
				"status":             statusCode,
				"error":              err.Error(),
				"duration_ms":        durationMS(elapsed),
			}
			if info.TraceID != "" {
				doneFields[logging.TraceIDKey] = info.TraceID
			}
			i.logger.Error("request failed", doneFields)

			i.metrics.Increment("http_errors_total", 1, map[string]string{
				"method": info.Method,
				"status": status,
			})
			return
		}

		doneFields := logging.Fields{
			logging.RequestIDKey: requestID,
			"method":             info.Method,
			"url":                info.URL,
			"status":             statusCode,
			"duration_ms":        durationMS(elapsed),
		}
		if info.TraceID != "" {
			doneFields[logging.TraceIDKey] = info.TraceID
		}
		i.logger.Info("request completed", doneFields)
	}

	return requestID, complete
}

// stripQuery reduces a request URL to its path for metric tags, keeping tag
// cardinality bounded by routes rather than query strings.
func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		if idx := strings.IndexByte(raw, '?'); idx >= 0 {
			return raw[:idx]
		}
		return raw
	}
	return u.Path
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
