package request

import (
	"context"
	"net/http"
)

type contextKey string

const requestIDContextKey contextKey = "obscore.request_id"

// IDFromContext returns the request id the middleware stored, or "".
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// statusRecorder captures the status code written by the downstream
// handler. An unset status counts as 200, matching net/http's implicit
// WriteHeader.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments every request passing through it. The assigned
// request id is exposed via the X-Request-ID response header and the
// request context. Satisfies mux.MiddlewareFunc.
func (i *Instrumenter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, complete := i.Begin(Info{
			Method:     r.Method,
			URL:        r.URL.String(),
			UserAgent:  r.UserAgent(),
			RemoteAddr: r.RemoteAddr,
			TraceID:    r.Header.Get("X-Trace-ID"),
		})

		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(rec, r.WithContext(ctx))

		complete(rec.status, nil)
	})
}
