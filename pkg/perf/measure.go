// Package perf wraps arbitrary operations with timing telemetry. It is the
// one place where an error crosses back out of the observability core: the
// measured operation's failure is recorded and then returned unchanged.
package perf

import (
	"context"
	"time"

	"github.com/thc1006/obscore/pkg/errtrack"
	"github.com/thc1006/obscore/pkg/logging"
	"github.com/thc1006/obscore/pkg/metrics"
)

// Measurer emits performance timers and routes failures to error tracking.
type Measurer struct {
	metrics *metrics.Registry
	tracker *errtrack.Tracker
}

// New creates a measurer.
func New(reg *metrics.Registry, tracker *errtrack.Tracker) *Measurer {
	return &Measurer{metrics: reg, tracker: tracker}
}

// Measure times op and emits a performance_<name> timer with the given
// tags. On failure the timer carries an added status=error tag, the error
// is forwarded to error tracking with {operation, tags} context, and the
// original error is returned unmodified along with the zero value.
func Measure[T any](ctx context.Context, m *Measurer, name string, tags map[string]string, op func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := op(ctx)
	elapsed := time.Since(start)

	metric := "performance_" + name
	if err != nil {
		errTags := make(map[string]string, len(tags)+1)
		for k, v := range tags {
			errTags[k] = v
		}
		errTags["status"] = "error"
		m.metrics.Timer(metric, elapsed, errTags)

		m.tracker.Track(err, logging.Fields{
			"operation": name,
			"tags":      tags,
		})
		return result, err
	}

	m.metrics.Timer(metric, elapsed, tags)
	return result, nil
}

// Do measures an operation with no result value.
func (m *Measurer) Do(ctx context.Context, name string, tags map[string]string, op func(context.Context) error) error {
	_, err := Measure(ctx, m, name, tags, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
