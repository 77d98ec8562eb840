// Package metrics provides typed metric emitters backed by a bounded
// in-memory buffer, with optional best-effort forwarding to an external
// metrics endpoint and a Prometheus mirror for scrape-based consumers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thc1006/obscore/pkg/buffer"
	"github.com/thc1006/obscore/pkg/sink"
)

// Type determines the semantic interpretation of a metric value: counters
// are deltas to sum over a window, gauges are point-in-time values, timers
// are durations in milliseconds.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeHistogram Type = "histogram"
	TypeTimer     Type = "timer"
)

// Entry is one emitted metric sample.
type Entry struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
	Type      Type              `json:"type"`
}

// Options configures a Registry.
type Options struct {
	// Sink, when set, receives every entry for best-effort forwarding.
	Sink sink.Sink
	// Prometheus, when set, mirrors emissions into per-name collectors
	// registered on this registerer.
	Prometheus prometheus.Registerer
}

// Registry is the shared emitter for all metric types.
type Registry struct {
	buf    *buffer.Bounded[Entry]
	sink   sink.Sink
	mirror *promMirror
}

// New creates a registry writing into buf. A nil opts pointer disables
// forwarding and the Prometheus mirror.
func New(buf *buffer.Bounded[Entry], opts *Options) *Registry {
	r := &Registry{buf: buf}
	if opts != nil {
		r.sink = opts.Sink
		if opts.Prometheus != nil {
			r.mirror = newPromMirror(opts.Prometheus)
		}
	}
	return r
}

// Increment emits a counter delta. Consumers aggregating counters must sum
// deltas over a time window, not read the latest value as a total.
func (r *Registry) Increment(name string, delta float64, tags map[string]string) {
	r.emit(TypeCounter, name, delta, tags)
}

// Gauge emits a point-in-time value.
func (r *Registry) Gauge(name string, value float64, tags map[string]string) {
	r.emit(TypeGauge, name, value, tags)
}

// Timer emits an elapsed duration as milliseconds.
func (r *Registry) Timer(name string, elapsed time.Duration, tags map[string]string) {
	r.emit(TypeTimer, name, float64(elapsed)/float64(time.Millisecond), tags)
}

// Histogram emits a sample into a value distribution.
func (r *Registry) Histogram(name string, value float64, tags map[string]string) {
	r.emit(TypeHistogram, name, value, tags)
}

func (r *Registry) emit(t Type, name string, value float64, tags map[string]string) {
	entry := Entry{
		Name:      name,
		Value:     value,
		Timestamp: time.Now().UTC(),
		Tags:      cloneTags(tags),
		Type:      t,
	}

	r.buf.Push(entry)

	if r.mirror != nil {
		r.mirror.record(entry)
	}
	if r.sink != nil {
		r.sink.Deliver(entry)
	}
}

// cloneTags copies the caller's map so later mutation cannot alter the
// stored entry.
func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
