package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMirror lazily materializes one Prometheus collector per metric name.
// The label set is fixed by the first emission of a name; later emissions
// with a different tag shape are silently skipped in the mirror (the
// buffered entry is unaffected). Mirroring is telemetry-of-telemetry and
// must never fail the emitting caller.
type promMirror struct {
	mu         sync.Mutex
	registry   prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func newPromMirror(registry prometheus.Registerer) *promMirror {
	return &promMirror{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (m *promMirror) record(entry Entry) {
	defer func() {
		// A label mismatch or duplicate registration panics inside
		// client_golang; the mirror swallows it.
		_ = recover()
	}()

	labels := prometheus.Labels(entry.Tags)
	keys := labelKeys(entry.Tags)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch entry.Type {
	case TypeCounter:
		vec, ok := m.counters[entry.Name]
		if !ok {
			vec = promauto.With(m.registry).NewCounterVec(
				prometheus.CounterOpts{Name: entry.Name}, keys)
			m.counters[entry.Name] = vec
		}
		c, err := vec.GetMetricWith(labels)
		if err != nil || entry.Value < 0 {
			return
		}
		c.Add(entry.Value)
	case TypeGauge:
		vec, ok := m.gauges[entry.Name]
		if !ok {
			vec = promauto.With(m.registry).NewGaugeVec(
				prometheus.GaugeOpts{Name: entry.Name}, keys)
			m.gauges[entry.Name] = vec
		}
		g, err := vec.GetMetricWith(labels)
		if err != nil {
			return
		}
		g.Set(entry.Value)
	case TypeHistogram, TypeTimer:
		vec, ok := m.histograms[entry.Name]
		if !ok {
			vec = promauto.With(m.registry).NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    entry.Name,
					Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~4s
				}, keys)
			m.histograms[entry.Name] = vec
		}
		h, err := vec.GetMetricWith(labels)
		if err != nil {
			return
		}
		h.Observe(entry.Value)
	}
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
