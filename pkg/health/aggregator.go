// Package health runs named service probes and reduces their results to a
// single system status. Probes fan out concurrently, each bounded by a
// timeout budget so one slow dependency cannot stall the aggregation; a
// probe that fails, panics or times out marks its service unhealthy and
// never aborts evaluation of the others.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thc1006/obscore/pkg/logging"
)

// Status is the health of one service or of the system as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check is the result of one probe invocation. Checks are ephemeral:
// computed fresh on each aggregation and never retained historically.
type Check struct {
	Service        string         `json:"service"`
	Status         Status         `json:"status"`
	ResponseTimeMS float64        `json:"response_time_ms,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// SystemHealth is the aggregated snapshot returned to callers. Overall is a
// pure function of Services (see Overall).
type SystemHealth struct {
	Overall       Status    `json:"overall"`
	Services      []Check   `json:"services"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// ProbeFunc reports the health of one dependency. Returning an error (or a
// nil check with an error) marks the service unhealthy with the error
// message in details. A nil check with a nil error counts as healthy.
type ProbeFunc func(ctx context.Context) (*Check, error)

// DefaultProbeTimeout bounds each probe when no budget is configured.
const DefaultProbeTimeout = 5 * time.Second

// Options configures an Aggregator.
type Options struct {
	// ProbeTimeout is the per-probe budget. Zero means DefaultProbeTimeout.
	ProbeTimeout time.Duration
}

// Aggregator holds the registered probe set. Registration order is the
// order services appear in the snapshot.
type Aggregator struct {
	mu        sync.RWMutex
	names     []string
	probes    map[string]ProbeFunc
	timeout   time.Duration
	logger    *logging.Logger
	startTime time.Time
}

// NewAggregator creates an aggregator logging probe failures through logger.
func NewAggregator(logger *logging.Logger, opts *Options) *Aggregator {
	timeout := DefaultProbeTimeout
	if opts != nil && opts.ProbeTimeout > 0 {
		timeout = opts.ProbeTimeout
	}
	return &Aggregator{
		probes:    make(map[string]ProbeFunc),
		timeout:   timeout,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register adds a named probe. Re-registering a name replaces the probe and
// keeps its original position.
func (a *Aggregator) Register(name string, probe ProbeFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.probes[name]; !exists {
		a.names = append(a.names, name)
	}
	a.probes[name] = probe
}

// PerformHealthCheck runs every registered probe concurrently and reduces
// the results. It never returns an error: probe failures become unhealthy
// checks.
func (a *Aggregator) PerformHealthCheck(ctx context.Context) SystemHealth {
	a.mu.RLock()
	names := make([]string, len(a.names))
	copy(names, a.names)
	probes := make(map[string]ProbeFunc, len(a.probes))
	for k, v := range a.probes {
		probes[k] = v
	}
	a.mu.RUnlock()

	checks := make([]Check, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, probe ProbeFunc) {
			defer wg.Done()
			checks[i] = a.runProbe(ctx, name, probe)
		}(i, name, probes[name])
	}
	wg.Wait()

	return SystemHealth{
		Overall:       Overall(checks),
		Services:      checks,
		UptimeSeconds: time.Since(a.startTime).Seconds(),
		Timestamp:     time.Now().UTC(),
	}
}

// runProbe executes one probe under the timeout budget, converting every
// failure mode into a Check.
func (a *Aggregator) runProbe(ctx context.Context, name string, probe ProbeFunc) Check {
	probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()

	type result struct {
		check *Check
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		check, err := probe(probeCtx)
		done <- result{check: check, err: err}
	}()

	var check Check
	select {
	case <-probeCtx.Done():
		elapsed := time.Since(start)
		check = Check{
			Status:         StatusUnhealthy,
			ResponseTimeMS: durationMS(elapsed),
			Details:        map[string]any{"error": fmt.Sprintf("probe timed out after %s", a.timeout)},
		}
	case res := <-done:
		elapsed := time.Since(start)
		switch {
		case res.err != nil:
			check = Check{
				Status:         StatusUnhealthy,
				ResponseTimeMS: durationMS(elapsed),
				Details:        map[string]any{"error": res.err.Error()},
			}
		case res.check != nil:
			check = *res.check
			if check.Status == "" {
				check.Status = StatusHealthy
			}
			if check.ResponseTimeMS == 0 {
				check.ResponseTimeMS = durationMS(elapsed)
			}
		default:
			check = Check{
				Status:         StatusHealthy,
				ResponseTimeMS: durationMS(elapsed),
			}
		}
	}

	check.Service = name
	check.Timestamp = time.Now().UTC()

	if check.Status != StatusHealthy && a.logger != nil {
		a.logger.Warn("health probe not healthy", logging.Fields{
			"service": name,
			"status":  string(check.Status),
			"details": check.Details,
		})
	}
	return check
}

// Overall reduces service checks with worst-case-wins precedence: any
// unhealthy service makes the system unhealthy; otherwise any degraded
// service makes it degraded; otherwise it is healthy.
func Overall(checks []Check) Status {
	overall := StatusHealthy
	for _, c := range checks {
		switch c.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// Score maps a status to the gauge value published by the background
// scheduler: healthy=1.0, degraded=0.5, unhealthy=0.0.
func Score(s Status) float64 {
	switch s {
	case StatusHealthy:
		return 1.0
	case StatusDegraded:
		return 0.5
	default:
		return 0.0
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
