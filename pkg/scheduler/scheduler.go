// Package scheduler owns the background sampling loops: periodic health
// aggregation and periodic process memory sampling, each publishing gauges.
// The two tickers are independent; a slow health round never delays a
// memory sample. Start/Stop give tests and graceful shutdown a
// deterministic way to terminate the loops.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/thc1006/obscore/pkg/health"
	"github.com/thc1006/obscore/pkg/logging"
	"github.com/thc1006/obscore/pkg/metrics"
)

const (
	// DefaultHealthInterval is how often the health score is sampled.
	DefaultHealthInterval = 30 * time.Second
	// DefaultMemoryInterval is how often memory usage is sampled.
	DefaultMemoryInterval = 60 * time.Second
)

// Options configures a Scheduler.
type Options struct {
	HealthInterval time.Duration
	MemoryInterval time.Duration
}

// Scheduler runs the repeating sampling tasks.
type Scheduler struct {
	health  *health.Aggregator
	metrics *metrics.Registry
	logger  *logging.Logger

	healthInterval time.Duration
	memoryInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler. A nil opts pointer uses the default intervals.
func New(agg *health.Aggregator, reg *metrics.Registry, logger *logging.Logger, opts *Options) *Scheduler {
	healthInterval := DefaultHealthInterval
	memoryInterval := DefaultMemoryInterval
	if opts != nil {
		if opts.HealthInterval > 0 {
			healthInterval = opts.HealthInterval
		}
		if opts.MemoryInterval > 0 {
			memoryInterval = opts.MemoryInterval
		}
	}
	return &Scheduler{
		health:         agg,
		metrics:        reg,
		logger:         logger,
		healthInterval: healthInterval,
		memoryInterval: memoryInterval,
	}
}

// Start launches both sampling loops. They run until Stop is called or ctx
// is cancelled, whichever comes first. Starting a running scheduler is an
// error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(2)
	go s.loop(ctx, s.healthInterval, s.sampleHealth)
	go s.loop(ctx, s.memoryInterval, s.sampleMemory)
	return nil
}

// Stop terminates both loops and waits for them to exit. Safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runTick(ctx, tick)
		}
	}
}

// runTick guards a single sample: a failing tick is logged and the ticker
// keeps going.
func (s *Scheduler) runTick(ctx context.Context, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("background sample failed", logging.Fields{
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	tick(ctx)
}

func (s *Scheduler) sampleHealth(ctx context.Context) {
	snapshot := s.health.PerformHealthCheck(ctx)
	s.metrics.Gauge("system_health_score", health.Score(snapshot.Overall), nil)
}

func (s *Scheduler) sampleMemory(context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.metrics.Gauge("memory_usage_bytes", float64(m.HeapAlloc),
		map[string]string{"type": "heap_used"})
	s.metrics.Gauge("memory_usage_bytes", float64(m.HeapSys),
		map[string]string{"type": "heap_total"})
	s.metrics.Gauge("memory_usage_bytes", float64(m.Sys-m.HeapSys),
		map[string]string{"type": "external"})
}
