// Package core assembles the observability subsystem: bounded log and
// metric buffers, sinks, the metrics registry, error tracking, health
// aggregation and the background scheduler, behind one explicitly
// constructed object. Handlers receive the core by injection; there is no
// package-level shared state, so tests get isolated instances.
package core

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thc1006/obscore/pkg/buffer"
	"github.com/thc1006/obscore/pkg/config"
	"github.com/thc1006/obscore/pkg/errtrack"
	"github.com/thc1006/obscore/pkg/health"
	"github.com/thc1006/obscore/pkg/logging"
	"github.com/thc1006/obscore/pkg/metrics"
	"github.com/thc1006/obscore/pkg/perf"
	"github.com/thc1006/obscore/pkg/request"
	"github.com/thc1006/obscore/pkg/scheduler"
	"github.com/thc1006/obscore/pkg/sink"
)

// Options overrides pieces of the core's wiring, mainly for tests.
type Options struct {
	// Prometheus mirrors metric emissions into this registerer.
	Prometheus prometheus.Registerer
	// Console overrides the development-mode console logger.
	Console *slog.Logger
	// LogSink, MetricSink and ErrorSink replace the HTTP sinks the
	// configuration would otherwise produce.
	LogSink    sink.Sink
	MetricSink sink.Sink
	ErrorSink  sink.Sink
}

// Core owns the process-wide observability state.
type Core struct {
	cfg config.Config

	logBuf    *buffer.Bounded[logging.Entry]
	metricBuf *buffer.Bounded[metrics.Entry]

	httpSinks []*sink.HTTPSink
	logSink   sink.Sink
	console   *slog.Logger

	metrics      *metrics.Registry
	tracker      *errtrack.Tracker
	measurer     *perf.Measurer
	health       *health.Aggregator
	scheduler    *scheduler.Scheduler
	instrumenter *request.Instrumenter
}

// New builds a core from cfg. HTTP sinks are created and started only in
// production mode and only for configured endpoints; development mode
// mirrors logs to the console instead. A nil opts pointer uses the
// defaults.
func New(cfg config.Config, opts *Options) *Core {
	if opts == nil {
		opts = &Options{}
	}

	c := &Core{
		cfg:       cfg,
		logBuf:    buffer.NewBounded[logging.Entry](cfg.MaxLogs),
		metricBuf: buffer.NewBounded[metrics.Entry](cfg.MaxMetrics),
	}

	if !cfg.IsProduction() {
		c.console = opts.Console
		if c.console == nil {
			c.console = slog.New(slog.NewTextHandler(os.Stdout, nil))
		}
	}

	c.logSink = c.buildSink(opts.LogSink, cfg.LoggingEndpoint)
	metricSink := c.buildSink(opts.MetricSink, cfg.MetricsEndpoint)
	errorSink := c.buildSink(opts.ErrorSink, cfg.ErrorTrackingDSN)

	c.metrics = metrics.New(c.metricBuf, &metrics.Options{
		Sink:       metricSink,
		Prometheus: opts.Prometheus,
	})

	c.tracker = errtrack.New(c.Logger("errors"), c.metrics, errorSink)
	c.measurer = perf.New(c.metrics, c.tracker)
	c.health = health.NewAggregator(c.Logger("health"), &health.Options{
		ProbeTimeout: cfg.ProbeTimeout,
	})
	c.scheduler = scheduler.New(c.health, c.metrics, c.Logger("scheduler"), &scheduler.Options{
		HealthInterval: cfg.HealthInterval,
		MemoryInterval: cfg.MemoryInterval,
	})
	c.instrumenter = request.New(c.Logger("http"), c.metrics)

	return c
}

// buildSink picks the override if given, else an HTTP sink for the
// endpoint in production mode, else nothing.
func (c *Core) buildSink(override sink.Sink, endpoint string) sink.Sink {
	if override != nil {
		return override
	}
	if !c.cfg.IsProduction() || endpoint == "" {
		return nil
	}
	hs := sink.NewHTTPSink(endpoint, nil)
	// Start cannot fail on a fresh sink.
	_ = hs.Start()
	c.httpSinks = append(c.httpSinks, hs)
	return hs
}

// Logger returns a structured logger scoped to component, sharing the log
// buffer and the configured sinks.
func (c *Core) Logger(component string) *logging.Logger {
	return logging.New(component, c.logBuf, &logging.Options{
		Console: c.console,
		Sink:    c.logSink,
	})
}

// Metrics returns the shared metrics registry.
func (c *Core) Metrics() *metrics.Registry {
	return c.metrics
}

// Tracker returns the error tracker.
func (c *Core) Tracker() *errtrack.Tracker {
	return c.tracker
}

// Measurer returns the performance measurer.
func (c *Core) Measurer() *perf.Measurer {
	return c.measurer
}

// Instrumenter returns the request instrumenter.
func (c *Core) Instrumenter() *request.Instrumenter {
	return c.instrumenter
}

// RegisterProbe adds a named health probe.
func (c *Core) RegisterProbe(name string, probe health.ProbeFunc) {
	c.health.Register(name, probe)
}

// PerformHealthCheck runs all probes and returns the aggregated snapshot.
func (c *Core) PerformHealthCheck(ctx context.Context) health.SystemHealth {
	return c.health.PerformHealthCheck(ctx)
}

// RecentLogs returns the most recent limit entries, optionally filtered by
// level first (filter-then-truncate, so the limit applies to matching
// entries).
func (c *Core) RecentLogs(limit int, level logging.Level) []logging.Entry {
	if level == "" {
		return c.logBuf.Recent(limit)
	}
	matching := c.logBuf.Filter(func(e logging.Entry) bool {
		return e.Level == level
	})
	if limit < 0 {
		limit = 0
	}
	if limit > len(matching) {
		limit = len(matching)
	}
	return matching[len(matching)-limit:]
}

// QueryMetrics returns buffered metric entries, optionally filtered by
// exact name and by emitted-at-or-after timestamp.
func (c *Core) QueryMetrics(name string, since time.Time) []metrics.Entry {
	return c.metricBuf.Filter(func(e metrics.Entry) bool {
		if name != "" && e.Name != name {
			return false
		}
		if !since.IsZero() && e.Timestamp.Before(since) {
			return false
		}
		return true
	})
}

// Start launches the background scheduler.
func (c *Core) Start(ctx context.Context) error {
	return c.scheduler.Start(ctx)
}

// Close stops the scheduler and the sink workers. The buffers live until
// the process exits.
func (c *Core) Close() {
	c.scheduler.Stop()
	for _, hs := range c.httpSinks {
		hs.Stop()
	}
}
