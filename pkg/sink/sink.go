// Package sink implements best-effort delivery of telemetry records to
// external HTTP endpoints. Delivery must never block or fail the code path
// that emitted the record: enqueueing is non-blocking and delivery errors
// are logged to the console, never surfaced.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Sink accepts telemetry records for asynchronous delivery.
type Sink interface {
	// Deliver enqueues a record. It never blocks and never returns an
	// error to the caller; a full queue drops the record.
	Deliver(record any)
}

const (
	defaultQueueSize      = 256
	defaultDeliverTimeout = 5 * time.Second
)

// HTTPSink POSTs each record as a JSON body to a fixed endpoint from a
// single background worker. Start must be called before records are
// delivered; Stop drains nothing and returns once the worker exits.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger

	queue   chan any
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool

	// delivery statistics, exposed for tests and the debug surface
	delivered int64
	dropped   int64
	failed    int64
}

// HTTPSinkOptions configures an HTTPSink.
type HTTPSinkOptions struct {
	QueueSize int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewHTTPSink creates a sink targeting endpoint. A nil options pointer uses
// the defaults (queue of 256, 5s delivery timeout).
func NewHTTPSink(endpoint string, opts *HTTPSinkOptions) *HTTPSink {
	queueSize := defaultQueueSize
	timeout := defaultDeliverTimeout
	logger := slog.Default()
	if opts != nil {
		if opts.QueueSize > 0 {
			queueSize = opts.QueueSize
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.Logger != nil {
			logger = opts.Logger
		}
	}

	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		queue:    make(chan any, queueSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the delivery worker. Calling Start twice is an error.
func (s *HTTPSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("sink for %s already started", s.endpoint)
	}
	s.started = true
	go s.run()
	return nil
}

// Stop terminates the worker. Records still queued are discarded.
func (s *HTTPSink) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
}

// Deliver implements Sink. A full queue drops the record silently apart
// from a console log line.
func (s *HTTPSink) Deliver(record any) {
	select {
	case s.queue <- record:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.logger.Warn("telemetry sink queue full, dropping record",
			slog.String("endpoint", s.endpoint))
	}
}

// Stats returns delivered, dropped and failed record counts.
func (s *HTTPSink) Stats() (delivered, dropped, failed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered, s.dropped, s.failed
}

func (s *HTTPSink) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case record := <-s.queue:
			s.post(record)
		}
	}
}

func (s *HTTPSink) post(record any) {
	body, err := json.Marshal(record)
	if err != nil {
		s.fail("failed to encode telemetry record", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.fail("failed to build telemetry request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail("telemetry delivery failed", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.fail("telemetry endpoint rejected record",
			fmt.Errorf("HTTP %d from %s", resp.StatusCode, s.endpoint))
		return
	}

	s.mu.Lock()
	s.delivered++
	s.mu.Unlock()
}

// fail records a delivery failure. Failures are logged and counted, never
// retried and never propagated.
func (s *HTTPSink) fail(msg string, err error) {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	s.logger.Warn(msg,
		slog.String("endpoint", s.endpoint),
		slog.String("error", err.Error()))
}

// Nop is a Sink that discards every record. Used when no endpoint is
// configured and in development mode.
type Nop struct{}

// Deliver implements Sink.
func (Nop) Deliver(any) {}

// Capture is a Sink that retains records in memory so tests can observe
// exactly what would have been forwarded.
type Capture struct {
	mu      sync.Mutex
	records []any
}

// Deliver implements Sink.
func (c *Capture) Deliver(record any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
}

// Records returns a copy of everything delivered so far.
func (c *Capture) Records() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.records))
	copy(out, c.records)
	return out
}
