// Package errtrack centralizes error reporting: every tracked error is
// logged, counted by concrete type, and optionally forwarded to an external
// error-tracking service. Forwarding is fire-and-forget.
package errtrack

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/thc1006/obscore/pkg/logging"
	"github.com/thc1006/obscore/pkg/metrics"
	"github.com/thc1006/obscore/pkg/sink"
)

// Event is the record forwarded to the error-tracking sink.
type Event struct {
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Stack     string         `json:"stack,omitempty"`
	Context   logging.Fields `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Tracker records errors. Safe for concurrent use.
type Tracker struct {
	logger  *logging.Logger
	metrics *metrics.Registry
	sink    sink.Sink

	mu          sync.RWMutex
	countByType map[string]int64
	lastError   time.Time
}

// New creates a tracker. A nil fwd disables external forwarding (the DSN
// case); logging and counting always happen.
func New(logger *logging.Logger, reg *metrics.Registry, fwd sink.Sink) *Tracker {
	return &Tracker{
		logger:      logger,
		metrics:     reg,
		sink:        fwd,
		countByType: make(map[string]int64),
	}
}

// Track records err with optional context. It logs an error entry with the
// stack at the call site, increments errors_total tagged by the error's
// concrete type, and forwards an Event to the sink when one is configured.
// Nil errors are ignored.
func (t *Tracker) Track(err error, context logging.Fields) {
	if err == nil {
		return
	}

	errType := fmt.Sprintf("%T", err)
	stack := string(debug.Stack())

	fields := logging.Fields{
		"error_type": errType,
		"stack":      stack,
	}
	for k, v := range context {
		fields[k] = v
	}
	t.logger.Error(err.Error(), fields)

	t.metrics.Increment("errors_total", 1, map[string]string{"type": errType})

	t.mu.Lock()
	t.countByType[errType]++
	t.lastError = time.Now().UTC()
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.Deliver(Event{
			Message:   err.Error(),
			Type:      errType,
			Stack:     stack,
			Context:   context,
			Timestamp: time.Now().UTC(),
		})
	}
}

// Summary reports the tracked error counts by concrete type and the time of
// the most recent error.
func (t *Tracker) Summary() (byType map[string]int64, last time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byType = make(map[string]int64, len(t.countByType))
	for k, v := range t.countByType {
		byType[k] = v
	}
	return byType, t.lastError
}
