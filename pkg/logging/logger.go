// Package logging provides the component-scoped structured log emitter.
// Every emission lands in a shared bounded buffer; depending on the runtime
// mode it is additionally mirrored to the console (development) or forwarded
// to an external logging endpoint (production, best-effort).
package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thc1006/obscore/pkg/buffer"
	"github.com/thc1006/obscore/pkg/sink"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Valid reports whether l is one of the four enumerated levels.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Fields is the schema-less key/value metadata attached to log entries.
type Fields map[string]any

// merge combines defaults with overrides; override keys win on conflict.
func (f Fields) merge(overrides Fields) Fields {
	out := make(Fields, len(f)+len(overrides))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Reserved metadata keys lifted onto the entry itself rather than kept in
// the metadata map.
const (
	TraceIDKey   = "trace_id"
	RequestIDKey = "request_id"
)

// Entry is one immutable log record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Metadata  Fields    `json:"metadata,omitempty"`
	TraceID   string    `json:"trace_id"`
	RequestID string    `json:"request_id,omitempty"`
}

// Options configures a Logger.
type Options struct {
	// Defaults are merged under every emission's call-site fields.
	Defaults Fields
	// Console, when set, mirrors every entry to a slog logger. Used in
	// development mode.
	Console *slog.Logger
	// Sink, when set, receives every entry for best-effort forwarding.
	// Used in production mode.
	Sink sink.Sink
}

// Logger emits structured entries scoped to one component. Loggers are
// cheap; handlers create one per component and share the backing buffer.
type Logger struct {
	component string
	defaults  Fields
	buf       *buffer.Bounded[Entry]
	console   *slog.Logger
	sink      sink.Sink
}

// New creates a logger writing into buf. A nil opts pointer yields a logger
// with no defaults, no console mirror and no sink.
func New(component string, buf *buffer.Bounded[Entry], opts *Options) *Logger {
	l := &Logger{
		component: component,
		buf:       buf,
	}
	if opts != nil {
		l.defaults = opts.Defaults
		l.console = opts.Console
		l.sink = opts.Sink
	}
	return l
}

// WithDefaults returns a logger carrying additional default fields. The
// receiver is unchanged; existing defaults are kept, with the new ones
// winning on key conflict.
func (l *Logger) WithDefaults(fields Fields) *Logger {
	return &Logger{
		component: l.component,
		defaults:  l.defaults.merge(fields),
		buf:       l.buf,
		console:   l.console,
		sink:      l.sink,
	}
}

// Component returns the component label this logger is scoped to.
func (l *Logger) Component() string {
	return l.component
}

// Log emits one entry. Call-site fields override defaults on conflict. A
// trace id supplied under "trace_id" is lifted onto the entry; otherwise a
// fresh one is generated. An optional "request_id" field is lifted the same
// way. Invalid levels are coerced to info.
func (l *Logger) Log(level Level, msg string, fields Fields) Entry {
	if !level.Valid() {
		level = LevelInfo
	}

	metadata := l.defaults.merge(fields)

	traceID := uuid.NewString()
	if v, ok := metadata[TraceIDKey].(string); ok && v != "" {
		traceID = v
		delete(metadata, TraceIDKey)
	}
	requestID := ""
	if v, ok := metadata[RequestIDKey].(string); ok && v != "" {
		requestID = v
		delete(metadata, RequestIDKey)
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   "[" + l.component + "] " + msg,
		Metadata:  metadata,
		TraceID:   traceID,
		RequestID: requestID,
	}

	l.buf.Push(entry)

	if l.console != nil {
		attrs := make([]any, 0, 2*len(metadata)+4)
		attrs = append(attrs, slog.String("trace_id", traceID))
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		for k, v := range metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		l.console.Log(context.Background(), level.slogLevel(), entry.Message, attrs...)
	}

	if l.sink != nil {
		l.sink.Deliver(entry)
	}

	return entry
}

// Error emits an error-level entry.
func (l *Logger) Error(msg string, fields Fields) Entry {
	return l.Log(LevelError, msg, fields)
}

// Warn emits a warn-level entry.
func (l *Logger) Warn(msg string, fields Fields) Entry {
	return l.Log(LevelWarn, msg, fields)
}

// Info emits an info-level entry.
func (l *Logger) Info(msg string, fields Fields) Entry {
	return l.Log(LevelInfo, msg, fields)
}

// Debug emits a debug-level entry.
func (l *Logger) Debug(msg string, fields Fields) Entry {
	return l.Log(LevelDebug, msg, fields)
}
