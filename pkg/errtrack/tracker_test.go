package errtrack

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thc1006/obscore/pkg/buffer"
	"github.com/thc1006/obscore/pkg/logging"
	"github.com/thc1006/obscore/pkg/metrics"
	"github.com/thc1006/obscore/pkg/sink"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "deadline exceeded" }

func newTestTracker(fwd sink.Sink) (*Tracker, *buffer.Bounded[logging.Entry], *buffer.Bounded[metrics.Entry]) {
	logBuf := buffer.NewBounded[logging.Entry](100)
	metricBuf := buffer.NewBounded[metrics.Entry](100)
	logger := logging.New("errors", logBuf, nil)
	reg := metrics.New(metricBuf, nil)
	return New(logger, reg, fwd), logBuf, metricBuf
}

func TestTrackLogsAndCounts(t *testing.T) {
	tracker, logBuf, metricBuf := newTestTracker(nil)

	tracker.Track(errors.New("database gone"), logging.Fields{"operation": "query"})

	logs := logBuf.Snapshot()
	require.Len(t, logs, 1)
	assert.Equal(t, logging.LevelError, logs[0].Level)
	assert.Contains(t, logs[0].Message, "database gone")
	assert.Equal(t, "query", logs[0].Metadata["operation"])
	assert.NotEmpty(t, logs[0].Metadata["stack"])

	ms := metricBuf.Snapshot()
	require.Len(t, ms, 1)
	assert.Equal(t, "errors_total", ms[0].Name)
	assert.Equal(t, metrics.TypeCounter, ms[0].Type)
	assert.Equal(t, "*errors.errorString", ms[0].Tags["type"])
}

func TestTrackTagsConcreteType(t *testing.T) {
	tracker, _, metricBuf := newTestTracker(nil)

	tracker.Track(timeoutError{}, nil)
	tracker.Track(fmt.Errorf("wrapped: %w", timeoutError{}), nil)

	ms := metricBuf.Snapshot()
	require.Len(t, ms, 2)
	assert.Equal(t, "errtrack.timeoutError", ms[0].Tags["type"])
	assert.NotEqual(t, ms[0].Tags["type"], ms[1].Tags["type"])
}

func TestTrackForwardsEvent(t *testing.T) {
	capture := &sink.Capture{}
	tracker, _, _ := newTestTracker(capture)

	tracker.Track(errors.New("boom"), logging.Fields{"operation": "measure"})

	records := capture.Records()
	require.Len(t, records, 1)
	event, ok := records[0].(Event)
	require.True(t, ok)
	assert.Equal(t, "boom", event.Message)
	assert.Equal(t, "measure", event.Context["operation"])
	assert.NotEmpty(t, event.Stack)
}

func TestTrackNilIgnored(t *testing.T) {
	tracker, logBuf, metricBuf := newTestTracker(nil)

	tracker.Track(nil, nil)

	assert.Zero(t, logBuf.Len())
	assert.Zero(t, metricBuf.Len())
}

func TestSummary(t *testing.T) {
	tracker, _, _ := newTestTracker(nil)

	tracker.Track(timeoutError{}, nil)
	tracker.Track(timeoutError{}, nil)
	tracker.Track(errors.New("other"), nil)

	byType, last := tracker.Summary()
	assert.Equal(t, int64(2), byType["errtrack.timeoutError"])
	assert.Equal(t, int64(1), byType["*errors.errorString"])
	assert.False(t, last.IsZero())
}
