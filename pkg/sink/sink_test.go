package sink

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHTTPSinkDelivers(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		bodies = append(bodies, m)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	s.Deliver(map[string]string{"message": "hello"})

	waitFor(t, func() bool {
		delivered, _, _ := s.Stats()
		return delivered == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, "hello", bodies[0]["message"])
}

func TestHTTPSinkSwallowsEndpointErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	// Must not panic or surface anything to the caller.
	s.Deliver(map[string]string{"message": "doomed"})

	waitFor(t, func() bool {
		_, _, failed := s.Stats()
		return failed == 1
	})
}

func TestHTTPSinkUnreachableEndpoint(t *testing.T) {
	s := NewHTTPSink("http://127.0.0.1:1", &HTTPSinkOptions{Timeout: 200 * time.Millisecond})
	require.NoError(t, s.Start())
	defer s.Stop()

	s.Deliver(map[string]string{"message": "nowhere"})

	waitFor(t, func() bool {
		_, _, failed := s.Stats()
		return failed == 1
	})
}

func TestHTTPSinkDropsWhenQueueFull(t *testing.T) {
	// Never started: the worker is not draining, so the queue fills up.
	s := NewHTTPSink("http://127.0.0.1:1", &HTTPSinkOptions{QueueSize: 2})

	s.Deliver(1)
	s.Deliver(2)
	s.Deliver(3)

	_, dropped, _ := s.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestHTTPSinkDoubleStart(t *testing.T) {
	s := NewHTTPSink("http://127.0.0.1:1", nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestCaptureSink(t *testing.T) {
	c := &Capture{}
	c.Deliver("a")
	c.Deliver("b")

	assert.Equal(t, []any{"a", "b"}, c.Records())
}
