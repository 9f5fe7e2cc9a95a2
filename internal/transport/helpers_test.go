package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// recorder captures listener callbacks in arrival order.
type recorder struct {
	mu       sync.Mutex
	events   []string
	messages []string
	errs     []error
	codes    []int
	activity int
	changed  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{changed: make(chan struct{}, 1)}
}

func (r *recorder) listener() Listener {
	return Listener{
		OnOpen: func() { r.add("open", func() {}) },
		OnMessage: func(raw []byte) {
			r.add("message", func() { r.messages = append(r.messages, string(raw)) })
		},
		OnError: func(err error) { r.add("error", func() { r.errs = append(r.errs, err) }) },
		OnClose: func(code int) { r.add("close", func() { r.codes = append(r.codes, code) }) },
		OnActivity: func() {
			r.mu.Lock()
			r.activity++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) add(event string, fn func()) {
	r.mu.Lock()
	r.events = append(r.events, event)
	fn()
	r.mu.Unlock()
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *recorder) waitFor(t *testing.T, event string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.has(event) }, 2*time.Second, 5*time.Millisecond,
		"listener never saw %q", event)
}

func (r *recorder) snapshot() (events, messages []string, errs []error, codes []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...),
		append([]string(nil), r.messages...),
		append([]error(nil), r.errs...),
		append([]int(nil), r.codes...)
}

func (r *recorder) activityCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activity
}

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn, *http.Request)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.HandshakeTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.PollInterval = 10 * time.Millisecond
	opts.PollTimeout = time.Second
	return opts
}
