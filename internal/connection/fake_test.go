package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/transport"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

// fakeAdapter records calls and lets tests drive its listener.
type fakeAdapter struct {
	kind transport.Kind
	l    transport.Listener

	mu      sync.Mutex
	session transport.Session
	opened  bool
	closed  bool
	sent    [][]byte
	pings   int
	behave  func()
}

func (a *fakeAdapter) Kind() transport.Kind { return a.kind }

// Open applies the scripted behavior from a separate goroutine, the way
// real adapters report.
func (a *fakeAdapter) Open(_ context.Context, s transport.Session) {
	a.mu.Lock()
	a.session = s
	a.opened = true
	behave := a.behave
	a.mu.Unlock()

	if behave != nil {
		go behave()
	}
}

func (a *fakeAdapter) Send(payload []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.kind != transport.KindWebSocket {
		return false
	}
	a.sent = append(a.sent, payload)
	return true
}

func (a *fakeAdapter) Ping() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pings++
	return a.kind == transport.KindWebSocket
}

func (a *fakeAdapter) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func (a *fakeAdapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *fakeAdapter) pingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pings
}

func (a *fakeAdapter) sentPayloads() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]byte(nil), a.sent...)
}

// fakeNet hands out fake adapters and applies a per-kind behavior once an
// adapter is opened.
type fakeNet struct {
	mu       sync.Mutex
	adapters []*fakeAdapter
	reject   map[transport.Kind]error
	manual   bool
}

func newFakeNet() *fakeNet {
	return &fakeNet{reject: make(map[transport.Kind]error)}
}

func (n *fakeNet) rejectKind(kind transport.Kind, err error) {
	n.mu.Lock()
	n.reject[kind] = err
	n.mu.Unlock()
}

func (n *fakeNet) acceptKind(kind transport.Kind) {
	n.mu.Lock()
	delete(n.reject, kind)
	n.mu.Unlock()
}

func (n *fakeNet) factory(kind transport.Kind, l transport.Listener) (transport.Adapter, error) {
	a := &fakeAdapter{kind: kind, l: l}

	n.mu.Lock()
	n.adapters = append(n.adapters, a)
	err, rejected := n.reject[kind]
	manual := n.manual
	n.mu.Unlock()

	switch {
	case manual:
	case rejected:
		a.behave = func() { l.OnError(err) }
	default:
		a.behave = l.OnOpen
	}
	return a, nil
}

func (n *fakeNet) kinds() []transport.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]transport.Kind, len(n.adapters))
	for i, a := range n.adapters {
		out[i] = a.kind
	}
	return out
}

func (n *fakeNet) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.adapters)
}

func (n *fakeNet) last() *fakeAdapter {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.adapters) == 0 {
		return nil
	}
	return n.adapters[len(n.adapters)-1]
}

// history records status and error notifications in delivery order.
type history struct {
	mu       sync.Mutex
	statuses []string
	errs     []error
	errKinds []transport.Kind
}

func watch(c *Connection) *history {
	h := &history{}
	c.OnStatusChange(func(s Status, k transport.Kind) {
		h.mu.Lock()
		h.statuses = append(h.statuses, fmt.Sprintf("%s:%s", s, k))
		h.mu.Unlock()
	})
	c.OnError(func(err error, k transport.Kind) {
		h.mu.Lock()
		h.errs = append(h.errs, err)
		h.errKinds = append(h.errKinds, k)
		h.mu.Unlock()
	})
	return h
}

func (h *history) statusList() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.statuses...)
}

func (h *history) errorList() ([]error, []transport.Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...), append([]transport.Kind(nil), h.errKinds...)
}

type diagSink struct {
	mu    sync.Mutex
	diags []bus.Diagnostic
}

func (d *diagSink) Report(diag bus.Diagnostic) {
	d.mu.Lock()
	d.diags = append(d.diags, diag)
	d.mu.Unlock()
}

func (d *diagSink) list() []bus.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bus.Diagnostic(nil), d.diags...)
}

var allCaps = transport.Capabilities{WebSocket: true, SSE: true, Polling: true}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WebSocketURL = "ws://rt.test/realtime/ws"
	cfg.SSEURL = "http://rt.test/realtime/sse"
	cfg.PollURL = "http://rt.test/realtime/poll"
	cfg.Channel = "shop-1"
	cfg.ReconnectDelay = time.Millisecond
	cfg.MaxReconnectDelay = 4 * time.Millisecond
	cfg.PingInterval = time.Hour
	cfg.PingTimeout = time.Minute
	return cfg
}

func newTestConn(t *testing.T, cfg Config, net *fakeNet, opts ...Option) *Connection {
	t.Helper()
	opts = append([]Option{WithAdapterFactory(net.factory), WithCapabilities(allCaps)}, opts...)
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func waitStatus(t *testing.T, c *Connection, want Status, kind transport.Kind) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status() == want && c.Transport() == kind
	}, 2*time.Second, time.Millisecond, "never reached %s on %s (now %s on %s)", want, kind, c.Status(), c.Transport())
}

// waitErrors waits until n errors have been delivered to observers.
func waitErrors(t *testing.T, h *history, n int) []error {
	t.Helper()
	require.Eventually(t, func() bool {
		errs, _ := h.errorList()
		return len(errs) >= n
	}, 2*time.Second, time.Millisecond)
	errs, _ := h.errorList()
	return errs
}
