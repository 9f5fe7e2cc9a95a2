package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/convoshop/realtime/internal/api"
	"github.com/convoshop/realtime/internal/auth"
)

// Close codes reported through Listener.OnClose.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Adapter owns one physical attempt. Instances are single-use: Open is
// called at most once and a closed adapter is never reopened.
type Adapter interface {
	Kind() Kind

	// Open starts the attempt in the background and returns immediately.
	Open(ctx context.Context, s Session)

	// Send writes one payload. Returns false when the transport is
	// receive-only or the write failed.
	Send(payload []byte) bool

	// Ping asks the peer for proof of life. Returns false when the
	// transport has no ping of its own.
	Ping() bool

	// Close releases the attempt without waiting for its goroutines.
	// Idempotent. A callback already in flight may still land after
	// Close returns; callers discard those by attempt.
	Close()
}

// Listener receives the events of one attempt. Nil fields are skipped.
type Listener struct {
	OnOpen     func()
	OnMessage  func(raw []byte)
	OnError    func(err error)
	OnClose    func(code int)
	OnActivity func()
}

func (l Listener) open() {
	if l.OnOpen != nil {
		l.OnOpen()
	}
}

func (l Listener) message(raw []byte) {
	if l.OnMessage != nil {
		l.OnMessage(raw)
	}
}

func (l Listener) fail(err error) {
	if l.OnError != nil {
		l.OnError(err)
	}
}

func (l Listener) closed(code int) {
	if l.OnClose != nil {
		l.OnClose(code)
	}
}

func (l Listener) activity() {
	if l.OnActivity != nil {
		l.OnActivity()
	}
}

// Session is what an attempt connects to. Tokens is consulted once per
// attempt, just before the handshake.
type Session struct {
	URL     string
	Channel string
	Tokens  auth.TokenSource
}

// Options configures adapters built by New.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	PollInterval         time.Duration
	PollTimeout          time.Duration
	PollFailureThreshold int

	// StreamClient serves SSE. It must not set a Timeout, since the
	// response body stays open for the life of the stream.
	StreamClient *http.Client

	// Poller serves polling requests.
	Poller Poller

	Logger *slog.Logger
}

// DefaultOptions returns adapter defaults.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		PollInterval:         5 * time.Second,
		PollTimeout:          10 * time.Second,
		PollFailureThreshold: 3,
	}
}

// Poller fetches one polling batch.
type Poller interface {
	Poll(ctx context.Context, rawURL string) (*api.PollResult, error)
}

// New builds an unopened adapter of the given kind.
func New(kind Kind, l Listener, opts Options) (Adapter, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("transport", kind.String())

	switch kind {
	case KindWebSocket:
		return newWebSocket(l, opts, logger), nil
	case KindSSE:
		return newSSE(l, opts, logger), nil
	case KindPolling:
		if opts.Poller == nil {
			return nil, fmt.Errorf("polling transport: no poller configured")
		}
		return newPolling(l, opts, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, string(kind))
}
