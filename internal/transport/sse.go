package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"
)

// sseAdapter is the receive-only event-stream transport.
type sseAdapter struct {
	opts   Options
	l      Listener
	logger *slog.Logger
	client *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	opened bool
	closed bool
}

func newSSE(l Listener, opts Options, logger *slog.Logger) *sseAdapter {
	client := opts.StreamClient
	if client == nil {
		client = &http.Client{}
	}
	return &sseAdapter{opts: opts, l: l, logger: logger, client: client}
}

func (a *sseAdapter) Kind() Kind { return KindSSE }

func (a *sseAdapter) Open(ctx context.Context, s Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened || a.closed {
		return
	}
	a.opened = true

	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx, s)
}

func (a *sseAdapter) run(ctx context.Context, s Session) {
	target, err := SessionURL(ctx, s, nil)
	if err != nil {
		he := tokenError(KindSSE, err)
		a.report(func() { a.l.fail(he) })
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		a.report(func() { a.l.fail(newHandshakeError(KindSSE, 0, err)) })
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The client has no overall timeout, so bound the wait for headers.
	var hsTimer *time.Timer
	if a.opts.HandshakeTimeout > 0 {
		hsCtx, hsCancel := context.WithCancel(ctx)
		defer hsCancel()
		req = req.WithContext(hsCtx)
		hsTimer = time.AfterFunc(a.opts.HandshakeTimeout, hsCancel)
	}

	resp, err := a.client.Do(req)
	if hsTimer != nil && !hsTimer.Stop() && err == nil {
		resp.Body.Close()
		err = fmt.Errorf("no response headers within %s", a.opts.HandshakeTimeout)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Debug("sse request failed", "url", RedactURL(target), "err", err)
		a.report(func() { a.l.fail(newHandshakeError(KindSSE, 0, err)) })
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.report(func() {
			a.l.fail(newHandshakeError(KindSSE, resp.StatusCode, errors.New(http.StatusText(resp.StatusCode))))
		})
		return
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/event-stream" {
		a.report(func() {
			a.l.fail(newHandshakeError(KindSSE, resp.StatusCode, fmt.Errorf("unexpected content type %q", mt)))
		})
		return
	}

	a.logger.Debug("sse stream open", "url", RedactURL(target))
	a.report(a.l.open)

	err = readEventStream(resp.Body,
		func() { a.report(a.l.activity) },
		func(ev streamEvent) {
			raw := envelopeFor(ev)
			a.report(func() { a.l.message(raw) })
		},
	)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		a.report(func() { a.l.fail(fmt.Errorf("sse read: %w", err)) })
		return
	}
	a.report(func() { a.l.closed(CloseNormal) })
}

func (a *sseAdapter) report(fn func()) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		fn()
	}
}

// Send always fails: outbound traffic goes through the REST endpoint.
func (a *sseAdapter) Send([]byte) bool { return false }

// Ping is a no-op; stream traffic and comment lines prove liveness.
func (a *sseAdapter) Ping() bool { return false }

func (a *sseAdapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
