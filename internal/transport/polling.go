package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/convoshop/realtime/internal/api"
)

// pollAdapter is the receive-only interval polling transport.
type pollAdapter struct {
	opts   Options
	l      Listener
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	opened bool
	closed bool

	// run goroutine only
	cursor    string
	failures  int
	connected bool
}

func newPolling(l Listener, opts Options, logger *slog.Logger) *pollAdapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.PollFailureThreshold < 1 {
		opts.PollFailureThreshold = 1
	}
	return &pollAdapter{opts: opts, l: l, logger: logger}
}

func (a *pollAdapter) Kind() Kind { return KindPolling }

func (a *pollAdapter) Open(ctx context.Context, s Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened || a.closed {
		return
	}
	a.opened = true

	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx, s)
}

func (a *pollAdapter) run(ctx context.Context, s Session) {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	// Poll immediately on start.
	if !a.poll(ctx, s) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.poll(ctx, s) {
				return
			}
		}
	}
}

// poll performs one round-trip. Returns false when the loop must stop.
func (a *pollAdapter) poll(ctx context.Context, s Session) bool {
	var extra url.Values
	if a.cursor != "" {
		extra = url.Values{ParamCursor: {a.cursor}}
	}
	target, err := SessionURL(ctx, s, extra)
	if err != nil {
		he := tokenError(KindPolling, err)
		a.report(func() { a.l.fail(he) })
		return false
	}

	reqCtx := ctx
	if a.opts.PollTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, a.opts.PollTimeout)
		defer cancel()
	}

	res, err := a.opts.Poller.Poll(reqCtx, target)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		if api.IsAuth(err) {
			a.report(func() { a.l.fail(newHandshakeError(KindPolling, api.StatusCode(err), err)) })
			return false
		}

		a.failures++
		a.logger.Warn("poll failed",
			"consecutive_failures", a.failures,
			"threshold", a.opts.PollFailureThreshold,
			"err", err,
		)
		if a.failures >= a.opts.PollFailureThreshold {
			failure := fmt.Errorf("%w: %d consecutive failures: %w", ErrPollFailed, a.failures, err)
			a.report(func() { a.l.fail(failure) })
			return false
		}
		return true
	}

	a.failures = 0
	if res.Cursor != "" {
		a.cursor = res.Cursor
	}
	if !a.connected {
		a.connected = true
		a.report(a.l.open)
	}
	a.report(a.l.activity)

	batch := splitBatch(res.Body)
	for _, raw := range batch {
		a.report(func() { a.l.message(raw) })
	}
	if len(batch) > 0 {
		a.logger.Debug("poll batch", "envelopes", len(batch))
	}
	return true
}

// splitBatch turns a poll body into envelopes. A body that is not a JSON
// array is passed through whole so decoding can report it.
func splitBatch(body []byte) [][]byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	var items []json.RawMessage
	if body[0] != '[' || json.Unmarshal(body, &items) != nil {
		return [][]byte{body}
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func (a *pollAdapter) report(fn func()) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		fn()
	}
}

// Send always fails: outbound traffic goes through the REST endpoint.
func (a *pollAdapter) Send([]byte) bool { return false }

// Ping is a no-op; each successful round-trip is activity.
func (a *pollAdapter) Ping() bool { return false }

func (a *pollAdapter) Close() {
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
