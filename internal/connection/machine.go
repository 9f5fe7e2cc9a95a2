package connection

import (
	"fmt"
	"time"

	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/transport"
)

// Everything in this file runs with c.mu held unless noted.

func (c *Connection) effectiveOrderLocked() []transport.Kind {
	if c.pinned != transport.KindNone {
		if c.caps.Supports(c.pinned) {
			return []transport.Kind{c.pinned}
		}
		return nil
	}
	return c.caps.Filter(c.cfg.FallbackOrder)
}

func (c *Connection) resetAttemptsLocked() {
	c.index = 0
	c.failures = 0
	c.delays.Reset()
}

// startAttemptLocked opens a fresh adapter for the current position in the
// effective order.
func (c *Connection) startAttemptLocked() {
	order := c.effectiveOrderLocked()
	if len(order) == 0 {
		c.gen++
		c.logger.Error("no usable transport",
			"order", c.cfg.FallbackOrder,
			"pinned", c.pinned,
			"capabilities", c.caps,
		)
		c.errorsTotal++
		c.notifyErrorLocked(ErrNoTransport, transport.KindNone)
		c.setStatusLocked(StatusError, transport.KindNone)
		return
	}
	if c.index >= len(order) {
		c.index = 0
	}

	kind := order[c.index]
	c.gen++
	gen := c.gen
	c.attempts++
	c.setStatusLocked(StatusConnecting, kind)

	adapter, err := c.newAdapter(kind, c.listenerFor(gen, kind))
	if err != nil {
		c.failLocked(kind, fmt.Errorf("create %s adapter: %w", kind, err))
		return
	}
	c.adapter = adapter

	c.logger.Info("connecting",
		"transport", kind,
		"attempt", c.failures+1,
		"of", c.cfg.ReconnectAttempts,
	)
	adapter.Open(c.ctx, transport.Session{
		URL:     c.cfg.URLFor(kind),
		Channel: c.cfg.Channel,
		Tokens:  c.cfg.Tokens,
	})
}

// listenerFor binds adapter callbacks to one attempt. Callbacks run on
// adapter goroutines and take the lock themselves.
func (c *Connection) listenerFor(gen uint64, kind transport.Kind) transport.Listener {
	return transport.Listener{
		OnOpen:     func() { c.handleOpen(gen, kind) },
		OnMessage:  func(raw []byte) { c.handleMessage(gen, kind, raw) },
		OnError:    func(err error) { c.handleFailure(gen, kind, err) },
		OnClose:    func(code int) { c.handleFailure(gen, kind, &transport.CloseError{Kind: kind, Code: code}) },
		OnActivity: func() { c.handleActivity(gen) },
	}
}

func (c *Connection) handleOpen(gen uint64, kind transport.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.status != StatusConnecting {
		return
	}
	c.failures = 0
	c.delays.Reset()
	c.lastActivity = time.Now()
	c.setStatusLocked(StatusConnected, kind)
	c.scheduleHeartbeatLocked(gen)

	c.logger.Info("connected", "transport", kind)
}

func (c *Connection) handleMessage(gen uint64, kind transport.Kind, raw []byte) {
	env, err := bus.Decode(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.lastActivity = time.Now()

	if err != nil {
		c.notes.Push(note{kind: noteDiagnostic, diag: bus.Diagnostic{
			Kind:      bus.DiagnosticMalformed,
			Transport: kind.String(),
			Err:       err,
			Raw:       raw,
		}})
		return
	}
	c.notes.Push(note{kind: noteEnvelope, env: env, transport: kind})
}

func (c *Connection) handleActivity(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.gen {
		c.lastActivity = time.Now()
	}
}

func (c *Connection) handleFailure(gen uint64, kind transport.Kind, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	if c.status != StatusConnecting && c.status != StatusConnected {
		return
	}
	c.failLocked(kind, err)
}

// failLocked tears the attempt down, reports err and schedules the next
// attempt per the fallback policy.
func (c *Connection) failLocked(kind transport.Kind, err error) {
	c.teardownLocked()
	c.failures++
	c.errorsTotal++

	c.logger.Warn("transport failed",
		"transport", kind,
		"failures", c.failures,
		"auth", transport.IsAuth(err),
		"err", err,
	)
	c.notifyErrorLocked(err, kind)
	c.setStatusLocked(StatusError, kind)

	order := c.effectiveOrderLocked()
	if len(order) == 0 {
		return
	}

	var delay time.Duration
	if c.failures < c.cfg.ReconnectAttempts {
		delay = c.delays.Next()
	} else {
		c.index = (c.index + 1) % len(order)
		c.failures = 0
		next := order[c.index]
		if next != kind {
			c.delays.Reset()
			c.switches++
			c.logger.Info("falling back", "from", kind, "to", next)
		}
		delay = c.delays.Next()
	}
	c.scheduleRetryLocked(delay)
}

func (c *Connection) scheduleRetryLocked(delay time.Duration) {
	gen := c.gen
	c.nextRetry = time.Now().Add(delay)
	c.retryTimer = time.AfterFunc(delay, func() { c.retry(gen) })
	c.logger.Debug("retry scheduled", "delay", delay)
}

// retry runs on the timer goroutine.
func (c *Connection) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.closed || c.status != StatusError {
		return
	}
	c.retryTimer = nil
	c.nextRetry = time.Time{}
	c.startAttemptLocked()
}

// teardownLocked invalidates the current attempt and everything bound to it.
func (c *Connection) teardownLocked() {
	c.gen++
	if c.adapter != nil {
		c.adapter.Close()
		c.adapter = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
		c.nextRetry = time.Time{}
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
}

func (c *Connection) scheduleHeartbeatLocked(gen uint64) {
	c.heartbeat = time.AfterFunc(c.cfg.PingInterval, func() { c.beat(gen) })
}

// beat runs on the timer goroutine. Ping is sent outside the lock. A
// transport that can ping must see traffic within PingTimeout of the ping;
// the others are judged on idle time alone.
func (c *Connection) beat(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.status != StatusConnected {
		c.mu.Unlock()
		return
	}

	idle := time.Since(c.lastActivity)
	if idle > c.cfg.PingInterval+c.cfg.PingTimeout {
		c.failLocked(c.kind, fmt.Errorf("%w: no activity for %s", ErrHeartbeatTimeout, idle.Round(time.Millisecond)))
		c.mu.Unlock()
		return
	}

	adapter := c.adapter
	c.scheduleHeartbeatLocked(gen)
	c.mu.Unlock()

	if adapter == nil {
		return
	}
	sentAt := time.Now()
	if !adapter.Ping() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.pongTimer != nil {
		c.pongTimer.Stop()
	}
	c.pongTimer = time.AfterFunc(c.cfg.PingTimeout, func() { c.checkPong(gen, sentAt) })
}

// checkPong fails the attempt when nothing arrived since the ping at sentAt.
func (c *Connection) checkPong(gen uint64, sentAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.status != StatusConnected {
		return
	}
	if c.lastActivity.After(sentAt) {
		return
	}
	c.failLocked(c.kind, fmt.Errorf("%w: no reply to ping within %s", ErrHeartbeatTimeout, c.cfg.PingTimeout))
}

func (c *Connection) setStatusLocked(s Status, kind transport.Kind) {
	if c.status == s && c.kind == kind {
		return
	}
	if !canTransition(c.status, s) {
		c.logger.Error("unexpected status transition", "from", c.status, "to", s)
	}
	c.status = s
	c.kind = kind
	c.notes.Push(note{kind: noteStatus, status: s, transport: kind})
}

func (c *Connection) notifyErrorLocked(err error, kind transport.Kind) {
	c.notes.Push(note{kind: noteError, err: err, transport: kind})
}
