package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsAdapter is the bidirectional transport.
type wsAdapter struct {
	opts   Options
	l      Listener
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	opened bool
	closed bool
}

func newWebSocket(l Listener, opts Options, logger *slog.Logger) *wsAdapter {
	return &wsAdapter{opts: opts, l: l, logger: logger}
}

func (a *wsAdapter) Kind() Kind { return KindWebSocket }

func (a *wsAdapter) Open(ctx context.Context, s Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened || a.closed {
		return
	}
	a.opened = true

	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx, s)
}

func (a *wsAdapter) run(ctx context.Context, s Session) {
	target, err := SessionURL(ctx, s, nil)
	if err != nil {
		he := tokenError(KindWebSocket, err)
		a.report(func() { a.l.fail(he) })
		return
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: a.opts.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Accept", "application/json")

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		a.logger.Debug("websocket dial failed", "url", RedactURL(target), "status", status, "err", err)
		a.report(func() { a.l.fail(newHandshakeError(KindWebSocket, status, err)) })
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		conn.Close()
		return
	}
	a.conn = conn
	a.mu.Unlock()

	// Server pings and our pongs both count as liveness.
	conn.SetPingHandler(func(data string) error {
		a.report(a.l.activity)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		a.report(a.l.activity)
		return nil
	})

	a.logger.Debug("websocket connected", "url", RedactURL(target))
	a.report(a.l.open)
	a.readLoop(conn)
}

// readLoop forwards frames until the socket fails or the adapter closes.
func (a *wsAdapter) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				a.report(func() { a.l.closed(ce.Code) })
			default:
				a.report(func() { a.l.fail(err) })
			}
			return
		}

		a.report(a.l.activity)
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		a.report(func() { a.l.message(data) })
	}
}

// report runs fn unless the adapter has been closed.
func (a *wsAdapter) report(fn func()) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		fn()
	}
}

func (a *wsAdapter) Send(payload []byte) bool {
	a.mu.Lock()
	conn, closed := a.conn, a.closed
	a.mu.Unlock()
	if conn == nil || closed {
		return false
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(a.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		a.logger.Debug("websocket write failed", "err", err)
		return false
	}
	return true
}

func (a *wsAdapter) Ping() bool {
	a.mu.Lock()
	conn, closed := a.conn, a.closed
	a.mu.Unlock()
	if conn == nil || closed {
		return false
	}

	deadline := time.Now().Add(a.opts.WriteTimeout)
	if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
		a.logger.Debug("failed to send ping", "err", err)
		return false
	}
	return true
}

func (a *wsAdapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	conn, cancel := a.conn, a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		go func() {
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		}()
	}
}
