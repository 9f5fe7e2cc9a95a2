package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/convoshop/realtime/internal/api"
	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/queue"
	"github.com/convoshop/realtime/internal/transport"
	"github.com/google/uuid"
)

// AdapterFactory builds an unopened adapter for one attempt.
type AdapterFactory func(kind transport.Kind, l transport.Listener) (transport.Adapter, error)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAdapterFactory replaces the built-in transports.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(c *Connection) {
		c.newAdapter = f
	}
}

// WithCapabilities skips detection and uses caps as given.
func WithCapabilities(caps transport.Capabilities) Option {
	return func(c *Connection) {
		c.caps = caps
		c.capsSet = true
	}
}

// WithDiagnostics sets where malformed payloads and recovered panics go.
func WithDiagnostics(d bus.Diagnostics) Option {
	return func(c *Connection) {
		c.diag = d
	}
}

// WithAPIClient sets the client used for polling and outbound posts.
func WithAPIClient(client *api.Client) Option {
	return func(c *Connection) {
		c.client = client
	}
}

// Connection is one logical realtime connection. Share a single instance
// per process through the registry package.
type Connection struct {
	id         string
	cfg        Config
	logger     *slog.Logger
	caps       transport.Capabilities
	capsSet    bool
	newAdapter AdapterFactory
	client     *api.Client
	diag       bus.Diagnostics
	bus        *bus.Bus

	// Adapters live under ctx; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	notes        *queue.Queue[note]
	dispatchDone chan struct{}
	statusObs    observers[StatusObserver]
	errorObs     observers[ErrorObserver]

	mu           sync.Mutex
	status       Status
	kind         transport.Kind
	adapter      transport.Adapter
	gen          uint64 // bumped on every attempt and teardown
	index        int    // position in the effective order
	failures     int    // consecutive failures on the current kind
	pinned       transport.Kind
	delays       *retryDelays
	retryTimer   *time.Timer
	nextRetry    time.Time
	heartbeat    *time.Timer
	pongTimer    *time.Timer // armed after a ping the transport sent
	lastActivity time.Time
	closed       bool

	attempts    int64
	switches    int64
	errorsTotal int64
}

// New validates cfg and builds a disconnected Connection.
func New(cfg Config, opts ...Option) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	c := &Connection{
		id:           uuid.NewString(),
		cfg:          cfg,
		logger:       slog.Default(),
		status:       StatusDisconnected,
		notes:        queue.New[note](64),
		dispatchDone: make(chan struct{}),
		delays:       newRetryDelays(cfg.ReconnectDelay, cfg.MaxReconnectDelay),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("conn_id", c.id, "channel", cfg.Channel)
	if !c.capsSet {
		c.caps = transport.DetectCapabilities(transport.ProbeFromEnv(cfg.Probe()))
	}
	if c.client == nil {
		c.client = api.NewClient(api.WithTimeout(cfg.HTTPTimeout), api.WithLogger(c.logger))
	}
	if c.newAdapter == nil {
		c.newAdapter = c.defaultAdapter
	}
	c.bus = bus.New(c.diag, c.logger)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.dispatch()

	c.logger.Debug("connection created",
		"order", cfg.FallbackOrder,
		"capabilities", c.caps,
	)
	return c, nil
}

func (c *Connection) defaultAdapter(kind transport.Kind, l transport.Listener) (transport.Adapter, error) {
	return transport.New(kind, l, transport.Options{
		HandshakeTimeout:     c.cfg.HandshakeTimeout,
		WriteTimeout:         c.cfg.WriteTimeout,
		PollInterval:         c.cfg.PollInterval,
		PollTimeout:          c.cfg.HTTPTimeout,
		PollFailureThreshold: c.cfg.PollFailureThreshold,
		Poller:               c.client,
		Logger:               c.logger,
	})
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// Connect starts connecting from the disconnected state. It is a no-op in
// any other state.
func (c *Connection) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.status != StatusDisconnected {
		return
	}
	c.resetAttemptsLocked()
	c.startAttemptLocked()
}

// Reconnect drops the current attempt, clears any pinned transport and
// starts over at the top of the fallback order.
func (c *Connection) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.teardownLocked()
	c.pinned = transport.KindNone
	c.resetAttemptsLocked()
	c.startAttemptLocked()
}

// ForceTransport pins the connection to kind until the next Reconnect.
func (c *Connection) ForceTransport(kind transport.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", transport.ErrUnknownTransport, string(kind))
	}
	if !c.caps.Supports(kind) {
		return fmt.Errorf("%w: %s", ErrUnsupportedTransport, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.teardownLocked()
	c.pinned = kind
	c.resetAttemptsLocked()
	c.startAttemptLocked()
	c.logger.Info("transport pinned", "transport", kind)
	return nil
}

// Disconnect stops all activity and pending retries. Subscriptions survive.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.teardownLocked()
	c.resetAttemptsLocked()
	c.setStatusLocked(StatusDisconnected, transport.KindNone)
}

// Close disconnects and releases the connection for good. Observers see the
// final disconnected status; subscriptions are dropped once it is delivered.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.setStatusLocked(StatusDisconnected, transport.KindNone)
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.notes.Close()
	c.logger.Info("connection closed")
}

// Done is closed once Close has run and every queued notification has
// been delivered.
func (c *Connection) Done() <-chan struct{} {
	return c.dispatchDone
}

// Status returns the current status.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Transport returns the active or attempted transport, KindNone when
// disconnected.
func (c *Connection) Transport() transport.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// Capabilities returns the detected capabilities.
func (c *Connection) Capabilities() transport.Capabilities {
	return c.caps
}

// Snapshot returns a point-in-time view.
func (c *Connection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:           c.id,
		Status:       c.status,
		Transport:    c.kind,
		Pinned:       c.pinned,
		Order:        c.effectiveOrderLocked(),
		Failures:     c.failures,
		Attempts:     c.attempts,
		Switches:     c.switches,
		Errors:       c.errorsTotal,
		LastActivity: c.lastActivity,
		NextRetry:    c.nextRetry,
		Capabilities: c.caps,
		Subscribers:  c.bus.Len(),
	}
}

// OnStatusChange registers fn for status changes.
func (c *Connection) OnStatusChange(fn StatusObserver) func() {
	return c.statusObs.add(fn)
}

// OnError registers fn for failures.
func (c *Connection) OnError(fn ErrorObserver) func() {
	return c.errorObs.add(fn)
}

// On subscribes h to one event name.
func (c *Connection) On(event string, h bus.Handler) func() {
	return c.bus.On(event, h)
}

// OnAny subscribes h to every event.
func (c *Connection) OnAny(h bus.Handler) func() {
	return c.bus.OnAny(h)
}

// Emit sends an envelope over the active transport. Returns false when not
// connected or when the transport is receive-only.
func (c *Connection) Emit(event string, data any) bool {
	payload, err := bus.Encode(event, data)
	if err != nil {
		c.logger.Warn("emit: encode failed", "event", event, "err", err)
		return false
	}

	c.mu.Lock()
	adapter, connected := c.adapter, c.status == StatusConnected
	c.mu.Unlock()

	if !connected || adapter == nil {
		return false
	}
	return adapter.Send(payload)
}

// Post delivers an envelope to the server on any transport: over the
// socket when it can carry it, otherwise through the outbound REST
// endpoint.
func (c *Connection) Post(ctx context.Context, event string, data any) error {
	payload, err := bus.Encode(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	adapter, connected := c.adapter, c.status == StatusConnected
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if connected && adapter != nil && adapter.Send(payload) {
		return nil
	}
	if c.cfg.OutboundURL == "" {
		return ErrNoOutbound
	}

	target, err := transport.SessionURL(ctx, transport.Session{
		URL:     c.cfg.OutboundURL,
		Channel: c.cfg.Channel,
		Tokens:  c.cfg.Tokens,
	}, nil)
	if err != nil {
		return fmt.Errorf("outbound: %w", err)
	}
	return c.client.PostEvent(ctx, target, payload)
}
