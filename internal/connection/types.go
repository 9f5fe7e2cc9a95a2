package connection

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/convoshop/realtime/internal/auth"
	"github.com/convoshop/realtime/internal/transport"
)

// Status is the logical connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Statuses lists every status.
var Statuses = []Status{StatusDisconnected, StatusConnecting, StatusConnected, StatusError}

func (s Status) String() string { return string(s) }

// transitions is the set of legal moves. connecting -> connecting happens
// on Reconnect and ForceTransport; disconnected -> error only when no
// transport is usable at all.
var transitions = map[Status][]Status{
	StatusDisconnected: {StatusConnecting, StatusError},
	StatusConnecting:   {StatusConnected, StatusError, StatusDisconnected, StatusConnecting},
	StatusConnected:    {StatusError, StatusDisconnected, StatusConnecting},
	StatusError:        {StatusConnecting, StatusDisconnected},
}

func canTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// StatusObserver is told about every status change together with the
// transport that is active or being attempted.
type StatusObserver func(status Status, kind transport.Kind)

// ErrorObserver is told about every failure, before the status changes.
type ErrorObserver func(err error, kind transport.Kind)

// Config configures a Connection. It is immutable once the Connection is
// built.
type Config struct {
	WebSocketURL string
	SSEURL       string
	PollURL      string
	OutboundURL  string // optional; enables Post

	Channel string
	Tokens  auth.TokenSource // nil connects without a token

	FallbackOrder     []transport.Kind
	ReconnectAttempts int           // consecutive failures before moving on
	ReconnectDelay    time.Duration // base backoff
	MaxReconnectDelay time.Duration

	PingInterval time.Duration
	PingTimeout  time.Duration

	PollInterval         time.Duration
	PollFailureThreshold int

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	HTTPTimeout      time.Duration

	// Disabled transports are treated as unsupported.
	Disabled []transport.Kind
}

// DefaultConfig returns sensible defaults. Endpoints and Channel are left
// empty.
func DefaultConfig() Config {
	return Config{
		FallbackOrder:        []transport.Kind{transport.KindWebSocket, transport.KindSSE, transport.KindPolling},
		ReconnectAttempts:    3,
		ReconnectDelay:       time.Second,
		MaxReconnectDelay:    30 * time.Second,
		PingInterval:         30 * time.Second,
		PingTimeout:          10 * time.Second,
		PollInterval:         5 * time.Second,
		PollFailureThreshold: 3,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		HTTPTimeout:          15 * time.Second,
	}
}

// URLFor returns the endpoint of kind.
func (c Config) URLFor(kind transport.Kind) string {
	switch kind {
	case transport.KindWebSocket:
		return c.WebSocketURL
	case transport.KindSSE:
		return c.SSEURL
	case transport.KindPolling:
		return c.PollURL
	}
	return ""
}

// Probe describes this configuration for capability detection.
func (c Config) Probe() transport.Probe {
	return transport.Probe{
		WebSocketURL: c.WebSocketURL,
		SSEURL:       c.SSEURL,
		PollURL:      c.PollURL,
		Disabled:     slices.Clone(c.Disabled),
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error

	if c.Channel == "" {
		errs = append(errs, errors.New("channel is required"))
	}
	if len(c.FallbackOrder) == 0 {
		errs = append(errs, errors.New("fallback_order must not be empty"))
	}
	for _, k := range c.FallbackOrder {
		if !k.Valid() {
			errs = append(errs, fmt.Errorf("fallback_order: %w: %q", transport.ErrUnknownTransport, string(k)))
			continue
		}
		if c.URLFor(k) == "" {
			errs = append(errs, fmt.Errorf("%s url is required when %s is in fallback_order", k, k))
		} else if _, err := url.Parse(c.URLFor(k)); err != nil {
			errs = append(errs, fmt.Errorf("%s url: %w", k, err))
		}
	}
	if c.ReconnectAttempts < 1 {
		errs = append(errs, errors.New("reconnect_attempts must be at least 1"))
	}
	if c.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("reconnect_delay must be positive"))
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		errs = append(errs, errors.New("max_reconnect_delay must be >= reconnect_delay"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("ping_interval must be positive"))
	}
	if c.PingTimeout <= 0 {
		errs = append(errs, errors.New("ping_timeout must be positive"))
	}
	if slices.Contains(c.FallbackOrder, transport.KindPolling) {
		if c.PollInterval <= 0 {
			errs = append(errs, errors.New("poll_interval must be positive"))
		} else if c.PollInterval >= c.PingInterval+c.PingTimeout {
			errs = append(errs, errors.New("poll_interval must be shorter than ping_interval + ping_timeout"))
		}
		if c.PollFailureThreshold < 1 {
			errs = append(errs, errors.New("poll_failure_threshold must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

// Snapshot is a point-in-time view for health output.
type Snapshot struct {
	ID           string                 `json:"id"`
	Status       Status                 `json:"status"`
	Transport    transport.Kind         `json:"transport"`
	Pinned       transport.Kind         `json:"pinned,omitempty"`
	Order        []transport.Kind       `json:"order"`
	Failures     int                    `json:"failures"`
	Attempts     int64                  `json:"attempts"`
	Switches     int64                  `json:"switches"`
	Errors       int64                  `json:"errors"`
	LastActivity time.Time              `json:"last_activity"`
	NextRetry    time.Time              `json:"next_retry"`
	Capabilities transport.Capabilities `json:"capabilities"`
	Subscribers  int                    `json:"subscribers"`
}
