package config

import (
	"net/url"
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultWebSocketPath        = "/realtime/ws"
	DefaultSSEPath              = "/realtime/sse"
	DefaultPollPath             = "/realtime/poll"
	DefaultOutboundPath         = "/realtime/emit"
	DefaultReconnectAttempts    = 3
	DefaultReconnectDelay       = 1 * time.Second
	DefaultMaxReconnectDelay    = 30 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 10 * time.Second
	DefaultPollInterval         = 5 * time.Second
	DefaultPollFailureThreshold = 3
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultHTTPTimeout          = 15 * time.Second
	DefaultOutboundRate         = 10
	DefaultOutboundBurst        = 20
	DefaultOutboundRetries      = 3
	DefaultArchiveTable         = "realtime_envelopes"
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "realtime"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// DefaultFallbackOrder is used when connection.fallback_order is empty.
var DefaultFallbackOrder = []string{"websocket", "sse", "polling"}

func (c *Config) applyDefaults() {
	// Endpoint defaults
	if base := strings.TrimRight(c.Server.BaseURL, "/"); base != "" {
		if c.Server.WebSocketURL == "" {
			c.Server.WebSocketURL = websocketURL(base) + DefaultWebSocketPath
		}
		if c.Server.SSEURL == "" {
			c.Server.SSEURL = base + DefaultSSEPath
		}
		if c.Server.PollURL == "" {
			c.Server.PollURL = base + DefaultPollPath
		}
		if c.Server.OutboundURL == "" {
			c.Server.OutboundURL = base + DefaultOutboundPath
		}
	}

	// Connection defaults
	cs := &c.Connection
	if len(cs.FallbackOrder) == 0 {
		cs.FallbackOrder = append([]string(nil), DefaultFallbackOrder...)
	}
	if cs.ReconnectAttempts == 0 {
		cs.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cs.ReconnectDelay == 0 {
		cs.ReconnectDelay = DefaultReconnectDelay
	}
	if cs.MaxReconnectDelay == 0 {
		cs.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if cs.PingInterval == 0 {
		cs.PingInterval = DefaultPingInterval
	}
	if cs.PingTimeout == 0 {
		cs.PingTimeout = DefaultPingTimeout
	}
	if cs.PollInterval == 0 {
		cs.PollInterval = DefaultPollInterval
	}
	if cs.PollFailureThreshold == 0 {
		cs.PollFailureThreshold = DefaultPollFailureThreshold
	}
	if cs.HandshakeTimeout == 0 {
		cs.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cs.WriteTimeout == 0 {
		cs.WriteTimeout = DefaultWriteTimeout
	}
	if cs.HTTPTimeout == 0 {
		cs.HTTPTimeout = DefaultHTTPTimeout
	}

	// Outbound defaults
	if c.Outbound.RatePerSecond == 0 {
		c.Outbound.RatePerSecond = DefaultOutboundRate
	}
	if c.Outbound.Burst == 0 {
		c.Outbound.Burst = DefaultOutboundBurst
	}
	if c.Outbound.MaxRetries == 0 {
		c.Outbound.MaxRetries = DefaultOutboundRetries
	}

	// Archive defaults
	if c.Archive.Table == "" {
		c.Archive.Table = DefaultArchiveTable
	}
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}

	applyDBDefaults(&c.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// websocketURL swaps an http(s) scheme for ws(s).
func websocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String()
}
