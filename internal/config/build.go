package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/convoshop/realtime/internal/api"
	"github.com/convoshop/realtime/internal/auth"
	"github.com/convoshop/realtime/internal/connection"
	"github.com/convoshop/realtime/internal/transport"
)

func (s ServerConfig) urlFor(k transport.Kind) string {
	switch k {
	case transport.KindWebSocket:
		return s.WebSocketURL
	case transport.KindSSE:
		return s.SSEURL
	case transport.KindPolling:
		return s.PollURL
	}
	return ""
}

// TokenSource returns the configured token source, or nil when neither a
// token nor a token file is set. The token file is tried first.
func (a AuthConfig) TokenSource() auth.TokenSource {
	var sources []auth.TokenSource
	if a.TokenFile != "" {
		sources = append(sources, auth.FileToken{Path: a.TokenFile})
	}
	if a.Token != "" {
		sources = append(sources, auth.StaticToken(a.Token))
	}
	if len(sources) == 0 {
		return nil
	}
	return auth.Chain(sources...)
}

// ConnectionConfig builds the connection configuration. A nil tokens uses
// Auth.TokenSource.
func (c *Config) ConnectionConfig(tokens auth.TokenSource) (connection.Config, error) {
	if tokens == nil {
		tokens = c.Auth.TokenSource()
	}

	order, err := transport.ParseKinds(strings.Join(c.Connection.FallbackOrder, ","))
	if err != nil {
		return connection.Config{}, err
	}
	disabled, err := transport.ParseKinds(strings.Join(c.Connection.DisabledTransports, ","))
	if err != nil {
		return connection.Config{}, err
	}

	cs := c.Connection
	cfg := connection.Config{
		WebSocketURL:         c.Server.WebSocketURL,
		SSEURL:               c.Server.SSEURL,
		PollURL:              c.Server.PollURL,
		OutboundURL:          c.Server.OutboundURL,
		Channel:              c.Auth.Channel,
		Tokens:               tokens,
		FallbackOrder:        order,
		ReconnectAttempts:    cs.ReconnectAttempts,
		ReconnectDelay:       cs.ReconnectDelay,
		MaxReconnectDelay:    cs.MaxReconnectDelay,
		PingInterval:         cs.PingInterval,
		PingTimeout:          cs.PingTimeout,
		PollInterval:         cs.PollInterval,
		PollFailureThreshold: cs.PollFailureThreshold,
		HandshakeTimeout:     cs.HandshakeTimeout,
		WriteTimeout:         cs.WriteTimeout,
		HTTPTimeout:          cs.HTTPTimeout,
		Disabled:             disabled,
	}
	return cfg, cfg.Validate()
}

// APIClientOptions configures the REST client used for polling and
// outbound posts.
func (c *Config) APIClientOptions(logger *slog.Logger) []api.ClientOption {
	return []api.ClientOption{
		api.WithTimeout(c.Connection.HTTPTimeout),
		api.WithRetries(c.Outbound.MaxRetries, time.Second),
		api.WithRateLimit(c.Outbound.RatePerSecond, c.Outbound.Burst),
		api.WithLogger(logger),
	}
}
