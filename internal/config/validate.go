package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/convoshop/realtime/internal/transport"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Auth.Channel == "" {
		return errors.New("auth.channel is required")
	}

	order, err := transport.ParseKinds(strings.Join(c.Connection.FallbackOrder, ","))
	if err != nil {
		return fmt.Errorf("connection.fallback_order: %w", err)
	}
	if len(order) == 0 {
		return errors.New("connection.fallback_order must not be empty")
	}
	if _, err := transport.ParseKinds(strings.Join(c.Connection.DisabledTransports, ",")); err != nil {
		return fmt.Errorf("connection.disabled_transports: %w", err)
	}
	for _, k := range order {
		if c.Server.urlFor(k) == "" {
			return fmt.Errorf("server.%s_url is required when %s is in fallback_order", urlKey(k), k)
		}
	}

	if c.Connection.ReconnectAttempts < 1 {
		return errors.New("connection.reconnect_attempts must be >= 1")
	}
	if c.Connection.MaxReconnectDelay < c.Connection.ReconnectDelay {
		return fmt.Errorf("connection.max_reconnect_delay (%s) cannot be less than reconnect_delay (%s)",
			c.Connection.MaxReconnectDelay, c.Connection.ReconnectDelay)
	}
	if c.Connection.PollFailureThreshold < 1 {
		return errors.New("connection.poll_failure_threshold must be >= 1")
	}

	if c.Archive.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func urlKey(k transport.Kind) string {
	if k == transport.KindWebSocket {
		return "websocket"
	}
	return k.String()
}
