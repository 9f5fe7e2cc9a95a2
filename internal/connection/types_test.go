package connection

import (
	"testing"
	"time"

	"github.com/convoshop/realtime/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, []transport.Kind{transport.KindWebSocket, transport.KindSSE, transport.KindPolling}, cfg.FallbackOrder)
	assert.Equal(t, 3, cfg.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.PingTimeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing channel", modify: func(c *Config) { c.Channel = "" }, wantErr: "channel is required"},
		{name: "empty order", modify: func(c *Config) { c.FallbackOrder = nil }, wantErr: "fallback_order must not be empty"},
		{name: "unknown kind", modify: func(c *Config) { c.FallbackOrder = []transport.Kind{"pigeon"} }, wantErr: "unknown transport"},
		{name: "missing sse url", modify: func(c *Config) { c.SSEURL = "" }, wantErr: "sse url is required"},
		{
			name:   "missing url for kind not in order",
			modify: func(c *Config) { c.SSEURL = ""; c.FallbackOrder = []transport.Kind{transport.KindWebSocket} },
		},
		{name: "zero attempts", modify: func(c *Config) { c.ReconnectAttempts = 0 }, wantErr: "reconnect_attempts must be at least 1"},
		{name: "zero delay", modify: func(c *Config) { c.ReconnectDelay = 0 }, wantErr: "reconnect_delay must be positive"},
		{name: "max below base", modify: func(c *Config) { c.MaxReconnectDelay = time.Microsecond }, wantErr: "max_reconnect_delay must be >= reconnect_delay"},
		{name: "zero ping interval", modify: func(c *Config) { c.PingInterval = 0 }, wantErr: "ping_interval must be positive"},
		{name: "zero ping timeout", modify: func(c *Config) { c.PingTimeout = 0 }, wantErr: "ping_timeout must be positive"},
		{
			name: "poll slower than heartbeat",
			modify: func(c *Config) {
				c.PingInterval = time.Second
				c.PingTimeout = time.Second
				c.PollInterval = 5 * time.Second
			},
			wantErr: "poll_interval must be shorter than ping_interval + ping_timeout",
		},
		{name: "zero poll threshold", modify: func(c *Config) { c.PollFailureThreshold = 0 }, wantErr: "poll_failure_threshold must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_URLForAndProbe(t *testing.T) {
	cfg := testConfig()
	cfg.Disabled = []transport.Kind{transport.KindSSE}

	assert.Equal(t, cfg.WebSocketURL, cfg.URLFor(transport.KindWebSocket))
	assert.Equal(t, cfg.PollURL, cfg.URLFor(transport.KindPolling))
	assert.Empty(t, cfg.URLFor(transport.KindNone))

	caps := transport.DetectCapabilities(cfg.Probe())
	assert.Equal(t, transport.Capabilities{WebSocket: true, Polling: true}, caps)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(StatusDisconnected, StatusConnecting))
	assert.True(t, canTransition(StatusConnecting, StatusConnected))
	assert.True(t, canTransition(StatusConnected, StatusError))
	assert.True(t, canTransition(StatusError, StatusConnecting))
	assert.False(t, canTransition(StatusDisconnected, StatusConnected))
	assert.False(t, canTransition(StatusError, StatusConnected))
}
