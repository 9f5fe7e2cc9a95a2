package config

import "time"

// Config is the root configuration for a realtime client process.
type Config struct {
	Instance   InstanceConfig     `yaml:"instance"`
	Server     ServerConfig       `yaml:"server"`
	Auth       AuthConfig         `yaml:"auth"`
	Connection ConnectionSettings `yaml:"connection"`
	Outbound   OutboundConfig     `yaml:"outbound"`
	Archive    ArchiveConfig      `yaml:"archive"`
	Database   DBConfig           `yaml:"database"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Log        LogConfig          `yaml:"log"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the realtime endpoints. Per-transport URLs left empty
// are derived from BaseURL.
type ServerConfig struct {
	BaseURL      string `yaml:"base_url"`
	WebSocketURL string `yaml:"websocket_url"`
	SSEURL       string `yaml:"sse_url"`
	PollURL      string `yaml:"poll_url"`
	OutboundURL  string `yaml:"outbound_url"`
}

// AuthConfig holds the session token and channel. TokenFile wins over
// Token and is re-read on every connection attempt.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	Channel   string `yaml:"channel"`
}

// ConnectionSettings mirrors connection.Config.
type ConnectionSettings struct {
	FallbackOrder        []string      `yaml:"fallback_order"`
	DisabledTransports   []string      `yaml:"disabled_transports"`
	ReconnectAttempts    int           `yaml:"reconnect_attempts"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay    time.Duration `yaml:"max_reconnect_delay"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	PollFailureThreshold int           `yaml:"poll_failure_threshold"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	HTTPTimeout          time.Duration `yaml:"http_timeout"`
}

// OutboundConfig limits REST posts. A negative rate disables limiting.
type OutboundConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	MaxRetries    int     `yaml:"max_retries"`
}

// ArchiveConfig holds envelope archive settings. Requires Database when
// enabled.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
