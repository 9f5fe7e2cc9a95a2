package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// secrets are read from the environment after the file.
type secrets struct {
	Token            string `env:"REALTIME_TOKEN"`
	Channel          string `env:"REALTIME_CHANNEL"`
	DatabasePassword string `env:"REALTIME_DATABASE_PASSWORD"`
}

// Load reads a YAML config file, expands environment variables and applies
// the secrets overlay.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overlayEnv() error {
	var s secrets
	if err := env.Parse(&s); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if s.Token != "" {
		c.Auth.Token = s.Token
	}
	if s.Channel != "" {
		c.Auth.Channel = s.Channel
	}
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
	return nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
