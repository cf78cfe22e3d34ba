package config

import (
	"fmt"
	"time"
)

// Config is the daemon configuration, persisted as YAML.
type Config struct {
	// Version is the config file schema version.
	Version int `yaml:"version"`

	Listen   Listen   `yaml:"listen"`
	TLS      TLS      `yaml:"tls"`
	Limits   Limits   `yaml:"limits"`
	Timeouts Timeouts `yaml:"timeouts"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	MDNS  MDNS  `yaml:"mdns"`
	Stats Stats `yaml:"stats"`
}

// Listen is the bind address for the acceptor.
type Listen struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr renders the host:port form used by net.Listen.
func (l Listen) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// TLS configures the optional TLS listener. When disabled the server
// accepts plain TCP.
type TLS struct {
	Enabled  bool   `yaml:"enabled"`
	CertPath string `yaml:"cert"`
	KeyPath  string `yaml:"key"`
}

// Limits bounds per-connection resource use.
type Limits struct {
	// MaxMessageSize caps one reassembled message in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// Timeouts holds the idle policy intervals, in whole seconds.
type Timeouts struct {
	// Idle is how long a connection may stay silent before a ping probe.
	Idle int `yaml:"idle"`
	// PongGrace is how long after the probe the peer may stay silent
	// before the connection is closed with 1001.
	PongGrace int `yaml:"pong_grace"`
	// CloseGrace bounds the drain after a locally initiated close.
	CloseGrace int `yaml:"close_grace"`
}

// IdleDuration returns the idle timeout as a time.Duration.
func (t Timeouts) IdleDuration() time.Duration { return time.Duration(t.Idle) * time.Second }

// PongGraceDuration returns the pong grace as a time.Duration.
func (t Timeouts) PongGraceDuration() time.Duration {
	return time.Duration(t.PongGrace) * time.Second
}

// CloseGraceDuration returns the close grace as a time.Duration.
func (t Timeouts) CloseGraceDuration() time.Duration {
	return time.Duration(t.CloseGrace) * time.Second
}

// MDNS configures LAN advertisement of the serving endpoint.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Stats enables the /stats endpoint consumed by the monitor TUI.
type Stats struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Listen: Listen{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Limits: Limits{
			MaxMessageSize: 1 << 20,
		},
		Timeouts: Timeouts{
			Idle:       60,
			PongGrace:  10,
			CloseGrace: 5,
		},
		LogLevel: "info",
		MDNS: MDNS{
			Enabled:  false,
			Instance: "websock-server",
		},
		Stats: Stats{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the server cannot run
// with. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("invalid listen port: %d", c.Listen.Port)
	}
	if c.TLS.Enabled {
		if c.TLS.CertPath == "" || c.TLS.KeyPath == "" {
			return fmt.Errorf("tls enabled but cert or key path is empty")
		}
	}
	if c.Limits.MaxMessageSize < 0 {
		return fmt.Errorf("max_message_size must not be negative: %d", c.Limits.MaxMessageSize)
	}
	if c.Timeouts.Idle <= 0 || c.Timeouts.PongGrace <= 0 || c.Timeouts.CloseGrace <= 0 {
		return fmt.Errorf("timeouts must be positive seconds: idle=%d pong_grace=%d close_grace=%d",
			c.Timeouts.Idle, c.Timeouts.PongGrace, c.Timeouts.CloseGrace)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	if c.MDNS.Enabled && c.MDNS.Instance == "" {
		return fmt.Errorf("mdns enabled but instance name is empty")
	}
	return nil
}
