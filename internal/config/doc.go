// Package config provides the daemon configuration for websock-server.
//
// The configuration is a single YAML file covering the listen address,
// optional TLS, per-connection limits, the idle-policy timeouts, logging,
// mDNS advertisement, and the stats endpoint. Command-line flags override
// file values; the file overrides built-in defaults.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/websock-server/config.yaml or $HOME/.config/websock-server/config.yaml
//   - macOS: $HOME/.config/websock-server/config.yaml
//   - Windows: %LOCALAPPDATA%\websock-server\config.yaml
//
// A missing file at the default location is not an error: Load returns
// the built-in defaults so the server runs with zero setup.
//
// # Usage Example
//
//	cfg, err := config.Load("") // default location
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Listen.Port = 9090
//	if err := cfg.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// File operations are protected by a mutex, and saves are atomic
// (temp file + rename) to prevent corruption on crash.
package config
