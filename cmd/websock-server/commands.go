package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/FlowerWrong/websock-server/internal/config"
	"github.com/FlowerWrong/websock-server/internal/monitor"
	"github.com/FlowerWrong/websock-server/internal/server"
)

// Serve command and flags
var (
	configPath   string
	host         string
	port         int
	certPath     string
	keyPath      string
	logLevel     string
	mdnsEnabled  bool
	mdnsInstance string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket server",
	Long: `Start the WebSocket server and block until a shutdown signal.

Configuration is read from the config file (default platform location,
or --config), with command-line flags overriding file values. A missing
config file means built-in defaults, so 'websock-server serve' works
with zero setup.

TLS is enabled by providing both --cert and --key (or the tls section
of the config file).`,
	Example: `  # Start with defaults (plain TCP on :8080)
  websock-server serve

  # Custom port with debug logging
  websock-server serve --port 9090 --log-level debug

  # TLS listener
  websock-server serve --cert /path/to/fullchain.pem --key /path/to/privkey.pem

  # Advertise on the local network via mDNS
  websock-server serve --mdns --mdns-instance lab-websock`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: platform config location)")
	serveCmd.Flags().StringVar(&host, "host", "", "Bind host (overrides config)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Bind port (overrides config)")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().BoolVar(&mdnsEnabled, "mdns", false, "Advertise the server via mDNS")
	serveCmd.Flags().StringVar(&mdnsInstance, "mdns-instance", "", "mDNS instance name (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags override file values only when set.
	if cmd.Flags().Changed("host") {
		cfg.Listen.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Listen.Port = port
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("mdns") {
		cfg.MDNS.Enabled = mdnsEnabled
	}
	if cmd.Flags().Changed("mdns-instance") {
		cfg.MDNS.Instance = mdnsInstance
	}
	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return fmt.Errorf("both --cert and --key must be provided together")
		}
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
		cfg.TLS = config.TLS{Enabled: true, CertPath: certPath, KeyPath: keyPath}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

// Monitor command and flags
var monitorURL string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal dashboard for a running server",
	Long: `Connect to a running server's /stats endpoint and render a live
dashboard: server totals plus one row per session, refreshed every
second. Requires an interactive terminal.`,
	Example: `  # Monitor a local server on the default port
  websock-server monitor

  # Monitor a remote server
  websock-server monitor --url ws://10.0.0.12:9090/stats`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorURL, "url", "ws://127.0.0.1:8080/stats", "Stats endpoint URL")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("monitor requires an interactive terminal")
	}
	return monitor.Run(monitorURL)
}

// Config commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the default configuration to the platform config location
(or --config) so it can be edited. Refuses to overwrite an existing
file unless --force is given.`,
	RunE: runConfigInit,
}

var (
	configInitPath  string
	configInitForce bool
)

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringVar(&configInitPath, "config", "", "Path to write (default: platform config location)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath
	if path == "" {
		var err error
		path, err = config.GetConfigPath()
		if err != nil {
			return err
		}
	}

	if !configInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := config.CreateDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
