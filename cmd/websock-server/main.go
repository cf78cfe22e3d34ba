// Websock-server is a standalone RFC 6455 WebSocket server daemon.
//
// It accepts TCP or TLS connections, performs the upgrade handshake,
// and echoes complete messages back to each client. A /stats endpoint
// streams live session counters, consumed by the bundled terminal
// monitor.
//
// Usage:
//
//	websock-server serve [flags]
//	websock-server monitor [flags]
//	websock-server config init
//
// See 'websock-server --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FlowerWrong/websock-server/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "websock-server",
	Short: "WebSocket protocol server",
	Long: `A standalone RFC 6455 WebSocket server daemon.

The server performs the upgrade handshake, decodes and validates frames,
reassembles fragmented messages, answers pings, and runs the closing
handshake for every connection. Messages are echoed back by default;
the /stats endpoint streams live session counters instead.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("websock-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
