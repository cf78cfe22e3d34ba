// Package logging provides structured logging for the websock server.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the server. It provides both general logging functions
// and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, per-frame logging, ping/pong)
//   - Info: Normal operations (connections, messages, state changes)
//   - Warn: Non-fatal issues (connection drops, slow peers)
//   - Error: Fatal issues (startup failures, transport errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Session started",
//	    zap.String("remote_addr", "192.168.1.100"),
//	    zap.String("session_id", id),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Connection Logging:
//
//	logging.LogConnection(remoteAddr, "connection_accepted")
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//	logging.LogConnection(remoteAddr, "connection_closed")
//
// Protocol Logging:
//
//	logging.LogHandshake(remoteAddr, 101, "/chat")
//	logging.LogFrame(remoteAddr, "received", "text", true, 42)
//	logging.LogMessage(remoteAddr, "received", "binary", payload)
//	logging.LogClose(remoteAddr, 1000, "")
//
// # Configuration
//
// Initialize logging at server startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, WEBSOCK_LOG_LEVEL is consulted; with neither
// set, logging is silent. This keeps CLI subcommands quiet by default.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
