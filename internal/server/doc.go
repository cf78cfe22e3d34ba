// Package server runs the websock-server daemon: it accepts TCP or TLS
// connections, performs the RFC 6455 upgrade handshake, and drives one
// session per connection.
//
// # Connection Lifecycle
//
//  1. Accept (plain TCP, or TLS when configured)
//  2. Read the HTTP upgrade request and negotiate (101 or a rejection)
//  3. Register the session under a fresh uuid
//  4. Run the session read loop until the closing handshake finishes
//  5. Unregister and release the socket
//
// # Application Behavior
//
// Every path except /stats echoes complete messages back unchanged.
// The /stats path, when enabled, streams a JSON snapshot of server
// totals and per-session counters once per second; the monitor TUI is
// its consumer.
//
// # Usage Example
//
//	cfg := config.Default()
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM stop the listener, send close 1001 (going away)
// to every live session, and wait for the drain with a timeout.
//
// # Thread Safety
//
// Each connection runs in its own goroutine. The session registry is
// the only cross-connection state and is guarded by its own mutex.
package server
