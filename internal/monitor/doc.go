// Package monitor is the live terminal dashboard for a running server.
//
// It connects to the /stats endpoint as a plain WebSocket client and
// renders each JSON snapshot as it arrives: server totals on top, one
// table row per live session. The server pushes a snapshot per second,
// so the stream itself is the refresh tick.
//
// The monitor requires an interactive terminal; the CLI refuses to
// start it when stdout is not a TTY.
package monitor
