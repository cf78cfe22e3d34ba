// Package session drives one WebSocket connection after the upgrade.
//
// A Session owns the transport for its lifetime: it reads raw bytes,
// feeds them through the incremental frame decoder, answers control
// frames, reassembles fragmented messages, and runs the closing
// handshake. One goroutine per connection runs the read loop; nothing
// is shared between sessions except immutable options.
//
// # State Machine
//
// Connecting -> Open -> ClosingSent/ClosingReceived -> Closed
//
// The acceptor performs the handshake, so sessions are constructed
// directly into Open. From Open, any protocol violation sends a close
// frame with the matching status code and moves straight to Closed.
// Closed is terminal and releases the transport exactly once.
//
// # Control Frames
//
// Pings are answered with byte-identical pongs immediately, even in the
// middle of a fragmented message, without disturbing reassembly. Pongs
// are surfaced through OnPong. A peer close is echoed (same code and
// reason when structurally valid, 1000 otherwise) and completes the
// handshake.
//
// # Idle Policy
//
// No frame within IdleTimeout triggers a probe ping; silence through
// PongGrace after that closes the connection with 1001 (going away).
// The policy is implemented with read deadlines on the transport and is
// owned by the session, not the codec.
//
// # Usage
//
//	var s *session.Session
//	s = session.New(conn, session.Handler{
//	    OnMessage: func(mt session.MessageType, payload []byte) {
//	        _ = s.SendBinary(payload) // echo
//	    },
//	}, session.Options{})
//	err := s.Run() // blocks until Closed
//
// # Thread Safety
//
// Callbacks run on the session's goroutine, never concurrently for one
// connection. SendText, SendBinary, Ping, and Close may be called from
// any goroutine; a write lock serializes frames on the wire.
package session
