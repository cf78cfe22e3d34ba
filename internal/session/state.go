package session

// State is the lifecycle state of one connection. Transitions happen
// only inside the Session.
type State int

const (
	// StateConnecting covers the HTTP upgrade exchange. The acceptor
	// performs the handshake before a Session exists, so a Session is
	// constructed directly into StateOpen on success.
	StateConnecting State = iota
	StateOpen
	// StateClosingSent: we initiated the close and are draining until
	// the peer's close arrives or the grace period expires.
	StateClosingSent
	// StateClosingReceived: the peer initiated the close; we echo and
	// finish.
	StateClosingReceived
	// StateClosed is terminal; the transport has been released.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosingSent:
		return "closing-sent"
	case StateClosingReceived:
		return "closing-received"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// MessageType is the application-visible type of a complete message,
// fixed by the first frame's opcode.
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

// String returns the wire name of the message type.
func (mt MessageType) String() string {
	switch mt {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "invalid"
	}
}
