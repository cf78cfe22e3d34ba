package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// CloseCode is a WebSocket close status code (RFC 6455 section 7.4).
type CloseCode uint16

// Close status codes surfaced by the engine.
const (
	CloseNormalClosure   CloseCode = 1000
	CloseGoingAway       CloseCode = 1001
	CloseProtocolError   CloseCode = 1002
	CloseUnsupportedData CloseCode = 1003
	// CloseNoStatus is the sentinel reported when the peer's close frame
	// carried no payload. It is never written to the wire.
	CloseNoStatus        CloseCode = 1005
	CloseInvalidPayload  CloseCode = 1007
	ClosePolicyViolation CloseCode = 1008
	CloseMessageTooBig   CloseCode = 1009
	CloseInternalError   CloseCode = 1011
)

// ValidOnWire reports whether the code may legally appear in a close
// frame payload. 1004-1006 and 1015 are reserved for local reporting
// only; 3000-4999 are registered/private-use codes.
func (c CloseCode) ValidOnWire() bool {
	switch {
	case c >= 1000 && c <= 1003:
		return true
	case c >= 1007 && c <= 1011:
		return true
	case c >= 3000 && c <= 4999:
		return true
	default:
		return false
	}
}

// String returns a human-readable name for the close code.
func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseUnsupportedData:
		return "unsupported data"
	case CloseNoStatus:
		return "no status received"
	case CloseInvalidPayload:
		return "invalid frame payload data"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseMessageTooBig:
		return "message too big"
	case CloseInternalError:
		return "internal error"
	default:
		return fmt.Sprintf("close code %d", uint16(c))
	}
}

// CloseInfo carries a close status code and an optional UTF-8 reason,
// used both to request a close and to record the peer's close.
type CloseInfo struct {
	Code   CloseCode
	Reason string
}

// ParseClosePayload interprets the payload of a received close frame.
// An empty payload yields CloseNoStatus. A 1-byte payload, a code that
// must not appear on the wire, or a non-UTF-8 reason is a protocol
// error.
func ParseClosePayload(p []byte) (CloseInfo, error) {
	if len(p) == 0 {
		return CloseInfo{Code: CloseNoStatus}, nil
	}
	if len(p) == 1 {
		return CloseInfo{}, violation("close payload of 1 byte")
	}
	code := CloseCode(binary.BigEndian.Uint16(p))
	if !code.ValidOnWire() {
		return CloseInfo{}, violation(fmt.Sprintf("invalid close code %d", uint16(code)))
	}
	reason := p[2:]
	if !utf8.Valid(reason) {
		return CloseInfo{}, violation("close reason is not valid UTF-8")
	}
	return CloseInfo{Code: code, Reason: string(reason)}, nil
}

// Payload builds the close frame payload: 2-byte big-endian status code
// followed by the reason. A CloseNoStatus code produces an empty
// payload.
func (ci CloseInfo) Payload() []byte {
	if ci.Code == CloseNoStatus {
		return nil
	}
	p := make([]byte, 2+len(ci.Reason))
	binary.BigEndian.PutUint16(p, uint16(ci.Code))
	copy(p[2:], ci.Reason)
	return p
}
