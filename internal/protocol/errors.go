package protocol

import (
	"errors"
	"fmt"
)

// ErrIncomplete reports that the decoder needs more bytes before it can
// produce a complete frame. The caller feeds more transport data and
// retries; it is not a failure.
var ErrIncomplete = errors.New("incomplete frame: need more bytes")

// ProtocolError is a violation of the WebSocket framing rules by the
// peer. Code is the close status the connection should be torn down
// with.
type ProtocolError struct {
	Code   CloseCode
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("websocket protocol error (close %d): %s", uint16(e.Code), e.Reason)
}

// violation builds a ProtocolError with the generic 1002 close code.
func violation(reason string) *ProtocolError {
	return &ProtocolError{Code: CloseProtocolError, Reason: reason}
}
