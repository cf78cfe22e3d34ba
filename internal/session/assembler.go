package session

import (
	"fmt"
	"unicode/utf8"

	"github.com/FlowerWrong/websock-server/internal/protocol"
)

// Message is one complete application message, reassembled from one or
// more data frames. It is owned by a single session and discarded once
// delivered.
type Message struct {
	Type    MessageType
	Payload []byte
}

// assembler aggregates data frames into complete messages. Two states:
// idle (no message in progress) and accumulating. Control frames never
// pass through the assembler, so an interleaved ping cannot disturb a
// fragmented message.
type assembler struct {
	maxSize      int64
	accumulating bool
	messageType  MessageType
	buf          []byte
}

// push feeds one data frame into the assembler. It returns a complete
// message when the frame finishes one, nil when more fragments are
// expected, or a *ProtocolError on a malformed fragment sequence, an
// oversized message, or invalid UTF-8 in a completed text message.
func (a *assembler) push(f *protocol.Frame) (*Message, error) {
	switch f.Opcode {
	case protocol.OpcodeContinuation:
		if !a.accumulating {
			a.reset()
			return nil, &protocol.ProtocolError{
				Code:   protocol.CloseProtocolError,
				Reason: "continuation frame with no message in progress",
			}
		}
		if err := a.checkSize(len(f.Payload)); err != nil {
			a.reset()
			return nil, err
		}
		a.buf = append(a.buf, f.Payload...)
		if !f.Fin {
			return nil, nil
		}
		return a.complete(a.buf)

	case protocol.OpcodeText, protocol.OpcodeBinary:
		if a.accumulating {
			a.reset()
			return nil, &protocol.ProtocolError{
				Code:   protocol.CloseProtocolError,
				Reason: fmt.Sprintf("new %s frame while a fragmented message is in progress", f.Opcode),
			}
		}
		if err := a.checkSize(len(f.Payload)); err != nil {
			return nil, err
		}
		if f.Opcode == protocol.OpcodeText {
			a.messageType = TextMessage
		} else {
			a.messageType = BinaryMessage
		}
		if f.Fin {
			// Single-frame message: deliver the decoder's payload as-is.
			return a.complete(f.Payload)
		}
		a.accumulating = true
		a.buf = append(a.buf[:0], f.Payload...)
		return nil, nil

	default:
		// The session routes control frames elsewhere; reaching here is
		// a programming error, not a peer fault.
		return nil, fmt.Errorf("assembler: non-data opcode %s", f.Opcode)
	}
}

// checkSize enforces the accumulated message cap, applying equally to
// single-frame messages.
func (a *assembler) checkSize(add int) error {
	if a.maxSize > 0 && int64(len(a.buf))+int64(add) > a.maxSize {
		return &protocol.ProtocolError{
			Code:   protocol.CloseMessageTooBig,
			Reason: fmt.Sprintf("message exceeds %d byte limit", a.maxSize),
		}
	}
	return nil
}

// complete validates and returns the finished message and resets the
// assembler. Text payloads are checked as UTF-8 on the complete
// message, not per fragment.
func (a *assembler) complete(payload []byte) (*Message, error) {
	mt := a.messageType
	a.reset()
	if mt == TextMessage && !utf8.Valid(payload) {
		return nil, &protocol.ProtocolError{
			Code:   protocol.CloseInvalidPayload,
			Reason: "text message is not valid UTF-8",
		}
	}
	return &Message{Type: mt, Payload: payload}, nil
}

func (a *assembler) reset() {
	a.accumulating = false
	a.messageType = 0
	a.buf = a.buf[:0]
}
