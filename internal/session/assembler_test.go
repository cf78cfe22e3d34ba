package session

import (
	"bytes"
	"errors"
	"testing"

	"github.com/FlowerWrong/websock-server/internal/protocol"
)

func dataFrame(opcode protocol.Opcode, fin bool, payload string) *protocol.Frame {
	return &protocol.Frame{Fin: fin, Opcode: opcode, Payload: []byte(payload)}
}

func wantViolation(t *testing.T, err error, code protocol.CloseCode) {
	t.Helper()
	var perr *protocol.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
	if perr.Code != code {
		t.Errorf("close code = %d, want %d", perr.Code, code)
	}
}

func TestAssembler_SingleFrameMessage(t *testing.T) {
	var a assembler

	msg, err := a.push(dataFrame(protocol.OpcodeText, true, "hello"))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if msg == nil {
		t.Fatal("fin frame at idle should complete immediately")
	}
	if msg.Type != TextMessage || string(msg.Payload) != "hello" {
		t.Errorf("message = %s %q", msg.Type, msg.Payload)
	}
}

func TestAssembler_ThreeFragmentMessage(t *testing.T) {
	var a assembler

	frames := []*protocol.Frame{
		dataFrame(protocol.OpcodeText, false, "Hel"),
		dataFrame(protocol.OpcodeContinuation, false, "lo "),
		dataFrame(protocol.OpcodeContinuation, true, "World"),
	}

	var delivered []*Message
	for i, f := range frames {
		msg, err := a.push(f)
		if err != nil {
			t.Fatalf("push fragment %d: %v", i, err)
		}
		if msg != nil {
			delivered = append(delivered, msg)
		}
	}

	if len(delivered) != 1 {
		t.Fatalf("delivered %d messages, want exactly 1", len(delivered))
	}
	msg := delivered[0]
	if msg.Type != TextMessage {
		t.Errorf("type = %s, want text (fixed by the first frame)", msg.Type)
	}
	if !bytes.Equal(msg.Payload, []byte("Hello World")) {
		t.Errorf("payload = %q, want concatenation of the three fragments", msg.Payload)
	}

	// The assembler must be back at idle.
	if a.accumulating {
		t.Error("assembler still accumulating after delivery")
	}
}

func TestAssembler_ProtocolErrors(t *testing.T) {
	t.Run("continuation at idle", func(t *testing.T) {
		var a assembler
		_, err := a.push(dataFrame(protocol.OpcodeContinuation, true, "x"))
		wantViolation(t, err, protocol.CloseProtocolError)
	})

	t.Run("new data frame while accumulating", func(t *testing.T) {
		var a assembler
		if _, err := a.push(dataFrame(protocol.OpcodeBinary, false, "start")); err != nil {
			t.Fatalf("push: %v", err)
		}
		_, err := a.push(dataFrame(protocol.OpcodeText, true, "interloper"))
		wantViolation(t, err, protocol.CloseProtocolError)
	})

	t.Run("invalid UTF-8 in completed text message", func(t *testing.T) {
		var a assembler
		// Split a valid UTF-8 sequence so each fragment alone is
		// invalid; only the complete message is checked.
		if _, err := a.push(&protocol.Frame{Fin: false, Opcode: protocol.OpcodeText, Payload: []byte{0xE2, 0x82}}); err != nil {
			t.Fatalf("push: %v", err)
		}
		msg, err := a.push(&protocol.Frame{Fin: true, Opcode: protocol.OpcodeContinuation, Payload: []byte{0xAC}})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		if string(msg.Payload) != "€" {
			t.Errorf("payload = %q, want euro sign", msg.Payload)
		}

		// A text message that never becomes valid UTF-8 is rejected on
		// completion with 1007.
		_, err = a.push(&protocol.Frame{Fin: true, Opcode: protocol.OpcodeText, Payload: []byte{0xFF, 0xFE}})
		wantViolation(t, err, protocol.CloseInvalidPayload)
	})

	t.Run("binary payloads skip the UTF-8 check", func(t *testing.T) {
		var a assembler
		msg, err := a.push(&protocol.Frame{Fin: true, Opcode: protocol.OpcodeBinary, Payload: []byte{0xFF, 0xFE}})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		if msg.Type != BinaryMessage {
			t.Errorf("type = %s, want binary", msg.Type)
		}
	})
}

func TestAssembler_SizeCap(t *testing.T) {
	a := assembler{maxSize: 10}

	t.Run("oversized single frame", func(t *testing.T) {
		_, err := a.push(dataFrame(protocol.OpcodeBinary, true, "0123456789A"))
		wantViolation(t, err, protocol.CloseMessageTooBig)
	})

	t.Run("cap applies to the accumulated total", func(t *testing.T) {
		a.reset()
		if _, err := a.push(dataFrame(protocol.OpcodeBinary, false, "012345")); err != nil {
			t.Fatalf("push: %v", err)
		}
		_, err := a.push(dataFrame(protocol.OpcodeContinuation, true, "6789AB"))
		wantViolation(t, err, protocol.CloseMessageTooBig)
	})

	t.Run("exactly at the cap is fine", func(t *testing.T) {
		a.reset()
		msg, err := a.push(dataFrame(protocol.OpcodeBinary, true, "0123456789"))
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		if len(msg.Payload) != 10 {
			t.Errorf("payload length = %d, want 10", len(msg.Payload))
		}
	})
}
