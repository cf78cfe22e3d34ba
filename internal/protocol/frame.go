package protocol

import "fmt"

// Opcode identifies the type of a WebSocket frame (RFC 6455 section 5.2).
type Opcode byte

// Frame opcodes. Values 0x3-0x7 and 0xB-0xF are reserved and rejected
// by the decoder.
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsValid reports whether the opcode is one of the six defined opcodes.
func (o Opcode) IsValid() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary,
		OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// IsControl reports whether the opcode is a control frame opcode.
func (o Opcode) IsControl() bool {
	switch o {
	case OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// IsData reports whether the opcode is a data frame opcode.
func (o Opcode) IsData() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary:
		return true
	default:
		return false
	}
}

// String returns a human-readable opcode name.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", byte(o))
	}
}

// Frame represents a single WebSocket wire frame. It is transient:
// constructed per decode and consumed immediately by the caller.
// Payload length is derived from len(Payload), never stored redundantly.
type Frame struct {
	Fin    bool
	Rsv1   bool
	Rsv2   bool
	Rsv3   bool
	Opcode Opcode
	Masked bool
	// MaskKey is meaningful only when Masked is true.
	MaskKey [4]byte
	// Payload is the unmasked payload data.
	Payload []byte
}

// Validate checks the frame invariants that hold regardless of
// connection state: known opcode, clear reserved bits (no extension is
// negotiated), and the control-frame constraint (fin set, payload at
// most 125 bytes).
func (f *Frame) Validate() error {
	if !f.Opcode.IsValid() {
		return &ProtocolError{Code: CloseProtocolError, Reason: fmt.Sprintf("reserved opcode 0x%X", byte(f.Opcode))}
	}
	if f.Rsv1 || f.Rsv2 || f.Rsv3 {
		return &ProtocolError{Code: CloseProtocolError, Reason: "reserved bits set without negotiated extension"}
	}
	if f.Opcode.IsControl() {
		if !f.Fin {
			return &ProtocolError{Code: CloseProtocolError, Reason: "fragmented control frame"}
		}
		if len(f.Payload) > maxControlPayload {
			return &ProtocolError{Code: CloseProtocolError, Reason: fmt.Sprintf("control frame payload %d exceeds %d bytes", len(f.Payload), maxControlPayload)}
		}
	}
	return nil
}

// String returns a debug representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{Fin=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.Fin, f.Opcode, f.Masked, len(f.Payload))
}
