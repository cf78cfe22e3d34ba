package protocol

import (
	"encoding/binary"
	"fmt"
)

// AppendFrame appends the wire encoding of f to dst and returns the
// extended slice. The minimal length encoding is chosen (7-bit up to
// 125, 16-bit up to 65535, 64-bit beyond). Frames are never masked: the
// server role forbids it. Encoding a control frame that violates the
// control constraints is a caller contract violation and returns an
// error rather than truncating.
func AppendFrame(dst []byte, f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return dst, fmt.Errorf("encode %s frame: %w", f.Opcode, err)
	}

	b0 := byte(f.Opcode)
	if f.Fin {
		b0 |= bitFin
	}
	dst = append(dst, b0)

	n := len(f.Payload)
	switch {
	case n <= 125:
		dst = append(dst, byte(n))
	case n <= 0xFFFF:
		dst = append(dst, len16)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, len64)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}

	return append(dst, f.Payload...), nil
}

// EncodeFrame returns the wire encoding of f in a fresh buffer.
func EncodeFrame(f *Frame) ([]byte, error) {
	return AppendFrame(make([]byte, 0, 2+8+len(f.Payload)), f)
}

// TextFrame builds an unfragmented text frame.
func TextFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodeText, Payload: payload}
}

// BinaryFrame builds an unfragmented binary frame.
func BinaryFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodeBinary, Payload: payload}
}

// PingFrame builds a ping frame.
func PingFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodePing, Payload: payload}
}

// PongFrame builds a pong frame. The payload must be byte-identical to
// the ping being answered.
func PongFrame(payload []byte) *Frame {
	return &Frame{Fin: true, Opcode: OpcodePong, Payload: payload}
}

// CloseFrame builds a close frame carrying the given status and reason.
func CloseFrame(info CloseInfo) *Frame {
	return &Frame{Fin: true, Opcode: OpcodeClose, Payload: info.Payload()}
}
