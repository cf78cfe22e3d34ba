package protocol

import (
	"encoding/binary"
	"fmt"
)

// maxControlPayload is the RFC 6455 cap on control frame payloads.
const maxControlPayload = 125

const (
	bitFin  = 0x80
	bitRsv1 = 0x40
	bitRsv2 = 0x20
	bitRsv3 = 0x10
	bitMask = 0x80

	len16 = 126
	len64 = 127
)

// ParseFrame decodes one frame from the front of buf. It returns the
// frame, the number of bytes consumed, or ErrIncomplete when buf holds
// fewer bytes than one complete frame. Header violations (reserved
// bits, reserved opcodes, oversized or fragmented control frames,
// 64-bit lengths with the high bit set) return a *ProtocolError as soon
// as the offending header bytes are available, without waiting for the
// payload.
func ParseFrame(buf []byte) (*Frame, int, error) {
	return parseFrame(buf, 0)
}

// parseFrame is ParseFrame with a data-frame payload cap. A maxPayload
// of zero means unlimited. The cap is checked against the declared
// header length so an oversized frame is rejected before any of its
// payload arrives.
func parseFrame(buf []byte, maxPayload int64) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}

	f := &Frame{
		Fin:    buf[0]&bitFin != 0,
		Rsv1:   buf[0]&bitRsv1 != 0,
		Rsv2:   buf[0]&bitRsv2 != 0,
		Rsv3:   buf[0]&bitRsv3 != 0,
		Opcode: Opcode(buf[0] & 0x0F),
		Masked: buf[1]&bitMask != 0,
	}

	if f.Rsv1 || f.Rsv2 || f.Rsv3 {
		return nil, 0, violation("reserved bits set without negotiated extension")
	}
	if !f.Opcode.IsValid() {
		return nil, 0, violation(fmt.Sprintf("reserved opcode 0x%X", buf[0]&0x0F))
	}

	length := uint64(buf[1] & 0x7F)
	offset := 2

	switch length {
	case len16:
		if len(buf) < offset+2 {
			return nil, 0, ErrIncomplete
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case len64:
		if len(buf) < offset+8 {
			return nil, 0, ErrIncomplete
		}
		length = binary.BigEndian.Uint64(buf[offset:])
		if length&(1<<63) != 0 {
			return nil, 0, violation("64-bit payload length with high bit set")
		}
		offset += 8
	}

	if f.Opcode.IsControl() {
		if !f.Fin {
			return nil, 0, violation("fragmented control frame")
		}
		if length > maxControlPayload {
			return nil, 0, violation(fmt.Sprintf("control frame payload %d exceeds %d bytes", length, maxControlPayload))
		}
	} else if maxPayload > 0 && length > uint64(maxPayload) {
		return nil, 0, &ProtocolError{
			Code:   CloseMessageTooBig,
			Reason: fmt.Sprintf("declared frame payload %d exceeds limit %d", length, maxPayload),
		}
	}

	if f.Masked {
		if len(buf) < offset+4 {
			return nil, 0, ErrIncomplete
		}
		copy(f.MaskKey[:], buf[offset:offset+4])
		offset += 4
	}

	if uint64(len(buf)-offset) < length {
		return nil, 0, ErrIncomplete
	}

	f.Payload = make([]byte, length)
	copy(f.Payload, buf[offset:offset+int(length)])
	if f.Masked {
		ApplyMask(f.Payload, f.MaskKey)
	}

	return f, offset + int(length), nil
}

// Decoder is an incremental frame decoder. Transport bytes are appended
// with Feed in whatever chunks the socket delivers them; Next yields
// complete frames as they become available. A single read may carry a
// partial frame or several frames; the decoder retains unconsumed bytes
// across calls.
//
// Decoder is not safe for concurrent use: each connection owns one.
type Decoder struct {
	// MaxPayload caps the declared payload length of data frames. Frames
	// whose header announces more are rejected with close code 1009
	// before any payload is buffered. Zero means unlimited. Control
	// frames are governed by the 125-byte RFC cap instead.
	MaxPayload int64

	buf []byte
	off int
}

// compactThreshold is the consumed-byte count past which the retained
// buffer is shifted down instead of growing.
const compactThreshold = 4096

// Feed appends transport bytes to the decoder's buffer.
func (d *Decoder) Feed(p []byte) {
	if d.off >= compactThreshold {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame, ErrIncomplete when more bytes
// are needed, or a *ProtocolError on a framing violation. After a
// protocol error the decoder's state is undefined; the connection is
// expected to be torn down.
func (d *Decoder) Next() (*Frame, error) {
	f, n, err := parseFrame(d.buf[d.off:], d.MaxPayload)
	if err != nil {
		return nil, err
	}
	d.off += n
	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	return f, nil
}

// Buffered returns the number of unconsumed bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}
