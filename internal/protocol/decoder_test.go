package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// maskBytes is a test helper that returns a masked copy of payload.
func maskBytes(payload []byte, key [4]byte) []byte {
	masked := make([]byte, len(payload))
	copy(masked, payload)
	ApplyMask(masked, key)
	return masked
}

func TestParseFrame(t *testing.T) {
	key := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}

	tests := []struct {
		name     string
		data     []byte
		wantErr  bool
		wantCode CloseCode
		verify   func(t *testing.T, frame *Frame, consumed int)
	}{
		{
			name: "unmasked text frame",
			data: []byte{
				0x81, // FIN + text opcode
				0x05, // no mask, 5 byte payload
				'H', 'e', 'l', 'l', 'o',
			},
			verify: func(t *testing.T, frame *Frame, consumed int) {
				if !frame.Fin {
					t.Error("Fin should be true")
				}
				if frame.Opcode != OpcodeText {
					t.Errorf("opcode = %s, want text", frame.Opcode)
				}
				if frame.Masked {
					t.Error("masked should be false")
				}
				if !bytes.Equal(frame.Payload, []byte("Hello")) {
					t.Errorf("payload = %v, want 'Hello'", frame.Payload)
				}
				if consumed != 7 {
					t.Errorf("consumed = %d, want 7", consumed)
				}
			},
		},
		{
			name: "masked binary frame is unmasked on decode",
			data: append([]byte{
				0x82, // FIN + binary opcode
				0x83, // mask bit + 3 byte payload
				0xAA, 0xBB, 0xCC, 0xDD,
			}, maskBytes([]byte{0x01, 0x02, 0x03}, key)...),
			verify: func(t *testing.T, frame *Frame, consumed int) {
				if !frame.Masked {
					t.Error("masked should be true")
				}
				if frame.MaskKey != key {
					t.Errorf("mask key = %v, want %v", frame.MaskKey, key)
				}
				if !bytes.Equal(frame.Payload, []byte{0x01, 0x02, 0x03}) {
					t.Errorf("payload = %v, want unmasked bytes", frame.Payload)
				}
				if consumed != 9 {
					t.Errorf("consumed = %d, want 9", consumed)
				}
			},
		},
		{
			name: "fragmented text frame",
			data: []byte{
				0x01, // FIN clear, text opcode
				0x02,
				'h', 'i',
			},
			verify: func(t *testing.T, frame *Frame, consumed int) {
				if frame.Fin {
					t.Error("Fin should be false for a fragment")
				}
				if frame.Opcode != OpcodeText {
					t.Errorf("opcode = %s, want text", frame.Opcode)
				}
			},
		},
		{
			name: "16-bit extended length",
			data: func() []byte {
				payload := make([]byte, 300)
				return append([]byte{
					0x82,       // FIN + binary
					0x7E,       // 126: next 2 bytes are length
					0x01, 0x2C, // 300 big-endian
				}, payload...)
			}(),
			verify: func(t *testing.T, frame *Frame, consumed int) {
				if len(frame.Payload) != 300 {
					t.Errorf("payload length = %d, want 300", len(frame.Payload))
				}
				if consumed != 4+300 {
					t.Errorf("consumed = %d, want 304", consumed)
				}
			},
		},
		{
			name: "64-bit extended length",
			data: func() []byte {
				payload := make([]byte, 65536)
				return append([]byte{
					0x82, // FIN + binary
					0x7F, // 127: next 8 bytes are length
					0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, // 65536
				}, payload...)
			}(),
			verify: func(t *testing.T, frame *Frame, consumed int) {
				if len(frame.Payload) != 65536 {
					t.Errorf("payload length = %d, want 65536", len(frame.Payload))
				}
			},
		},
		{
			name: "empty close frame",
			data: []byte{0x88, 0x00},
			verify: func(t *testing.T, frame *Frame, consumed int) {
				if frame.Opcode != OpcodeClose {
					t.Errorf("opcode = %s, want close", frame.Opcode)
				}
				if len(frame.Payload) != 0 {
					t.Errorf("payload length = %d, want 0", len(frame.Payload))
				}
			},
		},
		{
			name:     "reserved bits set",
			data:     []byte{0xF1, 0x00},
			wantErr:  true,
			wantCode: CloseProtocolError,
		},
		{
			name:     "reserved opcode 0x3",
			data:     []byte{0x83, 0x00},
			wantErr:  true,
			wantCode: CloseProtocolError,
		},
		{
			name:     "reserved opcode 0xB",
			data:     []byte{0x8B, 0x00},
			wantErr:  true,
			wantCode: CloseProtocolError,
		},
		{
			name:     "fragmented ping",
			data:     []byte{0x09, 0x00},
			wantErr:  true,
			wantCode: CloseProtocolError,
		},
		{
			name: "control frame with 16-bit length",
			data: []byte{
				0x89,       // FIN + ping
				0x7E,       // extended length path
				0x00, 0x7E, // 126
			},
			wantErr:  true,
			wantCode: CloseProtocolError,
		},
		{
			name: "64-bit length with high bit set",
			data: []byte{
				0x82,
				0x7F,
				0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
			},
			wantErr:  true,
			wantCode: CloseProtocolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, consumed, err := ParseFrame(tt.data)

			if tt.wantErr {
				var pe *ProtocolError
				if !errors.As(err, &pe) {
					t.Fatalf("ParseFrame() error = %v, want *ProtocolError", err)
				}
				if pe.Code != tt.wantCode {
					t.Errorf("close code = %d, want %d", pe.Code, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, frame, consumed)
			}
		})
	}
}

func TestParseFrame_Incomplete(t *testing.T) {
	// Each prefix of a complete frame must report ErrIncomplete, never a
	// protocol error or a short frame.
	full := append([]byte{
		0x82, // FIN + binary
		0x85, // mask + 5 byte payload
		0x01, 0x02, 0x03, 0x04, // mask key
	}, maskBytes([]byte("hello"), [4]byte{0x01, 0x02, 0x03, 0x04})...)

	for i := 0; i < len(full); i++ {
		_, _, err := ParseFrame(full[:i])
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("ParseFrame(%d of %d bytes) error = %v, want ErrIncomplete", i, len(full), err)
		}
	}

	frame, consumed, err := ParseFrame(full)
	if err != nil {
		t.Fatalf("ParseFrame(full) error = %v", err)
	}
	if consumed != len(full) {
		t.Errorf("consumed = %d, want %d", consumed, len(full))
	}
	if !bytes.Equal(frame.Payload, []byte("hello")) {
		t.Errorf("payload = %q, want 'hello'", frame.Payload)
	}
}

func TestDecoder_FeedByteAtATime(t *testing.T) {
	full := []byte{
		0x81, 0x03, 'a', 'b', 'c',
	}

	var d Decoder
	for i, b := range full {
		d.Feed([]byte{b})
		frame, err := d.Next()
		if i < len(full)-1 {
			if !errors.Is(err, ErrIncomplete) {
				t.Fatalf("Next() after byte %d: error = %v, want ErrIncomplete", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Next() after final byte: error = %v", err)
		}
		if !bytes.Equal(frame.Payload, []byte("abc")) {
			t.Errorf("payload = %q, want 'abc'", frame.Payload)
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d after consuming the only frame, want 0", d.Buffered())
	}
}

func TestDecoder_MultipleFramesInOneFeed(t *testing.T) {
	// Two complete frames plus the start of a third in a single chunk.
	chunk := []byte{
		0x81, 0x01, 'a',
		0x89, 0x02, 'p', 'q',
		0x81, 0x05, 'x', // truncated
	}

	var d Decoder
	d.Feed(chunk)

	first, err := d.Next()
	if err != nil {
		t.Fatalf("Next() first frame: %v", err)
	}
	if first.Opcode != OpcodeText || !bytes.Equal(first.Payload, []byte("a")) {
		t.Errorf("first frame = %s payload %q", first.Opcode, first.Payload)
	}

	second, err := d.Next()
	if err != nil {
		t.Fatalf("Next() second frame: %v", err)
	}
	if second.Opcode != OpcodePing || !bytes.Equal(second.Payload, []byte("pq")) {
		t.Errorf("second frame = %s payload %q", second.Opcode, second.Payload)
	}

	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Next() third frame: error = %v, want ErrIncomplete", err)
	}

	// The remainder of the third frame completes it.
	d.Feed([]byte{'y', 'z', 'z', 'y'})
	third, err := d.Next()
	if err != nil {
		t.Fatalf("Next() after completing third frame: %v", err)
	}
	if !bytes.Equal(third.Payload, []byte("xyzzy")) {
		t.Errorf("third payload = %q, want 'xyzzy'", third.Payload)
	}
}

func TestDecoder_PayloadLimit(t *testing.T) {
	t.Run("64-bit declared length over limit rejected from header alone", func(t *testing.T) {
		// Only the header bytes arrive: first two bytes plus the 8-byte
		// extended length. No mask key, no payload.
		header := []byte{0x82, 0xFF}
		header = binary.BigEndian.AppendUint64(header, 1<<20)

		d := Decoder{MaxPayload: 1024}
		d.Feed(header)

		_, err := d.Next()
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("Next() error = %v, want *ProtocolError", err)
		}
		if pe.Code != CloseMessageTooBig {
			t.Errorf("close code = %d, want %d", pe.Code, CloseMessageTooBig)
		}
	})

	t.Run("16-bit declared length over limit rejected", func(t *testing.T) {
		d := Decoder{MaxPayload: 1024}
		d.Feed([]byte{0x82, 0xFE, 0x08, 0x00}) // declares 2048

		_, err := d.Next()
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("Next() error = %v, want *ProtocolError", err)
		}
		if pe.Code != CloseMessageTooBig {
			t.Errorf("close code = %d, want %d", pe.Code, CloseMessageTooBig)
		}
	})

	t.Run("declared length at the limit still decodes", func(t *testing.T) {
		d := Decoder{MaxPayload: 1024}
		d.Feed([]byte{0x82, 0xFE, 0x04, 0x00}) // declares exactly 1024

		if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
			t.Fatalf("Next() on header only: error = %v, want ErrIncomplete", err)
		}
		d.Feed(make([]byte, 1024))
		frame, err := d.Next()
		if err != nil {
			t.Fatalf("Next() with full payload: %v", err)
		}
		if len(frame.Payload) != 1024 {
			t.Errorf("payload length = %d, want 1024", len(frame.Payload))
		}
	})

	t.Run("control frames are exempt from the data limit", func(t *testing.T) {
		d := Decoder{MaxPayload: 1}
		d.Feed([]byte{0x89, 0x02, 'p', 'q'})

		frame, err := d.Next()
		if err != nil {
			t.Fatalf("Next() on ping: %v", err)
		}
		if frame.Opcode != OpcodePing || !bytes.Equal(frame.Payload, []byte("pq")) {
			t.Errorf("frame = %s payload %q, want ping 'pq'", frame.Opcode, frame.Payload)
		}
	})

	t.Run("zero limit is unlimited", func(t *testing.T) {
		payload := make([]byte, 2048)
		data := append([]byte{0x82, 0xFE, 0x08, 0x00}, payload...)

		var d Decoder
		d.Feed(data)
		frame, err := d.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if len(frame.Payload) != 2048 {
			t.Errorf("payload length = %d, want 2048", len(frame.Payload))
		}
	})
}

func TestApplyMask_Involution(t *testing.T) {
	payload := make([]byte, 257)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

	p := make([]byte, len(payload))
	copy(p, payload)

	ApplyMask(p, key)
	if bytes.Equal(p, payload) {
		t.Fatal("masking with a non-zero key should change the payload")
	}
	ApplyMask(p, key)
	if !bytes.Equal(p, payload) {
		t.Error("unmask(unmask(p)) != p, XOR involution broken")
	}
}

func TestApplyMask(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		key     [4]byte
		want    []byte
	}{
		{
			name:    "key cycles every 4 bytes",
			payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
			key:     [4]byte{0x01, 0x01, 0x01, 0x01},
			want:    []byte{0x00, 0x03, 0x02, 0x05, 0x04, 0x07},
		},
		{
			name:    "zero key is a no-op",
			payload: []byte{0x11, 0x22, 0x33},
			key:     [4]byte{},
			want:    []byte{0x11, 0x22, 0x33},
		},
		{
			name:    "empty payload",
			payload: []byte{},
			key:     [4]byte{0xAA, 0xBB, 0xCC, 0xDD},
			want:    []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := make([]byte, len(tt.payload))
			copy(p, tt.payload)
			ApplyMask(p, tt.key)
			if !bytes.Equal(p, tt.want) {
				t.Errorf("ApplyMask() = %v, want %v", p, tt.want)
			}
		})
	}
}

func BenchmarkParseFrame(b *testing.B) {
	payload := make([]byte, 1024)
	key := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	data := append([]byte{
		0x82, 0xFE, 0x04, 0x00, // masked, 16-bit length 1024
		key[0], key[1], key[2], key[3],
	}, maskBytes(payload, key)...)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := ParseFrame(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkApplyMask(b *testing.B) {
	payload := make([]byte, 4096)
	key := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ApplyMask(payload, key)
	}
}
