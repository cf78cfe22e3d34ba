package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	// Each length exercises one side of a length-encoding boundary:
	// 0/1/125 use the 7-bit form, 126/65535 the 16-bit form, 65536 the
	// 64-bit form.
	lengths := []int{0, 1, 125, 126, 65535, 65536}

	for _, n := range lengths {
		for _, opcode := range []Opcode{OpcodeText, OpcodeBinary} {
			payload := make([]byte, n)
			for i := range payload {
				payload[i] = byte(i)
			}

			in := &Frame{Fin: true, Opcode: opcode, Payload: payload}
			wire, err := EncodeFrame(in)
			if err != nil {
				t.Fatalf("EncodeFrame(len=%d): %v", n, err)
			}

			wantHeader := 2
			switch {
			case n >= 65536:
				wantHeader = 10
			case n >= 126:
				wantHeader = 4
			}
			if len(wire) != wantHeader+n {
				t.Errorf("len=%d: wire size = %d, want %d (minimal encoding)", n, len(wire), wantHeader+n)
			}

			out, consumed, err := ParseFrame(wire)
			if err != nil {
				t.Fatalf("ParseFrame(len=%d): %v", n, err)
			}
			if consumed != len(wire) {
				t.Errorf("len=%d: consumed = %d, want %d", n, consumed, len(wire))
			}
			if out.Fin != in.Fin || out.Opcode != in.Opcode {
				t.Errorf("len=%d: round-trip changed header: %s", n, out)
			}
			if out.Masked {
				t.Errorf("len=%d: server frame came back masked", n)
			}
			if !bytes.Equal(out.Payload, in.Payload) {
				t.Errorf("len=%d: round-trip changed payload", n)
			}
		}
	}
}

func TestEncodeFrame_ControlConstraints(t *testing.T) {
	tests := []struct {
		name    string
		frame   *Frame
		wantErr bool
	}{
		{
			name:  "ping at the 125-byte cap",
			frame: PingFrame(make([]byte, 125)),
		},
		{
			name:    "ping over the cap is rejected, not truncated",
			frame:   PingFrame(make([]byte, 126)),
			wantErr: true,
		},
		{
			name:    "fragmented close is rejected",
			frame:   &Frame{Fin: false, Opcode: OpcodeClose},
			wantErr: true,
		},
		{
			name:    "reserved bits are rejected",
			frame:   &Frame{Fin: true, Opcode: OpcodeText, Rsv1: true},
			wantErr: true,
		},
		{
			name:  "close with code and reason",
			frame: CloseFrame(CloseInfo{Code: CloseNormalClosure, Reason: "bye"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := EncodeFrame(tt.frame)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EncodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if _, _, err := ParseFrame(wire); err != nil {
				t.Errorf("encoded frame does not decode: %v", err)
			}
		})
	}
}

func TestCloseFrame_Payload(t *testing.T) {
	wire, err := EncodeFrame(CloseFrame(CloseInfo{Code: CloseNormalClosure, Reason: "done"}))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	frame, _, err := ParseFrame(wire)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	info, err := ParseClosePayload(frame.Payload)
	if err != nil {
		t.Fatalf("ParseClosePayload: %v", err)
	}
	if info.Code != CloseNormalClosure || info.Reason != "done" {
		t.Errorf("close info = %+v, want {1000 done}", info)
	}
}

func TestParseClosePayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		wantCode CloseCode
		wantErr  bool
	}{
		{
			name:     "empty payload is no-status",
			payload:  nil,
			wantCode: CloseNoStatus,
		},
		{
			name:    "single byte payload",
			payload: []byte{0x03},
			wantErr: true,
		},
		{
			name:     "bare status code",
			payload:  []byte{0x03, 0xE8}, // 1000
			wantCode: CloseNormalClosure,
		},
		{
			name:     "private-use code",
			payload:  []byte{0x0F, 0xA0}, // 4000
			wantCode: CloseCode(4000),
		},
		{
			name:    "reserved code 1005 on the wire",
			payload: []byte{0x03, 0xED},
			wantErr: true,
		},
		{
			name:    "reserved code 1006 on the wire",
			payload: []byte{0x03, 0xEE},
			wantErr: true,
		},
		{
			name:    "code below 1000",
			payload: []byte{0x03, 0x84}, // 900
			wantErr: true,
		},
		{
			name:    "non-UTF-8 reason",
			payload: []byte{0x03, 0xE8, 0xFF, 0xFE},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseClosePayload(tt.payload)
			if tt.wantErr {
				var pe *ProtocolError
				if !errors.As(err, &pe) {
					t.Fatalf("ParseClosePayload() error = %v, want *ProtocolError", err)
				}
				if pe.Code != CloseProtocolError {
					t.Errorf("close code = %d, want 1002", pe.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClosePayload() error = %v", err)
			}
			if info.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", info.Code, tt.wantCode)
			}
		})
	}
}

func TestCloseCode_ValidOnWire(t *testing.T) {
	valid := []CloseCode{1000, 1001, 1002, 1003, 1007, 1008, 1009, 1011, 3000, 4999}
	invalid := []CloseCode{0, 999, 1004, 1005, 1006, 1015, 2999, 5000}

	for _, c := range valid {
		if !c.ValidOnWire() {
			t.Errorf("code %d should be valid on the wire", c)
		}
	}
	for _, c := range invalid {
		if c.ValidOnWire() {
			t.Errorf("code %d should not be valid on the wire", c)
		}
	}
}

func BenchmarkEncodeFrame(b *testing.B) {
	frame := BinaryFrame(make([]byte, 1024))
	dst := make([]byte, 0, 2048)

	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var err error
		if _, err = AppendFrame(dst[:0], frame); err != nil {
			b.Fatal(err)
		}
	}
}
