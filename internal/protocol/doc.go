// Package protocol implements the WebSocket wire protocol (RFC 6455).
//
// This package handles the HTTP upgrade handshake and the encoding and
// decoding of individual wire frames. It is pure: no sockets, no
// blocking, no connection state. The per-connection state machine that
// drives it lives in the session package.
//
// # Frame Format
//
// Every frame on the wire has this layout (RFC 6455 section 5.2):
//   - Byte 0: FIN bit, three reserved bits, 4-bit opcode
//   - Byte 1: MASK bit, 7-bit length field
//   - 0, 2, or 8 bytes of extended big-endian payload length
//   - 4 bytes of masking key, present iff the MASK bit is set
//   - The payload itself
//
// A 7-bit length of 126 means the next 2 bytes carry the length; 127
// means the next 8 bytes do. The encoder always picks the minimal form.
//
// # Masking
//
// Clients XOR their payloads with a 4-byte key; servers never mask.
// The decoder unmasks on receipt, so Frame.Payload is always clear
// data. A server receiving an unmasked frame must close the connection
// with a protocol error; that policy belongs to the session, which
// checks Frame.Masked.
//
// # Incremental Decoding
//
// A single transport read may carry half a frame or several frames.
// Decoder retains unconsumed bytes across calls:
//
//	var d protocol.Decoder
//	d.Feed(chunk)
//	for {
//	    frame, err := d.Next()
//	    if errors.Is(err, protocol.ErrIncomplete) {
//	        break // read more from the transport
//	    }
//	    if err != nil {
//	        // *ProtocolError: close with err.Code
//	    }
//	    // handle frame
//	}
//
// # Handshake
//
// Negotiate validates an upgrade request and computes the accept key:
//
//	result := protocol.Negotiate(req)
//	conn.Write(result.Response())
//	if !result.Accepted {
//	    conn.Close()
//	}
//
// # Error Handling
//
// The package distinguishes between:
//   - ErrIncomplete: not a failure, the caller supplies more bytes
//   - *ProtocolError: a peer violation carrying the close code to use
//   - encode errors: caller contract violations (oversized control frames)
//
// # Thread Safety
//
// ParseFrame, AppendFrame, and the handshake functions are stateless
// and safe for concurrent use. A Decoder belongs to one connection and
// must not be shared.
package protocol
