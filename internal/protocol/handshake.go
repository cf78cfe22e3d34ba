package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// websocketGUID is the fixed key-derivation constant from RFC 6455
// section 1.3. It is the only value shared by every conformant
// implementation.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client key:
// base64(SHA1(key + GUID)). Deterministic and side-effect free.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// HandshakeResult is the outcome of upgrade negotiation. Exactly one
// variant is populated: an acceptance (Accepted true, AcceptKey set) or
// a rejection (Accepted false, Status and Reason set).
type HandshakeResult struct {
	Accepted bool

	// Rejection variant.
	Status int
	Reason string

	// Acceptance variant.
	AcceptKey string
	// Subprotocols holds the protocols the client requested, surfaced
	// for the caller. No negotiation logic beyond pass-through.
	Subprotocols []string
	// Subprotocol may be set by the caller to echo one selected value
	// in the response.
	Subprotocol string
}

// Negotiate validates an HTTP upgrade request and produces either the
// accept response inputs or a rejection. Pure: no connection state is
// touched.
func Negotiate(req *http.Request) *HandshakeResult {
	if req.Method != http.MethodGet {
		return reject(http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed for upgrade", req.Method))
	}
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return reject(http.StatusBadRequest, "Upgrade header is not websocket")
	}
	if !headerContainsToken(req.Header.Values("Connection"), "upgrade") {
		return reject(http.StatusBadRequest, "Connection header does not contain the Upgrade token")
	}
	// Any version other than exactly "13" gets 426 with a version hint,
	// per RFC 6455 section 4.2.2.
	if v := req.Header.Get("Sec-WebSocket-Version"); v != "13" {
		return reject(http.StatusUpgradeRequired, fmt.Sprintf("unsupported Sec-WebSocket-Version %q", v))
	}
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return reject(http.StatusBadRequest, "missing Sec-WebSocket-Key header")
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 16 {
		return reject(http.StatusBadRequest, "Sec-WebSocket-Key is not base64 of 16 bytes")
	}

	return &HandshakeResult{
		Accepted:     true,
		Status:       http.StatusSwitchingProtocols,
		AcceptKey:    AcceptKey(key),
		Subprotocols: requestedSubprotocols(req.Header),
	}
}

func reject(status int, reason string) *HandshakeResult {
	return &HandshakeResult{Status: status, Reason: reason}
}

// Response renders the exact wire bytes of the handshake response:
// status line, headers, and the terminating blank line. Rejections with
// status 426 carry the Sec-WebSocket-Version: 13 hint.
func (r *HandshakeResult) Response() []byte {
	var b strings.Builder

	if r.Accepted {
		b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
		b.WriteString("Upgrade: websocket\r\n")
		b.WriteString("Connection: Upgrade\r\n")
		b.WriteString("Sec-WebSocket-Accept: " + r.AcceptKey + "\r\n")
		if r.Subprotocol != "" {
			b.WriteString("Sec-WebSocket-Protocol: " + r.Subprotocol + "\r\n")
		}
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, http.StatusText(r.Status))
	if r.Status == http.StatusUpgradeRequired {
		b.WriteString("Sec-WebSocket-Version: 13\r\n")
	}
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerContainsToken reports whether any of the header's values
// contains the token, case-insensitively and in any position. The
// header may be split across multiple lines, each carrying a
// comma-separated list.
func headerContainsToken(values []string, token string) bool {
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// requestedSubprotocols collects the Sec-WebSocket-Protocol values,
// splitting comma-separated lists.
func requestedSubprotocols(h http.Header) []string {
	var protos []string
	for _, v := range h.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				protos = append(protos, p)
			}
		}
	}
	return protos
}
