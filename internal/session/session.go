package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FlowerWrong/websock-server/internal/logging"
	"github.com/FlowerWrong/websock-server/internal/protocol"
)

// Time allowed to write a frame to the peer
const writeWait = 10 * time.Second

// ErrSessionClosed is returned by Send*, Ping, and Close once the
// session is no longer open.
var ErrSessionClosed = errors.New("session closed")

// Handler carries the application callbacks. All callbacks are invoked
// from the session's own goroutine, never concurrently with one another
// for the same connection. Any callback may be nil.
type Handler struct {
	// OnMessage receives each complete text or binary message.
	OnMessage func(mt MessageType, payload []byte)
	// OnPong receives pong payloads as a liveness signal. Unsolicited
	// pongs are delivered too.
	OnPong func(payload []byte)
	// OnClose fires once when the connection reaches Closed with a
	// close status. A peer close with no payload reports code 1005.
	OnClose func(code protocol.CloseCode, reason string)
	// OnError fires for protocol violations and transport failures.
	OnError func(err error)
}

// Options configures one session. Zero values take defaults.
type Options struct {
	// MaxMessageSize caps the accumulated size of one message; exceeding
	// it closes the connection with code 1009.
	MaxMessageSize int64
	// IdleTimeout is how long the session waits for any frame before
	// probing the peer with a ping.
	IdleTimeout time.Duration
	// PongGrace is how long after the probe ping the session waits for
	// any frame before closing with 1001 (going away).
	PongGrace time.Duration
	// CloseGrace bounds the drain after a locally initiated close.
	CloseGrace time.Duration
	// ReadBufferSize is the transport read chunk size.
	ReadBufferSize int
}

const (
	DefaultMaxMessageSize = 1 << 20 // 1 MiB
	DefaultIdleTimeout    = 60 * time.Second
	DefaultPongGrace      = 10 * time.Second
	DefaultCloseGrace     = 5 * time.Second
	defaultReadBuffer     = 4096
)

func (o Options) withDefaults() Options {
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.PongGrace == 0 {
		o.PongGrace = DefaultPongGrace
	}
	if o.CloseGrace == 0 {
		o.CloseGrace = DefaultCloseGrace
	}
	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = defaultReadBuffer
	}
	return o
}

// Session is the per-connection state machine. It owns the transport
// after a successful handshake, decodes inbound frames, answers control
// frames, reassembles messages, and drives the closing handshake.
//
// One goroutine runs the read loop (Run); the application may call
// SendText, SendBinary, Ping, and Close from any goroutine. Outbound
// frames are serialized by a write lock so they are never interleaved
// mid-byte on the wire.
type Session struct {
	conn       net.Conn
	remoteAddr string
	opts       Options
	handler    Handler

	dec protocol.Decoder
	asm assembler

	mu        sync.Mutex // guards state, sentClose, pendingErr, and wire writes
	state     State
	sentClose bool
	// pendingErr is a write failure recorded outside the read loop,
	// handed to the read loop so OnError fires on the session goroutine.
	pendingErr error

	// pingPending is touched only by the read loop.
	pingPending bool

	releaseOnce sync.Once
	done        chan struct{}
}

// New wraps an upgraded transport in a session. The handshake has
// already succeeded, so the session starts in StateOpen.
func New(conn net.Conn, handler Handler, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		opts:       opts,
		handler:    handler,
		state:      StateOpen,
		done:       make(chan struct{}),
	}
	s.asm.maxSize = opts.MaxMessageSize
	// Reject oversized frames from the declared header length, before
	// the decoder buffers any of the payload.
	s.dec.MaxPayload = opts.MaxMessageSize
	return s
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches Closed and the transport has
// been released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// Run executes the read loop until the session is closed. It returns
// nil after a clean closing handshake and the underlying error after a
// transport failure. Protocol violations return nil: the violation is
// answered on the wire and surfaced through OnError.
func (s *Session) Run() error {
	defer s.release()

	buf := make([]byte, s.opts.ReadBufferSize)
	s.armDeadline(s.opts.IdleTimeout)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
			consumed, ok := s.drainFrames()
			if !ok {
				return nil
			}
			// Only a complete frame counts as peer activity: a trickle
			// of partial-frame bytes must not reset the idle clock.
			if consumed {
				s.pingPending = false
				s.armDeadline(s.idleInterval())
			}
		}
		if err != nil {
			if pending := s.takePending(); pending != nil {
				return s.transportFailed(pending)
			}
			if s.State() == StateClosed {
				return nil
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if !s.onReadTimeout() {
					return nil
				}
				continue
			}
			return s.transportFailed(err)
		}
	}
}

// drainFrames decodes and dispatches every complete frame currently
// buffered. consumed reports whether at least one frame was decoded;
// ok turns false once the session is closed.
func (s *Session) drainFrames() (consumed, ok bool) {
	for {
		frame, err := s.dec.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			return consumed, true
		}
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			s.fail(perr)
			return consumed, false
		}
		consumed = true

		logging.LogFrame(s.remoteAddr, "received", frame.Opcode.String(), frame.Fin, len(frame.Payload))

		// Conformant clients mask every frame; an unmasked frame is a
		// protocol violation, with no delivery of its payload.
		if !frame.Masked {
			s.fail(&protocol.ProtocolError{
				Code:   protocol.CloseProtocolError,
				Reason: "unmasked client frame",
			})
			return consumed, false
		}

		if frame.Opcode.IsControl() {
			if !s.handleControl(frame) {
				return consumed, false
			}
			continue
		}

		msg, err := s.asm.push(frame)
		if err != nil {
			if errors.As(err, &perr) {
				s.fail(perr)
			} else {
				s.transportFailed(err)
			}
			return consumed, false
		}
		if msg != nil {
			logging.LogMessage(s.remoteAddr, "received", msg.Type.String(), msg.Payload)
			if s.handler.OnMessage != nil {
				s.handler.OnMessage(msg.Type, msg.Payload)
			}
		}
	}
}

// handleControl processes one control frame. It reports false once the
// session is closed.
func (s *Session) handleControl(frame *protocol.Frame) bool {
	switch frame.Opcode {
	case protocol.OpcodePing:
		// Answer with a byte-identical pong, unless we are already
		// closing.
		s.mu.Lock()
		if s.state == StateOpen {
			if err := s.writeFrameLocked(protocol.PongFrame(frame.Payload)); err != nil {
				s.mu.Unlock()
				s.transportFailed(err)
				return false
			}
		}
		s.mu.Unlock()
		return true

	case protocol.OpcodePong:
		if s.handler.OnPong != nil {
			s.handler.OnPong(frame.Payload)
		}
		return true

	case protocol.OpcodeClose:
		info, err := protocol.ParseClosePayload(frame.Payload)
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			s.fail(perr)
			return false
		}
		s.peerClosed(info)
		return false
	}
	return true
}

// peerClosed completes the closing handshake after the peer's close
// frame. If we had not sent a close yet, a close is echoed back first:
// the peer's code and reason when structurally valid, 1000 otherwise.
func (s *Session) peerClosed(info protocol.CloseInfo) {
	s.mu.Lock()
	switch s.state {
	case StateClosingSent:
		// Symmetric close: our close frame is already out.
		s.state = StateClosed
	case StateOpen:
		s.state = StateClosingReceived
		echo := info
		if echo.Code == protocol.CloseNoStatus {
			echo = protocol.CloseInfo{Code: protocol.CloseNormalClosure}
		}
		if err := s.writeFrameLocked(protocol.CloseFrame(echo)); err != nil {
			logging.Warn("Failed to echo close frame",
				zap.String("remote_addr", s.remoteAddr),
				zap.Error(err),
			)
		}
		s.sentClose = true
		s.state = StateClosed
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	logging.LogClose(s.remoteAddr, uint16(info.Code), info.Reason)
	if s.handler.OnClose != nil {
		s.handler.OnClose(info.Code, info.Reason)
	}
	s.release()
}

// fail answers a protocol violation: close frame with the matching
// status code, OnError, then straight to Closed.
func (s *Session) fail(perr *protocol.ProtocolError) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if !s.sentClose {
		info := protocol.CloseInfo{Code: perr.Code, Reason: perr.Reason}
		if len(info.Payload()) > 125 {
			info.Reason = ""
		}
		if err := s.writeFrameLocked(protocol.CloseFrame(info)); err != nil {
			logging.Debug("Failed to send close frame after violation",
				zap.String("remote_addr", s.remoteAddr),
				zap.Error(err),
			)
		}
		s.sentClose = true
	}
	s.state = StateClosed
	s.mu.Unlock()

	logging.Warn("Protocol violation",
		zap.String("remote_addr", s.remoteAddr),
		zap.Uint16("close_code", uint16(perr.Code)),
		zap.String("reason", perr.Reason),
	)
	if s.handler.OnError != nil {
		s.handler.OnError(perr)
	}
	s.release()
}

// transportFailed tears the session down after a read or write failure.
// The channel is presumed broken, so no close frame is attempted.
func (s *Session) transportFailed(err error) error {
	s.mu.Lock()
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	s.mu.Unlock()
	if alreadyClosed {
		return nil
	}

	if errors.Is(err, io.EOF) {
		logging.Info("Connection closed by peer without close frame",
			zap.String("remote_addr", s.remoteAddr),
		)
	} else {
		logging.Info("Transport error",
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
	}
	if s.handler.OnError != nil {
		s.handler.OnError(fmt.Errorf("transport: %w", err))
	}
	s.release()
	return err
}

// onReadTimeout applies the idle policy: first expiry sends a probe
// ping, a second expiry (or grace expiry while closing) gives up. It
// reports false once the session is closed.
func (s *Session) onReadTimeout() bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return false
	case StateClosingSent:
		// Peer never answered our close; stop waiting.
		logging.Info("Close handshake grace period expired",
			zap.String("remote_addr", s.remoteAddr),
		)
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.release()
		return false
	}

	if s.pingPending {
		// Peer stayed silent through the grace period.
		s.closeWith(protocol.CloseInfo{Code: protocol.CloseGoingAway, Reason: "idle timeout"})
		if s.handler.OnClose != nil {
			s.handler.OnClose(protocol.CloseGoingAway, "idle timeout")
		}
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.release()
		return false
	}

	logging.Debug("Idle timeout, probing peer with ping",
		zap.String("remote_addr", s.remoteAddr),
	)
	s.mu.Lock()
	err := s.writeFrameLocked(protocol.PingFrame(nil))
	s.mu.Unlock()
	if err != nil {
		s.transportFailed(err)
		return false
	}
	s.pingPending = true
	s.armDeadline(s.opts.PongGrace)
	return true
}

// SendText sends one unfragmented text message.
func (s *Session) SendText(payload []byte) error {
	return s.send(protocol.TextFrame(payload))
}

// SendBinary sends one unfragmented binary message.
func (s *Session) SendBinary(payload []byte) error {
	return s.send(protocol.BinaryFrame(payload))
}

// Ping sends a ping frame with the given payload.
func (s *Session) Ping(payload []byte) error {
	return s.send(protocol.PingFrame(payload))
}

func (s *Session) send(frame *protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return ErrSessionClosed
	}
	return s.writeFrameLocked(frame)
}

// Close initiates the closing handshake: the close frame goes out, the
// state moves to ClosingSent, and the read loop drains until the peer
// answers or the grace period expires. Closing an already-closing or
// closed session is a no-op.
func (s *Session) Close(code protocol.CloseCode, reason string) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil
	}
	err := s.writeFrameLocked(protocol.CloseFrame(protocol.CloseInfo{Code: code, Reason: reason}))
	s.sentClose = true
	s.state = StateClosingSent
	s.mu.Unlock()

	if err != nil {
		// Hand the failure to the read loop so OnError fires on the
		// session's goroutine; a zero deadline wakes it immediately.
		s.mu.Lock()
		s.pendingErr = err
		s.mu.Unlock()
		s.armDeadline(0)
		return err
	}
	// Bound the drain; expiry lands in the read loop as a timeout.
	s.armDeadline(s.opts.CloseGrace)
	return nil
}

// takePending returns and clears a write failure recorded by Close.
func (s *Session) takePending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.pendingErr
	s.pendingErr = nil
	return err
}

// closeWith writes a close frame best-effort without a state check
// beyond the sentClose guard.
func (s *Session) closeWith(info protocol.CloseInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sentClose {
		return
	}
	if err := s.writeFrameLocked(protocol.CloseFrame(info)); err != nil {
		logging.Debug("Failed to write close frame",
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
	}
	s.sentClose = true
}

// writeFrameLocked encodes and writes one frame. Callers hold s.mu,
// which serializes all wire writes.
func (s *Session) writeFrameLocked(frame *protocol.Frame) error {
	wire, err := protocol.EncodeFrame(frame)
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := s.conn.Write(wire); err != nil {
		return fmt.Errorf("write %s frame: %w", frame.Opcode, err)
	}
	logging.LogFrame(s.remoteAddr, "sent", frame.Opcode.String(), frame.Fin, len(frame.Payload))
	return nil
}

// idleInterval returns the deadline to arm after frame activity.
func (s *Session) idleInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosingSent {
		return s.opts.CloseGrace
	}
	return s.opts.IdleTimeout
}

func (s *Session) armDeadline(d time.Duration) {
	// Errors here mean the conn is already gone; the next Read reports
	// the definitive failure.
	_ = s.conn.SetReadDeadline(time.Now().Add(d))
}

// release closes the transport exactly once and signals Done.
// Double-close is a no-op.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		_ = s.conn.Close()
		close(s.done)
		logging.LogConnection(s.remoteAddr, "session_released")
	})
}
