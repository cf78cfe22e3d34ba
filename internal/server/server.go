package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/FlowerWrong/websock-server/internal/config"
	"github.com/FlowerWrong/websock-server/internal/discovery"
	"github.com/FlowerWrong/websock-server/internal/logging"
	"github.com/FlowerWrong/websock-server/internal/protocol"
	"github.com/FlowerWrong/websock-server/internal/session"
)

// handshakeTimeout bounds the HTTP upgrade exchange on a fresh
// connection. A client that never sends a request does not hold a
// goroutine forever.
const handshakeTimeout = 10 * time.Second

// shutdownTimeout bounds the graceful drain of live sessions.
const shutdownTimeout = 10 * time.Second

// statsPath is the endpoint that streams snapshots instead of echoing.
const statsPath = "/stats"

// Server accepts connections, performs the WebSocket upgrade, and runs
// one session per connection until shutdown.
type Server struct {
	config    *config.Config
	listener  net.Listener
	tlsConfig *tls.Config
	registry  *registry
	wg        sync.WaitGroup
}

// New creates a Server from a validated configuration. Logging is
// initialized here so every later path has a logger.
func New(cfg *config.Config) (*Server, error) {
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	s := &Server{
		config:   cfg,
		registry: newRegistry(),
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := NewTLSConfig(cfg.TLS.CertPath, cfg.TLS.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	return s, nil
}

// Start listens and serves, blocking until a shutdown signal or an
// accept failure.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the configured address. After Listen returns, Addr
// reports the bound address (useful when port 0 was requested).
func (s *Server) Listen() error {
	listener, err := s.listen(s.config.Listen.Addr())
	if err != nil {
		return err
	}
	s.listener = listener

	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.config.TLS.Enabled),
		zap.String("log_level", s.config.LogLevel),
	)
	return nil
}

// Serve accepts connections on the bound listener and blocks until a
// shutdown signal arrives or the listener is closed.
func (s *Server) Serve() error {
	if s.config.MDNS.Enabled {
		advertiser, err := discovery.NewAdvertiser(s.config.MDNS.Instance, s.config.Listen.Port)
		if err != nil {
			// Advertisement is best-effort; the server still serves.
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer advertiser.Shutdown()
		}
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.acceptConnections()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Addr returns the bound listener address, useful when port 0 was
// requested.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) listen(addr string) (net.Listener, error) {
	if s.tlsConfig != nil {
		listener, err := tls.Listen("tcp", addr, s.tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS listener: %w", err)
		}
		return listener, nil
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	return listener, nil
}

// acceptConnections accepts and handles incoming connections until the
// listener is closed.
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// bufferedConn reads through the handshake's bufio.Reader so frame
// bytes the client pipelined behind the upgrade request are not lost.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// handleConnection performs the upgrade handshake and runs the session.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	logging.LogConnection(remoteAddr, "connection_accepted")
	defer logging.LogConnection(remoteAddr, "connection_closed")

	if tlsConn, ok := conn.(*tls.Conn); ok {
		_ = tlsConn.SetDeadline(time.Now().Add(handshakeTimeout))
		if err := tlsConn.Handshake(); err != nil {
			logging.Error("TLS handshake failed",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			_ = conn.Close()
			return
		}
		state := tlsConn.ConnectionState()
		logging.LogTLSHandshake(remoteAddr, state.Version, state.CipherSuite, state.ServerName)
	}

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))

	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		logging.Error("Failed to read HTTP request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		_ = conn.Close()
		return
	}

	result := protocol.Negotiate(req)
	if _, err := conn.Write(result.Response()); err != nil {
		logging.Error("Failed to write handshake response",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		_ = conn.Close()
		return
	}
	logging.LogHandshake(remoteAddr, result.Status, req.URL.Path)

	if !result.Accepted {
		logging.Warn("Upgrade rejected",
			zap.String("remote_addr", remoteAddr),
			zap.Int("status", result.Status),
			zap.String("reason", result.Reason),
		)
		_ = conn.Close()
		return
	}

	// The session owns deadlines from here.
	_ = conn.SetDeadline(time.Time{})

	s.runSession(bufferedConn{Conn: conn, r: br}, req.URL.Path)
}

// runSession wires the application handler for the path and blocks
// until the session closes.
func (s *Server) runSession(conn net.Conn, path string) {
	var (
		sess  *session.Session
		entry *sessionEntry
	)

	handler := session.Handler{
		OnClose: func(code protocol.CloseCode, reason string) {
			logging.LogClose(sess.RemoteAddr(), uint16(code), reason)
		},
		OnError: func(err error) {
			logging.Warn("Session error",
				zap.String("remote_addr", sess.RemoteAddr()),
				zap.Error(err),
			)
		},
	}
	if path != statsPath || !s.config.Stats.Enabled {
		// Default application behavior: echo every message unchanged.
		handler.OnMessage = func(mt session.MessageType, payload []byte) {
			entry.countIn(len(payload))
			var err error
			if mt == session.TextMessage {
				err = sess.SendText(payload)
			} else {
				err = sess.SendBinary(payload)
			}
			if err == nil {
				entry.countOut(len(payload))
			}
		}
	} else {
		// Stats sessions consume the stream; inbound messages are
		// counted but otherwise ignored.
		handler.OnMessage = func(mt session.MessageType, payload []byte) {
			entry.countIn(len(payload))
		}
	}

	sess = session.New(conn, handler, session.Options{
		MaxMessageSize: s.config.Limits.MaxMessageSize,
		IdleTimeout:    s.config.Timeouts.IdleDuration(),
		PongGrace:      s.config.Timeouts.PongGraceDuration(),
		CloseGrace:     s.config.Timeouts.CloseGraceDuration(),
	})
	entry = s.registry.add(sess, path)
	defer s.registry.remove(entry.id)

	logging.Info("Session opened",
		zap.String("session_id", entry.id.String()),
		zap.String("remote_addr", sess.RemoteAddr()),
		zap.String("path", path),
	)

	if path == statsPath && s.config.Stats.Enabled {
		go s.streamStats(sess)
	}

	if err := sess.Run(); err != nil {
		logging.Info("Session ended with transport error",
			zap.String("session_id", entry.id.String()),
			zap.Error(err),
		)
	}
}

// Shutdown gracefully shuts down the server: stop accepting, ask every
// session to close with 1001, then wait for the drain.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.registry.each(func(e *sessionEntry) {
		_ = e.sess.Close(protocol.CloseGoingAway, "server shutting down")
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown cancelled, forcing close")
	case <-time.After(shutdownTimeout):
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// ActiveConnections returns the number of live sessions.
func (s *Server) ActiveConnections() int {
	return s.registry.active()
}
