package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/config"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/protocol"
)

// maxRequestSize caps the accumulated request bytes per connection.
const maxRequestSize = 1 << 20

// redactedAddr replaces client addresses in logs unless log-ips is on.
const redactedAddr = "*****"

// Server is the TCP transport: one JSON request per connection, one JSON
// response, then close.
type Server struct {
	cfg      *config.Config
	registry *Registry
	log      *log.Logger

	listener net.Listener

	clients     sync.Map // connection id -> net.Conn
	clientCount atomic.Int64

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	shutdownMu sync.Mutex
	shutdown   bool
}

// NewServer builds a Server around a dispatch registry.
func NewServer(cfg *config.Config, registry *Registry, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: registry,
		log:      logger.With("component", "tcp"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start binds the listener and begins accepting connections. A port that is
// already serving something gets a distinct error so the operator sees a
// conflict rather than a generic bind failure.
func (s *Server) Start() error {
	s.shutdownMu.Lock()
	if s.shutdown {
		s.shutdownMu.Unlock()
		return errors.New("server already shut down")
	}
	s.shutdownMu.Unlock()

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	if conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Server.Port), 250*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("port %d is already in use by another process", s.cfg.Server.Port)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding port %d: %w", s.cfg.Server.Port, err)
	}
	s.listener = listener

	s.log.Info("listening", "port", s.cfg.Server.Port)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and all live connections, then waits for the
// handler goroutines up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	if s.shutdown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.clients.Range(func(_, value any) bool {
		value.(net.Conn).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn("accept error", "error", err)
				continue
			}
		}

		if s.cfg.Server.MaxClients > 0 && s.clientCount.Load() >= int64(s.cfg.Server.MaxClients) {
			s.log.Warn("max clients reached, rejecting connection")
			conn.Close()
			continue
		}

		id := uuid.NewString()
		s.clients.Store(id, conn)
		s.clientCount.Add(1)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.clients.Delete(id)
				s.clientCount.Add(-1)
			}()
			s.handleConn(id, conn)
		}()
	}
}

// clientAddr returns the loggable form of the remote address.
func (s *Server) clientAddr(conn net.Conn) string {
	if s.cfg.Logging.LogIPs {
		return conn.RemoteAddr().String()
	}
	return redactedAddr
}

// connLog returns the per-connection logger, or a discard logger in
// anonymous mode.
func (s *Server) connLog(id string, conn net.Conn) *log.Logger {
	if s.cfg.Logging.AnonymousMode {
		return log.New(io.Discard)
	}
	return s.log.With("conn", id, "client", s.clientAddr(conn))
}

// handleConn reads one JSON object, dispatches it, writes one response and
// closes. Bytes are accumulated and re-parsed after every chunk since TCP
// gives no message boundary.
func (s *Server) handleConn(id string, conn net.Conn) {
	defer conn.Close()

	logger := s.connLog(id, conn)
	logger.Info("connected")

	payload, err := s.readRequest(conn)

	var resp *protocol.Response
	switch {
	case err == nil:
		logger.Debug("request received", "bytes", len(payload))
		resp = s.registry.DispatchBytes(s.ctx, payload)
	case errors.Is(err, errRequestTooLarge):
		logger.Warn("request too large")
		resp = protocol.Error(protocol.StatusParseError, "request exceeds size limit")
	case isTimeout(err):
		logger.Warn("read timeout before a full request arrived")
		resp = protocol.Error(protocol.StatusParseError, "incomplete or invalid JSON request")
	case errors.Is(err, io.EOF):
		if len(payload) == 0 {
			logger.Info("closed without sending data")
			return
		}
		resp = protocol.Error(protocol.StatusParseError, "incomplete or invalid JSON request")
	default:
		logger.Warn("read error", "error", err)
		return
	}

	if s.cfg.Server.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.Server.WriteTimeout))
	}
	if _, err := conn.Write(resp.Encode()); err != nil {
		logger.Warn("write error", "error", err)
		return
	}
	logger.Info("response sent", "status", resp.Status)
}

var errRequestTooLarge = errors.New("request too large")

// readRequest accumulates bytes until they form a complete JSON value. The
// partial buffer read so far is returned alongside any error so the caller
// can distinguish "nothing sent" from "garbage sent".
func (s *Server) readRequest(conn net.Conn) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)

	for {
		if s.cfg.Server.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.Server.ReadTimeout))
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > maxRequestSize {
				return buf, errRequestTooLarge
			}
			if json.Valid([]byte(strings.TrimSpace(string(buf)))) {
				return buf, nil
			}
		}
		if err != nil {
			return buf, err
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
