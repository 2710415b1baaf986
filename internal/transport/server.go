package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"streamvault/internal/configuration"
	"streamvault/internal/metrics"

	"github.com/gorilla/websocket"
)

type Server struct {
	cfg        *configuration.TransportConfigurationProperties
	handler    Handler
	upgrader   websocket.Upgrader
	httpServer *http.Server
	addr       string

	mu       sync.Mutex
	conns    map[*wsConn]struct{}
	stopping bool
	wg       sync.WaitGroup
}

func NewServer(cfg *configuration.TransportConfigurationProperties, handler Handler) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*wsConn]struct{}),
	}
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen(s.cfg.Network, s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("websocket listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("websocket server started", "addr", s.addr, "path", s.cfg.Path)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if s.cfg.ReadLimit > 0 {
		ws.SetReadLimit(s.cfg.ReadLimit)
	}

	conn := newConn(ws, s.cfg.WriteTimeout)
	if !s.track(conn) {
		slog.Debug("rejecting connection during shutdown", "remote", conn.RemoteAddr())
		_ = conn.Close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.untrack(conn)

	s.handler.OnConnect(conn)
	s.readLoop(conn)

	conn.closed.Store(true)
	_ = ws.Close()
	s.handler.OnDisconnect(conn)
}

func (s *Server) readLoop(conn *wsConn) {
	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				slog.Debug("client closed connection", "conn", conn.ID(), "code", closeErr.Code)
			case conn.closed.Load():
				// closed locally
			default:
				s.handler.OnError(conn, err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			slog.Debug("ignoring non-text frame", "conn", conn.ID(), "type", messageType)
			continue
		}
		s.handler.OnMessage(conn, data)
	}
}

// track registers conn unless Stop has already begun.
func (s *Server) track(conn *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	metrics.ConnectionsActive.Inc()
	return true
}

func (s *Server) untrack(conn *wsConn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	metrics.ConnectionsActive.Dec()
	s.wg.Done()
}

// Stop closes the listener, sends "going away" to every open connection and
// waits for their read loops to exit until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	open := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()

	for _, c := range open {
		_ = c.Close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	slog.Info("websocket server stopped")
	return err
}
