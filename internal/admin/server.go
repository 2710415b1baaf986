package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"streamvault/internal/configuration"
	"streamvault/internal/metrics"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Server struct {
	cfg    *configuration.AdminConfigurationProperties
	grpc   *grpc.Server
	health *health.Server
	addr   string
}

func NewServer(cfg *configuration.AdminConfigurationProperties, store Store) *Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		slog.Warn("admin timeout must be positive, using 1s", "timeout", cfg.Timeout)
		timeout = time.Second
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		metrics.UnaryServerInterceptor(),
		timeoutInterceptor(timeout),
	))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	RegisterAdminServer(s, &endpoint{store: store})
	reflection.Register(s)

	return &Server{cfg: cfg, grpc: s, health: hs}
}

// Start binds synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ln)
}

// Serve runs the gRPC server on an already bound listener.
func (s *Server) Serve(ln net.Listener) error {
	s.addr = ln.Addr().String()
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	slog.Info("admin server listening", "addr", s.addr)
	go func() {
		if err := s.grpc.Serve(ln); err != nil {
			slog.Error("failed to serve admin listener", "error", err)
		}
	}()
	return nil
}

func (s *Server) Addr() string {
	return s.addr
}

// Stop flips health to NOT_SERVING and drains in-flight calls, forcing the
// stop once ctx ends.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	slog.Info("admin server stopped")
}

func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return handler(ctx, req)
	}
}
