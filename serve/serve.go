// Package serve exposes the active node-type catalog over gRPC.
//
// The server registers the catalog query service and the standard gRPC
// health service. Health reports SERVING while the catalog holds at least
// one node type, so hosts can wait for the first successful load.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/zero-day-ai/mxgraph/catalog"
)

// Config holds serve configuration.
type Config struct {
	// Port is the TCP port on which the gRPC server listens.
	// Use 0 to pick a free port.
	// Default: 50051
	Port int

	// GracefulTimeout is the maximum duration to wait for active requests
	// to complete during graceful shutdown.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// Listener replaces the TCP listener on Port when set.
	Listener net.Listener

	Logger *slog.Logger
}

// DefaultConfig returns default serve configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:            50051,
		GracefulTimeout: 30 * time.Second,
	}
}

// CatalogSource provides the catalog to serve. *catalog.Registry
// implements it.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Server wraps a gRPC server with lifecycle management.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	config       *Config
	healthServer *health.Server
	logger       *slog.Logger
}

// NewServer creates a gRPC server answering catalog queries from src.
func NewServer(src CatalogSource, opts ...Option) (*Server, error) {
	if src == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
		}
	}

	var serverOpts []grpc.ServerOption
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterCatalogService(grpcServer, &catalogService{src: src})

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		grpcServer:   grpcServer,
		listener:     listener,
		config:       cfg,
		healthServer: healthServer,
		logger:       cfg.Logger.With("component", "serve"),
	}
	s.Observe(context.Background(), src.Current())
	return s, nil
}

// GRPCServer returns the underlying gRPC server.
// This allows callers to register additional services.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HealthServer returns the health check server.
func (s *Server) HealthServer() *health.Server {
	return s.healthServer
}

// Observe updates the health status for c. It has the signature of
// catalog.Observer so a registry can keep the status current.
func (s *Server) Observe(ctx context.Context, c *catalog.Catalog) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if c != nil && c.Len() > 0 {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", status)
	s.healthServer.SetServingStatus(CatalogServiceName, status)

	if c != nil {
		s.logger.DebugContext(ctx, "catalog health updated",
			"revision", c.Revision(), "types", c.Len(), "status", status.String())
	}
}

// Serve starts the gRPC server and blocks until shutdown.
// It handles graceful shutdown on SIGINT/SIGTERM signals.
// The context can be used to initiate shutdown programmatically.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	s.logger.Info("serving catalog", "address", s.listener.Addr().String())

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case sig := <-sigCh:
		s.logger.Info("received signal, shutting down gracefully", "signal", sig.String())
		s.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop immediately stops the gRPC server.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop stops accepting new connections and waits for active RPCs
// to complete within the configured timeout period.
func (s *Server) GracefulStop() {
	s.healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop", "timeout", s.config.GracefulTimeout)
		s.grpcServer.Stop()
	}
}

// Port returns the port the server is listening on.
// This is useful when using port 0 to get an available port.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}
