package serve

import (
	"log/slog"
	"net"
	"time"

	"github.com/zero-day-ai/mxgraph/config"
)

// Option is a functional option for configuring a Server.
type Option func(*Config)

// WithPort sets the TCP port for the gRPC server.
// Use port 0 to automatically select an available port.
//
// Example:
//
//	serve.NewServer(registry, serve.WithPort(8080))
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithGracefulShutdown sets the maximum duration to wait for active
// requests to complete during graceful shutdown.
// After this timeout, the server will force shutdown.
func WithGracefulShutdown(timeout time.Duration) Option {
	return func(c *Config) {
		c.GracefulTimeout = timeout
	}
}

// WithTLS enables TLS encryption for the gRPC server.
// Both certFile and keyFile must be valid paths to PEM-encoded files.
// If either path is empty, TLS will be disabled.
func WithTLS(certFile, keyFile string) Option {
	return func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	}
}

// WithListener serves on lis instead of a TCP port. Tests pass a bufconn
// listener here.
func WithListener(lis net.Listener) Option {
	return func(c *Config) {
		c.Listener = lis
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// FromConfig converts the serve section of an mxgraph.yaml file to options.
func FromConfig(sc *config.ServeConfig) []Option {
	if sc == nil {
		return nil
	}
	opts := []Option{
		WithPort(sc.Port),
		WithGracefulShutdown(sc.GetGracefulTimeout()),
	}
	if sc.TLS != nil && sc.TLS.Enabled {
		opts = append(opts, WithTLS(sc.TLS.CertFile, sc.TLS.KeyFile))
	}
	return opts
}
