package mxgraph

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/mxgraph/config"
	"github.com/zero-day-ai/mxgraph/publish"
)

// Option configures a Library.
type Option func(*libraryConfig)

type libraryConfig struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	publishers []publish.Publisher
}

// WithConfig uses cfg instead of reading a configuration file.
func WithConfig(cfg *config.Config) Option {
	return func(c *libraryConfig) {
		c.cfg = cfg
	}
}

// WithConfigFile reads the configuration from path, a file or a directory
// holding mxgraph.yaml.
func WithConfigFile(path string) Option {
	return func(c *libraryConfig) {
		c.configPath = path
	}
}

// WithLogger sets a custom logger. Without it the logger is built from the
// logging section of the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(c *libraryConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for load, synthesis, import and
// publish spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *libraryConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter for catalog metrics.
func WithMeter(meter metric.Meter) Option {
	return func(c *libraryConfig) {
		c.meter = meter
	}
}

// WithPublisher adds publishers that receive every new catalog, in
// addition to those named by the configuration. The library closes them.
func WithPublisher(pubs ...publish.Publisher) Option {
	return func(c *libraryConfig) {
		c.publishers = append(c.publishers, pubs...)
	}
}
