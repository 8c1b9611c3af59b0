// Package config loads mxgraph.yaml configuration files.
// A configuration names the MaterialX libraries to load, the identifier
// namespace, logging, and the optional serving and publishing endpoints.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileNames are the configuration file names looked up in a directory, in order.
var FileNames = []string{"mxgraph.yaml", "mxgraph.yml"}

// EnvLibraries overrides Config.Libraries with an OS path list.
const EnvLibraries = "MXGRAPH_LIBRARIES"

// Config represents an mxgraph.yaml configuration file.
type Config struct {
	// Libraries are .mtlx files, directories or glob patterns, loaded in order.
	Libraries []string `yaml:"libraries"`

	// Namespace prefixes node type identifiers. Default: "mx."
	Namespace string `yaml:"namespace,omitempty"`

	Logging LoggingConfig  `yaml:"logging,omitempty"`
	Import  ImportConfig   `yaml:"import,omitempty"`
	Serve   *ServeConfig   `yaml:"serve,omitempty"`
	Publish *PublishConfig `yaml:"publish,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level,omitempty"`
	// Format is text or json. Default: text
	Format string `yaml:"format,omitempty"`
}

// ImportConfig controls graph document import.
type ImportConfig struct {
	// ApplyValues applies literal input values of imported node records
	// over the schema defaults.
	ApplyValues bool `yaml:"apply_values,omitempty"`
}

// ServeConfig configures the catalog gRPC server.
type ServeConfig struct {
	Port int `yaml:"port"`

	// GracefulTimeout bounds shutdown.
	// Format: Go duration string (e.g., "30s", "1m")
	// Default: 30s
	GracefulTimeout string `yaml:"graceful_timeout,omitempty"`

	TLS *TLSConfig `yaml:"tls,omitempty"`
}

// GetGracefulTimeout parses the graceful timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (s *ServeConfig) GetGracefulTimeout() time.Duration {
	if s == nil || s.GracefulTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(s.GracefulTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PublishConfig configures where catalog snapshots are published.
type PublishConfig struct {
	Redis *RedisConfig `yaml:"redis,omitempty"`
	Etcd  *EtcdConfig  `yaml:"etcd,omitempty"`
}

// RedisConfig configures the Redis catalog publisher.
type RedisConfig struct {
	URL string `yaml:"url"`
	// Prefix is the key prefix. Default: "mxgraph"
	Prefix string `yaml:"prefix,omitempty"`
}

// GetPrefix returns the key prefix or the default value.
func (r *RedisConfig) GetPrefix() string {
	if r == nil || r.Prefix == "" {
		return "mxgraph"
	}
	return r.Prefix
}

// EtcdConfig configures the etcd catalog announcer.
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
	// Namespace is the root key segment. Default: "mxgraph"
	Namespace string `yaml:"namespace,omitempty"`
	// TTL is the announcement lease in seconds. Default: 30
	TTL int        `yaml:"ttl,omitempty"`
	TLS *TLSConfig `yaml:"tls,omitempty"`
}

// GetNamespace returns the namespace or the default value.
func (e *EtcdConfig) GetNamespace() string {
	if e == nil || e.Namespace == "" {
		return "mxgraph"
	}
	return e.Namespace
}

// GetTTL returns the lease TTL or the default value.
func (e *EtcdConfig) GetTTL() int {
	if e == nil || e.TTL <= 0 {
		return 30
	}
	return e.TTL
}

// TLSConfig holds certificate paths for mutual TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Namespace: "mx.",
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and parses an mxgraph.yaml file from the given path.
// If the path is a directory, it looks for mxgraph.yaml or mxgraph.yml in that directory.
// Relative library paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range FileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no %s found in %s", strings.Join(FileNames, " or "), path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(configPath)
	for i, lib := range cfg.Libraries {
		if !filepath.IsAbs(lib) {
			cfg.Libraries[i] = filepath.Join(base, lib)
		}
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadFromDir searches for mxgraph.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		cfg, err := Load(absDir)
		if err == nil {
			return cfg, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no mxgraph.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLibraries); v != "" {
		c.Libraries = filepath.SplitList(v)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q (want text or json)", c.Logging.Format)
	}
	if c.Serve != nil {
		if c.Serve.Port < 0 || c.Serve.Port > 65535 {
			return fmt.Errorf("invalid serve port %d", c.Serve.Port)
		}
		if c.Serve.GracefulTimeout != "" {
			if _, err := time.ParseDuration(c.Serve.GracefulTimeout); err != nil {
				return fmt.Errorf("invalid serve graceful_timeout: %w", err)
			}
		}
		if err := c.Serve.TLS.validate(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	if c.Publish != nil {
		if r := c.Publish.Redis; r != nil && r.URL == "" {
			return fmt.Errorf("publish.redis.url is required")
		}
		if e := c.Publish.Etcd; e != nil {
			if len(e.Endpoints) == 0 {
				return fmt.Errorf("publish.etcd.endpoints cannot be empty")
			}
			if err := e.TLS.validate(); err != nil {
				return fmt.Errorf("publish.etcd: %w", err)
			}
		}
	}
	return nil
}

func (t *TLSConfig) validate() error {
	if t == nil || !t.Enabled {
		return nil
	}
	if t.CertFile == "" || t.KeyFile == "" || t.CAFile == "" {
		return fmt.Errorf("TLS requires cert_file, key_file and ca_file")
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid logging level %q", s)
}

// NewLogger builds the logger described by the logging section.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
