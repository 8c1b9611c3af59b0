package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
libraries:
  - libraries/stdlib
  - /opt/mtlx/pbrlib.mtlx
namespace: hdusd.MX_
logging:
  level: debug
  format: json
import:
  apply_values: true
serve:
  port: 50071
  graceful_timeout: 5s
publish:
  redis:
    url: redis://localhost:6379/0
  etcd:
    endpoints: [localhost:2379]
    ttl: 10
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mxgraph.yaml", sample)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "libraries/stdlib"), "/opt/mtlx/pbrlib.mtlx"}, cfg.Libraries)
	assert.Equal(t, "hdusd.MX_", cfg.Namespace)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Import.ApplyValues)

	require.NotNil(t, cfg.Serve)
	assert.Equal(t, 50071, cfg.Serve.Port)
	assert.Equal(t, 5*time.Second, cfg.Serve.GetGracefulTimeout())

	require.NotNil(t, cfg.Publish)
	assert.Equal(t, "mxgraph", cfg.Publish.Redis.GetPrefix())
	assert.Equal(t, "mxgraph", cfg.Publish.Etcd.GetNamespace())
	assert.Equal(t, 10, cfg.Publish.Etcd.GetTTL())

	assert.NoError(t, cfg.Validate())
}

func TestLoad_YmlAndMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err)

	writeConfig(t, dir, "mxgraph.yml", "libraries: [a.mtlx]\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "mx.", cfg.Namespace, "defaults survive a partial file")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromDir_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "mxgraph.yaml", "namespace: up.\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := LoadFromDir(nested)
	require.NoError(t, err)
	assert.Equal(t, "up.", cfg.Namespace)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("libraries: [unterminated\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("librarys: [a]\n"))
	assert.Error(t, err, "unknown keys are rejected")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging format"},
		{name: "bad port", mutate: func(c *Config) { c.Serve = &ServeConfig{Port: 70000} }, wantErr: "port"},
		{name: "bad timeout", mutate: func(c *Config) { c.Serve = &ServeConfig{GracefulTimeout: "soon"} }, wantErr: "graceful_timeout"},
		{name: "redis without url", mutate: func(c *Config) { c.Publish = &PublishConfig{Redis: &RedisConfig{}} }, wantErr: "redis.url"},
		{name: "etcd without endpoints", mutate: func(c *Config) { c.Publish = &PublishConfig{Etcd: &EtcdConfig{}} }, wantErr: "endpoints"},
		{
			name: "incomplete tls",
			mutate: func(c *Config) {
				c.Serve = &ServeConfig{TLS: &TLSConfig{Enabled: true, CertFile: "c.pem"}}
			},
			wantErr: "TLS requires",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLibraries, "a.mtlx"+string(os.PathListSeparator)+"b")
	cfg := Default()
	cfg.Libraries = []string{"ignored"}
	cfg.ApplyEnv()
	assert.Equal(t, []string{"a.mtlx", "b"}, cfg.Libraries)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)

	level, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
