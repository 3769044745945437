package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HUGINN_HTTP_PORT", "9090")
	t.Setenv("HUGINN_STORAGE_BACKEND", "badger")
	t.Setenv("HUGINN_DATA_DIR", "/var/lib/huginn")
	t.Setenv("HUGINN_AUTH", "operator/s3cret")
	t.Setenv("HUGINN_LOG_LEVEL", "debug")
	t.Setenv("HUGINN_HTTP_READ_TIMEOUT", "45s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/huginn", cfg.Storage.DataDir)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "operator", cfg.Auth.Username)
	assert.Equal(t, "s3cret", cfg.Auth.Password)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_AuthNone(t *testing.T) {
	t.Setenv("HUGINN_AUTH", "none")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_DurationAsSeconds(t *testing.T) {
	t.Setenv("HUGINN_HTTP_WRITE_TIMEOUT", "90")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huginn.yaml")
	content := `
server:
  port: 7070
  releaseMode: false
storage:
  backend: badger
  dataDir: /tmp/huginn-data
logging:
  level: warn
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.False(t, cfg.Server.ReleaseMode)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/huginn-data", cfg.Storage.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// Unset file values keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huginn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))
	t.Setenv("HUGINN_HTTP_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid http port",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: "unknown storage backend",
		},
		{
			name: "badger without data dir",
			mutate: func(c *Config) {
				c.Storage.Backend = BackendBadger
				c.Storage.DataDir = ""
			},
			wantErr: "requires a data directory",
		},
		{
			name: "auth without password",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Username = "operator"
			},
			wantErr: "username or password is empty",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "unknown log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "unknown log format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestString_HidesCredentials(t *testing.T) {
	cfg := Default()
	cfg.Auth = AuthConfig{Enabled: true, Username: "operator", Password: "s3cret"}
	s := cfg.String()
	assert.NotContains(t, s, "s3cret")
	assert.NotContains(t, s, "operator")
}
