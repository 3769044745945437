// Package config handles Huginn configuration via environment variables
// with an optional YAML file.
//
// Configuration is environment-first: every setting has a HUGINN_*
// variable and a sensible default, so a bare `huginn serve` works out of
// the box. A YAML file, when given, is applied before the environment,
// so deployments can check a file into their manifests and still
// override single values per instance.
//
// Example Usage:
//
//	cfg, err := config.Load(os.Getenv("HUGINN_CONFIG_FILE"))
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - HUGINN_HTTP_ADDRESS=0.0.0.0
//   - HUGINN_HTTP_PORT=8080
//   - HUGINN_STORAGE_BACKEND="memory" or "badger"
//   - HUGINN_DATA_DIR="./data"
//   - HUGINN_AUTH="username/password" or "none"
//   - HUGINN_LOG_LEVEL="debug" | "info" | "warn" | "error"
//   - HUGINN_LOG_FORMAT="text" | "json"
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config holds all Huginn configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Address is the listen address.
	Address string `yaml:"address"`
	// Port is the HTTP port.
	Port int `yaml:"port"`
	// ReadTimeout bounds request reading.
	ReadTimeout time.Duration `yaml:"readTimeout"`
	// WriteTimeout bounds response writing.
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// ReleaseMode suppresses gin's debug output.
	ReleaseMode bool `yaml:"releaseMode"`
}

// Addr returns the address:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// StorageConfig holds graph store settings.
type StorageConfig struct {
	// Backend selects the store implementation: memory or badger.
	Backend string `yaml:"backend"`
	// DataDir is the badger data directory.
	DataDir string `yaml:"dataDir"`
	// SyncWrites makes every badger write durable before returning.
	SyncWrites bool `yaml:"syncWrites"`
}

// AuthConfig holds HTTP basic auth settings. Credentials use the
// HUGINN_AUTH format "username/password"; "none" disables auth.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig holds logrus settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			ReleaseMode:  true,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			DataDir: "./data",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// (when path is non-empty), then HUGINN_* environment variables. The
// result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("HUGINN_HTTP_ADDRESS", c.Server.Address)
	c.Server.Port = getEnvInt("HUGINN_HTTP_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("HUGINN_HTTP_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("HUGINN_HTTP_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ReleaseMode = getEnvBool("HUGINN_HTTP_RELEASE_MODE", c.Server.ReleaseMode)

	c.Storage.Backend = strings.ToLower(getEnv("HUGINN_STORAGE_BACKEND", c.Storage.Backend))
	c.Storage.DataDir = getEnv("HUGINN_DATA_DIR", c.Storage.DataDir)
	c.Storage.SyncWrites = getEnvBool("HUGINN_SYNC_WRITES", c.Storage.SyncWrites)

	if authStr := os.Getenv("HUGINN_AUTH"); authStr != "" {
		if authStr == "none" {
			c.Auth.Enabled = false
			c.Auth.Username = ""
			c.Auth.Password = ""
		} else {
			c.Auth.Enabled = true
			parts := strings.SplitN(authStr, "/", 2)
			if len(parts) == 2 {
				c.Auth.Username = parts[0]
				c.Auth.Password = parts[1]
			} else {
				c.Auth.Username = "admin"
				c.Auth.Password = authStr
			}
		}
	}

	c.Logging.Level = strings.ToLower(getEnv("HUGINN_LOG_LEVEL", c.Logging.Level))
	c.Logging.Format = strings.ToLower(getEnv("HUGINN_LOG_FORMAT", c.Logging.Format))
}

// Validate checks the configuration for values that would fail at
// startup. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.Port)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("badger backend requires a data directory")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	if c.Auth.Enabled {
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return fmt.Errorf("auth enabled but username or password is empty")
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Logging.Format)
	}
	return nil
}

// String returns a loggable one-line summary without credentials.
func (c *Config) String() string {
	return fmt.Sprintf("server=%s storage=%s auth=%v log=%s/%s",
		c.Server.Addr(), c.Storage.Backend, c.Auth.Enabled,
		c.Logging.Level, c.Logging.Format)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
