/*
config.go - Runtime configuration

PURPOSE:
  Loads server, store, CORS, metrics and integrity-sweep settings from an
  optional YAML file plus CAPLEDGER_* environment variables, on top of the
  defaults in Default().

PRECEDENCE (highest first):
  1. Environment: CAPLEDGER_SERVER_PORT, CAPLEDGER_STORE_DRIVER, ...
     (dots in keys become underscores)
  2. Config file passed to Load (or --config on the CLI)
  3. Default()

EXAMPLE FILE:
  server:
    host: 0.0.0.0
    port: 8080
  store:
    driver: sqlite
    path: ./data/ledger.db
  cors:
    allowed_origins: ["http://localhost:5173"]
  metrics:
    enabled: true
  integrity:
    interval: 15m

SEE ALSO:
  - cli/root.go: --config flag
  - cmd/capledger/main.go: entry point
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CAPLEDGER"

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	CORS      CORSConfig
	Metrics   MetricsConfig
	Integrity IntegrityConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StoreConfig struct {
	Driver string // memory | sqlite
	Path   string // sqlite file, ":memory:" allowed
}

type CORSConfig struct {
	AllowedOrigins []string
}

type MetricsConfig struct {
	Enabled bool
}

// IntegrityConfig controls the background integrity sweep. A zero
// interval disables it.
type IntegrityConfig struct {
	Interval time.Duration
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "", Port: 8080},
		Store:  StoreConfig{Driver: DriverSQLite, Path: "capledger.db"},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Metrics:   MetricsConfig{Enabled: true},
		Integrity: IntegrityConfig{Interval: time.Hour},
	}
}

// Load reads the file at path (skipped when path is empty) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("cors.allowed_origins", def.CORS.AllowedOrigins)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("integrity.interval", def.Integrity.Interval)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
			Path:   v.GetString("store.path"),
		},
		CORS:      CORSConfig{AllowedOrigins: v.GetStringSlice("cors.allowed_origins")},
		Metrics:   MetricsConfig{Enabled: v.GetBool("metrics.enabled")},
		Integrity: IntegrityConfig{Interval: v.GetDuration("integrity.interval")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Store.Driver)
	}
	if c.Integrity.Interval < 0 {
		return errors.New("integrity.interval must not be negative")
	}
	return nil
}
