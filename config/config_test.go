package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	// GIVEN: A config file and an environment override
	// WHEN: Loaded
	// THEN: The environment wins over the file, the file over defaults

	dir := t.TempDir()
	path := filepath.Join(dir, "capledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9000
store:
  driver: memory
cors:
  allowed_origins: ["https://ledger.example.com"]
integrity:
  interval: 15m
`), 0o600))
	t.Setenv("CAPLEDGER_SERVER_PORT", "9100")
	t.Setenv("CAPLEDGER_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "capledger.db", cfg.Store.Path)
	assert.Equal(t, []string{"https://ledger.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Integrity.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port must be between 1 and 65535, got 0"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, `store.driver must be "memory" or "sqlite", got "postgres"`},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }, "store.path is required for the sqlite driver"},
		{"negative interval", func(c *Config) { c.Integrity.Interval = -time.Second }, "integrity.interval must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.errMsg, err.Error())
		})
	}
}
