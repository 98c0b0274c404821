package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Relay: RelayConfig{
			Host: "0.0.0.0",
			Port: 8069,
		},
		Admin: AdminConfig{
			SecretPath: "admin.secret",
		},
		Audit: AuditConfig{
			Path:          "log.json",
			ArchiveDir:    "logs",
			FlushInterval: 500 * time.Millisecond,
			QueueSize:     256,
		},
		Ban: BanConfig{
			Path:     "banlist.txt",
			Duration: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestRelayAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:8069", cfg.Relay.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
relay:
  host: 127.0.0.1
  port: 9000
admin:
  secret_path: secrets/seed
audit:
  path: audit.json
  archive_dir: archives
  flush_interval: 1s
  queue_size: 64
ban:
  path: bans.json
  duration: 48h
logging:
  level: debug
  format: console
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Relay.Host)
	assert.Equal(t, 9000, cfg.Relay.Port)
	assert.Equal(t, "secrets/seed", cfg.Admin.SecretPath)
	assert.Equal(t, time.Second, cfg.Audit.FlushInterval)
	assert.Equal(t, 64, cfg.Audit.QueueSize)
	assert.Equal(t, 48*time.Hour, cfg.Ban.Duration)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8069, cfg.Relay.Port)
	assert.Equal(t, "0.0.0.0", cfg.Relay.Host)
	assert.Equal(t, "log.json", cfg.Audit.Path)
	assert.Equal(t, 24*time.Hour, cfg.Ban.Duration)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadLogging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidateRejectsEmptyPaths(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.SecretPath = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Ban.Path = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Audit.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Ban.Duration = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Audit.FlushInterval = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestRelayPortRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Relay.Port = port
		assert.NoError(t, cfg.Validate())
	})
}

func TestRelayPortOutOfRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Relay.Port = port
		assert.Error(t, cfg.Validate())
	})
}

func TestQueueSizeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 1<<16).Draw(t, "queue_size")
		cfg := validConfig()
		cfg.Audit.QueueSize = size
		assert.NoError(t, cfg.Validate())
	})
}
