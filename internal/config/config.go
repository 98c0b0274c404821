// Package config provides Viper-based configuration loading for the relay server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RelayConfig holds the websocket listener settings.
type RelayConfig struct {
	// Host is the bind address for the websocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the websocket listener.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (r RelayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AdminConfig holds the admin authentication settings.
type AdminConfig struct {
	// SecretPath is the path to the single-line TOTP seed file.
	SecretPath string `mapstructure:"secret_path"`
}

// AuditConfig holds the audit logger settings.
type AuditConfig struct {
	// Path is the current audit log file.
	Path string `mapstructure:"path"`
	// ArchiveDir is the directory where rotated logs are compressed into.
	ArchiveDir string `mapstructure:"archive_dir"`
	// FlushInterval is how often the drain loop flushes buffered writes.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// QueueSize is the capacity of the in-memory record queue.
	QueueSize int `mapstructure:"queue_size"`
}

// BanConfig holds the IP ban store settings.
type BanConfig struct {
	// Path is the ban store file (JSON object, IP -> expiry epoch seconds).
	Path string `mapstructure:"path"`
	// Duration is how long a ban lasts from the moment it is set.
	Duration time.Duration `mapstructure:"duration"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Relay   RelayConfig   `mapstructure:"relay"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Ban     BanConfig     `mapstructure:"ban"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateRelay(c.Relay); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAudit(c.Audit); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBan(c.Ban); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRelay(r RelayConfig) error {
	var errs []string
	if r.Host == "" {
		errs = append(errs, "relay.host must not be empty")
	}
	if r.Port < 1 || r.Port > 65535 {
		errs = append(errs, fmt.Sprintf("relay.port must be 1-65535, got %d", r.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	if a.SecretPath == "" {
		return fmt.Errorf("admin.secret_path must not be empty")
	}
	return nil
}

func validateAudit(a AuditConfig) error {
	var errs []string
	if a.Path == "" {
		errs = append(errs, "audit.path must not be empty")
	}
	if a.ArchiveDir == "" {
		errs = append(errs, "audit.archive_dir must not be empty")
	}
	if a.FlushInterval <= 0 {
		errs = append(errs, fmt.Sprintf("audit.flush_interval must be positive, got %s", a.FlushInterval))
	}
	if a.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("audit.queue_size must be >= 1, got %d", a.QueueSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBan(b BanConfig) error {
	var errs []string
	if b.Path == "" {
		errs = append(errs, "ban.path must not be empty")
	}
	if b.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("ban.duration must be positive, got %s", b.Duration))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RELAY_ prefix
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.host", "0.0.0.0")
	v.SetDefault("relay.port", 8069)

	v.SetDefault("admin.secret_path", "admin.secret")

	v.SetDefault("audit.path", "log.json")
	v.SetDefault("audit.archive_dir", "logs")
	v.SetDefault("audit.flush_interval", "500ms")
	v.SetDefault("audit.queue_size", 256)

	v.SetDefault("ban.path", "banlist.txt")
	v.SetDefault("ban.duration", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
