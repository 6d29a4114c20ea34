package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/uologin/internal/constants"
	"github.com/udisondev/uologin/internal/crypto"
)

// LoginProxy holds all configuration for the login gateway.
type LoginProxy struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Handshake
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ProbeWait        time.Duration `yaml:"probe_wait"`

	// DefaultVersion is tried before the key table when neither the seed
	// packet nor the history suggests a version. Empty disables it.
	DefaultVersion string `yaml:"default_version"`

	// ExtraVersions are prepended to the built-in key table, newest first.
	ExtraVersions []string `yaml:"extra_versions"`

	LogLevel string `yaml:"log_level"`

	History     HistoryConfig     `yaml:"history"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// HistoryConfig controls the detection history store.
type HistoryConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
}

// DiagnosticsConfig controls hex dumps of handshake and session bytes.
type DiagnosticsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultLoginProxy returns LoginProxy config with sensible defaults.
func DefaultLoginProxy() LoginProxy {
	return LoginProxy{
		BindAddress:      "0.0.0.0",
		Port:             constants.DefaultLoginPort,
		HandshakeTimeout: 10 * time.Second,
		ProbeWait:        50 * time.Millisecond,
		LogLevel:         "info",
		History: HistoryConfig{
			Enabled: false,
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "uologin",
				Password: "uologin",
				DBName:   "uologin",
				SSLMode:  "disable",
			},
		},
	}
}

// LoadLoginProxy loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadLoginProxy(path string) (LoginProxy, error) {
	cfg := DefaultLoginProxy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field ranges and version strings.
func (c LoginProxy) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake_timeout must not be negative")
	}
	if c.ProbeWait < 0 {
		return fmt.Errorf("probe_wait must not be negative")
	}
	if _, err := c.DefaultVersionHint(); err != nil {
		return err
	}
	if _, err := c.KeyTable(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// DefaultVersionHint parses DefaultVersion. Nil when it is empty.
func (c LoginProxy) DefaultVersionHint() (*crypto.Version, error) {
	if strings.TrimSpace(c.DefaultVersion) == "" {
		return nil, nil
	}
	v, err := crypto.ParseVersion(c.DefaultVersion)
	if err != nil {
		return nil, fmt.Errorf("default_version: %w", err)
	}
	return &v, nil
}

// KeyTable returns the built-in key table with ExtraVersions prepended.
func (c LoginProxy) KeyTable() (*crypto.KeyTable, error) {
	if len(c.ExtraVersions) == 0 {
		return crypto.DefaultKeyTable(), nil
	}
	extra := make([]crypto.Version, 0, len(c.ExtraVersions))
	for _, s := range c.ExtraVersions {
		v, err := crypto.ParseVersion(s)
		if err != nil {
			return nil, fmt.Errorf("extra_versions: %w", err)
		}
		extra = append(extra, v)
	}
	return crypto.DefaultKeyTable().WithPrepended(extra...), nil
}

// SlogLevel maps LogLevel to a slog level.
func (c LoginProxy) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
