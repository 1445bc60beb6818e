// Package config provides configuration types and defaults for linkboard.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. LINKBOARD_DATABASE.
const EnvPrefix = "LINKBOARD"

// DefaultConfigFile is read from the working directory when --config is unset.
const DefaultConfigFile = "linkboard.yaml"

// Config holds all configuration options for linkboard.
type Config struct {
	Database       string `mapstructure:"database"`         // SQLite file path
	Registry       string `mapstructure:"registry"`         // Registry used when a command names none
	MaxRecordBytes int    `mapstructure:"max_record_bytes"` // 0 = unlimited
	Listen         string `mapstructure:"listen"`           // HTTP API address
	LogLevel       string `mapstructure:"log_level"`        // debug, info, warn, error
	LogFormat      string `mapstructure:"log_format"`       // text or json
	Tracing        bool   `mapstructure:"tracing"`          // Export spans to stderr
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Database:       "linkboard.db",
		Registry:       "default",
		MaxRecordBytes: 9000,
		Listen:         "127.0.0.1:8787",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// SetDefaults registers Defaults() on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("database", d.Database)
	v.SetDefault("registry", d.Registry)
	v.SetDefault("max_record_bytes", d.MaxRecordBytes)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("tracing", d.Tracing)
}

// Load reads configuration into a Config.
//
// Precedence (highest first): flags bound on v, LINKBOARD_* environment
// variables, the config file, defaults. An explicit path must exist; the
// default ./linkboard.yaml is optional.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if _, err := os.Stat(DefaultConfigFile); err == nil {
		v.SetConfigFile(DefaultConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", DefaultConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("database: must not be empty"))
	}
	if strings.TrimSpace(c.Registry) == "" {
		errs = append(errs, errors.New("registry: must not be empty"))
	}
	if c.MaxRecordBytes < 0 {
		errs = append(errs, fmt.Errorf("max_record_bytes: must be >= 0, got %d", c.MaxRecordBytes))
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen: %w", err))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
