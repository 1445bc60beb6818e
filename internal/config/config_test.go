package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linkboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	d := Defaults()

	assert.Equal(t, "linkboard.db", d.Database)
	assert.Equal(t, "default", d.Registry)
	assert.Equal(t, 9000, d.MaxRecordBytes)
	assert.Equal(t, "127.0.0.1:8787", d.Listen)
	assert.Equal(t, "info", d.LogLevel)
	assert.Equal(t, "text", d.LogFormat)
	assert.False(t, d.Tracing)
	assert.NoError(t, d.Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/board.db
registry: cats
max_record_bytes: 0
log_format: json
tracing: true
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/board.db", cfg.Database)
	assert.Equal(t, "cats", cfg.Registry)
	assert.Equal(t, 0, cfg.MaxRecordBytes)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.Tracing)
	assert.Equal(t, "127.0.0.1:8787", cfg.Listen, "unset keys keep defaults")
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("registry: dogs\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "dogs", cfg.Registry)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "registry: cats\n")
	t.Setenv("LINKBOARD_REGISTRY", "birds")
	t.Setenv("LINKBOARD_MAX_RECORD_BYTES", "512")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "birds", cfg.Registry)
	assert.Equal(t, 512, cfg.MaxRecordBytes)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "log_level: loud\n")

	_, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty database", func(c *Config) { c.Database = " " }, "database"},
		{"empty registry", func(c *Config) { c.Registry = "" }, "registry"},
		{"negative capacity", func(c *Config) { c.MaxRecordBytes = -1 }, "max_record_bytes"},
		{"bad listen", func(c *Config) { c.Listen = "8787" }, "listen"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Database = ""
	cfg.LogLevel = "trace"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
	assert.Contains(t, err.Error(), "log_level")
}
