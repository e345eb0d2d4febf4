package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout.Duration)
	assert.Equal(t, ":0", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Driver.QueryTimeout.Duration)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[browser]
headless = false
bin = "/usr/bin/chromium"

[driver]
query_timeout = "750ms"

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout.Duration)
	assert.Equal(t, 750*time.Millisecond, cfg.Driver.QueryTimeout.Duration)
	assert.Equal(t, 30*time.Second, cfg.Driver.NavigationTimeout.Duration)
	assert.Equal(t, ":0", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":       "[browser\nheadless = true",
		"bad duration": "[driver]\nquery_timeout = \"soon\"",
		"unknown key":  "[server]\nport = 8080",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parsing config")
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"browser timeout", func(c *Config) { c.Browser.Timeout.Duration = 0 }},
		{"navigation timeout", func(c *Config) { c.Driver.NavigationTimeout.Duration = -time.Second }},
		{"query timeout", func(c *Config) { c.Driver.QueryTimeout.Duration = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logging.LogLevel{
		"off":     logging.LogLevelDisabled,
		"error":   logging.LogLevelError,
		"WARN":    logging.LogLevelWarn,
		"warning": logging.LogLevelWarn,
		"":        logging.LogLevelInfo,
		"debug":   logging.LogLevelDebug,
		"trace":   logging.LogLevelTrace,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerFactory(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "info"

	var buf bytes.Buffer
	f, err := cfg.LoggerFactory(&buf)
	require.NoError(t, err)

	log := f.NewLogger("suite")
	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "suite")
}
