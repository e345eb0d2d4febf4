// Package config loads bugreport settings from TOML.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pion/logging"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "bugreport.toml"

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// BrowserConfig holds Chrome launch settings.
type BrowserConfig struct {
	Headless bool     `toml:"headless"`
	Timeout  Duration `toml:"timeout"`
	Bin      string   `toml:"bin"`
}

// ServerConfig holds App Instance settings.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// DriverConfig holds page driver timeouts.
type DriverConfig struct {
	NavigationTimeout Duration `toml:"navigation_timeout"`
	QueryTimeout      Duration `toml:"query_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level"` // disabled, error, warn, info, debug, trace
}

// Config is the main configuration struct.
type Config struct {
	Browser BrowserConfig `toml:"browser"`
	Server  ServerConfig  `toml:"server"`
	Driver  DriverConfig  `toml:"driver"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  Duration{30 * time.Second},
		},
		Server: ServerConfig{
			Addr:         ":0",
			ReadTimeout:  Duration{30 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
		},
		Driver: DriverConfig{
			NavigationTimeout: Duration{30 * time.Second},
			QueryTimeout:      Duration{5 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from path, merging with defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Browser.Timeout.Duration <= 0 {
		return fmt.Errorf("browser.timeout must be positive")
	}
	if c.Driver.NavigationTimeout.Duration <= 0 {
		return fmt.Errorf("driver.navigation_timeout must be positive")
	}
	if c.Driver.QueryTimeout.Duration <= 0 {
		return fmt.Errorf("driver.query_timeout must be positive")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a pion log level.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("invalid log level %q", s)
}

// LoggerFactory returns a factory writing to w at the configured level.
func (c *Config) LoggerFactory(w io.Writer) (logging.LoggerFactory, error) {
	level, err := ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = level
	f.Writer = w
	return f, nil
}
