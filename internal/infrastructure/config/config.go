package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Shell    ShellConfig
	Terminal TerminalConfig
	Logging  LogConfig
	Metrics  MetricsConfig
}

// ShellConfig holds shell session configuration.
type ShellConfig struct {
	Path          string        `envconfig:"SHELL_PATH"`
	Flavor        string        `envconfig:"SHELL_FLAVOR"`
	Login         bool          `envconfig:"SHELL_LOGIN" default:"true"`
	SourceRC      bool          `envconfig:"SHELL_SOURCE_RC" default:"true"`
	ForceFallback bool          `envconfig:"SHELL_FORCE_FALLBACK" default:"false"`
	Timeout       time.Duration `envconfig:"COMMAND_TIMEOUT" default:"30s"`
	ReadyTimeout  time.Duration `envconfig:"SHELL_READY_TIMEOUT" default:"5s"`
	DrainGrace    time.Duration `envconfig:"DRAIN_GRACE" default:"2s"`
	MaxOutput     int           `envconfig:"MAX_OUTPUT_CHARS" default:"10000"`
}

// TerminalConfig holds the initial pseudo-terminal dimensions.
type TerminalConfig struct {
	Cols int `envconfig:"TERM_COLS" default:"80"`
	Rows int `envconfig:"TERM_ROWS" default:"24"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds the debug server configuration. An empty address disables it.
type MetricsConfig struct {
	Addr         string   `envconfig:"METRICS_ADDR"`
	CORSOrigins  []string `envconfig:"DEBUG_CORS_ORIGINS"`
	ExecuteRPS   float64  `envconfig:"EXECUTE_RPS" default:"5"`
	ExecuteBurst int      `envconfig:"EXECUTE_BURST" default:"10"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			Login:        true,
			SourceRC:     true,
			Timeout:      30 * time.Second,
			ReadyTimeout: 5 * time.Second,
			DrainGrace:   2 * time.Second,
			MaxOutput:    10000,
		},
		Terminal: TerminalConfig{
			Cols: 80,
			Rows: 24,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Metrics: MetricsConfig{
			ExecuteRPS:   5,
			ExecuteBurst: 10,
		},
	}
}
