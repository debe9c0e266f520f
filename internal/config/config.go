// Package config provides configuration for the console commands.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Robert54/live-api-web-console/pkg/bridge"
	"github.com/Robert54/live-api-web-console/pkg/live"
)

// Default dashboard configuration.
const (
	DefaultAddr      = ":3000"
	DefaultStaticDir = "./web"
)

// Config holds all configuration for the console application.
// Flag parsing is done in cmd/console/main.go; this struct is data only.
type Config struct {
	// APIKey authenticates against the live service. Usually comes
	// from the GEMINI_API_KEY environment variable.
	APIKey string `koanf:"api_key"`

	// Endpoint overrides the live service websocket URL. Empty means
	// the public endpoint; point it at a simulator for local work.
	Endpoint string `koanf:"endpoint"`

	// Session settings.
	Model             string `koanf:"model"`
	Voice             string `koanf:"voice"`
	SystemInstruction string `koanf:"system_instruction"`
	GoogleSearch      bool   `koanf:"google_search"`

	// AckDelay is how long invocation batches wait before being
	// acknowledged.
	AckDelay time.Duration `koanf:"ack_delay"`

	// Dashboard settings.
	Addr      string `koanf:"addr"`
	StaticDir string `koanf:"static_dir"`

	// Logging.
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"` // json, text
}

// Default returns sensible defaults for the console.
func Default() Config {
	return Config{
		Model:        live.DefaultModel,
		Voice:        bridge.DefaultVoice,
		GoogleSearch: true,
		AckDelay:     bridge.DefaultAckDelay,
		Addr:         DefaultAddr,
		StaticDir:    DefaultStaticDir,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and CONSOLE_ environment variables, in that order. GEMINI_API_KEY
// is honored as the conventional key variable.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("model", live.DefaultModel)
	k.Set("voice", bridge.DefaultVoice)
	k.Set("google_search", true)
	k.Set("ack_delay", bridge.DefaultAckDelay.String())
	k.Set("addr", DefaultAddr)
	k.Set("static_dir", DefaultStaticDir)
	k.Set("log_level", "info")
	k.Set("log_format", "text")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (CONSOLE_LOG_LEVEL -> log_level)
	if err := k.Load(env.Provider("CONSOLE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CONSOLE_"))
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	return &cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.Endpoint == "" {
		return &ConfigError{Field: "APIKey", Message: "GEMINI_API_KEY environment variable is required"}
	}
	if c.AckDelay < 0 {
		return &ConfigError{Field: "AckDelay", Message: "ack_delay must not be negative"}
	}
	if c.Addr == "" {
		return &ConfigError{Field: "Addr", Message: "addr is required"}
	}
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		return &ConfigError{Field: "LogFormat", Message: "log_format must be json or text"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
