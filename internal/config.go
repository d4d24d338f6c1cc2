package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Mode selects how strictly notes are parsed.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// Config represents the application configuration (§6's recognized
// configuration options).
type Config struct {
	VaultPath string       `mapstructure:"vault_path"`
	IndexPath string       `mapstructure:"index_path"`
	Mode      string       `mapstructure:"mode"`
	LogLevel  slog.Level   `mapstructure:"log_level"`
	Policy    PolicyConfig `mapstructure:"policy"`
	HTTP      HTTPConfig   `mapstructure:"http"`
}

// Validate validates the configuration and normalizes IndexPath.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("config: vault_path is required")
	}
	if c.IndexPath == "" {
		c.IndexPath = c.VaultPath + "/.memory-index.db"
	}
	if err := validation.Validate(c.Mode, validation.Required, validation.In(ModeDev, ModeProd)); err != nil {
		return fmt.Errorf("config: mode: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Strict reports whether note parsing/validation should reject malformed
// input outright rather than synthesizing lenient defaults. Only prod mode
// is strict; dev mode favors tolerant parsing during local iteration.
func (c *Config) Strict() bool {
	return c.Mode == ModeProd
}

// PolicyConfig holds the registry-wide default tool-call policy (§4.11).
type PolicyConfig struct {
	TimeoutMS  int `mapstructure:"timeout_ms"`
	MaxRetries int `mapstructure:"max_retries"`
}

// Validate validates the policy configuration.
func (c *PolicyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TimeoutMS, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

// HTTPConfig holds the local-only introspection surface's listen address
// (§6, A4). A blank Addr disables the introspection server entirely.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return nil
}

// NewDefaultConfig returns a new Config with the §6-specified defaults.
func NewDefaultConfig() *Config {
	return &Config{
		VaultPath: "./vault",
		Mode:      ModeDev,
		LogLevel:  slog.LevelInfo,
		Policy: PolicyConfig{
			TimeoutMS:  5000,
			MaxRetries: 2,
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8642",
		},
	}
}
