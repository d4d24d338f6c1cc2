// Package config provides layered configuration loading: defaults, then an
// optional YAML file, then environment variables, in that precedence order.
package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Validator is implemented by configuration structs that can check their
// own invariants after loading.
type Validator interface {
	Validate() error
}

// Load populates target from defaults, an optional YAML file at path, and
// environment variables prefixed with envPrefix (e.g. MNEMO_VAULT_PATH for
// a mapstructure key vault_path). defaults is a flat map of dotted
// mapstructure keys ("policy.timeout_ms") to their zero-config values; it
// must be registered explicitly because viper's AutomaticEnv only
// recognizes a key once something has asked viper about it. A missing file
// at path is not an error. A local .env file, if present, is loaded before
// viper reads the environment.
func Load[T any](path, envPrefix string, defaults map[string]any, target *T) error {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(target, decodeHook); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config: validation failed: %w", err)
		}
	}
	return nil
}
