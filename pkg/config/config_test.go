package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	VaultPath string `mapstructure:"vault_path"`
	Mode      string `mapstructure:"mode"`
}

func testDefaults() map[string]any {
	return map[string]any{"vault_path": "./vault", "mode": "dev"}
}

func TestLoadUsesDefaultsWhenFileMissing(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "MNEMOTEST", testDefaults(), &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VaultPath != "./vault" || cfg.Mode != "dev" {
		t.Fatalf("Load with missing file = %+v, want defaults", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vault_path: /srv/notes\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var cfg testConfig
	if err := Load(path, "MNEMOTEST", testDefaults(), &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VaultPath != "/srv/notes" {
		t.Fatalf("VaultPath = %q, want file override", cfg.VaultPath)
	}
	if cfg.Mode != "dev" {
		t.Fatalf("Mode = %q, want default preserved", cfg.Mode)
	}
}

type levelConfig struct {
	VaultPath string     `mapstructure:"vault_path"`
	LogLevel  slog.Level `mapstructure:"log_level"`
}

// TestLoadDecodesTextUnmarshalerField guards against the decode-hook gap
// where a string default/file/env value fails to convert into a field
// whose Go type isn't a string, int, or slice: slog.Level is an int kind
// that implements encoding.TextUnmarshaler, and viper's default decoder
// hooks don't know how to route a string into that without
// TextUnmarshallerHookFunc.
func TestLoadDecodesTextUnmarshalerField(t *testing.T) {
	var cfg levelConfig
	defaults := map[string]any{"vault_path": "./vault", "log_level": "INFO"}
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "MNEMOTEST", defaults, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: DEBUG\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var fromFile levelConfig
	if err := Load(path, "MNEMOTEST", defaults, &fromFile); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fromFile.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want %v", fromFile.LogLevel, slog.LevelDebug)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: dev\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MNEMOTEST_MODE", "prod")

	var cfg testConfig
	if err := Load(path, "MNEMOTEST", testDefaults(), &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "prod" {
		t.Fatalf("Mode = %q, want env override", cfg.Mode)
	}
}
