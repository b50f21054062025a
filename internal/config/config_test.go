package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config file to be written: %v", err)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"addr: \":9000\"",
		"upload_dir: /tmp/gifs",
		"remove_room_delay: 3s",
		"log_level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("GIFCHAT_ADDR", ":9100")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Errorf("expected env to win for addr, got %s", cfg.Addr)
	}
	if cfg.UploadDir != "/tmp/gifs" {
		t.Errorf("expected upload_dir from file, got %s", cfg.UploadDir)
	}
	if cfg.RemoveRoomDelay != 3*time.Second {
		t.Errorf("expected remove_room_delay 3s, got %s", cfg.RemoveRoomDelay)
	}
	if cfg.MaxUploadBytes != Default().MaxUploadBytes {
		t.Errorf("expected default max_upload_bytes, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := Load(nil, path)
	if err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
	if !strings.HasPrefix(err.Error(), "read config:") {
		t.Fatalf("expected read config error, got %v", err)
	}

	// a malformed file must not be replaced by defaults
	data, readErr := os.ReadFile(path)
	if readErr != nil || string(data) != "addr: [unclosed" {
		t.Fatalf("config file was rewritten: %q, %v", data, readErr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no addr", func(c *Config) { c.Addr = "" }, false},
		{"no upload dir", func(c *Config) { c.UploadDir = "" }, false},
		{"zero upload cap", func(c *Config) { c.MaxUploadBytes = 0 }, false},
		{"negative delay", func(c *Config) { c.RemoveRoomDelay = -time.Second }, false},
		{"zero delay", func(c *Config) { c.RemoveRoomDelay = 0 }, true},
		{"no secret", func(c *Config) { c.SessionSecret = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", LogLevel: "debug"})

	if cfg.Addr != ":1234" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DatabasePath != Default().DatabasePath {
		t.Fatalf("zero values must not overwrite: %+v", cfg)
	}
}
