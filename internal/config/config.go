package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr                string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout   time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel            string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath        string        `mapstructure:"database_path" yaml:"database_path"`
	UploadDir           string        `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes      int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RemoveRoomDelay     time.Duration `mapstructure:"remove_room_delay" yaml:"remove_room_delay"`
	ReaperTimeout       time.Duration `mapstructure:"reaper_timeout" yaml:"reaper_timeout"`
	SessionSecret       string        `mapstructure:"session_secret" yaml:"session_secret"`
	SessionTTL          time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	MaxInboundPerMinute int           `mapstructure:"max_inbound_per_minute" yaml:"max_inbound_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8005",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
		DatabasePath:        "gifchat.db",
		UploadDir:           "uploads",
		MaxUploadBytes:      5 << 20,
		RemoveRoomDelay:     2 * time.Second,
		ReaperTimeout:       5 * time.Second,
		SessionSecret:       "change-me",
		SessionTTL:          7 * 24 * time.Hour,
		MaxInboundPerMinute: 120,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.UploadDir != "" {
		c.UploadDir = other.UploadDir
	}
	if other.MaxUploadBytes != 0 {
		c.MaxUploadBytes = other.MaxUploadBytes
	}
	if other.RemoveRoomDelay != 0 {
		c.RemoveRoomDelay = other.RemoveRoomDelay
	}
	if other.ReaperTimeout != 0 {
		c.ReaperTimeout = other.ReaperTimeout
	}
	if other.SessionSecret != "" {
		c.SessionSecret = other.SessionSecret
	}
	if other.SessionTTL != 0 {
		c.SessionTTL = other.SessionTTL
	}
	if other.MaxInboundPerMinute != 0 {
		c.MaxInboundPerMinute = other.MaxInboundPerMinute
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: addr is required")
	case c.DatabasePath == "":
		return errors.New("config: database_path is required")
	case c.UploadDir == "":
		return errors.New("config: upload_dir is required")
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("config: max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	case c.RemoveRoomDelay < 0:
		return fmt.Errorf("config: remove_room_delay must not be negative, got %s", c.RemoveRoomDelay)
	case c.SessionSecret == "":
		return errors.New("config: session_secret is required")
	case c.SessionTTL <= 0:
		return fmt.Errorf("config: session_ttl must be positive, got %s", c.SessionTTL)
	}
	return nil
}
