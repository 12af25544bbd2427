// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package config loads server configuration from an optional YAML
// file with command-line flag overrides.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds everything the serve command needs.
type Config struct {
	// ListenAddr is the websocket listen address, e.g. ":8080".
	ListenAddr string `koanf:"listen_addr"`
	// MetricsAddr serves Prometheus metrics; empty disables the
	// metrics listener.
	MetricsAddr string `koanf:"metrics_addr"`
	// DatabaseURL is the postgres connection string.
	DatabaseURL string `koanf:"database_url"`
	// AssetsDir is the asset catalog directory.
	AssetsDir string `koanf:"assets_dir"`
	// RoomID names the room this shard serves.
	RoomID string `koanf:"room_id"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// ChatBurst and ChatRate tune the per-character chat limiter.
	ChatBurst int     `koanf:"chat_burst"`
	ChatRate  float64 `koanf:"chat_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		RoomID:     "lobby",
		LogLevel:   "info",
		LogFormat:  "text",
		ChatBurst:  10,
		ChatRate:   2,
	}
}

// Load merges, in order of increasing precedence: defaults, the YAML
// file at path (skipped when path is empty), and set flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.AssetsDir == "" {
		return oops.Code("CONFIG_INVALID").Errorf("assets_dir is required")
	}
	if c.RoomID == "" {
		return oops.Code("CONFIG_INVALID").Errorf("room_id is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").With("log_level", c.LogLevel).Errorf("log_level must be debug, info, warn or error")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return oops.Code("CONFIG_INVALID").With("log_format", c.LogFormat).Errorf("log_format must be text or json")
	}
	if c.ChatBurst <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("chat_burst must be positive")
	}
	if c.ChatRate <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("chat_rate must be positive")
	}
	return nil
}

// RegisterFlags declares the flag overrides understood by Load. Flag
// names use dashes; koanf maps them onto the underscore keys.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("listen_addr", d.ListenAddr, "websocket listen address")
	flags.String("metrics_addr", d.MetricsAddr, "prometheus metrics address (empty disables)")
	flags.String("database_url", d.DatabaseURL, "postgres connection string")
	flags.String("assets_dir", d.AssetsDir, "asset catalog directory")
	flags.String("room_id", d.RoomID, "room served by this process")
	flags.String("log_level", d.LogLevel, "log level (debug, info, warn, error)")
	flags.String("log_format", d.LogFormat, "log format (text, json)")
	flags.Int("chat_burst", d.ChatBurst, "chat limiter burst size")
	flags.Float64("chat_rate", d.ChatRate, "chat limiter refill per second")
}
