// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tourguard/config.yaml",
	"/etc/tourguard/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values for slice fields
	if origins := k.String("security.allowed_origins"); origins != "" && !strings.HasPrefix(origins, "[") {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("security.allowed_origins", parts); err != nil {
			return nil, fmt.Errorf("failed to set allowed origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps flat environment variable names to nested config
// paths. Unknown variables are dropped so arbitrary process environment does
// not leak into the configuration.
//
// Examples:
//   - HTTP_PORT        -> server.port
//   - JWT_SECRET       -> security.jwt_secret
//   - ALLOWED_ORIGINS  -> security.allowed_origins
//   - LOG_LEVEL        -> logging.level
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":         "server.host",
		"http_port":         "server.port",
		"environment":       "server.environment",
		"shutdown_timeout":  "server.shutdown_timeout",
		"jwt_secret":        "security.jwt_secret",
		"session_timeout":   "security.session_timeout",
		"admin_username":    "security.admin_username",
		"admin_password":    "security.admin_password",
		"allowed_origins":   "security.allowed_origins",
		"rate_limit_reqs":   "security.rate_limit_reqs",
		"rate_limit_window": "security.rate_limit_window",
		"ws_send_buffer":    "gateway.send_buffer_size",
		"ws_max_message":    "gateway.max_message_size",
		"ws_event_rate":     "gateway.event_rate",
		"ws_event_burst":    "gateway.event_burst",
		"ws_pong_wait":      "gateway.pong_wait",
		"log_level":         "logging.level",
		"log_format":        "logging.format",
		"log_caller":        "logging.caller",
	}

	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return "" // drop unmapped variables
}
