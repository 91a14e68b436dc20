// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

// Package config provides layered configuration for the gateway using Koanf v2.
//
// Sources are applied in order of increasing priority:
//
//  1. Built-in defaults
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (JWT_SECRET, HTTP_PORT, ALLOWED_ORIGINS, ...)
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// SecurityConfig holds credential verification and origin policy settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies connection credentials (HS256).
	// Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionTimeout bounds the lifetime of issued tokens.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername and AdminPassword gate the login endpoint that mints
	// operator tokens. The password is compared with bcrypt.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// AllowedOrigins is the Origin allow-list for the WebSocket handshake
	// and the CORS policy. "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP on the API.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// GatewayConfig holds tunables for the realtime hub and its connections.
type GatewayConfig struct {
	// SendBufferSize is the per-connection outbound queue length. A
	// connection whose queue is full at delivery time is dropped.
	SendBufferSize int `koanf:"send_buffer_size"`

	// BroadcastBufferSize is the hub's inbound dispatch queue length.
	BroadcastBufferSize int `koanf:"broadcast_buffer_size"`

	// MaxMessageSize caps a single inbound frame in bytes.
	MaxMessageSize int64 `koanf:"max_message_size"`

	// EventRate and EventBurst bound inbound events per connection
	// (token bucket, events per second).
	EventRate  float64 `koanf:"event_rate"`
	EventBurst int     `koanf:"event_burst"`

	// WriteWait, PongWait and the derived ping period govern transport
	// liveness detection.
	WriteWait time.Duration `koanf:"write_wait"`
	PongWait  time.Duration `koanf:"pong_wait"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8444,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			AdminUsername:   "",
			AdminPassword:   "",
			AllowedOrigins:  []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Gateway: GatewayConfig{
			SendBufferSize:      256,
			BroadcastBufferSize: 512,
			MaxMessageSize:      64 * 1024,
			EventRate:           20,
			EventBurst:          40,
			WriteWait:           10 * time.Second,
			PongWait:            60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values that would prevent the gateway
// from operating safely. Called by Load after all sources are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required (set JWT_SECRET)")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("security.allowed_origins must not be empty")
	}
	if c.Server.Environment == "production" {
		for _, origin := range c.Security.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("security.allowed_origins must not contain %q in production", "*")
			}
		}
	}

	if c.Gateway.SendBufferSize < 1 {
		return fmt.Errorf("gateway.send_buffer_size must be positive, got %d", c.Gateway.SendBufferSize)
	}
	if c.Gateway.PongWait <= c.Gateway.WriteWait {
		return fmt.Errorf("gateway.pong_wait (%s) must exceed gateway.write_wait (%s)",
			c.Gateway.PongWait, c.Gateway.WriteWait)
	}

	return nil
}

// PingPeriod returns the transport ping interval derived from PongWait.
// Pings must be sent more often than the pong deadline expires.
func (g *GatewayConfig) PingPeriod() time.Duration {
	return g.PongWait * 9 / 10
}

// Addr returns the host:port listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
