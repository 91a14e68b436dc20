// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "test-secret-key-minimum-32-characters"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "" },
			wantErr: "security.jwt_secret is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "too-short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "no allowed origins",
			mutate:  func(c *Config) { c.Security.AllowedOrigins = nil },
			wantErr: "allowed_origins must not be empty",
		},
		{
			name: "wildcard origin in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.AllowedOrigins = []string{"*"}
			},
			wantErr: "must not contain",
		},
		{
			name: "wildcard origin outside production",
			mutate: func(c *Config) {
				c.Server.Environment = "development"
				c.Security.AllowedOrigins = []string{"*"}
			},
		},
		{
			name:    "zero send buffer",
			mutate:  func(c *Config) { c.Gateway.SendBufferSize = 0 },
			wantErr: "send_buffer_size",
		},
		{
			name: "pong wait not beyond write wait",
			mutate: func(c *Config) {
				c.Gateway.PongWait = 5 * time.Second
				c.Gateway.WriteWait = 5 * time.Second
			},
			wantErr: "pong_wait",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8444 {
		t.Errorf("default port = %d, want 8444", cfg.Server.Port)
	}
	if cfg.Security.SessionTimeout != 24*time.Hour {
		t.Errorf("default session timeout = %s, want 24h", cfg.Security.SessionTimeout)
	}
	if cfg.Gateway.SendBufferSize != 256 {
		t.Errorf("default send buffer = %d, want 256", cfg.Gateway.SendBufferSize)
	}
	if len(cfg.Security.AllowedOrigins) != 1 || cfg.Security.AllowedOrigins[0] != "*" {
		t.Errorf("default allowed origins = %v, want [*]", cfg.Security.AllowedOrigins)
	}
}

func TestPingPeriod(t *testing.T) {
	g := &GatewayConfig{PongWait: 60 * time.Second}
	if got := g.PingPeriod(); got != 54*time.Second {
		t.Errorf("PingPeriod() = %s, want 54s", got)
	}
	if g.PingPeriod() >= g.PongWait {
		t.Error("PingPeriod() must be shorter than PongWait")
	}
}

func TestAddr(t *testing.T) {
	s := &ServerConfig{Host: "127.0.0.1", Port: 8444}
	if got := s.Addr(); got != "127.0.0.1:8444" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8444", got)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"JWT_SECRET", "security.jwt_secret"},
		{"HTTP_PORT", "server.port"},
		{"ALLOWED_ORIGINS", "security.allowed_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"WS_PONG_WAIT", "gateway.pong_wait"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
