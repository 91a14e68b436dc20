// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package auth

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tourguard/gateway/internal/config"
	"github.com/tourguard/gateway/internal/logging"
)

func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

const testSecret = "test-secret-key-minimum-32-characters"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	return m
}

func TestManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(&config.SecurityConfig{}); err == nil {
		t.Fatal("NewManager with empty secret succeeded, want error")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name    string
		subject string
		role    Role
		email   string
	}{
		{"tourist", "T1", RoleTourist, "anna@example.com"},
		{"authority", "A1", RoleAuthority, ""},
		{"admin", "ADM", RoleAdmin, "ops@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.Issue(tt.subject, tt.role, tt.email)
			if err != nil {
				t.Fatalf("Issue() failed: %v", err)
			}

			id, err := m.Verify(token)
			if err != nil {
				t.Fatalf("Verify() failed: %v", err)
			}
			if id.Subject != tt.subject {
				t.Errorf("Subject = %q, want %q", id.Subject, tt.subject)
			}
			if id.Role != tt.role {
				t.Errorf("Role = %q, want %q", id.Role, tt.role)
			}
			if id.Email != tt.email {
				t.Errorf("Email = %q, want %q", id.Email, tt.email)
			}
		})
	}
}

func TestVerifyFailures(t *testing.T) {
	m := newTestManager(t)

	sign := func(t *testing.T, secret string, claims jwt.Claims) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("failed to sign test token: %v", err)
		}
		return signed
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "empty credential",
			token: func(t *testing.T) string { return "" },
		},
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not.a.token" },
		},
		{
			name: "wrong signing key",
			token: func(t *testing.T) string {
				return sign(t, "another-secret-key-of-32-characters!", &Claims{
					Role:             "tourist",
					RegisteredClaims: jwt.RegisteredClaims{Subject: "T1"},
				})
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return sign(t, testSecret, &Claims{
					Role: "tourist",
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   "T1",
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
					},
				})
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return sign(t, testSecret, &Claims{Role: "tourist"})
			},
		},
		{
			name: "missing role",
			token: func(t *testing.T) string {
				return sign(t, testSecret, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Subject: "T1"},
				})
			},
		},
		{
			name: "unknown role",
			token: func(t *testing.T) string {
				return sign(t, testSecret, &Claims{
					Role:             "superuser",
					RegisteredClaims: jwt.RegisteredClaims{Subject: "T1"},
				})
			},
		},
		{
			name: "none algorithm",
			token: func(t *testing.T) string {
				token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
					Role:             "admin",
					RegisteredClaims: jwt.RegisteredClaims{Subject: "ADM"},
				})
				signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("failed to sign none token: %v", err)
				}
				return signed
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.Verify(tt.token(t))
			if err == nil {
				t.Fatalf("Verify() = %+v, want error", id)
			}
			if !IsAuthenticationError(err) {
				t.Errorf("Verify() returned %T, want *AuthenticationError", err)
			}
			if !strings.Contains(err.Error(), "authentication failed") {
				t.Errorf("error %q missing authentication failed prefix", err)
			}
		})
	}
}

func TestIdentityLabel(t *testing.T) {
	withEmail := &Identity{Subject: "T1", Email: "anna@example.com"}
	if got := withEmail.Label(); got != "anna@example.com" {
		t.Errorf("Label() = %q, want email", got)
	}
	withoutEmail := &Identity{Subject: "T1"}
	if got := withoutEmail.Label(); got != "T1" {
		t.Errorf("Label() = %q, want subject fallback", got)
	}
}
