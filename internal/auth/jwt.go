// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

// Package auth verifies and issues the signed bearer credentials presented at
// connection time. A credential carries the subject id, role, and email of
// the connecting party; verification failures refuse the connection before
// admission, never downgrade it to anonymous.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tourguard/gateway/internal/config"
)

// AuthenticationError indicates a credential failed verification. The
// connection attempt carrying it must be refused before admission.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsAuthenticationError reports whether err is an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// Identity is the verified output of a credential: who is connecting and in
// what role.
type Identity struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
	Email   string `json:"email"`
}

// Label returns the display label for the identity, used when stamping
// events with the sender. Falls back to the subject id when no email is set.
func (id *Identity) Label() string {
	if id.Email != "" {
		return id.Email
	}
	return id.Subject
}

// Claims is the JWT claim set carried by gateway credentials.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager verifies and issues gateway credentials using HMAC-SHA256.
type Manager struct {
	secret  []byte
	timeout time.Duration
}

// NewManager creates a credential manager with the configured signing secret.
// The secret must be non-empty; length is enforced by config validation.
func NewManager(cfg *config.SecurityConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &Manager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
	}, nil
}

// Issue mints a signed credential for a subject. Used by the login endpoint
// and by provisioning tooling that hands tokens to tourist devices.
func (m *Manager) Issue(subject string, role Role, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:  string(role),
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a bearer credential and extracts the identity it asserts.
//
// Every failure is an *AuthenticationError: absent credential, signature or
// expiry failure, claims missing subject or role, or an unknown role. The
// signing method is pinned to HMAC to prevent algorithm confusion.
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, &AuthenticationError{Reason: "missing credential"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, &AuthenticationError{Reason: "invalid credential", Err: err}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, &AuthenticationError{Reason: "invalid token claims"}
	}

	if claims.Subject == "" {
		return nil, &AuthenticationError{Reason: "credential missing subject"}
	}
	if claims.Role == "" {
		return nil, &AuthenticationError{Reason: "credential missing role"}
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, &AuthenticationError{Reason: "credential role not recognized", Err: err}
	}

	return &Identity{
		Subject: claims.Subject,
		Role:    role,
		Email:   claims.Email,
	}, nil
}
