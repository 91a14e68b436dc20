// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tourguard/gateway/internal/config"
)

// AdminCredentials verifies the operator login used to mint tokens from the
// HTTP surface. The configured password may be a bcrypt hash ($2a$/$2b$
// prefix) or plaintext; plaintext is hashed once at startup so comparisons
// are always constant-time bcrypt comparisons.
type AdminCredentials struct {
	username string
	hash     []byte
}

// NewAdminCredentials builds the credential checker from security config.
// Returns nil (login disabled) when no admin account is configured.
func NewAdminCredentials(cfg *config.SecurityConfig) (*AdminCredentials, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil, nil
	}

	var hash []byte
	if strings.HasPrefix(cfg.AdminPassword, "$2a$") || strings.HasPrefix(cfg.AdminPassword, "$2b$") {
		hash = []byte(cfg.AdminPassword)
	} else {
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		hash = h
	}

	return &AdminCredentials{username: cfg.AdminUsername, hash: hash}, nil
}

// Check verifies a username/password pair.
func (c *AdminCredentials) Check(username, password string) bool {
	if c == nil {
		return false
	}
	if username != c.username {
		// Burn a comparison anyway to keep timing uniform across unknown
		// usernames.
		_ = bcrypt.CompareHashAndPassword(c.hash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
}
