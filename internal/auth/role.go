// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package auth

import "fmt"

// Role classifies a connected subject. Roles are immutable for the lifetime
// of a connection; changing role requires a fresh credential and reconnect.
type Role string

const (
	RoleTourist   Role = "tourist"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

// ParseRole validates a role string from a credential.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTourist, RoleAuthority, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Plural returns the role topic name for the role (e.g. authority ->
// "authorities"). Role topics group every connection of a given role.
func (r Role) Plural() string {
	switch r {
	case RoleAuthority:
		return "authorities"
	case RoleAdmin:
		return "admins"
	default:
		return string(r) + "s"
	}
}

// Operator reports whether the role may access management surfaces.
func (r Role) Operator() bool {
	return r == RoleAuthority || r == RoleAdmin
}
