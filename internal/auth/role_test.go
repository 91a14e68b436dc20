// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package auth

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"tourist", RoleTourist, false},
		{"authority", RoleAuthority, false},
		{"admin", RoleAdmin, false},
		{"", "", true},
		{"Tourist", "", true},
		{"superuser", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q) = %q, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRolePlural(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleTourist, "tourists"},
		{RoleAuthority, "authorities"},
		{RoleAdmin, "admins"},
	}
	for _, tt := range tests {
		if got := tt.role.Plural(); got != tt.want {
			t.Errorf("%s.Plural() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestRoleOperator(t *testing.T) {
	if RoleTourist.Operator() {
		t.Error("tourist reported as operator")
	}
	if !RoleAuthority.Operator() {
		t.Error("authority not reported as operator")
	}
	if !RoleAdmin.Operator() {
		t.Error("admin not reported as operator")
	}
}
