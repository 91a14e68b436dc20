// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	"errors"
	"testing"

	"github.com/tourguard/gateway/internal/auth"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy()
	if err != nil {
		t.Fatalf("NewPolicy() failed: %v", err)
	}
	return p
}

func TestPolicyCheck(t *testing.T) {
	p := newTestPolicy(t)

	allowed := map[auth.Role][]string{
		auth.RoleTourist: {
			EventLocationUpdate, EventTouristCheckIn, EventEmergencyAlert,
			EventJoinRoom, EventLeaveRoom, EventAcknowledgeAlert,
			EventResolveAlert, EventPing,
		},
		auth.RoleAuthority: {
			EventLocationUpdate, EventTouristCheckIn, EventEmergencyAlert,
			EventJoinRoom, EventLeaveRoom, EventAcknowledgeAlert,
			EventResolveAlert, EventPing,
			EventCreateAlert, EventEmergencyBroadcast,
		},
		auth.RoleAdmin: {
			EventLocationUpdate, EventTouristCheckIn, EventEmergencyAlert,
			EventJoinRoom, EventLeaveRoom, EventAcknowledgeAlert,
			EventResolveAlert, EventPing,
			EventCreateAlert, EventEmergencyBroadcast,
			EventSystemNotification, EventAnalyticsUpdate,
		},
	}
	denied := map[auth.Role][]string{
		auth.RoleTourist: {
			EventCreateAlert, EventEmergencyBroadcast,
			EventSystemNotification, EventAnalyticsUpdate,
		},
		auth.RoleAuthority: {
			EventSystemNotification, EventAnalyticsUpdate,
		},
		auth.RoleAdmin: {},
	}

	for role, events := range allowed {
		for _, event := range events {
			if err := p.Check(role, event); err != nil {
				t.Errorf("Check(%s, %s) = %v, want nil", role, event, err)
			}
		}
	}
	for role, events := range denied {
		for _, event := range events {
			err := p.Check(role, event)
			if err == nil {
				t.Errorf("Check(%s, %s) = nil, want denial", role, event)
				continue
			}
			var unauthorized *UnauthorizedError
			if !errors.As(err, &unauthorized) {
				t.Errorf("Check(%s, %s) returned %T, want *UnauthorizedError", role, event, err)
			}
		}
	}
}

func TestPolicyUnknownEventRefused(t *testing.T) {
	p := newTestPolicy(t)
	for _, role := range []auth.Role{auth.RoleTourist, auth.RoleAuthority, auth.RoleAdmin} {
		if err := p.Check(role, "teleport"); err == nil {
			t.Errorf("Check(%s, teleport) = nil, want denial", role)
		}
	}
}

func TestPolicyKnown(t *testing.T) {
	p := newTestPolicy(t)

	known := []string{
		EventLocationUpdate, EventTouristCheckIn, EventEmergencyAlert,
		EventCreateAlert, EventEmergencyBroadcast, EventSystemNotification,
		EventAnalyticsUpdate, EventJoinRoom, EventLeaveRoom,
		EventAcknowledgeAlert, EventResolveAlert, EventPing,
	}
	for _, event := range known {
		if !p.Known(event) {
			t.Errorf("Known(%s) = false, want true", event)
		}
	}

	for _, event := range []string{"teleport", "", "authenticated", "pong"} {
		if p.Known(event) {
			t.Errorf("Known(%q) = true, want false", event)
		}
	}
}

func TestDenialMessage(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{EventCreateAlert, "Unauthorized: Only authorities can create alerts"},
		{EventEmergencyBroadcast, "Unauthorized: Only authorities can send emergency broadcasts"},
		{EventSystemNotification, "Unauthorized: Only administrators can send system notifications"},
		{EventAnalyticsUpdate, "Unauthorized: Only administrators can push analytics updates"},
		{EventLocationUpdate, "Unauthorized: role not permitted to emit location_update"},
	}

	for _, tt := range tests {
		if got := DenialMessage(tt.event); got != tt.want {
			t.Errorf("DenialMessage(%s) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestUnauthorizedErrorMessage(t *testing.T) {
	err := &UnauthorizedError{Role: auth.RoleTourist, Event: EventCreateAlert}
	want := `role "tourist" is not permitted to emit "create_alert"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
