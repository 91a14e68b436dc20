// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tourguard/gateway/internal/auth"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// policyAction is the single Casbin action for event emission rights.
const policyAction = "emit"

// UnauthorizedError indicates an authenticated connection attempted an event
// its role may not emit. The connection stays open; only the offending event
// is refused.
type UnauthorizedError struct {
	Role  auth.Role
	Event string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("role %q is not permitted to emit %q", e.Role, e.Event)
}

// Policy is the central event authorization policy: a static mapping from
// event name to the roles permitted to emit it, enforced on every inbound
// event (not only at topic-join time). Backed by a Casbin RBAC model with a
// role hierarchy (tourist/authority/admin -> authenticated, operator).
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewPolicy builds the policy from the embedded model and policy rules.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, fmt.Errorf("failed to load policy rules: %w", err)
	}

	return &Policy{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if len(parts) != 4 {
				return fmt.Errorf("malformed policy rule: %q", line)
			}
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return err
			}
		case "g":
			if len(parts) != 3 {
				return fmt.Errorf("malformed grouping rule: %q", line)
			}
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown rule type in line: %q", line)
		}
	}
	return nil
}

// Check authorizes an event emission. Returns nil when permitted, an
// *UnauthorizedError otherwise. Unknown event names are always refused.
func (p *Policy) Check(role auth.Role, event string) error {
	ok, err := p.enforcer.Enforce(string(role), event, policyAction)
	if err != nil || !ok {
		return &UnauthorizedError{Role: role, Event: event}
	}
	return nil
}

// Known reports whether any policy rule exists for the event name, i.e. the
// event is part of the inbound protocol at all.
func (p *Policy) Known(event string) bool {
	policies, err := p.enforcer.GetFilteredPolicy(1, event)
	if err != nil {
		return false
	}
	return len(policies) > 0
}

// DenialMessage returns the human-readable reason sent to a sender whose
// event was refused.
func DenialMessage(event string) string {
	switch event {
	case EventCreateAlert:
		return "Unauthorized: Only authorities can create alerts"
	case EventEmergencyBroadcast:
		return "Unauthorized: Only authorities can send emergency broadcasts"
	case EventSystemNotification:
		return "Unauthorized: Only administrators can send system notifications"
	case EventAnalyticsUpdate:
		return "Unauthorized: Only administrators can push analytics updates"
	default:
		return fmt.Sprintf("Unauthorized: role not permitted to emit %s", event)
	}
}
