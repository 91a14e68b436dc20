// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	"strings"

	"github.com/tourguard/gateway/internal/auth"
)

// Role topics, derived deterministically from a connection's role.
const (
	TopicTourists    = "tourists"
	TopicAuthorities = "authorities"
	TopicAdmins      = "admins"
)

// Capability topics, granted additively based on role at admission. They are
// protected: a self-service join_room request can never acquire them.
const (
	TopicEmergencyBroadcast = "emergency_broadcast"
	TopicAnalyticsUpdates   = "analytics_updates"
	TopicSystemAlerts       = "system_alerts"
	TopicTouristUpdates     = "tourist_updates"
	TopicGeneralAlerts      = "general_alerts"
)

// identityTopicPrefix prefixes per-subject topics used for directed delivery.
const identityTopicPrefix = "user_"

// IdentityTopic returns the per-subject topic for directed delivery to one
// user's active connections.
func IdentityTopic(subject string) string {
	return identityTopicPrefix + subject
}

// protectedTopics holds every topic that only role resolution may grant.
var protectedTopics = map[string]struct{}{
	TopicTourists:           {},
	TopicAuthorities:        {},
	TopicAdmins:             {},
	TopicEmergencyBroadcast: {},
	TopicAnalyticsUpdates:   {},
	TopicSystemAlerts:       {},
	TopicTouristUpdates:     {},
	TopicGeneralAlerts:      {},
}

// SelfServiceAllowed reports whether a topic may be joined or left via a
// client join_room/leave_room request. Role topics, capability topics, and
// identity topics are reserved for the admission path.
func SelfServiceAllowed(topic string) bool {
	if topic == "" {
		return false
	}
	if strings.HasPrefix(topic, identityTopicPrefix) {
		return false
	}
	_, protected := protectedTopics[topic]
	return !protected
}

// ResolveTopics computes the full topic set for an identity at admission: the
// identity topic, the pluralized role topic, and the role's capability
// topics. Pure function of the identity; the same input always yields the
// same set in the same order.
func ResolveTopics(id *auth.Identity) []string {
	topics := []string{
		IdentityTopic(id.Subject),
		id.Role.Plural(),
	}

	switch id.Role {
	case auth.RoleTourist:
		topics = append(topics, TopicTouristUpdates, TopicGeneralAlerts)
	case auth.RoleAuthority, auth.RoleAdmin:
		topics = append(topics, TopicEmergencyBroadcast, TopicAnalyticsUpdates, TopicSystemAlerts)
	}

	return topics
}
