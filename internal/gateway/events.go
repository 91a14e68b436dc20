// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tourguard/gateway/internal/auth"
)

// Inbound event names (client -> server).
const (
	EventLocationUpdate     = "location_update"
	EventTouristCheckIn     = "tourist_check_in"
	EventEmergencyAlert     = "emergency_alert"
	EventCreateAlert        = "create_alert"
	EventEmergencyBroadcast = "emergency_broadcast"
	EventSystemNotification = "system_notification"
	EventAnalyticsUpdate    = "analytics_update"
	EventJoinRoom           = "join_room"
	EventLeaveRoom          = "leave_room"
	EventAcknowledgeAlert   = "acknowledge_alert"
	EventResolveAlert       = "resolve_alert"
	EventPing               = "ping"
)

// Outbound event names (server -> client).
const (
	EventAuthenticated         = "authenticated"
	EventTouristLocationUpdate = "tourist_location_update"
	EventAlertCreated          = "alert_created"
	EventRoomJoined            = "room_joined"
	EventRoomLeft              = "room_left"
	EventAlertAcknowledged     = "alert_acknowledged"
	EventAlertResolved         = "alert_resolved"
	EventPong                  = "pong"
	EventTouristDisconnected   = "tourist_disconnected"
	EventError                 = "error"
)

// Envelope is the wire format for every event in both directions: an event
// name plus an opaque structured payload. Events are ephemeral; they are
// never persisted and exist only for the duration of a single fan-out.
type Envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// MarshalEnvelope encodes an envelope for the wire.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// UnmarshalEnvelope decodes a wire frame into an envelope.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}

// stamp annotates an event payload with sender metadata before fan-out:
// subject id, role, display label, and the server-side RFC 3339 timestamp.
// The inbound payload is copied so the sender's map is never shared between
// deliveries.
func stamp(id *auth.Identity, data map[string]interface{}, now time.Time) map[string]interface{} {
	stamped := make(map[string]interface{}, len(data)+4)
	for k, v := range data {
		stamped[k] = v
	}
	stamped["senderId"] = id.Subject
	stamped["senderRole"] = string(id.Role)
	stamped["senderName"] = id.Label()
	stamped["timestamp"] = now.UTC().Format(time.RFC3339)
	return stamped
}

// errorEnvelope builds the denial/error event sent back to a sender.
func errorEnvelope(message string) Envelope {
	return Envelope{
		Event: EventError,
		Data:  map[string]interface{}{"message": message},
	}
}
