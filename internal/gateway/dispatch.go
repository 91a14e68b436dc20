// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	"fmt"
	"time"

	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/metrics"
)

// dispatch authorizes one inbound event and fans it out to its destination
// topics.
//
// The flow per event: policy check against the sender's role, metadata
// stamping (sender id, label, server timestamp), then explicit iteration
// over a snapshotted membership set. Denials go back to the sender only;
// nothing is fanned out. An event is never silently dropped: it is either
// delivered or answered with an explicit error, except a dispatch to an
// empty topic, which is a valid no-op.
func (h *Hub) dispatch(c *Conn, env Envelope) {
	if !h.policy.Known(env.Event) {
		// Client-supplied names go to the log only; the metric label stays
		// fixed to keep cardinality bounded.
		metrics.EventsTotal.WithLabelValues("_unknown", "unknown").Inc()
		logging.Debug().Str("conn_id", c.id).Str("event", env.Event).Msg("unknown event refused")
		c.trySend(errorEnvelope(fmt.Sprintf("Unknown event: %s", env.Event)))
		return
	}

	if err := h.policy.Check(c.identity.Role, env.Event); err != nil {
		metrics.EventsTotal.WithLabelValues(env.Event, "denied").Inc()
		c.trySend(errorEnvelope(DenialMessage(env.Event)))
		return
	}
	metrics.EventsTotal.WithLabelValues(env.Event, "allowed").Inc()

	now := time.Now()
	data := stamp(c.identity, env.Data, now)

	switch env.Event {
	case EventLocationUpdate:
		// Tourist position pings feed the operator map.
		h.deliver(EventTouristLocationUpdate, data, TopicAuthorities, TopicAdmins)

	case EventTouristCheckIn:
		h.deliver(EventTouristCheckIn, data, TopicAuthorities, TopicAdmins)

	case EventEmergencyAlert:
		// Panic button. Urgent priority, pushed server-wide in a single
		// fan-out so nearby tourists are warned alongside responders.
		data["priority"] = "urgent"
		h.deliverAll(EventEmergencyAlert, data)

	case EventCreateAlert:
		h.deliverAll(EventAlertCreated, data)

	case EventEmergencyBroadcast:
		h.deliverAll(EventEmergencyBroadcast, data)

	case EventSystemNotification:
		h.deliverAll(EventSystemNotification, data)

	case EventAnalyticsUpdate:
		h.deliver(EventAnalyticsUpdate, data, TopicAnalyticsUpdates)

	case EventAcknowledgeAlert:
		h.deliverAll(EventAlertAcknowledged, data)

	case EventResolveAlert:
		h.deliverAll(EventAlertResolved, data)

	case EventJoinRoom:
		h.handleJoinRoom(c, env)

	case EventLeaveRoom:
		h.handleLeaveRoom(c, env)

	case EventPing:
		reply := map[string]interface{}{
			"timestamp": now.UTC().Format(time.RFC3339),
		}
		if ts, ok := env.Data["ts"]; ok {
			reply["ts"] = ts
		}
		c.trySend(Envelope{Event: EventPong, Data: reply})
	}
}

// handleJoinRoom honors a self-service room join for topics outside the
// protected capability namespace. Protected topics are only grantable via
// role resolution at admission.
func (h *Hub) handleJoinRoom(c *Conn, env Envelope) {
	room := roomName(env)
	if room == "" {
		c.trySend(errorEnvelope("join_room requires a room name"))
		return
	}
	if !SelfServiceAllowed(room) {
		c.trySend(errorEnvelope(fmt.Sprintf("Unauthorized: room %s is protected", room)))
		return
	}

	h.join(c, room)
	c.trySend(Envelope{
		Event: EventRoomJoined,
		Data:  map[string]interface{}{"room": room},
	})
}

// handleLeaveRoom honors a self-service room leave. Role-derived and
// identity topics cannot be left; membership in them is part of admission.
func (h *Hub) handleLeaveRoom(c *Conn, env Envelope) {
	room := roomName(env)
	if room == "" {
		c.trySend(errorEnvelope("leave_room requires a room name"))
		return
	}
	if !SelfServiceAllowed(room) {
		c.trySend(errorEnvelope(fmt.Sprintf("Unauthorized: room %s is protected", room)))
		return
	}

	h.leave(c, room)
	c.trySend(Envelope{
		Event: EventRoomLeft,
		Data:  map[string]interface{}{"room": room},
	})
}

// roomName extracts the room from a join_room/leave_room payload.
func roomName(env Envelope) string {
	if env.Data == nil {
		return ""
	}
	room, _ := env.Data["room"].(string)
	return room
}
