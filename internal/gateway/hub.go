// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tourguard/gateway/internal/auth"
	"github.com/tourguard/gateway/internal/config"
	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/metrics"
)

// submission is an inbound event awaiting serialized dispatch.
type submission struct {
	conn *Conn
	env  Envelope
}

// departure carries an unregistering connection and the reason code reported
// to authorities when a tourist drops.
type departure struct {
	conn   *Conn
	reason string
}

// Hub owns the registry of live connections and the topic membership
// indices, and routes every inbound event through the authorization policy
// to its destination topics.
//
// Index mutation is serialized on the goroutine running RunWithContext;
// reads from other goroutines (status queries, management broadcasts) share
// the mutex. Fan-out iterates a membership snapshot taken under the lock, so
// delivery never races a concurrent join or leave. Within a topic, events
// are delivered in the order they were authorized: the run loop processes
// one dispatch at a time.
type Hub struct {
	cfg    config.GatewayConfig
	policy *Policy

	mu      sync.RWMutex
	conns   map[string]*Conn
	topics  map[string]map[*Conn]struct{}
	members map[*Conn]map[string]struct{}

	register   chan *Conn
	unregister chan departure
	inbound    chan submission

	done      chan struct{}
	running   bool
	startedAt time.Time
}

// NewHub creates a hub. The registry is an explicitly constructed value
// whose lifecycle belongs to the caller; there is no package-level gateway
// state.
func NewHub(cfg config.GatewayConfig, policy *Policy) *Hub {
	return &Hub{
		cfg:        cfg,
		policy:     policy,
		conns:      make(map[string]*Conn),
		topics:     make(map[string]map[*Conn]struct{}),
		members:    make(map[*Conn]map[string]struct{}),
		register:   make(chan *Conn),
		unregister: make(chan departure, 16),
		inbound:    make(chan submission, cfg.BroadcastBufferSize),
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
}

// Admit hands an upgraded, credential-verified transport to the hub. The
// connection is registered, joined to its role-derived topics, sent the
// authenticated acknowledgment, and its pumps are started. Returns nil when
// the hub is already shut down.
func (h *Hub) Admit(ws transport, identity *auth.Identity) *Conn {
	conn := newConn(h, ws, identity)
	select {
	case h.register <- conn:
	case <-h.doneCh():
		_ = ws.Close()
		return nil
	}
	conn.start()
	return conn
}

// doneCh returns the channel that closes when the current run terminates.
// A restarted hub carries a fresh channel.
func (h *Hub) doneCh() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// Running reports whether the run loop is active.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// RunWithContext runs the hub until the context is canceled, then closes
// every live connection and returns ctx.Err(). Designed for suture
// supervision.
//
// Priority order when multiple channels are ready: shutdown, then lifecycle
// (register/unregister), then event dispatch. Lifecycle-first keeps the
// membership indices consistent before any fan-out is computed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.done = make(chan struct{})
	h.running = true
	h.startedAt = time.Now()
	h.mu.Unlock()

	logging.Info().Str("component", "gateway-hub").Msg("gateway hub started")

	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (non-blocking check).
		select {
		case conn := <-h.register:
			h.admit(conn)
			continue
		case dep := <-h.unregister:
			h.drop(dep.conn, dep.reason)
			continue
		default:
		}

		// Priority 3: block until anything arrives.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case conn := <-h.register:
			h.admit(conn)
		case dep := <-h.unregister:
			h.drop(dep.conn, dep.reason)
		case sub := <-h.inbound:
			h.dispatch(sub.conn, sub.env)
		}
	}
}

// admit registers a connection and joins it to its role-resolved topics.
// Capability topics are only ever granted here; join_room requests cannot
// reach them.
func (h *Hub) admit(conn *Conn) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.members[conn] = make(map[string]struct{})
	for _, topic := range ResolveTopics(conn.identity) {
		h.joinLocked(conn, topic)
	}
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	logging.Info().
		Str("conn_id", conn.id).
		Str("subject", conn.identity.Subject).
		Str("role", string(conn.identity.Role)).
		Int("total_connections", h.ConnCount()).
		Msg("connection admitted")

	conn.trySend(Envelope{
		Event: EventAuthenticated,
		Data: map[string]interface{}{
			"subjectId":    conn.identity.Subject,
			"role":         string(conn.identity.Role),
			"connectionId": conn.id,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// drop removes a connection from the registry and every topic index, then
// notifies authorities when the departing role is tourist.
func (h *Hub) drop(conn *Conn, reason string) {
	h.mu.Lock()
	removed := h.removeLocked(conn)
	h.mu.Unlock()
	if !removed {
		return
	}

	metrics.ConnectionsActive.Dec()
	logging.Info().
		Str("conn_id", conn.id).
		Str("subject", conn.identity.Subject).
		Str("reason", reason).
		Int("total_connections", h.ConnCount()).
		Msg("connection dropped")

	if conn.identity.Role == auth.RoleTourist {
		h.deliver(EventTouristDisconnected, map[string]interface{}{
			"touristId": conn.identity.Subject,
			"reason":    reason,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, TopicAuthorities, TopicAdmins)
	}
}

// removeLocked deletes a connection from all indices and closes its send
// queue. Caller must hold h.mu. Returns false if already removed.
func (h *Hub) removeLocked(conn *Conn) bool {
	if _, ok := h.conns[conn.id]; !ok {
		return false
	}
	delete(h.conns, conn.id)
	for topic := range h.members[conn] {
		h.removeFromTopicLocked(conn, topic)
	}
	delete(h.members, conn)
	conn.closeSend()
	return true
}

// joinLocked adds a connection to a topic. Idempotent: joining an
// already-joined topic is a no-op. Caller must hold h.mu.
func (h *Hub) joinLocked(conn *Conn, topic string) {
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Conn]struct{})
		h.topics[topic] = set
	}
	set[conn] = struct{}{}
	if h.members[conn] == nil {
		h.members[conn] = make(map[string]struct{})
	}
	h.members[conn][topic] = struct{}{}
}

// join adds a connection to a topic, for connections already admitted.
func (h *Hub) join(conn *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.conns[conn.id]; !live {
		return
	}
	h.joinLocked(conn, topic)
}

// leave removes a connection from a topic. Idempotent.
func (h *Hub) leave(conn *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromTopicLocked(conn, topic)
	delete(h.members[conn], topic)
}

// removeFromTopicLocked deletes the reverse index entry and prunes empty
// topics. Caller must hold h.mu.
func (h *Hub) removeFromTopicLocked(conn *Conn, topic string) {
	if set, ok := h.topics[topic]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// deliver fans an event out to every member of the union of the destination
// topics, exactly once per connection. Delivery is fire-and-forget,
// at-most-once: connections not live at dispatch time miss the event
// permanently. Dispatching to an empty or unknown topic is a valid no-op.
func (h *Hub) deliver(event string, data map[string]interface{}, topicNames ...string) {
	h.mu.RLock()
	seen := make(map[*Conn]struct{})
	for _, topic := range topicNames {
		for conn := range h.topics[topic] {
			seen[conn] = struct{}{}
		}
	}
	targets := make([]*Conn, 0, len(seen))
	for conn := range seen {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	h.send(event, data, targets)
}

// deliverAll pushes an event to every live connection.
func (h *Hub) deliverAll(event string, data map[string]interface{}) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	h.send(event, data, targets)
}

// send delivers one envelope to each target in a stable order. Targets whose
// queue is full are evicted afterwards rather than blocking the dispatch
// path.
func (h *Hub) send(event string, data map[string]interface{}, targets []*Conn) {
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	env := Envelope{Event: event, Data: data}
	var evicted []*Conn
	for _, conn := range targets {
		if conn.trySend(env) {
			metrics.DeliveriesTotal.WithLabelValues(event).Inc()
		} else {
			evicted = append(evicted, conn)
		}
	}

	for _, conn := range evicted {
		logging.Warn().
			Str("conn_id", conn.id).
			Str("event", event).
			Msg("send queue full, evicting slow connection")
		h.drop(conn, "slow_consumer")
	}
}

// shutdown closes every live connection and marks the hub terminated.
func (h *Hub) shutdown(ctx context.Context) {
	close(h.done)

	h.mu.Lock()
	h.running = false
	count := len(h.conns)
	for _, conn := range h.conns {
		conn.closeSend()
		_ = conn.ws.Close()
	}
	h.conns = make(map[string]*Conn)
	h.topics = make(map[string]map[*Conn]struct{})
	h.members = make(map[*Conn]map[string]struct{})
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "gateway-hub").
		Str("reason", reason).
		Int("connections_closed", count).
		Msg("gateway hub stopped")
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// topicCount returns the membership size of one topic.
func (h *Hub) topicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Status is the introspection surface consumed by the management API.
type Status struct {
	ConnectedClients int            `json:"connectedClients"`
	ActiveRooms      int            `json:"activeRooms"`
	RoomCounts       map[string]int `json:"roomCounts"`
	UptimeSeconds    int64          `json:"uptime"`
}

// Status reports connection count and per-topic membership counts.
func (h *Hub) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.topics))
	for topic, set := range h.topics {
		counts[topic] = len(set)
	}

	return Status{
		ConnectedClients: len(h.conns),
		ActiveRooms:      len(h.topics),
		RoomCounts:       counts,
		UptimeSeconds:    int64(time.Since(h.startedAt).Seconds()),
	}
}

// Broadcast pushes a management-originated event to a room, or to every
// connection when room is empty. Used by the out-of-band management surface;
// live protocol events go through dispatch.
func (h *Hub) Broadcast(event string, data map[string]interface{}, room string) {
	if room == "" {
		h.deliverAll(event, data)
		return
	}
	h.deliver(event, data, room)
}
