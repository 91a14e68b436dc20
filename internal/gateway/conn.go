// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tourguard/gateway/internal/auth"
	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/metrics"
)

// transport is the subset of *websocket.Conn the gateway uses. Tests
// substitute an in-memory implementation.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Conn is a single admitted bidirectional connection. The identity and the
// derived topic set are fixed at admission; a role change requires a new
// credential and a reconnect.
type Conn struct {
	id       string
	identity *auth.Identity
	ws       transport
	hub      *Hub
	send     chan Envelope
	limiter  *rate.Limiter
	joinedAt time.Time

	// sendMu guards closed so no goroutine can write to send after the hub
	// has closed it.
	sendMu sync.Mutex
	closed bool
}

// newConn wraps an upgraded transport for admission into the hub.
func newConn(hub *Hub, ws transport, identity *auth.Identity) *Conn {
	return &Conn{
		id:       uuid.New().String(),
		identity: identity,
		ws:       ws,
		hub:      hub,
		send:     make(chan Envelope, hub.cfg.SendBufferSize),
		limiter:  rate.NewLimiter(rate.Limit(hub.cfg.EventRate), hub.cfg.EventBurst),
		joinedAt: time.Now(),
	}
}

// ID returns the opaque connection id generated at admission.
func (c *Conn) ID() string { return c.id }

// Identity returns the verified identity bound to the connection.
func (c *Conn) Identity() *auth.Identity { return c.identity }

// start launches the read and write pumps.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
}

// readPump reads inbound frames, applies the per-connection rate limit, and
// forwards envelopes to the hub for serialized dispatch. Exits on any
// transport error, which unregisters the connection.
func (c *Conn) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- departure{conn: c, reason: "transport_closed"}:
		case <-c.hub.doneCh():
		}
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Str("conn_id", c.id).Msg("failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("conn_id", c.id).Msg("unexpected websocket close")
			}
			return
		}

		env, err := UnmarshalEnvelope(data)
		if err != nil {
			c.trySend(errorEnvelope("Malformed event payload"))
			continue
		}
		if env.Event == "" {
			c.trySend(errorEnvelope("Event name is required"))
			continue
		}

		if !c.limiter.Allow() {
			metrics.EventsThrottled.Inc()
			c.trySend(errorEnvelope("Rate limit exceeded"))
			continue
		}

		select {
		case c.hub.inbound <- submission{conn: c, env: env}:
		case <-c.hub.doneCh():
			return
		}
	}
}

// writePump drains the send queue onto the transport and keeps the
// connection alive with transport-level pings. Exits when the hub closes the
// send channel or a write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the channel.
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := MarshalEnvelope(env)
			if err != nil {
				logging.Error().Err(err).Str("event", env.Event).Msg("failed to marshal outbound event")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues an envelope without blocking. Returns false when the queue
// is full or already closed; the hub's fan-out path evicts such connections.
func (c *Conn) trySend(env Envelope) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		metrics.SendsDropped.Inc()
		return false
	}
}

// closeSend closes the send queue exactly once, signalling the write pump to
// finish. Safe to call from any goroutine.
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
