// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

// Package client implements a reconnecting WebSocket client for the gateway.
//
// The connection moves through the states Disconnected, Connecting,
// Authenticating, Active, and Degraded. A transport failure on an Active
// connection moves to Degraded and starts exponential backoff reconnect
// attempts; a refused credential is terminal. Self-service room
// subscriptions are replayed after every successful reconnect.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tourguard/gateway/internal/gateway"
	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/sink"
)

// State is the client connection state.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateActive         State = "active"
	StateDegraded       State = "degraded"
)

// ErrClosed is returned on any operation after Close.
var ErrClosed = errors.New("client: closed")

// ErrNotConnected is returned when an emit has no live connection to use.
var ErrNotConnected = errors.New("client: not connected")

// AuthError reports a handshake the server refused, or an authentication
// acknowledgment that never arrived. An AuthError stops reconnect attempts;
// retrying with the same credential cannot succeed.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Config configures a gateway client.
type Config struct {
	// URL is the gateway base URL (http, https, ws, or wss scheme).
	URL string

	// Token is the bearer credential, presented in the Authorization header.
	Token string

	// Origin is sent as the Origin header; the server rejects handshakes
	// without one.
	Origin string

	// Notifier receives every delivered event. Optional.
	Notifier sink.Notifier

	// AutoReconnect enables backoff reconnect after transport failures.
	AutoReconnect bool

	// MaxReconnectAttempts bounds consecutive attempts; zero means unbounded.
	MaxReconnectAttempts int

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// HeartbeatInterval is the application-level ping period.
	HeartbeatInterval time.Duration

	// AuthTimeout bounds the wait for the authenticated acknowledgment after
	// the transport handshake.
	AuthTimeout time.Duration

	HandshakeTimeout time.Duration
	WriteWait        time.Duration
}

func (c *Config) defaults() {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteWait == 0 {
		c.WriteWait = 10 * time.Second
	}
}

// Client is a gateway connection with automatic reconnection.
//
// Close must not be called from inside the configured Notifier; it waits for
// the read loop to exit.
type Client struct {
	cfg    Config
	wsURL  string
	dialer *websocket.Dialer

	rootCtx context.Context
	cancel  context.CancelFunc

	mu           sync.Mutex
	conn         *websocket.Conn
	state        State
	intentional  bool
	closed       bool
	rooms        map[string]struct{}
	connectionID string
	pingSentAt   time.Time
	lastPong     time.Time
	latency      time.Duration

	// writeMu serializes frame writes between Emit and the heartbeat.
	writeMu sync.Mutex

	recon *reconnector
	wg    sync.WaitGroup
}

// New creates a client. No connection is attempted until Connect.
func New(cfg Config) (*Client, error) {
	cfg.defaults()
	if cfg.URL == "" {
		return nil, errors.New("client: URL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("client: token is required")
	}

	wsURL := strings.Replace(cfg.URL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.TrimSuffix(wsURL, "/") + "/ws"

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		wsURL:   wsURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		rootCtx: ctx,
		cancel:  cancel,
		state:   StateDisconnected,
		rooms:   make(map[string]struct{}),
	}
	c.recon = newReconnector(&c.cfg)
	return c, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID returns the id assigned by the gateway at admission, empty
// until the first successful connect.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Latency returns the most recent heartbeat round-trip time.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// Connect establishes the connection and blocks until the gateway has
// acknowledged authentication. Idempotent while a connection is live or an
// attempt is already in flight, including the reconnect loop's.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil || c.state == StateConnecting || c.state == StateAuthenticating || c.state == StateDegraded {
		c.mu.Unlock()
		return nil
	}
	c.intentional = false
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		c.mu.Lock()
		if c.conn == nil && !c.closed {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// connect performs a single connection attempt: dial, wait for the
// authentication acknowledgment, install the session, replay subscriptions.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &AuthError{Reason: fmt.Sprintf("handshake rejected with HTTP %d", resp.StatusCode), Err: err}
		}
		return fmt.Errorf("dial %s: %w", c.wsURL, err)
	}

	c.mu.Lock()
	c.state = StateAuthenticating
	c.mu.Unlock()

	env, err := c.awaitAuthentication(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = StateActive
	if id, ok := env.Data["connectionId"].(string); ok {
		c.connectionID = id
	}
	c.lastPong = time.Time{}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	c.recon.markConnected()
	c.notify(env)

	for _, room := range rooms {
		if err := c.writeEnvelope(conn, gateway.Envelope{
			Event: gateway.EventJoinRoom,
			Data:  map[string]interface{}{"room": room},
		}); err != nil {
			logging.Warn().Err(err).Str("room", room).Msg("failed to replay room subscription")
		}
	}

	c.wg.Add(2)
	go c.readLoop(conn, done)
	go c.heartbeatLoop(conn, done)

	logging.Info().Str("connection_id", c.ConnectionID()).Msg("gateway connection established")
	return nil
}

// awaitAuthentication reads the first frame, which must be the authenticated
// acknowledgment, within the configured window.
func (c *Client) awaitAuthentication(conn *websocket.Conn) (gateway.Envelope, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.AuthTimeout)); err != nil {
		return gateway.Envelope{}, fmt.Errorf("set auth deadline: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return gateway.Envelope{}, &AuthError{Reason: "no authentication acknowledgment", Err: err}
	}
	env, err := gateway.UnmarshalEnvelope(data)
	if err != nil {
		return gateway.Envelope{}, &AuthError{Reason: "malformed acknowledgment", Err: err}
	}
	if env.Event != gateway.EventAuthenticated {
		reason := fmt.Sprintf("expected %q, got %q", gateway.EventAuthenticated, env.Event)
		if msg, ok := env.Data["message"].(string); ok && env.Event == gateway.EventError {
			reason = msg
		}
		return gateway.Envelope{}, &AuthError{Reason: reason}
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return gateway.Envelope{}, fmt.Errorf("clear auth deadline: %w", err)
	}
	return env, nil
}

// readLoop processes frames until the transport fails, then hands off to the
// reconnect path.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadFailure(err)
			return
		}

		env, err := gateway.UnmarshalEnvelope(data)
		if err != nil {
			continue
		}
		if env.Event == gateway.EventPong {
			c.recordPong()
		}
		c.notify(env)
	}
}

// handleReadFailure transitions out of Active after a transport error and
// schedules reconnection when allowed.
func (c *Client) handleReadFailure(err error) {
	c.mu.Lock()
	c.conn = nil
	if c.intentional {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	if c.cfg.AutoReconnect && c.recon.shouldReconnect() {
		c.state = StateDegraded
		c.wg.Add(1)
		c.mu.Unlock()
		logging.Warn().Err(err).Msg("gateway connection lost, reconnecting")
		go c.reconnectLoop()
		return
	}

	c.state = StateDisconnected
	c.mu.Unlock()
	logging.Warn().Err(err).Msg("gateway connection lost")
}

// reconnectLoop retries with backoff until a connect succeeds, the attempt
// budget is exhausted, the credential is refused, or the client is closed.
// Only one loop runs at a time: it is spawned from the single read loop of
// the failed connection.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if c.closed || c.intentional {
			c.mu.Unlock()
			return
		}
		if !c.recon.shouldReconnect() {
			c.state = StateDisconnected
			c.mu.Unlock()
			logging.Error().Msg("reconnect attempts exhausted")
			return
		}
		delay := c.recon.nextDelay()
		attempt := c.recon.attempt
		c.mu.Unlock()

		logging.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.rootCtx.Done():
			timer.Stop()
			return
		}

		err := c.connect(c.rootCtx)
		if err == nil {
			return
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.mu.Lock()
			if !c.closed {
				c.state = StateDisconnected
			}
			c.mu.Unlock()
			logging.Error().Err(err).Msg("reconnect refused, giving up")
			return
		}
		logging.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
	}
}

// heartbeatLoop sends application-level pings. A missed pong is logged as a
// health signal; the transport read deadline is what actually fails the
// connection.
func (c *Client) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			c.pingSentAt = now
			overdue := !c.lastPong.IsZero() && now.Sub(c.lastPong) > 2*c.cfg.HeartbeatInterval
			c.mu.Unlock()

			if overdue {
				logging.Warn().Msg("heartbeat pong overdue")
			}

			err := c.writeEnvelope(conn, gateway.Envelope{
				Event: gateway.EventPing,
				Data:  map[string]interface{}{"ts": now.UTC().Format(time.RFC3339Nano)},
			})
			if err != nil {
				logging.Warn().Err(err).Msg("heartbeat write failed")
			}
		}
	}
}

func (c *Client) recordPong() {
	now := time.Now()
	c.mu.Lock()
	if !c.pingSentAt.IsZero() {
		c.latency = now.Sub(c.pingSentAt)
	}
	c.lastPong = now
	c.mu.Unlock()
}

func (c *Client) notify(env gateway.Envelope) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Notify(env.Event, env.Data)
	}
}

// Emit sends an event to the gateway.
func (c *Client) Emit(event string, data map[string]interface{}) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeEnvelope(conn, gateway.Envelope{Event: event, Data: data})
}

// JoinRoom records a desired subscription and joins it on the live
// connection. Desired rooms are replayed after every reconnect.
func (c *Client) JoinRoom(room string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.rooms[room] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.writeEnvelope(conn, gateway.Envelope{
		Event: gateway.EventJoinRoom,
		Data:  map[string]interface{}{"room": room},
	})
}

// LeaveRoom removes the subscription and leaves it on the live connection.
func (c *Client) LeaveRoom(room string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	delete(c.rooms, room)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.writeEnvelope(conn, gateway.Envelope{
		Event: gateway.EventLeaveRoom,
		Data:  map[string]interface{}{"room": room},
	})
}

// Close terminates the connection and stops the heartbeat and any pending
// reconnect. It blocks until the background goroutines have exited, and the
// client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.intentional = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.cancel()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.wg.Wait()
	return nil
}

// writeEnvelope serializes and writes one frame under the write lock.
func (c *Client) writeEnvelope(conn *websocket.Conn, env gateway.Envelope) error {
	data, err := gateway.MarshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
