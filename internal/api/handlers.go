// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tourguard/gateway/internal/auth"
	"github.com/tourguard/gateway/internal/config"
	"github.com/tourguard/gateway/internal/gateway"
	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/supervisor"
	"github.com/tourguard/gateway/internal/validation"
)

// GatewayController starts and stops the hub service under supervision.
// Implemented by the supervisor package.
type GatewayController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Running() bool
}

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	config     *config.Config
	tokens     *auth.Manager
	creds      *auth.AdminCredentials
	hub        *gateway.Hub
	controller GatewayController
}

// NewHandler creates a handler with the given dependencies. controller may be
// nil, in which case management actions other than broadcast are rejected.
func NewHandler(cfg *config.Config, tokens *auth.Manager, creds *auth.AdminCredentials, hub *gateway.Hub, controller GatewayController) *Handler {
	return &Handler{
		config:     cfg,
		tokens:     tokens,
		creds:      creds,
		hub:        hub,
		controller: controller,
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin. An empty Origin bypasses CORS entirely,
	// so it is rejected.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Security.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// bearerToken extracts the credential for a WebSocket handshake. Browsers
// cannot set headers on WebSocket requests, so the token query parameter is
// accepted as a fallback.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// WebSocket authenticates the handshake and hands the connection to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	identity, err := h.tokens.Verify(token)
	if err != nil {
		logging.Warn().
			Str("remote", sanitizeLogValue(r.RemoteAddr)).
			Err(err).
			Msg("WebSocket authentication failed")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := h.hub.Admit(ws, identity)
	if conn == nil {
		_ = ws.Close()
		return
	}

	logging.Info().
		Str("subject", sanitizeLogValue(identity.Subject)).
		Str("role", string(identity.Role)).
		Str("connection_id", conn.ID()).
		Msg("WebSocket client connected")
}

// statusResponse wraps hub introspection with the gateway run state.
type statusResponse struct {
	Status           string         `json:"status"`
	ConnectedClients int            `json:"connectedClients"`
	ActiveRooms      int            `json:"activeRooms"`
	RoomCounts       map[string]int `json:"roomCounts"`
	UptimeSeconds    int64          `json:"uptime"`
}

// Status reports the gateway run state, hub occupancy, and room membership
// counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state := "running"
	if !h.hub.Running() {
		state = "initializing"
	}
	st := h.hub.Status()
	respondOK(w, statusResponse{
		Status:           state,
		ConnectedClients: st.ConnectedClients,
		ActiveRooms:      st.ActiveRooms,
		RoomCounts:       st.RoomCounts,
		UptimeSeconds:    st.UptimeSeconds,
	})
}

// manageRequest is the body of a gateway management call.
type manageRequest struct {
	Action string                 `json:"action" validate:"required,oneof=start stop restart broadcast"`
	Event  string                 `json:"event" validate:"required_if=Action broadcast,omitempty,min=1,max=64"`
	Data   map[string]interface{} `json:"data"`
	Room   string                 `json:"room" validate:"omitempty,max=64"`
}

// Manage applies a lifecycle or broadcast action to the gateway.
func (h *Handler) Manage(w http.ResponseWriter, r *http.Request) {
	var req manageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error(), nil)
		return
	}

	if req.Action == "broadcast" {
		h.hub.Broadcast(req.Event, req.Data, req.Room)
		respondOK(w, map[string]interface{}{
			"action": "broadcast",
			"event":  req.Event,
			"room":   req.Room,
		})
		return
	}

	if h.controller == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Gateway lifecycle management is not available", nil)
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = h.controller.Start(r.Context())
	case "stop":
		err = h.controller.Stop(r.Context())
	case "restart":
		err = h.controller.Restart(r.Context())
	}
	if err != nil {
		var mgmtErr *supervisor.ManagementError
		if errors.As(err, &mgmtErr) {
			respondError(w, http.StatusConflict, "CONFLICT", mgmtErr.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Management action failed", err)
		return
	}

	logging.Info().Str("action", req.Action).Msg("gateway management action applied")
	respondOK(w, map[string]interface{}{
		"action":  req.Action,
		"running": h.controller.Running(),
	})
}

// loginRequest is the body of an admin login call.
type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=1,max=512"`
}

// Login exchanges admin credentials for a management token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", verr.Error(), nil)
		return
	}

	if h.creds == nil || !h.creds.Check(req.Username, req.Password) {
		logging.Warn().
			Str("username", sanitizeLogValue(req.Username)).
			Str("remote", sanitizeLogValue(r.RemoteAddr)).
			Msg("admin login failed")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}

	token, err := h.tokens.Issue(req.Username, auth.RoleAdmin, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err)
		return
	}

	respondOK(w, map[string]interface{}{
		"token":      token,
		"role":       string(auth.RoleAdmin),
		"expires_in": int(h.config.Security.SessionTimeout.Seconds()),
	})
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]string{"status": "alive"})
}

// HealthReady reports readiness to accept connections.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.controller != nil && !h.controller.Running() {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Gateway is not running", nil)
		return
	}
	respondOK(w, map[string]string{"status": "ready"})
}
