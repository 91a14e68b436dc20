// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/supervisor/services"
)

// ManagementError reports a lifecycle action that conflicts with the current
// gateway state.
type ManagementError struct {
	Action string
	Reason string
}

func (e *ManagementError) Error() string {
	return fmt.Sprintf("cannot %s gateway: %s", e.Action, e.Reason)
}

// HubController starts and stops the hub service under the realtime layer of
// the supervisor tree. Stopping removes the service, which cancels its
// context and disconnects every client; starting adds it back.
type HubController struct {
	tree *SupervisorTree
	hub  services.ContextHub

	mu      sync.Mutex
	token   suture.ServiceToken
	started bool
}

// NewHubController creates a controller. The hub is not started; call Start
// once the tree is serving.
func NewHubController(tree *SupervisorTree, hub services.ContextHub) *HubController {
	return &HubController{tree: tree, hub: hub}
}

// Start adds the hub service to the supervisor tree.
func (c *HubController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return &ManagementError{Action: "start", Reason: "gateway is already running"}
	}
	c.token = c.tree.AddRealtimeService(services.NewHubService(c.hub))
	c.started = true
	logging.Info().Msg("gateway hub service started")
	return nil
}

// Stop removes the hub service and waits for it to terminate.
func (c *HubController) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *HubController) stopLocked() error {
	if !c.started {
		return &ManagementError{Action: "stop", Reason: "gateway is not running"}
	}
	if err := c.tree.RemoveRealtimeService(c.token, c.tree.config.ShutdownTimeout); err != nil {
		return fmt.Errorf("stopping hub service: %w", err)
	}
	c.started = false
	logging.Info().Msg("gateway hub service stopped")
	return nil
}

// Restart stops the hub service if running, then starts it again. All
// clients are disconnected and must reconnect.
func (c *HubController) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		if err := c.stopLocked(); err != nil {
			return err
		}
	}
	c.token = c.tree.AddRealtimeService(services.NewHubService(c.hub))
	c.started = true
	logging.Info().Msg("gateway hub service restarted")
	return nil
}

// Running reports whether the hub service is under supervision.
func (c *HubController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
