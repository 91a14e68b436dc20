// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package services

import (
	"context"
)

// ContextHub matches *gateway.Hub's RunWithContext method without importing
// the gateway package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the gateway hub as a supervised service. The hub's
// RunWithContext already follows the suture.Service pattern, so the wrapper
// delegates and contributes a name for logging.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates a hub service wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "gateway-hub",
	}
}

// Serve implements suture.Service. Returns ctx.Err() on normal shutdown.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer. Suture uses this to identify the service
// in log messages.
func (s *HubService) String() string {
	return s.name
}
