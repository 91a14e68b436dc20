// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

// Package main is the entry point for the TourGuard gateway server.
//
// TourGuard is a real-time alert distribution gateway for a tourist-safety
// platform. Tourists, field authorities, and administrators connect over
// authenticated WebSockets; the gateway groups them into topic rooms by role
// and identity, authorizes every inbound event against a central policy, and
// fans events out to the relevant rooms.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: settings from environment variables and config files (Koanf v2)
//  2. Authentication: JWT verifier and bcrypt admin credentials
//  3. Authorization: embedded casbin policy mapping roles to event names
//  4. Gateway hub: connection registry, topic rooms, and event fan-out
//  5. HTTP server: WebSocket upgrade, management API, health, and metrics
//
// The hub and the HTTP server run as supervised services in a suture tree,
// so a hub crash restarts under supervision without taking down the
// management surface.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (JWT_SECRET, HTTP_PORT, ALLOWED_ORIGINS, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// Required for production:
//   - JWT_SECRET: 32+ character secret for token signing
//   - ALLOWED_ORIGINS: comma-separated Origin allow-list for WebSocket upgrades
//
// Optional admin login endpoint:
//   - ADMIN_USERNAME: admin username
//   - ADMIN_PASSWORD: admin password, plaintext or bcrypt hash
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, closes every WebSocket with a close frame, and
// waits for in-flight requests to complete (10s timeout).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tourguard/gateway/internal/api"
	"github.com/tourguard/gateway/internal/auth"
	"github.com/tourguard/gateway/internal/config"
	"github.com/tourguard/gateway/internal/gateway"
	"github.com/tourguard/gateway/internal/logging"
	"github.com/tourguard/gateway/internal/supervisor"
	"github.com/tourguard/gateway/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Msg("Starting TourGuard gateway")

	tokens, err := auth.NewManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	creds, err := auth.NewAdminCredentials(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize admin credentials")
	}
	if creds == nil {
		logging.Warn().Msg("Admin credentials not configured, login endpoint disabled")
	}

	policy, err := gateway.NewPolicy()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load authorization policy")
	}

	hub := gateway.NewHub(cfg.Gateway, policy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	controller := supervisor.NewHubController(tree, hub)

	handler := api.NewHandler(cfg, tokens, creds, hub, controller)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	// The hub joins the tree once the supervisor is serving.
	if err := controller.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start gateway hub")
	}

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Gateway stopped gracefully")
}
