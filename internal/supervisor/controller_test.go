// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// countingHub tracks how many run sessions it has served.
type countingHub struct {
	runs    atomic.Int64
	running atomic.Bool
}

func (c *countingHub) RunWithContext(ctx context.Context) error {
	c.runs.Add(1)
	c.running.Store(true)
	defer c.running.Store(false)
	<-ctx.Done()
	return ctx.Err()
}

func newTestTree(t *testing.T) *SupervisorTree {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tree, err := NewSupervisorTree(logger, TreeConfig{ShutdownTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() failed: %v", err)
	}
	return tree
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHubControllerLifecycle(t *testing.T) {
	tree := newTestTree(t)
	hub := &countingHub{}
	controller := NewHubController(tree, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	if controller.Running() {
		t.Fatal("Running() = true before Start")
	}

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !controller.Running() {
		t.Error("Running() = false after Start")
	}
	waitUntil(t, func() bool { return hub.running.Load() }, "hub never ran")

	if err := controller.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if controller.Running() {
		t.Error("Running() = true after Stop")
	}
	waitUntil(t, func() bool { return !hub.running.Load() }, "hub still running after Stop")

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor tree did not stop")
	}
}

func TestHubControllerDoubleStart(t *testing.T) {
	tree := newTestTree(t)
	controller := NewHubController(tree, &countingHub{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}

	err := controller.Start(ctx)
	if err == nil {
		t.Fatal("second Start() = nil, want ManagementError")
	}
	mgmtErr, ok := err.(*ManagementError)
	if !ok {
		t.Fatalf("second Start() returned %T, want *ManagementError", err)
	}
	if mgmtErr.Action != "start" {
		t.Errorf("Action = %q, want start", mgmtErr.Action)
	}
}

func TestHubControllerStopWithoutStart(t *testing.T) {
	tree := newTestTree(t)
	controller := NewHubController(tree, &countingHub{})

	err := controller.Stop(context.Background())
	if err == nil {
		t.Fatal("Stop() = nil on a stopped gateway, want ManagementError")
	}
	if _, ok := err.(*ManagementError); !ok {
		t.Fatalf("Stop() returned %T, want *ManagementError", err)
	}
}

func TestHubControllerRestart(t *testing.T) {
	tree := newTestTree(t)
	hub := &countingHub{}
	controller := NewHubController(tree, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	if err := controller.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitUntil(t, func() bool { return hub.runs.Load() == 1 }, "hub did not run")

	if err := controller.Restart(ctx); err != nil {
		t.Fatalf("Restart() failed: %v", err)
	}
	if !controller.Running() {
		t.Error("Running() = false after Restart")
	}
	waitUntil(t, func() bool { return hub.runs.Load() == 2 }, "hub did not run a second session")

	// Restart also starts a stopped gateway.
	if err := controller.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := controller.Restart(ctx); err != nil {
		t.Fatalf("Restart() on stopped gateway failed: %v", err)
	}
	waitUntil(t, func() bool { return hub.runs.Load() == 3 }, "hub did not run after cold restart")
}

func TestManagementErrorMessage(t *testing.T) {
	err := &ManagementError{Action: "start", Reason: "gateway is already running"}
	want := "cannot start gateway: gateway is already running"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
