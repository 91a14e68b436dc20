// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

// Package sink defines where a client connection delivers received events.
package sink

import (
	"github.com/rs/zerolog"

	"github.com/tourguard/gateway/internal/logging"
)

// Notifier receives every event delivered to a client connection.
// Implementations must not block; slow consumers stall the client's read
// loop.
type Notifier interface {
	Notify(event string, data map[string]interface{})
}

// Func adapts a plain function to the Notifier interface.
type Func func(event string, data map[string]interface{})

// Notify implements Notifier.
func (f Func) Notify(event string, data map[string]interface{}) {
	f(event, data)
}

// LogNotifier writes every delivered event to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier backed by the global logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.Logger()}
}

// NewLogNotifierWith creates a notifier backed by the given logger.
func NewLogNotifierWith(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(event string, data map[string]interface{}) {
	n.logger.Info().
		Str("event", event).
		Interface("data", data).
		Msg("event received")
}
