// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

// Package metrics provides Prometheus instrumentation for the gateway:
// connection population, per-event authorization outcomes, fan-out delivery
// volume, and API request latency. Exposed on /metrics via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks the live WebSocket connection population.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Current number of admitted WebSocket connections",
		},
	)

	// EventsTotal counts inbound events by name and authorization result.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_total",
			Help: "Total inbound events by name and authorization result",
		},
		[]string{"event", "result"}, // result: allowed, denied, unknown
	)

	// EventsThrottled counts inbound events refused by the per-connection
	// rate limiter.
	EventsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_events_throttled_total",
			Help: "Total inbound events dropped by per-connection rate limiting",
		},
	)

	// DeliveriesTotal counts fan-out deliveries by outbound event name.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_deliveries_total",
			Help: "Total events delivered to subscribers by event name",
		},
		[]string{"event"},
	)

	// SendsDropped counts deliveries lost to full or closed send queues.
	SendsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_sends_dropped_total",
			Help: "Total deliveries dropped due to a full or closed send queue",
		},
	)

	// APIRequestsTotal counts HTTP API requests.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration observes HTTP API request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIActiveRequests tracks in-flight API requests.
	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
