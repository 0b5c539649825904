// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the tracker:
// - ingest throughput and rejection reasons per transport
// - API endpoint latency and throughput
// - background worker runs and failures
// - live fleet size per event

var (
	// Ingest Metrics
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_reports_total",
			Help: "Position reports received, by transport and outcome",
		},
		[]string{"transport", "outcome"}, // outcome: "ok", "duplicate", "auth", "event", "rate_limited", "malformed"
	)

	AssistRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_assist_requests_total",
			Help: "Reports received with the assist flag raised",
		},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_auth_failures_total",
			Help: "Failed password checks on the ingest path",
		},
		[]string{"transport"},
	)

	LiveSailors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_live_sailors",
			Help: "Sailors currently present in an event's live table",
		},
		[]string{"eid"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Worker Metrics
	WorkerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_worker_runs_total",
			Help: "Background worker iterations",
		},
		[]string{"worker"}, // "summary", "compress", "midnight"
	)

	WorkerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_worker_errors_total",
			Help: "Background worker iterations that logged an error",
		},
		[]string{"worker"},
	)
)

// RecordReport counts one ingest outcome.
func RecordReport(transport, outcome string) {
	ReportsTotal.WithLabelValues(transport, outcome).Inc()
}

// RecordAPIRequest records metrics for an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(increment bool) {
	if increment {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
