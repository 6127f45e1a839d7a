// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the studio
// service.
//
// # Description
//
// Instruments cover the edit workflow and the direct generation
// endpoints: request counters, latency histograms, iteration counts,
// and SSE stream gauges. Everything registers on the default registry
// exactly once; the /metrics endpoint serves it via promhttp.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking. The recording helpers are additionally nil-safe so handlers
// constructed without metrics (tests) record nothing.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "snapstudio"

// Subsystem for the HTTP service metrics
const studioSubsystem = "studio"

// Endpoint labels metric series by API operation.
type Endpoint string

const (
	EndpointAgenticEdit   Endpoint = "agentic_edit"
	EndpointInpaint       Endpoint = "inpaint"
	EndpointImageGenerate Endpoint = "image_generate"
	EndpointTextGenerate  Endpoint = "text_generate"
	EndpointHistory       Endpoint = "history"
	EndpointEcho          Endpoint = "echo"
)

// ErrorCode labels error series by failure class.
type ErrorCode string

const (
	// ErrorCodeValidation covers malformed or out-of-bounds request bodies.
	ErrorCodeValidation ErrorCode = "validation"
	// ErrorCodeDecode covers image payloads that cannot be decoded.
	ErrorCodeDecode ErrorCode = "decode"
	// ErrorCodeModel covers upstream model call failures.
	ErrorCodeModel ErrorCode = "model"
	// ErrorCodeCanceled covers client disconnects and context timeouts.
	ErrorCodeCanceled ErrorCode = "canceled"
	// ErrorCodeInternal covers everything else.
	ErrorCodeInternal ErrorCode = "internal"
)

// Request status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all Prometheus metrics for the studio service.
//
// # Fields
//
//   - RequestsTotal: Counter of API requests by endpoint and status
//   - RequestDurationSeconds: Histogram of end-to-end request latency
//   - EditIterations: Histogram of generation calls per completed workflow
//   - ActiveStreams: Gauge of currently open SSE connections
//   - ErrorsTotal: Counter of failures by endpoint and error class
//   - KeepAlivesTotal: Counter of SSE keep-alive pings sent
//   - ClientDisconnectsTotal: Counter of client disconnects mid-stream
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// RequestsTotal counts API requests.
	// Labels: endpoint, status (ok, error)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures end-to-end latency. Edit
	// workflows span several model calls, hence the wide buckets.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// EditIterations counts generation calls per completed workflow.
	EditIterations prometheus.Histogram

	// ActiveStreams tracks currently open SSE connections.
	// Labels: endpoint (agentic_edit, inpaint)
	ActiveStreams *prometheus.GaugeVec

	// ErrorsTotal counts failures.
	// Labels: endpoint, error_code (validation, decode, model, canceled, internal)
	ErrorsTotal *prometheus.CounterVec

	// KeepAlivesTotal counts keep-alive pings sent on open streams.
	// Labels: endpoint
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts clients that dropped mid-stream.
	// Labels: endpoint
	ClientDisconnectsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance. Initialized by InitMetrics().
var DefaultMetrics *Metrics

var metricsOnce sync.Once

// InitMetrics initializes and registers the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics on the default registry.
// Safe to call more than once; registration happens on the first call
// only. Call at application startup, before serving /metrics.
//
// # Outputs
//
//   - *Metrics: The initialized singleton.
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		DefaultMetrics = newMetrics()
	})
	return DefaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "requests_total",
			Help:      "API requests by endpoint and status.",
		}, []string{"endpoint", "status"}),

		RequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency in seconds.",
			Buckets:   []float64{0.05, 0.2, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"endpoint"}),

		EditIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "edit_iterations",
			Help:      "Generation calls per completed edit workflow.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}),

		ActiveStreams: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "active_streams",
			Help:      "Currently open SSE connections by endpoint.",
		}, []string{"endpoint"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "errors_total",
			Help:      "Request failures by endpoint and error class.",
		}, []string{"endpoint", "error_code"}),

		KeepAlivesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "keepalives_total",
			Help:      "SSE keep-alive pings sent by endpoint.",
		}, []string{"endpoint"}),

		ClientDisconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "client_disconnects_total",
			Help:      "Clients that dropped during streaming by endpoint.",
		}, []string{"endpoint"}),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordRequest counts one finished request and observes its latency.
func (m *Metrics) RecordRequest(endpoint Endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
	m.RequestDurationSeconds.WithLabelValues(string(endpoint)).Observe(duration.Seconds())
}

// RecordIterations observes the generation calls of one completed
// workflow.
func (m *Metrics) RecordIterations(n int) {
	if m == nil {
		return
	}
	m.EditIterations.Observe(float64(n))
}

// RecordError counts one failure.
func (m *Metrics) RecordError(endpoint Endpoint, code ErrorCode) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// StreamOpened marks one SSE connection open.
func (m *Metrics) StreamOpened(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamClosed marks one SSE connection closed.
func (m *Metrics) StreamClosed(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordKeepAlive counts one keep-alive ping.
func (m *Metrics) RecordKeepAlive(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordDisconnect counts one client dropped mid-stream.
func (m *Metrics) RecordDisconnect(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}
