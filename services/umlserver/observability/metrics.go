// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and telemetry for umlserver.
//
// # Description
//
// HTTP and pipeline counters are Prometheus collectors registered on a
// per-server registry. OpenTelemetry tracing and metrics are configured by
// Init; when the metric exporter is "prometheus" the OpenTelemetry meters
// are exported through the same registry, so one /metrics endpoint serves
// both.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "aleutian"

const umlSubsystem = "uml"

// Metrics holds the Prometheus collectors for umlserver.
//
// # Fields
//
//   - RequestsTotal: HTTP requests by route, method and status code
//   - RequestDurationSeconds: HTTP latency by route and method
//   - DiagramErrorsTotal: failed extraction/validation calls by endpoint and kind
//   - HistoryOperationsTotal: history save/list/delete by outcome
//   - RateLimitedTotal: requests rejected by the rate limiter
//
// # Thread Safety
//
// All operations are thread-safe. Methods are no-ops on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	DiagramErrorsTotal     *prometheus.CounterVec
	HistoryOperationsTotal *prometheus.CounterVec
	RateLimitedTotal       prometheus.Counter
}

// NewMetrics registers all collectors on reg. A nil reg creates a fresh
// registry that also carries the Go runtime and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: umlSubsystem,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: umlSubsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route", "method"},
		),

		DiagramErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: umlSubsystem,
				Name:      "diagram_errors_total",
				Help:      "Failed diagram calls by endpoint and error kind",
			},
			[]string{"endpoint", "kind"},
		),

		HistoryOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: umlSubsystem,
				Name:      "history_operations_total",
				Help:      "History operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: umlSubsystem,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordRequest records one completed HTTP request.
func (m *Metrics) RecordRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordDiagramError counts a failed extraction or validation.
func (m *Metrics) RecordDiagramError(endpoint, kind string) {
	if m == nil {
		return
	}
	m.DiagramErrorsTotal.WithLabelValues(endpoint, kind).Inc()
}

// RecordHistory counts a history operation.
func (m *Metrics) RecordHistory(op string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.HistoryOperationsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}
