// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for the auth and
// workflow core. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	queueDepth      prometheus.Gauge
}

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventboard_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventboard_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventboard_login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventboard_rate_limited_total",
		Help: "Requests denied by the attempt limiter",
	}, []string{"action"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventboard_workflow_transitions_total",
		Help: "Committed workflow transitions",
	}, []string{"workflow", "to"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventboard_notifications_total",
		Help: "Notification deliveries by outcome",
	}, []string{"outcome"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventboard_notification_queue_depth",
		Help: "Notifications waiting for a worker",
	})

	registry.MustRegister(
		requestDuration, requestTotal, logins, rateLimited, transitions, notifications, queueDepth,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		logins:          logins,
		rateLimited:     rateLimited,
		transitions:     transitions,
		notifications:   notifications,
		queueDepth:      queueDepth,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	s := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, s).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, s).Inc()
}

// Login records a login attempt outcome (success, invalid, not_approved, limited).
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// RateLimited records a denied attempt for action.
func (m *Metrics) RateLimited(action string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(action).Inc()
}

// Transition records a committed workflow transition.
func (m *Metrics) Transition(workflow, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(workflow, to).Inc()
}

// Notification records a notification outcome (queued, stored, failed, mailed, mail_failed).
func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// SetQueueDepth reports the notification queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
