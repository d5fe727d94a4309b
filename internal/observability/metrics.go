// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package observability exposes Prometheus metrics for the security core.
// A Registry holds the instruments; a Bridge feeds them from the internal
// notification bus so services stay free of metrics plumbing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "secanalyzer"

// Registry holds all Prometheus instruments for the application.
type Registry struct {
	// Threat classification
	ErrorsClassifiedTotal *prometheus.CounterVec
	EscalationsTotal      prometheus.Counter

	// Incidents
	IncidentsTotal *prometheus.CounterVec

	// Alerts
	AlertsTotal         *prometheus.CounterVec
	AlertsResolvedTotal prometheus.Counter
	CriticalAlertsTotal prometheus.Counter

	// Posture snapshot gauges, updated on each metrics capture
	ActiveSessions      prometheus.Gauge
	OpenAlerts          prometheus.Gauge
	RecentErrors        prometheus.Gauge
	HealthScore         prometheus.Gauge
	ComplianceScore     prometheus.Gauge
	ThreatDetectionRate prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all instruments initialised and the
// standard Go runtime collectors attached.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}

	r.ErrorsClassifiedTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_classified_total",
			Help:      "Total number of errors classified, by error type and severity",
		},
		[]string{"error_type", "severity"},
	)

	r.EscalationsTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of critical errors escalated",
		},
	)

	r.IncidentsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_total",
			Help:      "Total number of security incidents opened, by incident type and severity",
		},
		[]string{"incident_type", "severity"},
	)

	r.AlertsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of security alerts raised, by source and severity",
		},
		[]string{"source", "severity"},
	)

	r.AlertsResolvedTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_resolved_total",
			Help:      "Total number of security alerts resolved",
		},
	)

	r.CriticalAlertsTotal = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_alerts_total",
			Help:      "Total number of critical severity alerts raised",
		},
	)

	r.ActiveSessions = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active operator sessions at the last capture",
		},
	)

	r.OpenAlerts = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_alerts",
			Help:      "Number of unresolved security alerts at the last capture",
		},
	)

	r.RecentErrors = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recent_errors",
			Help:      "Number of errors classified in the trailing hour at the last capture",
		},
	)

	r.HealthScore = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "security_health_score",
			Help:      "Security health score between 0 and 1",
		},
	)

	r.ComplianceScore = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compliance_score",
			Help:      "Compliance posture score between 0 and 1",
		},
	)

	r.ThreatDetectionRate = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threat_detection_rate",
			Help:      "Ratio of analyzed events that produced alerts",
		},
	)

	return r
}

// PrometheusRegistry returns the underlying registry for custom collectors.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the metrics in exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
