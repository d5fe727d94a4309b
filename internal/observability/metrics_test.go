// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/threat"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.ErrorsClassifiedTotal == nil {
		t.Error("ErrorsClassifiedTotal not initialized")
	}
	if r.AlertsTotal == nil {
		t.Error("AlertsTotal not initialized")
	}
	if r.HealthScore == nil {
		t.Error("HealthScore not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestBridgeCountsClassifiedErrors(t *testing.T) {
	registry := NewRegistry()
	bus := eventbus.New()
	bridge := NewBridge(registry, bus)
	defer bridge.Close()

	classifier := threat.NewClassifier(nil, nil, bus, nil)
	classifier.HandleError(context.Background(), errors.New("authentication failed for operator"), nil, threat.Operation{Actor: "o1"})
	classifier.HandleError(context.Background(), errors.New("permission denied on case"), nil, threat.Operation{Actor: "o1"})

	counter, err := registry.ErrorsClassifiedTotal.GetMetricWithLabelValues("authentication", "medium")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	if got := counterValue(t, counter); got != 1 {
		t.Errorf("authentication counter = %v, want 1", got)
	}
}

func TestBridgeCountsEscalations(t *testing.T) {
	registry := NewRegistry()
	bus := eventbus.New()
	bridge := NewBridge(registry, bus)
	defer bridge.Close()

	classifier := threat.NewClassifier(nil, nil, bus, nil)
	classifier.HandleError(context.Background(), errors.New("critical data loss detected"), nil, threat.Operation{Actor: "o1"})

	if got := counterValue(t, registry.EscalationsTotal); got != 1 {
		t.Errorf("escalations = %v, want 1", got)
	}
}

func TestBridgeCountsIncidents(t *testing.T) {
	registry := NewRegistry()
	bus := eventbus.New()
	bridge := NewBridge(registry, bus)
	defer bridge.Close()

	classifier := threat.NewClassifier(nil, nil, bus, nil)
	classifier.RecordIncident(context.Background(), &models.SecurityIncident{
		Type:     models.IncidentAuthorizationViolation,
		Severity: models.SeverityMedium,
	})

	counter, err := registry.IncidentsTotal.GetMetricWithLabelValues("authorization_violation", "medium")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	if got := counterValue(t, counter); got != 1 {
		t.Errorf("incident counter = %v, want 1", got)
	}
}

func TestBridgeTracksAlerts(t *testing.T) {
	registry := NewRegistry()
	bus := eventbus.New()
	bridge := NewBridge(registry, bus)
	defer bridge.Close()

	alert := &models.SecurityAlert{
		ID:       uuid.New(),
		Type:     models.AlertSourceSignature,
		Severity: models.SeverityCritical,
	}
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicAlertCreated, Alert: alert})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicCriticalAlert, Alert: alert})
	bus.Publish(eventbus.Notification{Topic: eventbus.TopicAlertResolved, Alert: alert})

	counter, err := registry.AlertsTotal.GetMetricWithLabelValues("signature", "critical")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	if got := counterValue(t, counter); got != 1 {
		t.Errorf("alerts = %v, want 1", got)
	}
	if got := counterValue(t, registry.CriticalAlertsTotal); got != 1 {
		t.Errorf("critical alerts = %v, want 1", got)
	}
	if got := counterValue(t, registry.AlertsResolvedTotal); got != 1 {
		t.Errorf("resolved alerts = %v, want 1", got)
	}
}

func TestBridgeUpdatesGaugesOnCapture(t *testing.T) {
	registry := NewRegistry()
	bus := eventbus.New()
	bridge := NewBridge(registry, bus)
	defer bridge.Close()

	bus.Publish(eventbus.Notification{
		Topic: eventbus.TopicMetricsCaptured,
		Metrics: &models.SecurityMetrics{
			ActiveSessions:      4,
			OpenAlerts:          2,
			RecentErrors:        9,
			HealthScore:         0.85,
			ComplianceScore:     0.6,
			ThreatDetectionRate: 0.25,
		},
	})

	if got := gaugeValue(t, registry.ActiveSessions); got != 4 {
		t.Errorf("active sessions = %v, want 4", got)
	}
	if got := gaugeValue(t, registry.HealthScore); got != 0.85 {
		t.Errorf("health score = %v, want 0.85", got)
	}
	if got := gaugeValue(t, registry.ThreatDetectionRate); got != 0.25 {
		t.Errorf("detection rate = %v, want 0.25", got)
	}
}

func TestBridgeCloseDetaches(t *testing.T) {
	registry := NewRegistry()
	bus := eventbus.New()
	bridge := NewBridge(registry, bus)
	bridge.Close()
	bridge.Close()

	bus.Publish(eventbus.Notification{
		Topic:   eventbus.TopicMetricsCaptured,
		Metrics: &models.SecurityMetrics{ActiveSessions: 7},
	})

	if got := gaugeValue(t, registry.ActiveSessions); got != 0 {
		t.Errorf("active sessions = %v, want 0 after Close", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	registry := NewRegistry()
	registry.HealthScore.Set(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	registry.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "secanalyzer_security_health_score") {
		t.Error("exposition missing health score metric")
	}
}
