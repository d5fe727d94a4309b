// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package observability

import (
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
)

// Bridge subscribes to the notification bus and updates the Prometheus
// instruments. Handlers run synchronously on the publisher's goroutine, so
// they only touch lock-free prometheus primitives.
type Bridge struct {
	registry *Registry
	subs     []*eventbus.Subscription
}

// NewBridge attaches a registry to the bus and returns the bridge for
// teardown. Call Close during shutdown to detach the handlers.
func NewBridge(registry *Registry, bus *eventbus.Bus) *Bridge {
	b := &Bridge{registry: registry}

	b.subs = append(b.subs,
		bus.Subscribe(eventbus.TopicErrorClassified, b.onErrorClassified),
		bus.Subscribe(eventbus.TopicEscalation, b.onEscalation),
		bus.Subscribe(eventbus.TopicIncidentOpened, b.onIncident),
		bus.Subscribe(eventbus.TopicAlertCreated, b.onAlertCreated),
		bus.Subscribe(eventbus.TopicAlertResolved, b.onAlertResolved),
		bus.Subscribe(eventbus.TopicCriticalAlert, b.onCriticalAlert),
		bus.Subscribe(eventbus.TopicMetricsCaptured, b.onMetrics),
	)

	return b
}

// Close detaches all bus subscriptions. Safe to call more than once.
func (b *Bridge) Close() {
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
}

func (b *Bridge) onErrorClassified(n eventbus.Notification) {
	if n.Error == nil {
		return
	}
	b.registry.ErrorsClassifiedTotal.
		WithLabelValues(string(n.Error.Type), string(n.Error.Severity)).Inc()
}

func (b *Bridge) onEscalation(n eventbus.Notification) {
	if n.Error == nil {
		return
	}
	b.registry.EscalationsTotal.Inc()
}

func (b *Bridge) onIncident(n eventbus.Notification) {
	if n.Incident == nil {
		return
	}
	b.registry.IncidentsTotal.
		WithLabelValues(string(n.Incident.Type), string(n.Incident.Severity)).Inc()
}

func (b *Bridge) onAlertCreated(n eventbus.Notification) {
	if n.Alert == nil {
		return
	}
	b.registry.AlertsTotal.
		WithLabelValues(n.Alert.Type, string(n.Alert.Severity)).Inc()
}

func (b *Bridge) onAlertResolved(n eventbus.Notification) {
	if n.Alert == nil {
		return
	}
	b.registry.AlertsResolvedTotal.Inc()
}

func (b *Bridge) onCriticalAlert(n eventbus.Notification) {
	if n.Alert == nil {
		return
	}
	b.registry.CriticalAlertsTotal.Inc()
}

func (b *Bridge) onMetrics(n eventbus.Notification) {
	snapshot := n.Metrics
	if snapshot == nil {
		return
	}
	b.registry.ActiveSessions.Set(float64(snapshot.ActiveSessions))
	b.registry.OpenAlerts.Set(float64(snapshot.OpenAlerts))
	b.registry.RecentErrors.Set(float64(snapshot.RecentErrors))
	b.registry.HealthScore.Set(snapshot.HealthScore)
	b.registry.ComplianceScore.Set(snapshot.ComplianceScore)
	b.registry.ThreatDetectionRate.Set(snapshot.ThreatDetectionRate)
}
