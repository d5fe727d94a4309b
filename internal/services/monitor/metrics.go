// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package monitor

import (
	"context"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// CaptureMetrics takes a point-in-time snapshot and appends it to the capped
// ring buffer. Called on the metrics tick and available on demand.
func (m *Monitor) CaptureMetrics(ctx context.Context) *models.SecurityMetrics {
	now := m.now()

	recentErrors := m.classifier.RecentErrorCount(time.Hour)
	mix := m.classifier.SeverityMix(time.Hour)

	activeSessions := 0
	if m.sessions != nil {
		activeSessions = m.sessions.ActiveSessionCount(ctx)
	}

	m.mu.Lock()
	openAlerts := len(m.activeAlerts)
	analyzed := m.analyzedCount
	alerted := m.alertCount
	m.mu.Unlock()

	snapshot := &models.SecurityMetrics{
		CapturedAt:          now,
		ActiveSessions:      activeSessions,
		RecentErrors:        recentErrors,
		RecentIncidents:     mix[models.SeverityCritical] + mix[models.SeverityHigh],
		OpenAlerts:          openAlerts,
		ThreatDetectionRate: detectionRate(analyzed, alerted),
		HealthScore:         healthScore(recentErrors, openAlerts, activeSessions, mix),
		ComplianceScore:     complianceScore(openAlerts, mix),
	}

	m.mu.Lock()
	m.metrics = append(m.metrics, snapshot)
	if len(m.metrics) > m.config.MaxMetricsHistory {
		m.metrics = m.metrics[len(m.metrics)-m.config.MaxMetricsHistory:]
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(eventbus.Notification{
			Topic:   eventbus.TopicMetricsCaptured,
			At:      now,
			Metrics: snapshot,
		})
	}

	m.logger.Debug("security metrics captured",
		"active_sessions", snapshot.ActiveSessions,
		"recent_errors", snapshot.RecentErrors,
		"open_alerts", snapshot.OpenAlerts,
		"health_score", snapshot.HealthScore,
	)
	return snapshot
}

// GetSecurityMetrics returns the snapshots captured within the last N hours,
// oldest first.
func (m *Monitor) GetSecurityMetrics(hours int) []*models.SecurityMetrics {
	if hours <= 0 {
		hours = 1
	}
	cutoff := m.now().Add(-time.Duration(hours) * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.SecurityMetrics
	for _, s := range m.metrics {
		if s.CapturedAt.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// detectionRate is the fraction of analyzed events that raised at least one
// alert, over the process lifetime.
func detectionRate(analyzed, alerted uint64) float64 {
	if analyzed == 0 {
		return 0
	}
	rate := float64(alerted) / float64(analyzed)
	if rate > 1 {
		rate = 1
	}
	return rate
}

// healthScore applies fixed threshold subtractions from a base of 1.0,
// floored at 0.0. Not a learned model.
func healthScore(recentErrors, openAlerts, activeSessions int, mix map[models.Severity]int) float64 {
	score := 1.0

	switch {
	case recentErrors > 50:
		score -= 0.3
	case recentErrors > 20:
		score -= 0.2
	case recentErrors > 5:
		score -= 0.1
	}

	if mix[models.SeverityCritical] > 0 {
		score -= 0.3
	} else if mix[models.SeverityHigh] > 0 {
		score -= 0.15
	}

	switch {
	case openAlerts > 10:
		score -= 0.2
	case openAlerts > 0:
		score -= 0.05
	}

	if activeSessions > 100 {
		score -= 0.1
	}

	if score < 0 {
		score = 0
	}
	return score
}

// complianceScore penalizes unresolved alerts and severe recent errors.
func complianceScore(openAlerts int, mix map[models.Severity]int) float64 {
	score := 1.0
	if mix[models.SeverityCritical] > 0 {
		score -= 0.4
	}
	if openAlerts > 5 {
		score -= 0.2
	} else if openAlerts > 0 {
		score -= 0.1
	}
	if score < 0 {
		score = 0
	}
	return score
}
