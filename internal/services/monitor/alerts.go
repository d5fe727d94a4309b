// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package monitor

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
)

// GetActiveAlerts returns the active alerts, newest first.
func (m *Monitor) GetActiveAlerts() []*models.SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.SecurityAlert, 0, len(m.activeAlerts))
	for _, a := range m.activeAlerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// GetAlert looks up an alert in either lifecycle state.
func (m *Monitor) GetAlert(id uuid.UUID) (*models.SecurityAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.activeAlerts[id]; ok {
		return a, true
	}
	if a, ok := m.resolvedAlerts[id]; ok {
		return a, true
	}
	return nil, false
}

// ResolveAlert moves an alert from active to resolved, recording who
// resolved it and why. Unknown ids are an error; resolving an already
// resolved alert is also an error, because an alert lives in exactly one of
// the two sets.
func (m *Monitor) ResolveAlert(ctx context.Context, id uuid.UUID, resolvedBy, notes string) error {
	m.mu.Lock()
	alert, ok := m.activeAlerts[id]
	if !ok {
		m.mu.Unlock()
		return errors.NotFound("alert")
	}

	now := m.now()
	alert.ResolvedAt = &now
	alert.ResolvedBy = resolvedBy
	alert.ResolveNotes = notes
	delete(m.activeAlerts, id)
	m.resolvedAlerts[id] = alert
	m.mu.Unlock()

	m.logger.Info("security alert resolved",
		"alert_id", id,
		"resolved_by", resolvedBy,
	)

	if m.bus != nil {
		m.bus.Publish(eventbus.Notification{
			Topic: eventbus.TopicAlertResolved,
			At:    now,
			Alert: alert,
		})
	}

	if m.audit != nil {
		auditEvent := &models.AuditEvent{
			Type:         models.EventTypeSecurityAlert,
			Action:       models.AuditActionAlertResolved,
			ResourceType: "alert",
			ResourceID:   id.String(),
			Details: map[string]any{
				"resolved_by": resolvedBy,
				"notes":       notes,
			},
			ComplianceClass: models.ComplianceClassSecurityAudit,
			Success:         true,
		}
		if err := m.audit.LogSecurityEvent(ctx, auditEvent, m.systemCtx); err != nil {
			m.logger.Error("alert resolution audit write failed", "alert_id", id, "error", err)
		}
	}

	return nil
}

// ActiveAlertCount returns the number of unresolved alerts.
func (m *Monitor) ActiveAlertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeAlerts)
}
