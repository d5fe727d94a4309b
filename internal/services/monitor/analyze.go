// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/threat"
)

// behaviorWindow is the trailing window for the data-access volume check;
// recentSlice is the bucket compared against the window average.
const (
	behaviorWindow = time.Hour
	recentSlice    = 5 * time.Minute
	behaviorFloor  = 5
)

// AnalyzeEvent evaluates one audit event against every enabled signature and
// rule plus the behavioral volume check, and converts each match into an
// active alert. Failures anywhere in the pipeline are classified and
// suppressed: monitoring never fails the operation that produced the event.
func (m *Monitor) AnalyzeEvent(ctx context.Context, event *models.AuditEvent, sctx *models.SecurityContext) (alerts []*models.SecurityAlert) {
	defer func() {
		if r := recover(); r != nil {
			m.classifier.HandleError(ctx, fmt.Errorf("event analysis panicked: %v", r), map[string]any{
				"operation": "analyze_event",
				"event_id":  event.ID.String(),
			}, operationFor(sctx))
			alerts = nil
		}
	}()

	if event == nil {
		return nil
	}

	m.mu.Lock()
	m.analyzedCount++
	m.mu.Unlock()

	serialized, err := json.Marshal(event)
	if err != nil {
		m.classifier.HandleError(ctx, fmt.Errorf("serialize event: %w", err), nil, operationFor(sctx))
		return nil
	}
	view := string(serialized)
	now := m.now()

	for _, sig := range m.matchSignatures(view, now) {
		alerts = append(alerts, &models.SecurityAlert{
			ID:          uuid.New(),
			Type:        models.AlertSourceSignature,
			Severity:    sig.Severity,
			Title:       sig.Name,
			Description: fmt.Sprintf("signature %s matched event %s", sig.ID, event.ID),
			EventID:     event.ID.String(),
			SignatureID: sig.ID,
			Resources:   resourcesOf(event),
			Recommended: sig.Mitigations,
			CreatedAt:   now,
		})
	}

	fields := eventFields(event)
	for _, rule := range m.matchRules(fields, now) {
		alerts = append(alerts, &models.SecurityAlert{
			ID:          uuid.New(),
			Type:        models.AlertSourceRule,
			Severity:    rule.AlertLevel,
			Title:       rule.Name,
			Description: fmt.Sprintf("rule %s matched event %s", rule.ID, event.ID),
			EventID:     event.ID.String(),
			RuleID:      rule.ID,
			Resources:   resourcesOf(event),
			CreatedAt:   now,
		})
	}

	if anomaly := m.checkAccessVolume(event, now); anomaly != nil {
		alerts = append(alerts, anomaly)
	}

	for _, alert := range alerts {
		m.storeAndAnnounce(ctx, alert, event)
	}
	return alerts
}

// matchSignatures returns every enabled signature whose pattern matches the
// serialized event, updating trigger statistics.
func (m *Monitor) matchSignatures(view string, now time.Time) []*models.ThreatSignature {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.ThreatSignature
	for _, sig := range m.signatures {
		if !sig.Enabled {
			continue
		}
		re, ok := m.compiled[sig.ID]
		if !ok {
			var err error
			re, err = regexp.Compile(sig.Pattern)
			if err != nil {
				m.logger.Warn("signature pattern does not compile", "signature_id", sig.ID, "error", err)
				sig.Enabled = false
				continue
			}
			m.compiled[sig.ID] = re
		}
		if re.MatchString(view) {
			sig.TriggerCount++
			t := now
			sig.LastTriggered = &t
			matched = append(matched, sig)
		}
	}
	return matched
}

// matchRules returns every enabled rule whose condition holds.
func (m *Monitor) matchRules(fields map[string]string, now time.Time) []*models.MonitoringRule {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.MonitoringRule
	for _, rule := range m.rules {
		if !rule.Enabled {
			continue
		}
		if evalCondition(rule.Condition, fields) {
			rule.TriggerCount++
			t := now
			rule.LastTriggered = &t
			matched = append(matched, rule)
		}
	}
	return matched
}

// checkAccessVolume flags data-access bursts: the last five minutes compared
// against the trailing-hour average per five-minute slice. Quiet systems are
// exempt via a minimum event floor.
func (m *Monitor) checkAccessVolume(event *models.AuditEvent, now time.Time) *models.SecurityAlert {
	if event.Type != models.EventTypeDataAccess {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-behaviorWindow)
	pruned := m.accessTimes[:0]
	for _, ts := range m.accessTimes {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	m.accessTimes = append(pruned, now)

	total := len(m.accessTimes)
	slices := float64(behaviorWindow / recentSlice)
	average := float64(total) / slices

	recent := 0
	recentCutoff := now.Add(-recentSlice)
	for _, ts := range m.accessTimes {
		if ts.After(recentCutoff) {
			recent++
		}
	}

	if recent < behaviorFloor || float64(recent) <= average*m.config.BehaviorMultiplier {
		return nil
	}

	return &models.SecurityAlert{
		ID:       uuid.New(),
		Type:     models.AlertSourceBehavior,
		Severity: models.SeverityMedium,
		Title:    "Data access volume anomaly",
		Description: fmt.Sprintf("%d data-access events in the last %s against a %.1f per-slice hourly average",
			recent, recentSlice, average),
		EventID:   event.ID.String(),
		Resources: resourcesOf(event),
		CreatedAt: now,
	}
}

// storeAndAnnounce stores an alert as active, publishes its notifications,
// optionally auto-mitigates, and writes the audit record describing it.
func (m *Monitor) storeAndAnnounce(ctx context.Context, alert *models.SecurityAlert, source *models.AuditEvent) {
	m.mu.Lock()
	m.activeAlerts[alert.ID] = alert
	m.alertCount++
	m.mu.Unlock()

	m.logger.Warn("security alert raised",
		"alert_id", alert.ID,
		"alert_type", alert.Type,
		"severity", string(alert.Severity),
		"title", alert.Title,
	)

	if m.bus != nil {
		m.bus.Publish(eventbus.Notification{
			Topic: eventbus.TopicAlertCreated,
			At:    alert.CreatedAt,
			Alert: alert,
		})
		if alert.Severity == models.SeverityCritical {
			m.bus.Publish(eventbus.Notification{
				Topic: eventbus.TopicCriticalAlert,
				At:    alert.CreatedAt,
				Alert: alert,
			})
		}
	}

	if m.config.AutoMitigate && m.executor != nil && len(alert.Recommended) > 0 {
		m.autoMitigate(ctx, alert)
	}

	m.writeAlertAudit(ctx, alert, source)
}

// autoMitigate applies an alert's recommended actions with per-action
// isolation.
func (m *Monitor) autoMitigate(ctx context.Context, alert *models.SecurityAlert) {
	serr := &models.SecurityError{
		ID:       alert.ID,
		Type:     models.ErrorTypeSecurity,
		Severity: alert.Severity,
		Message:  alert.Title,
	}
	applied := false
	for _, action := range alert.Recommended {
		if err := m.executeOne(ctx, action, serr); err != nil {
			m.logger.Warn("auto-mitigation action failed", "alert_id", alert.ID, "action", action, "error", err)
			continue
		}
		applied = true
	}
	if applied {
		m.mu.Lock()
		alert.AutoMitigated = true
		m.mu.Unlock()
	}
}

func (m *Monitor) executeOne(ctx context.Context, action string, serr *models.SecurityError) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mitigation panicked: %v", r)
		}
	}()
	return m.executor.Execute(ctx, action, serr)
}

// writeAlertAudit records the alert in the ledger. Logging failures are
// already routed through the classifier by the ledger; here they only get a
// local log line so alert handling continues.
func (m *Monitor) writeAlertAudit(ctx context.Context, alert *models.SecurityAlert, source *models.AuditEvent) {
	if m.audit == nil {
		return
	}

	details := map[string]any{
		"alert_id":   alert.ID.String(),
		"alert_type": alert.Type,
		"severity":   string(alert.Severity),
		"title":      alert.Title,
	}
	if source != nil {
		details["source_event_id"] = source.ID.String()
	}

	auditEvent := &models.AuditEvent{
		Type:            models.EventTypeSecurityAlert,
		Action:          models.AuditActionAlertRaised,
		ResourceType:    "alert",
		ResourceID:      alert.ID.String(),
		Details:         details,
		ComplianceClass: models.ComplianceClassSecurityAudit,
		Success:         true,
	}
	if err := m.audit.LogSecurityEvent(ctx, auditEvent, m.systemCtx); err != nil {
		m.logger.Error("alert audit write failed", "alert_id", alert.ID, "error", err)
	}
}

func resourcesOf(event *models.AuditEvent) []string {
	if event == nil || event.ResourceID == "" {
		return nil
	}
	return []string{event.ResourceType + ":" + event.ResourceID}
}

func operationFor(sctx *models.SecurityContext) threat.Operation {
	if sctx == nil {
		return threat.Operation{}
	}
	return threat.Operation{
		Actor: sctx.UserID,
		IP:    sctx.IPAddress,
		Level: sctx.Level,
	}
}
