// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
)

// GenerateComplianceReport aggregates events and incidents inside the window
// into summary counts, per-type and per-actor groupings, a set of pass/fail
// compliance dimensions, and the chain verification result.
func (l *Ledger) GenerateComplianceReport(ctx context.Context, reportType string, start, end time.Time, requestedBy string) (*models.ComplianceReport, error) {
	if !end.After(start) {
		return nil, errors.InvalidInput("report window end must be after start")
	}

	events, err := l.store.ListEvents(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list audit events")
	}
	incidents, err := l.store.ListIncidentsInRange(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list incidents")
	}

	report := &models.ComplianceReport{
		ID:              uuid.New(),
		ReportType:      reportType,
		PeriodStart:     start,
		PeriodEnd:       end,
		RequestedBy:     requestedBy,
		GeneratedAt:     l.now(),
		EventsByType:    make(map[string]int),
		EventsByActor:   make(map[string]int),
		TotalIncidents:  len(incidents),
		IncidentsByType: make(map[string]int),
	}

	// Retention tombstones stay in the chain but carry no content, so they
	// are excluded from the aggregations.
	for _, e := range events {
		if e.Purged {
			continue
		}
		report.TotalEvents++
		report.EventsByType[string(e.Type)]++
		actor := e.UserID
		if actor == "" {
			actor = "system"
		}
		report.EventsByActor[actor]++
		if !e.Success {
			report.FailedEvents++
		}
	}

	var criticalIncidents, breachIncidents int
	for _, inc := range incidents {
		report.IncidentsByType[string(inc.Type)]++
		if inc.Severity == models.SeverityCritical {
			criticalIncidents++
		}
		if inc.Type == models.IncidentDataBreach {
			breachIncidents++
		}
	}

	verified, err := l.VerifyAuditTrailIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	report.ChainVerified = verified
	report.ChainLength = len(events)

	report.Statuses = []models.ComplianceStatus{
		{
			Dimension: "ledger_integrity",
			Satisfied: verified,
			Details:   "hash chain link continuity and event digests",
		},
		{
			Dimension: "no_data_breach",
			Satisfied: breachIncidents == 0,
			Details:   fmt.Sprintf("%d data breach incidents in window", breachIncidents),
		},
		{
			Dimension: "no_critical_incidents",
			Satisfied: criticalIncidents == 0,
			Details:   fmt.Sprintf("%d critical incidents in window", criticalIncidents),
		},
		{
			Dimension: "event_attribution",
			Satisfied: unattributedCount(events) == 0,
			Details:   fmt.Sprintf("%d events lack actor or session attribution", unattributedCount(events)),
		},
	}

	satisfied := 0
	for _, s := range report.Statuses {
		if s.Satisfied {
			satisfied++
		}
	}
	report.ComplianceScore = float64(satisfied) / float64(len(report.Statuses))

	report.Recommendations = recommendationsFor(report, incidents)

	l.logger.Info("compliance report generated",
		"report_id", report.ID,
		"report_type", reportType,
		"events", report.TotalEvents,
		"incidents", report.TotalIncidents,
		"score", report.ComplianceScore,
	)
	return report, nil
}

// unattributedCount counts events without actor or session context,
// excluding system-generated events which carry neither.
func unattributedCount(events []*models.AuditEvent) int {
	n := 0
	for _, e := range events {
		if e.Purged || e.Type == models.EventTypeSystem {
			continue
		}
		if e.UserID == "" && e.SessionID == "" {
			n++
		}
	}
	return n
}

// recommendationsFor derives remediation guidance from incident volume and
// failure mix.
func recommendationsFor(report *models.ComplianceReport, incidents []*models.SecurityIncident) []string {
	var recs []string

	if !report.ChainVerified {
		recs = append(recs, "Audit chain verification failed: freeze the ledger and investigate before accepting new evidence.")
	}
	if report.IncidentsByType[string(models.IncidentDataBreach)] > 0 {
		recs = append(recs, "Data breach incidents recorded: initiate the breach response procedure and notify the case supervisor.")
	}
	if report.IncidentsByType[string(models.IncidentAuthenticationFailure)] > 0 {
		recs = append(recs, "Authentication failure floods detected: review operator credentials and consider mandatory rotation.")
	}
	if report.TotalIncidents > 20 {
		recs = append(recs, fmt.Sprintf("High incident volume (%d): review policy thresholds and operator training.", report.TotalIncidents))
	}
	if report.TotalEvents > 0 {
		ratio := float64(report.FailedEvents) / float64(report.TotalEvents)
		if ratio > 0.2 {
			recs = append(recs, fmt.Sprintf("%.0f%% of audited operations failed: investigate recurring failure sources.", ratio*100))
		}
	}

	escalated := 0
	for _, inc := range incidents {
		if inc.Escalated {
			escalated++
		}
	}
	if escalated > 0 {
		recs = append(recs, fmt.Sprintf("%d escalated incidents await review.", escalated))
	}

	if len(recs) == 0 {
		recs = append(recs, "No compliance issues detected in this window.")
	}
	return recs
}
