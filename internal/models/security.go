// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity scores errors, incidents, and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the severity ordinal for comparisons (low < medium < high <
// critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ErrorType is the classification taxonomy for caught failures.
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeDataIntegrity  ErrorType = "data_integrity"
	ErrorTypeSecurity       ErrorType = "security"
	ErrorTypeSystem         ErrorType = "system"
)

// SecurityError is a classified, sanitized failure record. Instances are
// immutable after creation and retained in a bounded rolling history.
type SecurityError struct {
	ID            uuid.UUID      `json:"id"`
	Type          ErrorType      `json:"type"`
	Severity      Severity       `json:"severity"`
	Message       string         `json:"message"`
	RawMessage    string         `json:"-"`
	Stack         string         `json:"stack,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	Indicators    []string       `json:"threat_indicators,omitempty"`
	Mitigations   []string       `json:"mitigation_actions,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Actor         string         `json:"actor,omitempty"`
	Escalated     bool           `json:"escalated"`
	Timestamp     time.Time      `json:"timestamp"`
}

// IncidentType classifies security incidents.
type IncidentType string

const (
	IncidentPolicyViolation        IncidentType = "policy_violation"
	IncidentAuthorizationViolation IncidentType = "authorization_violation"
	IncidentAuthenticationFailure  IncidentType = "authentication_failure"
	IncidentDataBreach             IncidentType = "data_breach"
	IncidentAnomalousActivity      IncidentType = "anomalous_activity"
)

// IncidentStatus is the incident lifecycle state.
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusResolved      IncidentStatus = "resolved"
	IncidentStatusFalsePositive IncidentStatus = "false_positive"
)

// SecurityIncident is a detected policy or threat condition recorded for
// compliance.
type SecurityIncident struct {
	ID          uuid.UUID      `json:"id"`
	Type        IncidentType   `json:"type"`
	Severity    Severity       `json:"severity"`
	Details     map[string]any `json:"details,omitempty"`
	Indicators  []string       `json:"threat_indicators,omitempty"`
	Mitigations []string       `json:"mitigation_actions,omitempty"`
	Status      IncidentStatus `json:"status"`
	Escalated   bool           `json:"escalated"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ThreatSignature matches known attack patterns against a serialized view of
// audit events.
type ThreatSignature struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	Pattern       string     `json:"pattern" yaml:"pattern"`
	Severity      Severity   `json:"severity" yaml:"severity"`
	Indicators    []string   `json:"indicators,omitempty" yaml:"indicators"`
	Mitigations   []string   `json:"mitigations,omitempty" yaml:"mitigations"`
	Enabled       bool       `json:"enabled" yaml:"enabled"`
	TriggerCount  int64      `json:"trigger_count" yaml:"-"`
	LastTriggered *time.Time `json:"last_triggered,omitempty" yaml:"-"`
}

// MonitoringRule matches field conditions against audit events.
// Conditions are conjunctions of key=value terms joined by "&&", evaluated
// against the event's field map.
type MonitoringRule struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	Condition     string     `json:"condition" yaml:"condition"`
	AlertLevel    Severity   `json:"alert_level" yaml:"alert_level"`
	Enabled       bool       `json:"enabled" yaml:"enabled"`
	TriggerCount  int64      `json:"trigger_count" yaml:"-"`
	LastTriggered *time.Time `json:"last_triggered,omitempty" yaml:"-"`
}

// SecurityAlert is the monitor's actionable notification. An alert is either
// active or resolved, never both.
type SecurityAlert struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Severity      Severity   `json:"severity"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	EventID       string     `json:"event_id,omitempty"`
	SignatureID   string     `json:"signature_id,omitempty"`
	RuleID        string     `json:"rule_id,omitempty"`
	IncidentID    string     `json:"incident_id,omitempty"`
	Resources     []string   `json:"affected_resources,omitempty"`
	Recommended   []string   `json:"recommended_actions,omitempty"`
	AutoMitigated bool       `json:"auto_mitigated"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	ResolveNotes  string     `json:"resolve_notes,omitempty"`
}

// Alert source type values.
const (
	AlertSourceSignature = "signature"
	AlertSourceRule      = "rule"
	AlertSourceBehavior  = "behavioral_anomaly"
	AlertSourceIncident  = "incident"
)

// SecurityMetrics is a point-in-time snapshot captured on the metrics tick.
type SecurityMetrics struct {
	CapturedAt          time.Time `json:"captured_at"`
	ActiveSessions      int       `json:"active_sessions"`
	RecentErrors        int       `json:"recent_errors"`
	RecentIncidents     int       `json:"recent_incidents"`
	OpenAlerts          int       `json:"open_alerts"`
	ThreatDetectionRate float64   `json:"threat_detection_rate"`
	HealthScore         float64   `json:"health_score"`
	ComplianceScore     float64   `json:"compliance_score"`
}
