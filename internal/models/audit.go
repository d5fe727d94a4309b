// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit events.
type EventType string

const (
	EventTypeAuthentication   EventType = "authentication"
	EventTypeAuthorization    EventType = "authorization"
	EventTypeDataAccess       EventType = "data_access"
	EventTypeDataModification EventType = "data_modification"
	EventTypeCaseManagement   EventType = "case_management"
	EventTypeEvidenceHandling EventType = "evidence_handling"
	EventTypeSecurityAlert    EventType = "security_alert"
	EventTypeExport           EventType = "export"
	EventTypeSystem           EventType = "system"
)

// Audit actions.
const (
	AuditActionLogin         = "login"
	AuditActionLoginFailed   = "login_failed"
	AuditActionLogout        = "logout"
	AuditActionSessionExpire = "session_expired"
	AuditActionCreate        = "create"
	AuditActionRead          = "read"
	AuditActionUpdate        = "update"
	AuditActionDelete        = "delete"
	AuditActionExport        = "export"
	AuditActionAlertRaised   = "alert_raised"
	AuditActionAlertResolved = "alert_resolved"
)

// Compliance classes. Each class maps to a retention period in configuration.
const (
	ComplianceClassCriminalCase  = "criminal_case"
	ComplianceClassCivilCase     = "civil_case"
	ComplianceClassInternal      = "internal"
	ComplianceClassSecurityAudit = "security_audit"
)

// GenesisHash links the first event of the ledger.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AuditEvent is one immutable, hash-chained entry in the audit ledger.
// EventHash and PreviousHash are set exactly once by the ledger; events are
// append-only and never edited after persistence. The single sanctioned
// exception is retention: an expired event is reduced to a tombstone that
// keeps its sequence and both hashes so the chain stays walkable, with the
// content fields cleared and Purged set.
type AuditEvent struct {
	ID              uuid.UUID      `json:"id"`
	Sequence        uint64         `json:"sequence"`
	Type            EventType      `json:"event_type"`
	Action          string         `json:"action"`
	ResourceType    string         `json:"resource_type,omitempty"`
	ResourceID      string         `json:"resource_id,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	Username        string         `json:"username,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	IPAddress       string         `json:"ip_address,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	CorrelationID   string         `json:"correlation_id"`
	ComplianceClass string         `json:"compliance_class,omitempty"`
	Success         bool           `json:"success"`
	Timestamp       time.Time      `json:"timestamp"`
	EventHash       string         `json:"event_hash"`
	PreviousHash    string         `json:"previous_hash"`
	Purged          bool           `json:"purged,omitempty"`
}

// Tombstone clears an event's content for retention purging while keeping
// the fields the chain walk depends on.
func (e *AuditEvent) Tombstone() {
	e.Action = ""
	e.ResourceType = ""
	e.ResourceID = ""
	e.UserID = ""
	e.Username = ""
	e.SessionID = ""
	e.IPAddress = ""
	e.UserAgent = ""
	e.Details = nil
	e.CorrelationID = ""
	e.Purged = true
}

// RetentionPolicy maps a compliance class to how long its records are kept.
type RetentionPolicy struct {
	Class     string        `json:"class" yaml:"class" mapstructure:"class"`
	Duration  time.Duration `json:"duration" yaml:"duration" mapstructure:"duration"`
	LegalHold bool          `json:"legal_hold" yaml:"legal_hold" mapstructure:"legal_hold"`
}

// ComplianceStatus is one pass/fail dimension of a compliance report.
type ComplianceStatus struct {
	Dimension string `json:"dimension"`
	Satisfied bool   `json:"satisfied"`
	Details   string `json:"details,omitempty"`
}

// ComplianceReport summarises ledger activity and posture over a window.
type ComplianceReport struct {
	ID              uuid.UUID          `json:"id"`
	ReportType      string             `json:"report_type"`
	PeriodStart     time.Time          `json:"period_start"`
	PeriodEnd       time.Time          `json:"period_end"`
	RequestedBy     string             `json:"requested_by"`
	GeneratedAt     time.Time          `json:"generated_at"`
	TotalEvents     int                `json:"total_events"`
	EventsByType    map[string]int     `json:"events_by_type"`
	EventsByActor   map[string]int     `json:"events_by_actor"`
	FailedEvents    int                `json:"failed_events"`
	TotalIncidents  int                `json:"total_incidents"`
	IncidentsByType map[string]int     `json:"incidents_by_type"`
	Statuses        []ComplianceStatus `json:"statuses"`
	ComplianceScore float64            `json:"compliance_score"`
	Recommendations []string           `json:"recommendations"`
	ChainVerified   bool               `json:"chain_verified"`
	ChainLength     int                `json:"chain_length"`
}

// Export formats accepted by the ledger's export operation.
const (
	ExportFormatJSONL = "jsonl"
	ExportFormatCSV   = "csv"
	ExportFormatHTML  = "html"
)
