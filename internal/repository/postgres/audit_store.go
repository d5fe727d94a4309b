// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// AuditStore persists hash-chained audit events and security incidents.
// It implements the ledger's store interface and the classifier's incident
// sink store.
type AuditStore struct {
	db     *DB
	logger *logger.Logger
}

// NewAuditStore creates an audit store.
func NewAuditStore(db *DB, log *logger.Logger) *AuditStore {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditStore{
		db:     db,
		logger: log.Named("audit_store"),
	}
}

// EnsureSchema creates the audit tables when absent. Events carry a unique
// sequence so a second writer cannot silently fork the chain.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			sequence BIGINT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			details JSONB,
			correlation_id TEXT NOT NULL,
			compliance_class TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			event_hash CHAR(64) NOT NULL,
			previous_hash CHAR(64) NOT NULL,
			purged BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events (timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events (user_id);

		CREATE TABLE IF NOT EXISTS security_incidents (
			id UUID PRIMARY KEY,
			incident_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			details JSONB,
			indicators JSONB,
			mitigations JSONB,
			status TEXT NOT NULL,
			escalated BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_security_incidents_created ON security_incidents (created_at);
	`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create audit schema")
	}
	return nil
}

// ============================================================================
// Audit Events
// ============================================================================

// PersistAuditEvent appends one event. The unique sequence constraint makes
// a concurrent fork of the chain a hard insert failure.
func (s *AuditStore) PersistAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal event details")
	}

	const query = `
		INSERT INTO audit_events (
			id, sequence, event_type, action, resource_type, resource_id,
			user_id, username, session_id, ip_address, user_agent,
			details, correlation_id, compliance_class, success, timestamp,
			event_hash, previous_hash
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18
		)`

	_, err = s.db.Exec(ctx, query,
		event.ID,
		event.Sequence,
		string(event.Type),
		event.Action,
		event.ResourceType,
		event.ResourceID,
		event.UserID,
		event.Username,
		event.SessionID,
		event.IPAddress,
		event.UserAgent,
		string(detailsJSON),
		event.CorrelationID,
		event.ComplianceClass,
		event.Success,
		event.Timestamp,
		event.EventHash,
		event.PreviousHash,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "insert audit event")
	}
	return nil
}

const eventColumns = `
	id, sequence, event_type, action, resource_type, resource_id,
	user_id, username, session_id, ip_address, user_agent,
	details, correlation_id, compliance_class, success, timestamp,
	event_hash, previous_hash, purged`

// ListEvents returns events with start <= timestamp < end ordered by
// sequence. A zero start means from the beginning.
func (s *AuditStore) ListEvents(ctx context.Context, start, end time.Time) ([]*models.AuditEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM audit_events
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY sequence`

	rows, err := s.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "query audit events")
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate audit events")
	}
	return events, nil
}

// LatestEvent returns the chain head, or nil when the ledger is empty.
func (s *AuditStore) LatestEvent(ctx context.Context) (*models.AuditEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM audit_events
		ORDER BY sequence DESC
		LIMIT 1`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "query latest audit event")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEvent(rows)
}

// PurgeEventsBefore tombstones events older than the cutoff for a compliance
// class: content columns are cleared but sequence and both hashes stay so
// the chain walk still bridges the purged rows. Classes under legal hold are
// never passed here.
func (s *AuditStore) PurgeEventsBefore(ctx context.Context, complianceClass string, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE audit_events SET
			action = '',
			resource_type = '',
			resource_id = '',
			user_id = '',
			username = '',
			session_id = '',
			ip_address = '',
			user_agent = '',
			details = NULL,
			correlation_id = '',
			purged = TRUE
		WHERE compliance_class = $1 AND timestamp < $2 AND NOT purged`

	tag, err := s.db.Exec(ctx, query, complianceClass, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "purge audit events")
	}
	return tag.RowsAffected(), nil
}

func scanEvent(rows pgx.Rows) (*models.AuditEvent, error) {
	var (
		event       models.AuditEvent
		eventType   string
		detailsJSON []byte
	)
	err := rows.Scan(
		&event.ID,
		&event.Sequence,
		&eventType,
		&event.Action,
		&event.ResourceType,
		&event.ResourceID,
		&event.UserID,
		&event.Username,
		&event.SessionID,
		&event.IPAddress,
		&event.UserAgent,
		&detailsJSON,
		&event.CorrelationID,
		&event.ComplianceClass,
		&event.Success,
		&event.Timestamp,
		&event.EventHash,
		&event.PreviousHash,
		&event.Purged,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "scan audit event")
	}
	event.Type = models.EventType(eventType)
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "unmarshal event details")
		}
	}
	return &event, nil
}

// ============================================================================
// Security Incidents
// ============================================================================

// PersistIncident inserts a new incident record.
func (s *AuditStore) PersistIncident(ctx context.Context, incident *models.SecurityIncident) error {
	detailsJSON, err := json.Marshal(incident.Details)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal incident details")
	}
	indicatorsJSON, err := json.Marshal(incident.Indicators)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal incident indicators")
	}
	mitigationsJSON, err := json.Marshal(incident.Mitigations)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal incident mitigations")
	}

	const query = `
		INSERT INTO security_incidents (
			id, incident_type, severity, details, indicators, mitigations,
			status, escalated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.db.Exec(ctx, query,
		incident.ID,
		string(incident.Type),
		string(incident.Severity),
		string(detailsJSON),
		string(indicatorsJSON),
		string(mitigationsJSON),
		string(incident.Status),
		incident.Escalated,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "insert incident")
	}
	return nil
}

// ListIncidentsInRange returns incidents created inside the window, oldest
// first.
func (s *AuditStore) ListIncidentsInRange(ctx context.Context, start, end time.Time) ([]*models.SecurityIncident, error) {
	const query = `
		SELECT id, incident_type, severity, details, indicators, mitigations,
		       status, escalated, created_at, updated_at
		FROM security_incidents
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "query incidents")
	}
	defer rows.Close()

	var incidents []*models.SecurityIncident
	for rows.Next() {
		var (
			incident        models.SecurityIncident
			incidentType    string
			severity        string
			status          string
			detailsJSON     []byte
			indicatorsJSON  []byte
			mitigationsJSON []byte
		)
		err := rows.Scan(
			&incident.ID,
			&incidentType,
			&severity,
			&detailsJSON,
			&indicatorsJSON,
			&mitigationsJSON,
			&status,
			&incident.Escalated,
			&incident.CreatedAt,
			&incident.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan incident")
		}
		incident.Type = models.IncidentType(incidentType)
		incident.Severity = models.Severity(severity)
		incident.Status = models.IncidentStatus(status)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &incident.Details); err != nil {
				return nil, errors.Wrap(err, errors.CodeInternal, "unmarshal incident details")
			}
		}
		if len(indicatorsJSON) > 0 {
			if err := json.Unmarshal(indicatorsJSON, &incident.Indicators); err != nil {
				return nil, errors.Wrap(err, errors.CodeInternal, "unmarshal incident indicators")
			}
		}
		if len(mitigationsJSON) > 0 {
			if err := json.Unmarshal(mitigationsJSON, &incident.Mitigations); err != nil {
				return nil, errors.Wrap(err, errors.CodeInternal, "unmarshal incident mitigations")
			}
		}
		incidents = append(incidents, &incident)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate incidents")
	}
	return incidents, nil
}
