// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package ledger

import (
	"context"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// Store is the narrow persistence interface the ledger writes through. The
// durable record store for cases and evidence lives outside this subsystem;
// the ledger only appends events and reads them back for verification,
// reporting, and export.
type Store interface {
	// PersistAuditEvent appends one event. Events are immutable once
	// persisted.
	PersistAuditEvent(ctx context.Context, event *models.AuditEvent) error

	// ListEvents returns events with start <= timestamp < end, ordered by
	// sequence. A zero start means from the beginning.
	ListEvents(ctx context.Context, start, end time.Time) ([]*models.AuditEvent, error)

	// LatestEvent returns the most recently appended event, or nil when the
	// ledger is empty.
	LatestEvent(ctx context.Context) (*models.AuditEvent, error)

	// ListIncidentsInRange returns incidents created inside the window.
	ListIncidentsInRange(ctx context.Context, start, end time.Time) ([]*models.SecurityIncident, error)
}
