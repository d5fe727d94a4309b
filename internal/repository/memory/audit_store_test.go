// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

func testEvent(action string, ts time.Time, class string) *models.AuditEvent {
	return &models.AuditEvent{
		ID:              uuid.New(),
		Type:            models.EventTypeSystem,
		Action:          action,
		CorrelationID:   uuid.NewString(),
		ComplianceClass: class,
		Success:         true,
		Timestamp:       ts,
	}
}

func TestPersistAndListEvents(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := testEvent("login", base.Add(time.Duration(i)*time.Hour), "internal")
		if err := store.PersistAuditEvent(ctx, ev); err != nil {
			t.Fatalf("PersistAuditEvent() error: %v", err)
		}
	}

	events, err := store.ListEvents(ctx, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ListEvents() returned %d events, want 2", len(events))
	}
	if !events[0].Timestamp.Equal(base) {
		t.Errorf("first event timestamp = %v, want %v", events[0].Timestamp, base)
	}
}

func TestPersistAuditEventClones(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()

	ev := testEvent("seal", time.Now().UTC(), "internal")
	if err := store.PersistAuditEvent(ctx, ev); err != nil {
		t.Fatalf("PersistAuditEvent() error: %v", err)
	}
	ev.Action = "mutated"

	head, err := store.LatestEvent(ctx)
	if err != nil {
		t.Fatalf("LatestEvent() error: %v", err)
	}
	if head.Action != "seal" {
		t.Errorf("stored event mutated through caller pointer: action = %q", head.Action)
	}
}

func TestLatestEventEmpty(t *testing.T) {
	store := NewAuditStore()

	head, err := store.LatestEvent(context.Background())
	if err != nil {
		t.Fatalf("LatestEvent() error: %v", err)
	}
	if head != nil {
		t.Errorf("LatestEvent() on empty store = %+v, want nil", head)
	}
}

func TestPurgeEventsBefore(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	old := testEvent("access", base, "internal")
	recent := testEvent("access", base.AddDate(1, 0, 0), "internal")
	heldOld := testEvent("access", base, "criminal_case")
	for _, ev := range []*models.AuditEvent{old, recent, heldOld} {
		if err := store.PersistAuditEvent(ctx, ev); err != nil {
			t.Fatalf("PersistAuditEvent() error: %v", err)
		}
	}

	purged, err := store.PurgeEventsBefore(ctx, "internal", base.AddDate(0, 6, 0))
	if err != nil {
		t.Fatalf("PurgeEventsBefore() error: %v", err)
	}
	if purged != 1 {
		t.Errorf("PurgeEventsBefore() purged %d, want 1", purged)
	}
	// Tombstones stay in the chain.
	if store.EventCount() != 3 {
		t.Errorf("EventCount() = %d, want 3", store.EventCount())
	}

	events, err := store.ListEvents(ctx, time.Time{}, base.AddDate(10, 0, 0))
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	for _, ev := range events {
		if ev.ComplianceClass == "internal" && ev.Timestamp.Equal(base) {
			if !ev.Purged {
				t.Error("expired event should be tombstoned")
			}
			if ev.Action != "" || ev.UserID != "" || ev.Details != nil {
				t.Errorf("tombstone still carries content: %+v", ev)
			}
		}
		if ev.ComplianceClass == "criminal_case" && ev.Purged {
			t.Error("legal-hold class event must not be tombstoned")
		}
	}

	// A second pass finds nothing new to purge.
	again, err := store.PurgeEventsBefore(ctx, "internal", base.AddDate(0, 6, 0))
	if err != nil {
		t.Fatalf("PurgeEventsBefore() error: %v", err)
	}
	if again != 0 {
		t.Errorf("repeat purge tombstoned %d events, want 0", again)
	}
}

func TestPersistAndListIncidents(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	inc := &models.SecurityIncident{
		ID:        uuid.New(),
		Type:      models.IncidentAuthorizationViolation,
		Severity:  models.SeverityHigh,
		Status:    models.IncidentStatusOpen,
		CreatedAt: base,
		UpdatedAt: base,
	}
	if err := store.PersistIncident(ctx, inc); err != nil {
		t.Fatalf("PersistIncident() error: %v", err)
	}

	got, err := store.ListIncidentsInRange(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListIncidentsInRange() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListIncidentsInRange() returned %d incidents, want 1", len(got))
	}
	if got[0].Type != models.IncidentAuthorizationViolation {
		t.Errorf("incident type = %q, want %q", got[0].Type, models.IncidentAuthorizationViolation)
	}

	outside, err := store.ListIncidentsInRange(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListIncidentsInRange() error: %v", err)
	}
	if len(outside) != 0 {
		t.Errorf("window outside incident returned %d results, want 0", len(outside))
	}
}
