// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// AuditStore is an in-memory implementation of the ledger store and the
// incident store. Events are kept in append order.
type AuditStore struct {
	mu        sync.RWMutex
	events    []*models.AuditEvent
	incidents []*models.SecurityIncident
}

// NewAuditStore creates an empty store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// PersistAuditEvent appends one event.
func (s *AuditStore) PersistAuditEvent(_ context.Context, event *models.AuditEvent) error {
	clone := *event
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &clone)
	return nil
}

// ListEvents returns events with start <= timestamp < end in append order.
func (s *AuditStore) ListEvents(_ context.Context, start, end time.Time) ([]*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditEvent
	for _, e := range s.events {
		if (start.IsZero() || !e.Timestamp.Before(start)) && e.Timestamp.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// LatestEvent returns the chain head, or nil when empty.
func (s *AuditStore) LatestEvent(_ context.Context) (*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return nil, nil
	}
	return s.events[len(s.events)-1], nil
}

// PurgeEventsBefore tombstones events of a compliance class older than the
// cutoff and reports how many were purged. Tombstones keep their sequence
// and hashes so the chain walk still bridges them.
func (s *AuditStore) PurgeEventsBefore(_ context.Context, complianceClass string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for _, e := range s.events {
		if !e.Purged && e.ComplianceClass == complianceClass && e.Timestamp.Before(cutoff) {
			e.Tombstone()
			purged++
		}
	}
	return purged, nil
}

// PersistIncident appends one incident.
func (s *AuditStore) PersistIncident(_ context.Context, incident *models.SecurityIncident) error {
	clone := *incident
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, &clone)
	return nil
}

// ListIncidentsInRange returns incidents created inside the window.
func (s *AuditStore) ListIncidentsInRange(_ context.Context, start, end time.Time) ([]*models.SecurityIncident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SecurityIncident
	for _, inc := range s.incidents {
		if !inc.CreatedAt.Before(start) && inc.CreatedAt.Before(end) {
			out = append(out, inc)
		}
	}
	return out, nil
}

// EventCount returns the number of stored events.
func (s *AuditStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
