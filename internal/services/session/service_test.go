// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// ============================================================================
// Test Helpers
// ============================================================================

type mockIncidentSink struct {
	mu        sync.Mutex
	incidents []*models.SecurityIncident
}

func (m *mockIncidentSink) RecordIncident(_ context.Context, incident *models.SecurityIncident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, incident)
}

func (m *mockIncidentSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.incidents)
}

func (m *mockIncidentSink) last() *models.SecurityIncident {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.incidents) == 0 {
		return nil
	}
	return m.incidents[len(m.incidents)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestAuthority(t *testing.T) (*Authority, *mockIncidentSink, *fakeClock) {
	t.Helper()
	sink := &mockIncidentSink{}
	clock := newFakeClock()
	auth := NewAuthority(NewMemoryStore(), NewPolicyTable(DefaultPolicies()), sink, DefaultConfig(), nil).
		WithClock(clock.Now)
	return auth, sink, clock
}

// ============================================================================
// Session Lifecycle Tests
// ============================================================================

func TestCreateSession(t *testing.T) {
	auth, _, _ := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleInvestigator}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if sctx.SessionID == uuid.Nil {
		t.Error("expected non-nil session ID")
	}
	if sctx.Level != models.LevelHigh {
		t.Errorf("Level = %v, want %v", sctx.Level, models.LevelHigh)
	}
	if !sctx.HasPermission(models.PermCaseCreate) {
		t.Error("investigator should hold case:create")
	}
	if sctx.HasPermission(models.PermCaseDelete) {
		t.Error("investigator should not hold case:delete")
	}
	if got := auth.ActiveSessionCount(ctx); got != 1 {
		t.Errorf("ActiveSessionCount() = %d, want 1", got)
	}
}

func TestCreateSessionMultipleRoles(t *testing.T) {
	auth, _, _ := newTestAuthority(t)

	sctx, err := auth.CreateSession(context.Background(), "op-2", "Bob",
		[]models.Role{models.RoleViewer, models.RoleAdmin}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Union of permissions, highest level wins.
	if sctx.Level != models.LevelCritical {
		t.Errorf("Level = %v, want %v", sctx.Level, models.LevelCritical)
	}
	if !sctx.HasPermission(models.PermCaseDelete) {
		t.Error("admin role grants case:delete")
	}
}

func TestCreateSessionRejectsUnknownRole(t *testing.T) {
	auth, _, _ := newTestAuthority(t)

	_, err := auth.CreateSession(context.Background(), "op-3", "Eve",
		[]models.Role{models.Role("superuser")}, "password")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestValidateSession(t *testing.T) {
	auth, _, clock := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	clock.Advance(10 * time.Minute)

	got, err := auth.ValidateSession(ctx, sctx.SessionID)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected live session")
	}
	if got.UserID != "op-1" {
		t.Errorf("UserID = %q, want op-1", got.UserID)
	}
}

func TestValidateSessionUnknown(t *testing.T) {
	auth, _, _ := newTestAuthority(t)

	got, err := auth.ValidateSession(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if got != nil {
		t.Error("unknown session should validate to nil")
	}
}

func TestValidateSessionExpired(t *testing.T) {
	auth, _, clock := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	clock.Advance(9 * time.Hour)

	got, err := auth.ValidateSession(ctx, sctx.SessionID)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if got != nil {
		t.Error("expired session should validate to nil")
	}

	// Expiry terminates the session; the live count drops.
	if n := auth.ActiveSessionCount(ctx); n != 0 {
		t.Errorf("ActiveSessionCount() = %d, want 0", n)
	}
}

func TestRefreshSessionExtendsExpiry(t *testing.T) {
	auth, _, clock := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	originalExpiry := sctx.ExpiresAt

	clock.Advance(2 * time.Hour)

	refreshed, err := auth.RefreshSession(ctx, sctx.SessionID)
	if err != nil {
		t.Fatalf("RefreshSession() error = %v", err)
	}
	if refreshed == nil {
		t.Fatal("expected refreshed session")
	}
	if !refreshed.ExpiresAt.After(originalExpiry) {
		t.Errorf("expiry did not move forward: %v -> %v", originalExpiry, refreshed.ExpiresAt)
	}
}

func TestRefreshSessionExpired(t *testing.T) {
	auth, _, clock := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	clock.Advance(9 * time.Hour)

	refreshed, err := auth.RefreshSession(ctx, sctx.SessionID)
	if err != nil {
		t.Fatalf("RefreshSession() error = %v", err)
	}
	if refreshed != nil {
		t.Error("expired session must not be refreshable")
	}
}

func TestTerminateSession(t *testing.T) {
	auth, _, _ := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := auth.TerminateSession(ctx, sctx.SessionID, "logout"); err != nil {
		t.Fatalf("TerminateSession() error = %v", err)
	}

	got, err := auth.ValidateSession(ctx, sctx.SessionID)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if got != nil {
		t.Error("terminated session should validate to nil")
	}

	// Idempotent.
	if err := auth.TerminateSession(ctx, sctx.SessionID, "logout"); err != nil {
		t.Errorf("repeat TerminateSession() error = %v", err)
	}
	if err := auth.TerminateSession(ctx, uuid.New(), "logout"); err != nil {
		t.Errorf("TerminateSession() on unknown session error = %v", err)
	}
}

func TestSessionLimitEvictsOldest(t *testing.T) {
	sink := &mockIncidentSink{}
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.MaxSessionsPerUser = 2
	auth := NewAuthority(NewMemoryStore(), NewPolicyTable(DefaultPolicies()), sink, cfg, nil).
		WithClock(clock.Now)
	ctx := context.Background()

	first, _ := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	clock.Advance(time.Minute)
	auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	clock.Advance(time.Minute)
	auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")

	if n := auth.ActiveSessionCount(ctx); n != 2 {
		t.Errorf("ActiveSessionCount() = %d, want 2", n)
	}
	got, _ := auth.ValidateSession(ctx, first.SessionID)
	if got != nil {
		t.Error("oldest session should have been evicted")
	}
}

// ============================================================================
// Permission Evaluation Tests
// ============================================================================

func TestCheckPermissionAdminCaseDelete(t *testing.T) {
	auth, sink, _ := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAdmin}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if !auth.CheckPermission(ctx, sctx, "case", "delete") {
		t.Error("admin should be allowed case:delete")
	}
	if sink.count() != 0 {
		t.Errorf("incident count = %d, want 0", sink.count())
	}
}

func TestCheckPermissionViewerCaseCreate(t *testing.T) {
	auth, sink, _ := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleViewer}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if auth.CheckPermission(ctx, sctx, "case", "create") {
		t.Error("viewer must be denied case:create")
	}
	if sink.count() != 1 {
		t.Fatalf("incident count = %d, want exactly 1", sink.count())
	}
	if got := sink.last().Type; got != models.IncidentAuthorizationViolation {
		t.Errorf("incident type = %v, want authorization_violation", got)
	}
}

func TestCheckPermissionNoPolicyDefaultDeny(t *testing.T) {
	auth, sink, _ := newTestAuthority(t)
	ctx := context.Background()

	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAdmin}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if auth.CheckPermission(ctx, sctx, "warehouse", "forklift") {
		t.Error("undefined policy must deny")
	}
	if sink.count() != 1 {
		t.Fatalf("incident count = %d, want 1", sink.count())
	}
	if got := sink.last().Type; got != models.IncidentPolicyViolation {
		t.Errorf("incident type = %v, want policy_violation", got)
	}
	if got := sink.last().Severity; got != models.SeverityMedium {
		t.Errorf("incident severity = %v, want medium", got)
	}
}

func TestCheckPermissionLevelFailureIsHighSeverity(t *testing.T) {
	auth, sink, _ := newTestAuthority(t)
	ctx := context.Background()

	// Viewer is LevelLow; case:create requires LevelHigh, so the level
	// check fails before permissions are inspected.
	sctx, err := auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleViewer}, "password")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	auth.CheckPermission(ctx, sctx, "case", "create")

	incident := sink.last()
	if incident == nil {
		t.Fatal("expected an incident")
	}
	if incident.Severity != models.SeverityHigh {
		t.Errorf("severity = %v, want high", incident.Severity)
	}
	if reason := incident.Details["reason"]; reason != "insufficient security level" {
		t.Errorf("reason = %v, want insufficient security level", reason)
	}
}

func TestCheckPermissionNilContext(t *testing.T) {
	auth, sink, _ := newTestAuthority(t)

	if auth.CheckPermission(context.Background(), nil, "case", "read") {
		t.Error("nil context must deny")
	}
	if sink.count() != 1 {
		t.Errorf("incident count = %d, want 1", sink.count())
	}
}

func TestCheckPermissionNilSinkDoesNotPanic(t *testing.T) {
	auth := NewAuthority(NewMemoryStore(), NewPolicyTable(DefaultPolicies()), nil, DefaultConfig(), nil)

	if auth.CheckPermission(context.Background(), nil, "case", "read") {
		t.Error("nil context must deny")
	}
}

// ============================================================================
// Sweeper Tests
// ============================================================================

func TestSweepExpired(t *testing.T) {
	auth, _, clock := newTestAuthority(t)
	ctx := context.Background()

	auth.CreateSession(ctx, "op-1", "Alice", []models.Role{models.RoleAnalyst}, "password")
	clock.Advance(6 * time.Hour)
	auth.CreateSession(ctx, "op-2", "Bob", []models.Role{models.RoleAnalyst}, "password")
	clock.Advance(3 * time.Hour)

	// First session is now past its 8h lifetime, second is not.
	auth.sweepExpired(ctx)

	if n := auth.ActiveSessionCount(ctx); n != 1 {
		t.Errorf("ActiveSessionCount() = %d, want 1", n)
	}
}

func TestStartStopSweeper(t *testing.T) {
	auth, _, _ := newTestAuthority(t)
	ctx := context.Background()

	auth.StartSweeper(ctx)
	auth.StartSweeper(ctx) // idempotent
	auth.Stop()
	auth.Stop() // idempotent
}
