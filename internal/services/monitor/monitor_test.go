// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package monitor

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/threat"
)

// ============================================================================
// Test Helpers
// ============================================================================

type mockAuditSink struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (m *mockAuditSink) LogSecurityEvent(_ context.Context, event *models.AuditEvent, _ *models.SecurityContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockAuditSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type staticSessions int

func (s staticSessions) ActiveSessionCount(context.Context) int { return int(s) }

func newTestMonitor() (*Monitor, *mockAuditSink, *eventbus.Bus) {
	classifier := threat.NewClassifier(nil, nil, nil, nil)
	audit := &mockAuditSink{}
	bus := eventbus.New()
	m := New(classifier, audit, staticSessions(3), nil, bus, systemContext(), DefaultConfig(), nil)
	return m, audit, bus
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func systemContext() *models.SecurityContext {
	return &models.SecurityContext{
		SessionID:   uuid.New(),
		UserID:      "system",
		Username:    "system",
		Roles:       []models.Role{models.RoleAdmin},
		Permissions: models.PermissionsForRoles([]models.Role{models.RoleAdmin}),
		Level:       models.LevelCritical,
	}
}

func accessEvent(details map[string]any) *models.AuditEvent {
	return &models.AuditEvent{
		ID:           uuid.New(),
		Type:         models.EventTypeDataAccess,
		Action:       models.AuditActionRead,
		ResourceType: "evidence",
		ResourceID:   "EV-7",
		Details:      details,
		Success:      true,
		Timestamp:    time.Now().UTC(),
	}
}

// ============================================================================
// Event Analysis Tests
// ============================================================================

func TestAnalyzeEventSQLInjectionSignature(t *testing.T) {
	m, audit, _ := newTestMonitor()

	event := accessEvent(map[string]any{
		"query": "name' union select password from operators --",
	})
	alerts := m.AnalyzeEvent(context.Background(), event, systemContext())

	var sqlAlert *models.SecurityAlert
	for _, a := range alerts {
		if a.SignatureID == "sig-sql-injection" {
			sqlAlert = a
		}
	}
	if sqlAlert == nil {
		t.Fatal("expected the SQL injection signature to fire")
	}
	if sqlAlert.Severity != models.SeverityHigh {
		t.Errorf("Severity = %v, want high", sqlAlert.Severity)
	}
	if m.ActiveAlertCount() == 0 {
		t.Error("alert should be stored active")
	}
	// Every raised alert produces an audit record.
	if audit.count() != len(alerts) {
		t.Errorf("audit events = %d, want %d", audit.count(), len(alerts))
	}
}

func TestAnalyzeEventCleanEvent(t *testing.T) {
	m, _, _ := newTestMonitor()

	event := accessEvent(map[string]any{"query": "open case file"})
	if alerts := m.AnalyzeEvent(context.Background(), event, systemContext()); len(alerts) != 0 {
		t.Errorf("alerts = %d, want 0 for a clean event", len(alerts))
	}
}

func TestAnalyzeEventRuleMatch(t *testing.T) {
	m, _, _ := newTestMonitor()

	event := &models.AuditEvent{
		ID:        uuid.New(),
		Type:      models.EventTypeAuthentication,
		Action:    models.AuditActionLoginFailed,
		Success:   false,
		Timestamp: time.Now().UTC(),
	}
	alerts := m.AnalyzeEvent(context.Background(), event, nil)

	var ruleAlert *models.SecurityAlert
	for _, a := range alerts {
		if a.RuleID == "rule-failed-login" {
			ruleAlert = a
		}
	}
	if ruleAlert == nil {
		t.Fatal("expected the failed-login rule to fire")
	}
	if ruleAlert.Severity != models.SeverityMedium {
		t.Errorf("Severity = %v, want medium", ruleAlert.Severity)
	}
}

func TestAnalyzeEventDisabledSignature(t *testing.T) {
	m, _, _ := newTestMonitor()

	sigs := DefaultThreatSignatures()
	for _, s := range sigs {
		s.Enabled = false
	}
	m.SetSignatures(sigs)
	m.SetRules(nil)

	event := accessEvent(map[string]any{"query": "union select 1"})
	if alerts := m.AnalyzeEvent(context.Background(), event, nil); len(alerts) != 0 {
		t.Errorf("alerts = %d, want 0 with all signatures disabled", len(alerts))
	}
}

func TestAnalyzeEventCriticalNotification(t *testing.T) {
	m, _, bus := newTestMonitor()

	var created, critical int
	bus.Subscribe(eventbus.TopicAlertCreated, func(eventbus.Notification) { created++ })
	bus.Subscribe(eventbus.TopicCriticalAlert, func(eventbus.Notification) { critical++ })

	event := accessEvent(map[string]any{
		"command": "; rm -rf /var/lib/evidence",
	})
	alerts := m.AnalyzeEvent(context.Background(), event, nil)

	if len(alerts) == 0 {
		t.Fatal("expected the command injection signature to fire")
	}
	if created == 0 {
		t.Error("expected alert.created notifications")
	}
	if critical == 0 {
		t.Error("expected a distinct critical notification")
	}
}

func TestAnalyzeEventBehavioralAnomaly(t *testing.T) {
	m, _, _ := newTestMonitor()
	m.SetRules(nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	current := base
	m.WithClock(func() time.Time { return current })

	// A burst of data-access events inside one five-minute slice with no
	// prior history exceeds 3x the hourly average.
	var last []*models.SecurityAlert
	for i := 0; i < 12; i++ {
		current = current.Add(10 * time.Second)
		last = m.AnalyzeEvent(ctx, accessEvent(map[string]any{"n": i}), nil)
	}

	var anomaly *models.SecurityAlert
	for _, a := range last {
		if a.Type == models.AlertSourceBehavior {
			anomaly = a
		}
	}
	if anomaly == nil {
		t.Fatal("expected a behavioral anomaly alert")
	}
	if anomaly.Severity != models.SeverityMedium {
		t.Errorf("Severity = %v, want medium", anomaly.Severity)
	}
}

func TestAnalyzeEventNil(t *testing.T) {
	m, _, _ := newTestMonitor()
	if alerts := m.AnalyzeEvent(context.Background(), nil, nil); alerts != nil {
		t.Errorf("alerts = %v, want nil", alerts)
	}
}

// ============================================================================
// Alert Lifecycle Tests
// ============================================================================

func TestResolveAlert(t *testing.T) {
	m, audit, bus := newTestMonitor()

	var resolved int
	bus.Subscribe(eventbus.TopicAlertResolved, func(eventbus.Notification) { resolved++ })

	event := accessEvent(map[string]any{"query": "union select secret"})
	alerts := m.AnalyzeEvent(context.Background(), event, nil)
	if len(alerts) == 0 {
		t.Fatal("expected at least one alert")
	}
	id := alerts[0].ID
	auditBefore := audit.count()

	if err := m.ResolveAlert(context.Background(), id, "op-1", "confirmed benign"); err != nil {
		t.Fatalf("ResolveAlert() error = %v", err)
	}

	for _, a := range m.GetActiveAlerts() {
		if a.ID == id {
			t.Error("resolved alert still listed active")
		}
	}
	got, ok := m.GetAlert(id)
	if !ok {
		t.Fatal("resolved alert should still be retrievable")
	}
	if got.ResolvedAt == nil || got.ResolvedBy != "op-1" {
		t.Error("resolution metadata not recorded")
	}
	if resolved != 1 {
		t.Errorf("resolved notifications = %d, want 1", resolved)
	}
	if audit.count() != auditBefore+1 {
		t.Error("alert resolution should be audited")
	}

	// An alert lives in at most one lifecycle state.
	if err := m.ResolveAlert(context.Background(), id, "op-1", ""); !errors.IsNotFound(err) {
		t.Errorf("second resolve: expected not found, got %v", err)
	}
}

func TestResolveUnknownAlert(t *testing.T) {
	m, _, _ := newTestMonitor()

	err := m.ResolveAlert(context.Background(), uuid.New(), "op-1", "")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetActiveAlertsOrdering(t *testing.T) {
	m, _, _ := newTestMonitor()
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	current := base
	m.WithClock(func() time.Time { return current })

	m.AnalyzeEvent(ctx, accessEvent(map[string]any{"query": "union select a"}), nil)
	current = current.Add(time.Minute)
	m.AnalyzeEvent(ctx, accessEvent(map[string]any{"query": "union select b"}), nil)

	alerts := m.GetActiveAlerts()
	if len(alerts) < 2 {
		t.Fatalf("alerts = %d, want >= 2", len(alerts))
	}
	if alerts[0].CreatedAt.Before(alerts[1].CreatedAt) {
		t.Error("active alerts should be newest first")
	}
}

// ============================================================================
// Metrics Tests
// ============================================================================

func TestCaptureMetrics(t *testing.T) {
	m, _, bus := newTestMonitor()

	var captured int
	bus.Subscribe(eventbus.TopicMetricsCaptured, func(eventbus.Notification) { captured++ })

	snapshot := m.CaptureMetrics(context.Background())
	if snapshot.ActiveSessions != 3 {
		t.Errorf("ActiveSessions = %d, want 3", snapshot.ActiveSessions)
	}
	if snapshot.HealthScore != 1.0 {
		t.Errorf("HealthScore = %v, want 1.0 on a quiet system", snapshot.HealthScore)
	}
	if captured != 1 {
		t.Errorf("metrics notifications = %d, want 1", captured)
	}

	if got := m.GetSecurityMetrics(1); len(got) != 1 {
		t.Errorf("GetSecurityMetrics(1) = %d snapshots, want 1", len(got))
	}
}

func TestMetricsRingBufferCapped(t *testing.T) {
	classifier := threat.NewClassifier(nil, nil, nil, nil)
	cfg := DefaultConfig()
	cfg.MaxMetricsHistory = 10
	m := New(classifier, nil, nil, nil, nil, nil, cfg, nil)

	for i := 0; i < 25; i++ {
		m.CaptureMetrics(context.Background())
	}

	m.mu.Lock()
	n := len(m.metrics)
	m.mu.Unlock()
	if n != 10 {
		t.Errorf("metrics history = %d, want 10", n)
	}
}

func TestHealthScoreDegrades(t *testing.T) {
	m, _, _ := newTestMonitor()

	// Raise an alert so the open-alert penalty applies.
	m.AnalyzeEvent(context.Background(), accessEvent(map[string]any{"query": "union select x"}), nil)

	snapshot := m.CaptureMetrics(context.Background())
	if snapshot.HealthScore >= 1.0 {
		t.Errorf("HealthScore = %v, want < 1.0 with open alerts", snapshot.HealthScore)
	}
	if snapshot.HealthScore < 0 {
		t.Errorf("HealthScore = %v, floored at 0", snapshot.HealthScore)
	}
}

func TestHealthScoreFloor(t *testing.T) {
	mix := map[models.Severity]int{models.SeverityCritical: 5}
	if got := healthScore(100, 20, 200, mix); got != 0 {
		t.Errorf("healthScore = %v, want 0", got)
	}
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestStartStopIdempotent(t *testing.T) {
	m, _, _ := newTestMonitor()
	ctx := context.Background()

	m.Stop() // before start: no-op
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()
}

func TestStopCancelsTicks(t *testing.T) {
	classifier := threat.NewClassifier(nil, nil, nil, nil)
	cfg := DefaultConfig()
	cfg.MonitorInterval = 5 * time.Millisecond
	cfg.MetricsInterval = 5 * time.Millisecond
	m := New(classifier, nil, nil, nil, nil, nil, cfg, nil)

	m.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	m.mu.Lock()
	after := len(m.metrics)
	m.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	m.mu.Lock()
	final := len(m.metrics)
	m.mu.Unlock()

	if final != after {
		t.Errorf("metrics captured after Stop: %d -> %d", after, final)
	}
}

// ============================================================================
// Signature Loading Tests
// ============================================================================

func TestLoadSignatureFileRejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/signatures.yaml"

	content := `signatures:
  - id: sig-broken
    name: Broken
    pattern: "([unclosed"
    severity: high
    enabled: true
`
	if err := writeFile(path, content); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadSignatureFile(path); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestLoadSignatureFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/signatures.yaml"

	content := `signatures:
  - id: sig-custom
    name: Custom marker
    pattern: "(?i)forbidden artifact"
    severity: medium
    enabled: true
rules:
  - id: rule-custom
    name: Custom rule
    condition: "event_type=export"
    alert_level: low
    enabled: true
`
	if err := writeFile(path, content); err != nil {
		t.Fatal(err)
	}

	sigs, rules, err := LoadSignatureFile(path)
	if err != nil {
		t.Fatalf("LoadSignatureFile() error = %v", err)
	}
	if len(sigs) != 1 || sigs[0].ID != "sig-custom" {
		t.Errorf("signatures = %+v", sigs)
	}
	if len(rules) != 1 || rules[0].Condition != "event_type=export" {
		t.Errorf("rules = %+v", rules)
	}
}

func TestEvalCondition(t *testing.T) {
	fields := map[string]string{
		"event_type": "authentication",
		"success":    "false",
	}

	tests := []struct {
		condition string
		want      bool
	}{
		{"event_type=authentication", true},
		{"event_type=authentication && success=false", true},
		{"event_type=authentication && success=true", false},
		{"event_type=export", false},
		{"nonsense", false},
	}
	for _, tt := range tests {
		if got := evalCondition(tt.condition, fields); got != tt.want {
			t.Errorf("evalCondition(%q) = %v, want %v", tt.condition, got, tt.want)
		}
	}
}
