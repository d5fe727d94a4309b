// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package monitor matches audit events against threat signatures and rules,
// detects behavioral anomalies, manages the alert lifecycle, and captures
// periodic security metrics snapshots.
package monitor

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/threat"
)

// AuditSink receives the audit events the monitor generates for raised and
// resolved alerts. Implemented by the ledger.
type AuditSink interface {
	LogSecurityEvent(ctx context.Context, event *models.AuditEvent, sctx *models.SecurityContext) error
}

// SessionCounter reports the live session count for metrics snapshots.
// Implemented by the session authority.
type SessionCounter interface {
	ActiveSessionCount(ctx context.Context) int
}

// Config contains configuration for the security monitor.
type Config struct {
	// MonitorInterval drives pattern detection (default 30s).
	MonitorInterval time.Duration

	// MetricsInterval drives metrics snapshots (default 60s).
	MetricsInterval time.Duration

	// MaxMetricsHistory caps the metrics ring buffer.
	MaxMetricsHistory int

	// AutoMitigate applies signature mitigations when an alert fires.
	AutoMitigate bool

	// BehaviorMultiplier flags data-access volume above this multiple of
	// the trailing-hour average.
	BehaviorMultiplier float64
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		MonitorInterval:    30 * time.Second,
		MetricsInterval:    60 * time.Second,
		MaxMetricsHistory:  1440,
		AutoMitigate:       false,
		BehaviorMultiplier: 3.0,
	}
}

// Monitor is the continuous security monitoring service.
type Monitor struct {
	mu sync.Mutex

	signatures []*models.ThreatSignature
	rules      []*models.MonitoringRule
	compiled   map[string]*regexp.Regexp

	activeAlerts   map[uuid.UUID]*models.SecurityAlert
	resolvedAlerts map[uuid.UUID]*models.SecurityAlert

	metrics []*models.SecurityMetrics

	// accessTimes tracks data-access event timestamps for the behavioral
	// volume check, pruned to the trailing hour.
	accessTimes []time.Time

	analyzedCount uint64
	alertCount    uint64

	classifier *threat.Classifier
	audit      AuditSink
	sessions   SessionCounter
	executor   threat.MitigationExecutor
	bus        *eventbus.Bus
	systemCtx  *models.SecurityContext
	config     Config
	logger     *logger.Logger

	now func() time.Time

	stopCh  chan struct{}
	started atomic.Bool
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// New creates a monitor with the built-in signature and rule sets. systemCtx
// is the synthetic context the monitor logs its own audit events under;
// audit, sessions, executor, and bus may be nil.
func New(classifier *threat.Classifier, audit AuditSink, sessions SessionCounter, executor threat.MitigationExecutor, bus *eventbus.Bus, systemCtx *models.SecurityContext, config Config, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	if config.MonitorInterval <= 0 {
		config.MonitorInterval = 30 * time.Second
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = 60 * time.Second
	}
	if config.MaxMetricsHistory <= 0 {
		config.MaxMetricsHistory = 1440
	}
	if config.BehaviorMultiplier <= 0 {
		config.BehaviorMultiplier = 3.0
	}

	return &Monitor{
		signatures:     DefaultThreatSignatures(),
		rules:          DefaultMonitoringRules(),
		compiled:       make(map[string]*regexp.Regexp),
		activeAlerts:   make(map[uuid.UUID]*models.SecurityAlert),
		resolvedAlerts: make(map[uuid.UUID]*models.SecurityAlert),
		classifier:     classifier,
		audit:          audit,
		sessions:       sessions,
		executor:       executor,
		bus:            bus,
		systemCtx:      systemCtx,
		config:         config,
		logger:         log.Named("monitor"),
		now:            func() time.Time { return time.Now().UTC() },
		stopCh:         make(chan struct{}),
	}
}

// WithClock substitutes the time source. Test hook.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// SetSignatures replaces the signature set.
func (m *Monitor) SetSignatures(signatures []*models.ThreatSignature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures = signatures
	m.compiled = make(map[string]*regexp.Regexp)
}

// SetRules replaces the monitoring rule set.
func (m *Monitor) SetRules(rules []*models.MonitoringRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start arms the monitoring tick and the metrics tick. The two timers are
// independent: a slow pattern scan must not delay a metrics capture.
// Idempotent.
func (m *Monitor) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	m.wg.Add(2)
	go m.runMonitorLoop(ctx)
	go m.runMetricsLoop(ctx)

	m.logger.Info("security monitor started",
		"monitor_interval", m.config.MonitorInterval,
		"metrics_interval", m.config.MetricsInterval,
	)
}

// Stop cancels both timers. No further ticks fire after Stop returns; an
// in-flight analysis is allowed to complete and its effects are retained.
// Safe to call when not running, and idempotent.
func (m *Monitor) Stop() {
	if !m.started.Load() {
		return
	}
	if !m.stopped.CompareAndSwap(false, true) {
		return
	}
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("security monitor stopped")
}

func (m *Monitor) runMonitorLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.monitorTick(ctx)
		}
	}
}

func (m *Monitor) runMetricsLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.CaptureMetrics(ctx)
		}
	}
}

// monitorTick runs the periodic pattern checks. Each tick is self-contained;
// failures are classified and swallowed.
func (m *Monitor) monitorTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitor tick panicked", "panic", r)
		}
	}()

	incidents := m.classifier.DetectAnomalousPatterns(ctx)
	for _, incident := range incidents {
		m.raiseIncidentAlert(ctx, incident)
	}
}

// raiseIncidentAlert converts a pattern-detected incident into an alert.
func (m *Monitor) raiseIncidentAlert(ctx context.Context, incident *models.SecurityIncident) {
	alert := &models.SecurityAlert{
		ID:          uuid.New(),
		Type:        models.AlertSourceIncident,
		Severity:    incident.Severity,
		Title:       "Anomalous pattern: " + string(incident.Type),
		Description: describeIncident(incident),
		IncidentID:  incident.ID.String(),
		Recommended: incident.Mitigations,
		CreatedAt:   m.now(),
	}
	m.storeAndAnnounce(ctx, alert, nil)
}

func describeIncident(incident *models.SecurityIncident) string {
	if d, ok := incident.Details["description"].(string); ok {
		return d
	}
	return string(incident.Type)
}
