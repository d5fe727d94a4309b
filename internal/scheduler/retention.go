// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package scheduler runs periodic housekeeping against the audit store,
// chiefly retention enforcement per compliance class.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// Purger expires audit records of one compliance class older than a cutoff.
// Implementations tombstone rather than delete so the ledger's hash chain
// stays verifiable.
type Purger interface {
	PurgeEventsBefore(ctx context.Context, complianceClass string, cutoff time.Time) (int64, error)
}

// AuditSink records retention runs in the audit ledger.
type AuditSink interface {
	LogSecurityEvent(ctx context.Context, event *models.AuditEvent, sctx *models.SecurityContext) error
}

// Config holds retention scheduler configuration.
type Config struct {
	// Schedule is a cron expression with a seconds field.
	Schedule string

	// Policies maps compliance classes to retention durations.
	// Classes under legal hold are never purged.
	Policies []models.RetentionPolicy

	// RunTimeout bounds a single enforcement pass.
	RunTimeout time.Duration
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule:   "0 0 3 * * *",
		Policies:   DefaultRetentionPolicies(),
		RunTimeout: 10 * time.Minute,
	}
}

// DefaultRetentionPolicies returns the built-in retention table.
// Criminal case records are under legal hold and are never purged
// automatically.
func DefaultRetentionPolicies() []models.RetentionPolicy {
	const day = 24 * time.Hour
	return []models.RetentionPolicy{
		{Class: models.ComplianceClassCriminalCase, Duration: 7 * 365 * day, LegalHold: true},
		{Class: models.ComplianceClassCivilCase, Duration: 5 * 365 * day},
		{Class: models.ComplianceClassSecurityAudit, Duration: 3 * 365 * day},
		{Class: models.ComplianceClassInternal, Duration: 2 * 365 * day},
	}
}

// Retention enforces audit retention policies on a cron schedule.
type Retention struct {
	config    *Config
	store     Purger
	audit     AuditSink
	systemCtx *models.SecurityContext
	cron      *cron.Cron
	logger    *logger.Logger

	now func() time.Time

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
}

// New creates a retention enforcer. The audit sink and system context are
// optional; without them runs are only logged.
func New(store Purger, audit AuditSink, systemCtx *models.SecurityContext, config *Config, log *logger.Logger) *Retention {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Schedule == "" {
		config.Schedule = DefaultConfig().Schedule
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}
	if len(config.Policies) == 0 {
		config.Policies = DefaultRetentionPolicies()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Retention{
		config:    config,
		store:     store,
		audit:     audit,
		systemCtx: systemCtx,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		logger: log.Named("retention"),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (r *Retention) WithClock(now func() time.Time) *Retention {
	r.now = now
	return r
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start registers the enforcement schedule and starts the cron runner.
func (r *Retention) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New(errors.CodeConflict, "retention scheduler already running")
	}

	entryID, err := r.cron.AddFunc(r.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.RunTimeout)
		defer cancel()
		if _, err := r.EnforceRetention(ctx); err != nil {
			r.logger.Error("retention enforcement failed", "error", err)
		}
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationFailed, "invalid retention schedule")
	}

	r.entryID = entryID
	r.running = true
	r.cron.Start()

	r.logger.Info("retention scheduler started",
		"schedule", r.config.Schedule,
		"policies", len(r.config.Policies),
	)
	return nil
}

// Stop stops the cron runner and waits for an in-flight pass to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (r *Retention) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// ============================================================================
// Enforcement
// ============================================================================

// EnforceRetention runs one enforcement pass over every configured policy and
// returns purge counts per compliance class. Classes under legal hold are
// skipped. A failed class does not stop the pass; the first error is returned
// after all classes have been attempted.
func (r *Retention) EnforceRetention(ctx context.Context) (map[string]int64, error) {
	started := r.now().UTC()
	purged := make(map[string]int64, len(r.config.Policies))

	var firstErr error
	for _, policy := range r.config.Policies {
		if policy.LegalHold {
			r.logger.Debug("retention skipped, legal hold",
				"compliance_class", policy.Class,
			)
			continue
		}
		if policy.Duration <= 0 {
			r.logger.Warn("retention policy has no duration, skipping",
				"compliance_class", policy.Class,
			)
			continue
		}

		cutoff := started.Add(-policy.Duration)
		count, err := r.store.PurgeEventsBefore(ctx, policy.Class, cutoff)
		if err != nil {
			r.logger.Error("purge failed",
				"compliance_class", policy.Class,
				"cutoff", cutoff,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		purged[policy.Class] = count
		if count > 0 {
			r.logger.Info("purged expired audit records",
				"compliance_class", policy.Class,
				"cutoff", cutoff,
				"count", count,
			)
		}
	}

	r.recordRun(ctx, started, purged, firstErr)
	return purged, firstErr
}

// recordRun writes one system event summarising the pass. Recording failures
// are logged and swallowed so retention never depends on ledger availability.
func (r *Retention) recordRun(ctx context.Context, started time.Time, purged map[string]int64, runErr error) {
	if r.audit == nil || r.systemCtx == nil {
		return
	}

	var total int64
	details := map[string]any{
		"started_at": started.Format(time.RFC3339),
	}
	for class, count := range purged {
		details["purged_"+class] = count
		total += count
	}
	details["purged_total"] = total
	if runErr != nil {
		details["error"] = runErr.Error()
	}

	event := &models.AuditEvent{
		ID:              uuid.New(),
		Type:            models.EventTypeSystem,
		Action:          "retention_purge",
		ResourceType:    "audit_ledger",
		Details:         details,
		ComplianceClass: models.ComplianceClassSecurityAudit,
		Success:         runErr == nil,
	}

	if err := r.audit.LogSecurityEvent(ctx, event, r.systemCtx); err != nil {
		r.logger.Warn("failed to record retention run", "error", err)
	}
}
