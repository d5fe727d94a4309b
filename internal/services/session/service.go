// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package session implements operator session lifecycle and role-based
// access control with default-deny policy evaluation.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// IncidentSink receives incidents produced by denied permission checks.
type IncidentSink interface {
	RecordIncident(ctx context.Context, incident *models.SecurityIncident)
}

// Config contains configuration for the session authority.
type Config struct {
	// SessionTTL is the fixed session lifetime.
	SessionTTL time.Duration

	// SweepInterval is how often the background sweep terminates expired
	// sessions.
	SweepInterval time.Duration

	// MaxSessionsPerUser limits concurrent sessions per user (0 = unlimited).
	MaxSessionsPerUser int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		SessionTTL:         8 * time.Hour,
		SweepInterval:      5 * time.Minute,
		MaxSessionsPerUser: 0,
	}
}

// Authority issues, validates, refreshes, and revokes operator sessions, and
// evaluates RBAC decisions against the static policy table.
type Authority struct {
	store     Store
	policies  *PolicyTable
	incidents IncidentSink
	config    Config
	logger    *logger.Logger

	// now is the clock; tests substitute a deterministic one.
	now func() time.Time

	stopCh  chan struct{}
	stopped atomic.Bool
	started atomic.Bool
	wg      sync.WaitGroup
}

// NewAuthority creates a session authority. incidents may be nil, in which
// case denials are logged but not recorded.
func NewAuthority(store Store, policies *PolicyTable, incidents IncidentSink, config Config, log *logger.Logger) *Authority {
	if log == nil {
		log = logger.Nop()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 8 * time.Hour
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}

	return &Authority{
		store:     store,
		policies:  policies,
		incidents: incidents,
		config:    config,
		logger:    log.Named("session"),
		now:       func() time.Time { return time.Now().UTC() },
		stopCh:    make(chan struct{}),
	}
}

// WithClock substitutes the time source. Test hook.
func (a *Authority) WithClock(now func() time.Time) *Authority {
	a.now = now
	return a
}

// ============================================================================
// Session Lifecycle
// ============================================================================

// CreateSession registers a new session for an authenticated operator. The
// permission set is the union of each role's fixed permission list, and the
// security level is derived from the highest-privilege role present.
func (a *Authority) CreateSession(ctx context.Context, userID, displayName string, roles []models.Role, authMethod string) (*models.SecurityContext, error) {
	if userID == "" {
		return nil, errors.InvalidInput("user id is required")
	}
	for _, r := range roles {
		if !r.IsValid() {
			return nil, errors.InvalidInput("unknown role " + string(r))
		}
	}

	if a.config.MaxSessionsPerUser > 0 {
		if err := a.evictOldestFor(ctx, userID); err != nil {
			a.logger.Warn("session eviction failed", "user_id", userID, "error", err)
		}
	}

	now := a.now()
	s := &models.Session{
		ID:           uuid.New(),
		UserID:       userID,
		Username:     displayName,
		Roles:        roles,
		Permissions:  models.PermissionsForRoles(roles),
		Level:        models.LevelForRoles(roles),
		AuthMethod:   authMethod,
		CreatedAt:    now,
		ExpiresAt:    now.Add(a.config.SessionTTL),
		LastActivity: now,
		Active:       true,
	}

	if err := a.store.Put(ctx, s); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "register session")
	}

	a.logger.Info("session created",
		"session_id", s.ID,
		"user_id", userID,
		"roles", roles,
		"security_level", s.Level.String(),
		"auth_method", authMethod,
	)

	return contextFor(s), nil
}

// ValidateSession returns the live context for a session, or nil when the
// session is unknown, inactive, or expired. An expired session is terminated
// as a side effect. This is the sole read path that refreshes last_activity.
func (a *Authority) ValidateSession(ctx context.Context, id uuid.UUID) (*models.SecurityContext, error) {
	s, err := a.store.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "load session")
	}
	if !s.Active {
		return nil, nil
	}

	now := a.now()
	if s.IsExpired(now) {
		if terr := a.TerminateSession(ctx, id, "expired"); terr != nil {
			a.logger.Warn("expired session termination failed", "session_id", id, "error", terr)
		}
		return nil, nil
	}

	s.LastActivity = now
	if err := a.store.Put(ctx, s); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "update session activity")
	}

	return contextFor(s), nil
}

// RefreshSession extends expiry by the full session lifetime from now.
// Returns nil for unknown or inactive sessions; expiry never moves backward.
func (a *Authority) RefreshSession(ctx context.Context, id uuid.UUID) (*models.SecurityContext, error) {
	s, err := a.store.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "load session")
	}
	if !s.Active {
		return nil, nil
	}

	now := a.now()
	if s.IsExpired(now) {
		if terr := a.TerminateSession(ctx, id, "expired"); terr != nil {
			a.logger.Warn("expired session termination failed", "session_id", id, "error", terr)
		}
		return nil, nil
	}

	s.ExpiresAt = now.Add(a.config.SessionTTL)
	s.LastActivity = now
	if err := a.store.Put(ctx, s); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "refresh session")
	}

	a.logger.Debug("session refreshed", "session_id", id, "new_expires_at", s.ExpiresAt)
	return contextFor(s), nil
}

// TerminateSession marks a session inactive and removes it from the live
// index. Idempotent: terminating an unknown session is a no-op.
func (a *Authority) TerminateSession(ctx context.Context, id uuid.UUID, reason string) error {
	s, err := a.store.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, errors.CodeInternal, "load session")
	}

	now := a.now()
	s.Active = false
	s.TerminatedAt = &now
	s.TerminateReason = reason

	// Terminated sessions leave the live index; they are never resurrected.
	if err := a.store.Delete(ctx, id); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "remove session")
	}

	a.logger.Info("session terminated",
		"session_id", id,
		"user_id", s.UserID,
		"reason", reason,
	)
	return nil
}

// ActiveSessionCount returns the number of live sessions.
func (a *Authority) ActiveSessionCount(ctx context.Context) int {
	n, err := a.store.Count(ctx)
	if err != nil {
		a.logger.Warn("session count failed", "error", err)
		return 0
	}
	return n
}

// evictOldestFor removes the oldest sessions of a user beyond the per-user
// limit.
func (a *Authority) evictOldestFor(ctx context.Context, userID string) error {
	sessions, err := a.store.List(ctx)
	if err != nil {
		return err
	}

	var mine []*models.Session
	for _, s := range sessions {
		if s.UserID == userID && s.Active {
			mine = append(mine, s)
		}
	}
	if len(mine) < a.config.MaxSessionsPerUser {
		return nil
	}

	for len(mine) >= a.config.MaxSessionsPerUser {
		oldest := mine[0]
		for _, s := range mine[1:] {
			if s.CreatedAt.Before(oldest.CreatedAt) {
				oldest = s
			}
		}
		if err := a.TerminateSession(ctx, oldest.ID, "session limit reached"); err != nil {
			return err
		}
		next := mine[:0]
		for _, s := range mine {
			if s.ID != oldest.ID {
				next = append(next, s)
			}
		}
		mine = next
	}
	return nil
}

// ============================================================================
// Permission Evaluation
// ============================================================================

// CheckPermission evaluates the policy for resource:operation against the
// caller's context. Missing policies deny by default. Checks run in order:
// security level, permission containment, role intersection; the first
// failure records exactly one incident and denies. Denials are boolean
// results, not errors.
func (a *Authority) CheckPermission(ctx context.Context, sctx *models.SecurityContext, resource, operation string) bool {
	if sctx == nil {
		a.recordDenial(ctx, models.IncidentPolicyViolation, models.SeverityMedium, map[string]any{
			"resource":  resource,
			"operation": operation,
			"reason":    "no security context",
		})
		return false
	}

	policy, ok := a.policies.Get(resource, operation)
	if !ok {
		a.recordDenial(ctx, models.IncidentPolicyViolation, models.SeverityMedium, map[string]any{
			"resource":  resource,
			"operation": operation,
			"user_id":   sctx.UserID,
			"reason":    "no policy defined",
		})
		return false
	}

	if sctx.Level < policy.MinimumLevel {
		a.recordDenial(ctx, models.IncidentAuthorizationViolation, models.SeverityHigh, map[string]any{
			"resource":       resource,
			"operation":      operation,
			"user_id":        sctx.UserID,
			"caller_level":   sctx.Level.String(),
			"required_level": policy.MinimumLevel.String(),
			"reason":         "insufficient security level",
		})
		return false
	}

	for _, required := range policy.RequiredPermissions {
		if !sctx.HasPermission(required) {
			a.recordDenial(ctx, models.IncidentAuthorizationViolation, models.SeverityMedium, map[string]any{
				"resource":           resource,
				"operation":          operation,
				"user_id":            sctx.UserID,
				"missing_permission": string(required),
				"reason":             "missing permission",
			})
			return false
		}
	}

	if len(policy.RequiredRoles) > 0 && !sctx.HasAnyRole(policy.RequiredRoles) {
		a.recordDenial(ctx, models.IncidentAuthorizationViolation, models.SeverityMedium, map[string]any{
			"resource":  resource,
			"operation": operation,
			"user_id":   sctx.UserID,
			"reason":    "no required role",
		})
		return false
	}

	return true
}

func (a *Authority) recordDenial(ctx context.Context, itype models.IncidentType, severity models.Severity, details map[string]any) {
	a.logger.Warn("permission denied",
		"incident_type", string(itype),
		"severity", string(severity),
		"details", details,
	)
	if a.incidents == nil {
		return
	}

	now := a.now()
	a.incidents.RecordIncident(ctx, &models.SecurityIncident{
		ID:        uuid.New(),
		Type:      itype,
		Severity:  severity,
		Details:   details,
		Status:    models.IncidentStatusOpen,
		Escalated: severity == models.SeverityCritical,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ============================================================================
// Expiry Sweep
// ============================================================================

// StartSweeper arms the background sweep that terminates expired sessions
// independently of validation calls. Idempotent.
func (a *Authority) StartSweeper(ctx context.Context) {
	if !a.started.CompareAndSwap(false, true) {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			case <-ticker.C:
				a.sweepExpired(ctx)
			}
		}
	}()

	a.logger.Info("session sweeper started", "interval", a.config.SweepInterval)
}

// Stop cancels the sweeper. Safe to call when not running.
func (a *Authority) Stop() {
	if !a.stopped.CompareAndSwap(false, true) {
		return
	}
	close(a.stopCh)
	a.wg.Wait()
}

// sweepExpired terminates every session whose expiry has passed.
func (a *Authority) sweepExpired(ctx context.Context) {
	sessions, err := a.store.List(ctx)
	if err != nil {
		a.logger.Error("session sweep failed", "error", err)
		return
	}

	now := a.now()
	swept := 0
	for _, s := range sessions {
		if s.IsExpired(now) {
			if err := a.TerminateSession(ctx, s.ID, "expired"); err != nil {
				a.logger.Warn("sweep termination failed", "session_id", s.ID, "error", err)
				continue
			}
			swept++
		}
	}

	if swept > 0 {
		a.logger.Info("expired sessions swept", "count", swept)
	}
}

// contextFor snapshots a session into a caller-facing context.
func contextFor(s *models.Session) *models.SecurityContext {
	return &models.SecurityContext{
		SessionID:   s.ID,
		UserID:      s.UserID,
		Username:    s.Username,
		Roles:       append([]models.Role(nil), s.Roles...),
		Permissions: append([]models.Permission(nil), s.Permissions...),
		Level:       s.Level,
		IPAddress:   s.IPAddress,
		ExpiresAt:   s.ExpiresAt,
	}
}
