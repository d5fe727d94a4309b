// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package threat converts raw failures into classified, severity-scored
// security errors, correlates them per actor over a trailing window, and
// surfaces pattern-based incidents such as failure floods.
package threat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// Correlation thresholds over the trailing hour.
const (
	correlationWindow      = time.Hour
	authFailureThreshold   = 10
	authzFailureThreshold  = 5
	integrityFailThreshold = 3

	// maxErrorHistory caps the rolling error history; the oldest entries
	// are evicted first.
	maxErrorHistory = 1000
)

// IncidentStore persists security incidents for compliance reporting.
type IncidentStore interface {
	PersistIncident(ctx context.Context, incident *models.SecurityIncident) error
}

// MitigationExecutor applies a single mitigation action. Implementations are
// best-effort; a returned error is logged and never propagated.
type MitigationExecutor interface {
	Execute(ctx context.Context, action string, serr *models.SecurityError) error
}

// Operation describes the caller context a failure occurred in.
type Operation struct {
	Actor         string
	IP            string
	Level         models.SecurityLevel
	CorrelationID string
}

// windowEntry is one classified failure inside an actor's correlation window.
type windowEntry struct {
	errType models.ErrorType
	at      time.Time
}

// Classifier is the threat classification engine. It implements the incident
// sink consumed by permission checks and the error handler consumed by the
// audit ledger.
type Classifier struct {
	mu       sync.Mutex
	history  []*models.SecurityError
	windows  map[string][]windowEntry
	store    IncidentStore
	executor MitigationExecutor
	bus      *eventbus.Bus
	logger   *logger.Logger

	now func() time.Time
}

// NewClassifier creates a classifier. store, executor, and bus may each be
// nil; the corresponding side effects are then skipped.
func NewClassifier(store IncidentStore, executor MitigationExecutor, bus *eventbus.Bus, log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Classifier{
		windows:  make(map[string][]windowEntry),
		store:    store,
		executor: executor,
		bus:      bus,
		logger:   log.Named("threat"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock substitutes the time source. Test hook.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// ============================================================================
// Error Classification
// ============================================================================

// HandleError converts a caught failure into an immutable SecurityError:
// the message is sanitized, the type classified by the ordered keyword
// table, severity derived from the fixed cascade, and threat indicators and
// mitigation actions attached. The result lands in the rolling history and
// the actor's correlation window. Critical severity escalates synchronously;
// mitigation actions run afterwards with per-action isolation.
func (c *Classifier) HandleError(ctx context.Context, cause error, errCtx map[string]any, op Operation) *models.SecurityError {
	raw := "unknown failure"
	if cause != nil {
		raw = cause.Error()
	}

	errType := classifyMessage(raw)
	severity := deriveSeverity(errType, raw, op.Level)
	indicators := extractIndicators(raw)
	mitigations := mitigationsFor(errType, severity, indicators)

	correlationID := op.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	serr := &models.SecurityError{
		ID:            uuid.New(),
		Type:          errType,
		Severity:      severity,
		Message:       sanitizeMessage(raw),
		RawMessage:    raw,
		Stack:         sanitizeMessage(stackFromContext(errCtx)),
		Context:       sanitizeContext(errCtx),
		Indicators:    indicators,
		Mitigations:   mitigations,
		CorrelationID: correlationID,
		Actor:         actorKey(op),
		Escalated:     severity == models.SeverityCritical,
		Timestamp:     c.now(),
	}

	c.record(serr)

	if c.bus != nil {
		c.bus.Publish(eventbus.Notification{
			Topic: eventbus.TopicErrorClassified,
			At:    serr.Timestamp,
			Error: serr,
		})
	}

	if serr.Escalated {
		c.escalate(serr)
	}

	c.applyMitigations(ctx, serr)

	return serr
}

// record appends to the capped history and the actor's correlation window.
func (c *Classifier) record(serr *models.SecurityError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, serr)
	if len(c.history) > maxErrorHistory {
		c.history = c.history[len(c.history)-maxErrorHistory:]
	}

	cutoff := serr.Timestamp.Add(-correlationWindow)
	window := append(c.windows[serr.Actor], windowEntry{errType: serr.Type, at: serr.Timestamp})
	pruned := window[:0]
	for _, e := range window {
		if e.at.After(cutoff) {
			pruned = append(pruned, e)
		}
	}
	c.windows[serr.Actor] = pruned
}

// escalate raises a synchronous notification for a critical error. The
// failure still returns normally to the caller.
func (c *Classifier) escalate(serr *models.SecurityError) {
	c.logger.Error("critical security error escalated",
		"error_id", serr.ID,
		"type", string(serr.Type),
		"actor", serr.Actor,
		"message", serr.Message,
		"indicators", serr.Indicators,
	)
	if c.bus != nil {
		c.bus.Publish(eventbus.Notification{
			Topic: eventbus.TopicEscalation,
			At:    serr.Timestamp,
			Error: serr,
		})
	}
}

// applyMitigations runs every derived action. Each action is isolated: a
// failure or panic in one is logged and must not stop the rest.
func (c *Classifier) applyMitigations(ctx context.Context, serr *models.SecurityError) {
	if c.executor == nil {
		return
	}
	for _, action := range serr.Mitigations {
		c.applyOne(ctx, action, serr)
	}
}

func (c *Classifier) applyOne(ctx context.Context, action string, serr *models.SecurityError) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("mitigation action panicked", "action", action, "panic", r)
		}
	}()
	if err := c.executor.Execute(ctx, action, serr); err != nil {
		c.logger.Warn("mitigation action failed", "action", action, "error", err)
	}
}

// ErrorHistory returns a copy of the rolling error history, oldest first.
func (c *Classifier) ErrorHistory() []*models.SecurityError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.SecurityError(nil), c.history...)
}

// RecentErrorCount counts classified errors within the trailing window.
func (c *Classifier) RecentErrorCount(window time.Duration) int {
	cutoff := c.now().Add(-window)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, serr := range c.history {
		if serr.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

// ============================================================================
// Incident Sink
// ============================================================================

// RecordIncident persists an incident and announces it on the bus. Store
// failures are logged, not propagated, so a slow store cannot turn a denial
// into an error for the original caller.
func (c *Classifier) RecordIncident(ctx context.Context, incident *models.SecurityIncident) {
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if incident.Status == "" {
		incident.Status = models.IncidentStatusOpen
	}

	if c.store != nil {
		if err := c.store.PersistIncident(ctx, incident); err != nil {
			c.logger.Error("incident persistence failed",
				"incident_id", incident.ID,
				"type", string(incident.Type),
				"error", err,
			)
		}
	}

	c.logger.Warn("security incident recorded",
		"incident_id", incident.ID,
		"type", string(incident.Type),
		"severity", string(incident.Severity),
		"escalated", incident.Escalated,
	)

	if c.bus != nil {
		c.bus.Publish(eventbus.Notification{
			Topic:    eventbus.TopicIncidentOpened,
			At:       incident.CreatedAt,
			Incident: incident,
		})
	}
}

// ============================================================================
// Helpers
// ============================================================================

// actorKey picks the correlation key for an operation: user first, then
// source IP, then a shared bucket.
func actorKey(op Operation) string {
	if op.Actor != "" {
		return op.Actor
	}
	if op.IP != "" {
		return op.IP
	}
	return "unknown"
}

func stackFromContext(errCtx map[string]any) string {
	if errCtx == nil {
		return ""
	}
	if stack, ok := errCtx["stack"].(string); ok {
		return stack
	}
	return ""
}

// sanitizeContext shallow-copies the context map with string values passed
// through message sanitization. The original map is never mutated.
func sanitizeContext(errCtx map[string]any) map[string]any {
	if errCtx == nil {
		return nil
	}
	out := make(map[string]any, len(errCtx))
	for k, v := range errCtx {
		if k == "stack" {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = sanitizeMessage(s)
			continue
		}
		out[k] = v
	}
	return out
}
