// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package ledger builds the immutable, hash-chained audit trail. Each event
// embeds the previous event's digest, so any retroactive edit breaks link
// continuity and is detectable by a linear walk.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/threat"
)

// PermissionChecker gates ledger operations. Implemented by the session
// authority.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, sctx *models.SecurityContext, resource, operation string) bool
}

// ErrorRouter receives every failure the ledger encounters. Implemented by
// the threat classifier.
type ErrorRouter interface {
	HandleError(ctx context.Context, cause error, errCtx map[string]any, op threat.Operation) *models.SecurityError
}

// Ledger appends hash-chained audit events through the external store.
// Appends are serialized: previous_hash linkage is only correct under a
// single writer, so the append path holds a mutex across hash computation,
// persistence, and the latest-hash advance.
type Ledger struct {
	mu       sync.Mutex
	lastHash string
	sequence uint64

	store  Store
	authz  PermissionChecker
	router ErrorRouter
	logger *logger.Logger

	now func() time.Time
}

// New creates a ledger starting from the genesis hash. Call Restore to
// resume an existing chain before the first append.
func New(store Store, authz PermissionChecker, router ErrorRouter, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		lastHash: models.GenesisHash,
		store:    store,
		authz:    authz,
		router:   router,
		logger:   log.Named("ledger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock substitutes the time source. Test hook.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Restore resumes the chain from the most recent persisted event.
func (l *Ledger) Restore(ctx context.Context) error {
	latest, err := l.store.LatestEvent(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "load latest audit event")
	}
	if latest == nil {
		return nil
	}

	l.mu.Lock()
	l.lastHash = latest.EventHash
	l.sequence = latest.Sequence
	l.mu.Unlock()

	l.logger.Info("audit chain restored", "sequence", latest.Sequence, "last_hash", latest.EventHash[:12])
	return nil
}

// ============================================================================
// Append Path
// ============================================================================

// LogSecurityEvent appends one event to the chain. The caller must hold
// audit:create; that policy is itself exempt from audit so logging an event
// cannot recurse. Failures are routed through the error router and returned.
func (l *Ledger) LogSecurityEvent(ctx context.Context, event *models.AuditEvent, sctx *models.SecurityContext) error {
	if err := l.append(ctx, event, sctx); err != nil {
		l.router.HandleError(ctx, err, map[string]any{
			"operation":  "audit_append",
			"event_type": string(event.Type),
			"action":     event.Action,
		}, operationFor(sctx))
		return err
	}
	return nil
}

func (l *Ledger) append(ctx context.Context, event *models.AuditEvent, sctx *models.SecurityContext) error {
	if !l.authz.CheckPermission(ctx, sctx, "audit", "create") {
		return errors.Forbidden("audit append denied")
	}
	if event.Type == "" || event.Action == "" {
		return errors.InvalidInput("audit event requires type and action")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.New().String()
	}
	if sctx != nil {
		if event.UserID == "" {
			event.UserID = sctx.UserID
		}
		if event.Username == "" {
			event.Username = sctx.Username
		}
		if event.SessionID == "" {
			event.SessionID = sctx.SessionID.String()
		}
	}

	// Single-writer section: hash computation, persistence, and the
	// latest-hash advance are atomic with respect to other appends.
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Sequence = l.sequence + 1
	event.PreviousHash = l.lastHash

	hash, err := canonicalHash(event)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "hash audit event")
	}
	event.EventHash = hash

	if err := l.store.PersistAuditEvent(ctx, event); err != nil {
		// The chain pointer does not advance on a failed write.
		event.EventHash = ""
		event.PreviousHash = ""
		event.Sequence = 0
		return errors.Wrap(err, errors.CodeInternal, "persist audit event")
	}

	l.lastHash = event.EventHash
	l.sequence = event.Sequence

	l.logger.Debug("audit event appended",
		"sequence", event.Sequence,
		"event_type", string(event.Type),
		"action", event.Action,
		"event_hash", event.EventHash[:12],
	)
	return nil
}

// canonicalHash digests the key-sorted JSON projection of an event's stable
// fields. The projection includes previous_hash, binding each event to its
// position in the chain.
func canonicalHash(event *models.AuditEvent) (string, error) {
	projection := map[string]any{
		"id":               event.ID.String(),
		"sequence":         event.Sequence,
		"event_type":       string(event.Type),
		"action":           event.Action,
		"resource_type":    event.ResourceType,
		"resource_id":      event.ResourceID,
		"user_id":          event.UserID,
		"session_id":       event.SessionID,
		"ip_address":       event.IPAddress,
		"details":          event.Details,
		"correlation_id":   event.CorrelationID,
		"compliance_class": event.ComplianceClass,
		"success":          event.Success,
		"timestamp":        event.Timestamp.UTC().Format(time.RFC3339Nano),
		"previous_hash":    event.PreviousHash,
	}

	// encoding/json serializes map keys in sorted order, which makes the
	// projection canonical.
	data, err := json.Marshal(projection)
	if err != nil {
		return "", fmt.Errorf("marshal projection: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ============================================================================
// Integrity Verification
// ============================================================================

// VerifyAuditTrailIntegrity walks the whole chain: previous_hash must match
// the prior event's event_hash (genesis for the first), sequence numbers
// must be gap-free, and every surviving event's hash must recompute.
// Retention tombstones keep their sequence and hashes, so the walk bridges
// them; their content digest can no longer be checked and is skipped. Any
// break is reported as false; deciding the response is the caller's concern.
func (l *Ledger) VerifyAuditTrailIntegrity(ctx context.Context) (bool, error) {
	events, err := l.store.ListEvents(ctx, time.Time{}, l.now().Add(time.Second))
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "list audit events")
	}

	prevHash := models.GenesisHash
	var prevSeq uint64
	for _, e := range events {
		if e.PreviousHash != prevHash {
			l.logger.Error("audit chain link broken",
				"sequence", e.Sequence,
				"expected_previous", prevHash[:12],
				"got_previous", truncateHash(e.PreviousHash),
			)
			return false, nil
		}
		if e.Sequence != prevSeq+1 {
			l.logger.Error("audit chain sequence gap", "expected", prevSeq+1, "got", e.Sequence)
			return false, nil
		}

		if !e.Purged {
			recomputed, err := canonicalHash(e)
			if err != nil {
				return false, errors.Wrap(err, errors.CodeInternal, "recompute event hash")
			}
			if recomputed != e.EventHash {
				l.logger.Error("audit event hash mismatch", "sequence", e.Sequence)
				return false, nil
			}
		}

		prevHash = e.EventHash
		prevSeq = e.Sequence
	}

	return true, nil
}

// ChainLength returns the number of appended events.
func (l *Ledger) ChainLength() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

func operationFor(sctx *models.SecurityContext) threat.Operation {
	if sctx == nil {
		return threat.Operation{}
	}
	return threat.Operation{
		Actor: sctx.UserID,
		IP:    sctx.IPAddress,
		Level: sctx.Level,
	}
}

func truncateHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
