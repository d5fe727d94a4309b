// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package threat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// patternRule describes one sliding-window flood check. Counts are per actor
// over the trailing correlation window.
type patternRule struct {
	errType      models.ErrorType
	threshold    int
	incidentType models.IncidentType
	severity     models.Severity
	escalate     bool
	description  string
}

var patternRules = []patternRule{
	{
		errType:      models.ErrorTypeAuthentication,
		threshold:    authFailureThreshold,
		incidentType: models.IncidentAuthenticationFailure,
		severity:     models.SeverityHigh,
		escalate:     true,
		description:  "authentication failure flood",
	},
	{
		errType:      models.ErrorTypeAuthorization,
		threshold:    authzFailureThreshold,
		incidentType: models.IncidentAuthorizationViolation,
		severity:     models.SeverityMedium,
		escalate:     false,
		description:  "repeated authorization violations",
	},
	{
		errType:      models.ErrorTypeDataIntegrity,
		threshold:    integrityFailThreshold,
		incidentType: models.IncidentDataBreach,
		severity:     models.SeverityCritical,
		escalate:     true,
		description:  "data integrity failure cluster",
	},
}

// DetectAnomalousPatterns evaluates every actor's trailing-hour correlation
// window against the fixed flood thresholds and emits one incident per
// (actor, rule) breach. Emitted incidents are recorded through the sink
// path, so they are persisted and announced like any other incident.
func (c *Classifier) DetectAnomalousPatterns(ctx context.Context) []*models.SecurityIncident {
	now := c.now()
	cutoff := now.Add(-correlationWindow)

	type breach struct {
		actor string
		rule  patternRule
		count int
	}
	var breaches []breach

	c.mu.Lock()
	for actor, window := range c.windows {
		pruned := window[:0]
		counts := make(map[models.ErrorType]int)
		for _, e := range window {
			if e.at.After(cutoff) {
				pruned = append(pruned, e)
				counts[e.errType]++
			}
		}
		if len(pruned) == 0 {
			delete(c.windows, actor)
			continue
		}
		c.windows[actor] = pruned

		for _, rule := range patternRules {
			if counts[rule.errType] > rule.threshold {
				breaches = append(breaches, breach{actor: actor, rule: rule, count: counts[rule.errType]})
			}
		}
	}
	c.mu.Unlock()

	incidents := make([]*models.SecurityIncident, 0, len(breaches))
	for _, b := range breaches {
		incident := &models.SecurityIncident{
			ID:       uuid.New(),
			Type:     b.rule.incidentType,
			Severity: b.rule.severity,
			Details: map[string]any{
				"description": b.rule.description,
				"actor":       b.actor,
				"error_type":  string(b.rule.errType),
				"count":       b.count,
				"threshold":   b.rule.threshold,
				"window":      correlationWindow.String(),
			},
			Status:    models.IncidentStatusOpen,
			Escalated: b.rule.escalate,
			CreatedAt: now,
			UpdatedAt: now,
		}
		c.RecordIncident(ctx, incident)
		incidents = append(incidents, incident)
	}

	return incidents
}

// ActorWindowSize reports the number of events currently in an actor's
// correlation window, pruned to the trailing hour.
func (c *Classifier) ActorWindowSize(actor string) int {
	cutoff := c.now().Add(-correlationWindow)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.windows[actor] {
		if e.at.After(cutoff) {
			n++
		}
	}
	return n
}

// SeverityMix counts recent errors by severity, used for health scoring.
func (c *Classifier) SeverityMix(window time.Duration) map[models.Severity]int {
	cutoff := c.now().Add(-window)
	c.mu.Lock()
	defer c.mu.Unlock()
	mix := make(map[models.Severity]int)
	for _, serr := range c.history {
		if serr.Timestamp.After(cutoff) {
			mix[serr.Severity]++
		}
	}
	return mix
}
