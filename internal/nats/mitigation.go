// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package nats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// SubjectMitigation is the subject mitigation commands are published to.
// External responders (SOAR tooling, firewall controllers) subscribe here.
const SubjectMitigation = "secanalyzer.mitigation"

// mitigationCommand is the wire format for one mitigation action.
type mitigationCommand struct {
	Action        string           `json:"action"`
	IssuedAt      time.Time        `json:"issued_at"`
	ErrorID       string           `json:"error_id"`
	ErrorType     models.ErrorType `json:"error_type"`
	Severity      models.Severity  `json:"severity"`
	Actor         string           `json:"actor,omitempty"`
	Indicators    []string         `json:"threat_indicators,omitempty"`
	CorrelationID string           `json:"correlation_id"`
}

// MitigationPublisher publishes mitigation commands to NATS. It satisfies
// the classifier's executor contract; delivery is fire-and-forget.
type MitigationPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewMitigationPublisher creates a publisher-backed mitigation executor.
func NewMitigationPublisher(publisher Publisher, log *logger.Logger) *MitigationPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &MitigationPublisher{
		publisher: publisher,
		logger:    log.Named("mitigation"),
	}
}

// Execute publishes one mitigation command.
func (p *MitigationPublisher) Execute(_ context.Context, action string, serr *models.SecurityError) error {
	cmd := mitigationCommand{
		Action:        action,
		IssuedAt:      time.Now().UTC(),
		ErrorID:       serr.ID.String(),
		ErrorType:     serr.Type,
		Severity:      serr.Severity,
		Actor:         serr.Actor,
		Indicators:    serr.Indicators,
		CorrelationID: serr.CorrelationID,
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(SubjectMitigation+"."+action, data); err != nil {
		return err
	}

	p.logger.Debug("mitigation command published", "action", action, "error_id", serr.ID)
	return nil
}
