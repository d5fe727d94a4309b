// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
)

// ExportAuditTrail renders the events inside the window in the requested
// format. The caller must hold audit:export, and the export itself is logged
// as an audited event before any data leaves the ledger.
func (l *Ledger) ExportAuditTrail(ctx context.Context, start, end time.Time, format string, sctx *models.SecurityContext) ([]byte, error) {
	if !l.authz.CheckPermission(ctx, sctx, "audit", "export") {
		return nil, errors.Forbidden("audit export denied")
	}

	exportEvent := &models.AuditEvent{
		Type:   models.EventTypeExport,
		Action: models.AuditActionExport,
		Details: map[string]any{
			"format":       format,
			"period_start": start.UTC().Format(time.RFC3339),
			"period_end":   end.UTC().Format(time.RFC3339),
		},
		ComplianceClass: models.ComplianceClassSecurityAudit,
		Success:         true,
	}
	if err := l.LogSecurityEvent(ctx, exportEvent, sctx); err != nil {
		return nil, err
	}

	events, err := l.store.ListEvents(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list audit events")
	}

	switch format {
	case models.ExportFormatJSONL:
		return renderJSONL(events)
	case models.ExportFormatCSV:
		return renderCSV(events)
	case models.ExportFormatHTML:
		return renderHTML(events, start, end)
	default:
		return nil, errors.InvalidInput("unsupported export format " + format)
	}
}

func renderJSONL(events []*models.AuditEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("encode event %d: %w", e.Sequence, err)
		}
	}
	return buf.Bytes(), nil
}

var csvHeader = []string{
	"sequence", "timestamp", "event_type", "action", "resource_type",
	"resource_id", "user_id", "session_id", "success", "correlation_id",
	"event_hash", "previous_hash", "purged",
}

func renderCSV(events []*models.AuditEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range events {
		row := []string{
			strconv.FormatUint(e.Sequence, 10),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Type),
			e.Action,
			e.ResourceType,
			e.ResourceID,
			e.UserID,
			e.SessionID,
			strconv.FormatBool(e.Success),
			e.CorrelationID,
			e.EventHash,
			e.PreviousHash,
			strconv.FormatBool(e.Purged),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderHTML(events []*models.AuditEvent, start, end time.Time) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head><title>Audit Trail Export</title></head>\n<body>\n")
	fmt.Fprintf(&buf, "<h1>Audit Trail</h1>\n<p>Period: %s to %s. Events: %d.</p>\n",
		html.EscapeString(start.UTC().Format(time.RFC3339)),
		html.EscapeString(end.UTC().Format(time.RFC3339)),
		len(events),
	)
	buf.WriteString("<table border=\"1\">\n<tr><th>Seq</th><th>Timestamp</th><th>Type</th><th>Action</th><th>Actor</th><th>Success</th><th>Hash</th></tr>\n")
	for _, e := range events {
		action := e.Action
		if e.Purged {
			action = "(purged)"
		}
		fmt.Fprintf(&buf, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%t</td><td>%s</td></tr>\n",
			e.Sequence,
			html.EscapeString(e.Timestamp.UTC().Format(time.RFC3339)),
			html.EscapeString(string(e.Type)),
			html.EscapeString(action),
			html.EscapeString(e.UserID),
			e.Success,
			html.EscapeString(e.EventHash),
		)
	}
	buf.WriteString("</table>\n</body>\n</html>\n")
	return buf.Bytes(), nil
}
