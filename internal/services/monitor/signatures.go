// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package monitor

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// DefaultThreatSignatures returns the built-in signature set. Patterns are
// matched case-insensitively against a serialized view of each audit event.
func DefaultThreatSignatures() []*models.ThreatSignature {
	return []*models.ThreatSignature{
		{
			ID:          "sig-sql-injection",
			Name:        "SQL injection attempt",
			Pattern:     `(?i)(union\s+select|drop\s+table|insert\s+into.+values|or\s+1\s*=\s*1|'\s*--)`,
			Severity:    models.SeverityHigh,
			Indicators:  []string{"sql_injection_attempt"},
			Mitigations: []string{"block_source", "sanitize_query_inputs"},
			Enabled:     true,
		},
		{
			ID:          "sig-xss",
			Name:        "Cross-site scripting payload",
			Pattern:     `(?i)(<script|javascript:|onerror\s*=|onload\s*=)`,
			Severity:    models.SeverityHigh,
			Indicators:  []string{"xss_attempt"},
			Mitigations: []string{"sanitize_output_encoding"},
			Enabled:     true,
		},
		{
			ID:          "sig-path-traversal",
			Name:        "Path traversal attempt",
			Pattern:     `(\.\./|\.\.\\|%2e%2e)`,
			Severity:    models.SeverityHigh,
			Indicators:  []string{"path_traversal_attempt"},
			Mitigations: []string{"restrict_filesystem_access"},
			Enabled:     true,
		},
		{
			ID:          "sig-command-injection",
			Name:        "Command injection attempt",
			Pattern:     `(?i)(;\s*rm\s+-rf|\|\s*nc\s|&&\s*curl\s|\$\(.*\)|` + "`" + `.+` + "`" + `)`,
			Severity:    models.SeverityCritical,
			Indicators:  []string{"command_injection_attempt"},
			Mitigations: []string{"block_source", "capture_forensic_snapshot"},
			Enabled:     true,
		},
		{
			ID:          "sig-credential-probe",
			Name:        "Credential probing",
			Pattern:     `(?i)(password\s+spray|credential\s+stuffing|hydra|brute\s*force)`,
			Severity:    models.SeverityMedium,
			Indicators:  []string{"brute_force_suspected"},
			Mitigations: []string{"throttle_actor"},
			Enabled:     true,
		},
	}
}

// DefaultMonitoringRules returns the built-in rule set. Conditions are
// conjunctions of key=value terms over the event's field map.
func DefaultMonitoringRules() []*models.MonitoringRule {
	return []*models.MonitoringRule{
		{
			ID:         "rule-failed-login",
			Name:       "Failed login",
			Condition:  "event_type=authentication && success=false",
			AlertLevel: models.SeverityMedium,
			Enabled:    true,
		},
		{
			ID:         "rule-evidence-delete",
			Name:       "Evidence deletion",
			Condition:  "event_type=evidence_handling && action=delete",
			AlertLevel: models.SeverityHigh,
			Enabled:    true,
		},
		{
			ID:         "rule-audit-export",
			Name:       "Audit trail export",
			Condition:  "event_type=export && action=export",
			AlertLevel: models.SeverityLow,
			Enabled:    true,
		},
		{
			ID:         "rule-failed-case-delete",
			Name:       "Denied case deletion",
			Condition:  "event_type=case_management && action=delete && success=false",
			AlertLevel: models.SeverityMedium,
			Enabled:    true,
		},
	}
}

// signatureFile is the on-disk YAML layout for custom signatures and rules.
type signatureFile struct {
	Signatures []*models.ThreatSignature `yaml:"signatures"`
	Rules      []*models.MonitoringRule  `yaml:"rules"`
}

// LoadSignatureFile reads custom signatures and rules from a YAML file.
// Every signature pattern must compile.
func LoadSignatureFile(path string) ([]*models.ThreatSignature, []*models.MonitoringRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read signature file: %w", err)
	}

	var file signatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse signature file: %w", err)
	}

	for _, sig := range file.Signatures {
		if sig.ID == "" || sig.Pattern == "" {
			return nil, nil, fmt.Errorf("signature %q: id and pattern are required", sig.Name)
		}
		if _, err := regexp.Compile(sig.Pattern); err != nil {
			return nil, nil, fmt.Errorf("signature %q: %w", sig.ID, err)
		}
	}
	for _, rule := range file.Rules {
		if rule.ID == "" || rule.Condition == "" {
			return nil, nil, fmt.Errorf("rule %q: id and condition are required", rule.Name)
		}
	}

	return file.Signatures, file.Rules, nil
}

// evalCondition checks a conjunction of key=value terms against an event's
// field map. Unknown keys fail the term.
func evalCondition(condition string, fields map[string]string) bool {
	terms := strings.Split(condition, "&&")
	for _, term := range terms {
		k, v, ok := strings.Cut(strings.TrimSpace(term), "=")
		if !ok {
			return false
		}
		if fields[strings.TrimSpace(k)] != strings.TrimSpace(v) {
			return false
		}
	}
	return true
}

// eventFields projects an audit event into the flat map rule conditions
// evaluate against.
func eventFields(event *models.AuditEvent) map[string]string {
	return map[string]string{
		"event_type":       string(event.Type),
		"action":           event.Action,
		"resource_type":    event.ResourceType,
		"resource_id":      event.ResourceID,
		"user_id":          event.UserID,
		"ip_address":       event.IPAddress,
		"compliance_class": event.ComplianceClass,
		"success":          fmt.Sprintf("%t", event.Success),
	}
}
