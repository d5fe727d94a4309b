// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package threat

import (
	"regexp"
	"strings"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// ============================================================================
// Classification Rules
// ============================================================================

// classificationRule maps message keywords to an error type. Rules are
// evaluated in declaration order and the first matching keyword wins; the
// order below is load-bearing because keywords overlap (for example
// "unauthorized access attempt" must classify as authorization even though
// "access" appears in validation-adjacent messages).
type classificationRule struct {
	errType  models.ErrorType
	keywords []string
}

var classificationRules = []classificationRule{
	{models.ErrorTypeDataIntegrity, []string{
		"integrity", "checksum", "hash mismatch", "corrupt", "tamper", "chain broken",
	}},
	{models.ErrorTypeSecurity, []string{
		"injection", "xss", "cross-site", "exploit", "malicious", "attack", "breach", "intrusion",
	}},
	{models.ErrorTypeAuthentication, []string{
		"credential", "login", "password", "authentication", "auth failed", "token expired", "signature",
	}},
	{models.ErrorTypeAuthorization, []string{
		"permission", "forbidden", "unauthorized", "access denied", "privilege", "not allowed", "rbac",
	}},
	{models.ErrorTypeValidation, []string{
		"validation", "invalid input", "malformed", "missing required", "out of range", "schema",
	}},
}

// classifyMessage returns the error type for a raw failure message.
// Unmatched messages default to system.
func classifyMessage(message string) models.ErrorType {
	lower := strings.ToLower(message)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.errType
			}
		}
	}
	return models.ErrorTypeSystem
}

// criticalPhrases force critical severity regardless of classified type.
var criticalPhrases = []string{"critical", "breach", "data loss", "compromised"}

// deriveSeverity applies the fixed severity cascade. The caller's security
// level raises the floor: failures in high-privilege contexts matter more.
func deriveSeverity(errType models.ErrorType, message string, callerLevel models.SecurityLevel) models.Severity {
	lower := strings.ToLower(message)
	for _, phrase := range criticalPhrases {
		if strings.Contains(lower, phrase) {
			return models.SeverityCritical
		}
	}
	if errType == models.ErrorTypeDataIntegrity {
		return models.SeverityCritical
	}
	if errType == models.ErrorTypeAuthorization || errType == models.ErrorTypeSecurity || callerLevel >= models.LevelCritical {
		return models.SeverityHigh
	}
	if errType == models.ErrorTypeAuthentication || errType == models.ErrorTypeValidation || callerLevel >= models.LevelHigh {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// ============================================================================
// Threat Indicators
// ============================================================================

type indicatorRule struct {
	indicator string
	keywords  []string
}

var indicatorRules = []indicatorRule{
	{"sql_injection_attempt", []string{"union select", "drop table", "or 1=1", "'; --"}},
	{"xss_attempt", []string{"<script", "javascript:", "onerror="}},
	{"path_traversal_attempt", []string{"../", "..\\", "%2e%2e"}},
	{"brute_force_suspected", []string{"too many attempts", "repeated failure", "brute"}},
	{"credential_abuse", []string{"credential", "password", "token"}},
	{"privilege_escalation_attempt", []string{"privilege", "sudo", "escalat"}},
	{"data_exfiltration_suspected", []string{"bulk export", "mass download", "exfiltrat"}},
}

// extractIndicators collects every matching indicator for a message.
func extractIndicators(message string) []string {
	lower := strings.ToLower(message)
	var out []string
	for _, rule := range indicatorRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, rule.indicator)
				break
			}
		}
	}
	return out
}

// ============================================================================
// Mitigation Actions
// ============================================================================

var typeMitigations = map[models.ErrorType][]string{
	models.ErrorTypeAuthentication: {"throttle_actor", "require_reauthentication"},
	models.ErrorTypeAuthorization:  {"record_access_attempt", "review_role_assignments"},
	models.ErrorTypeValidation:     {"reject_input"},
	models.ErrorTypeDataIntegrity:  {"freeze_affected_records", "trigger_integrity_scan"},
	models.ErrorTypeSecurity:       {"block_source", "capture_forensic_snapshot"},
	models.ErrorTypeSystem:         {"log_diagnostics"},
}

var indicatorMitigations = map[string][]string{
	"sql_injection_attempt":        {"block_source", "sanitize_query_inputs"},
	"xss_attempt":                  {"sanitize_output_encoding"},
	"path_traversal_attempt":       {"restrict_filesystem_access"},
	"brute_force_suspected":        {"throttle_actor", "lock_account"},
	"privilege_escalation_attempt": {"terminate_actor_sessions"},
	"data_exfiltration_suspected":  {"suspend_export_capability"},
}

// mitigationsFor derives the deduplicated mitigation list for a classified
// error. Critical severity always appends operator notification.
func mitigationsFor(errType models.ErrorType, severity models.Severity, indicators []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(actions []string) {
		for _, a := range actions {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}

	add(typeMitigations[errType])
	for _, ind := range indicators {
		add(indicatorMitigations[ind])
	}
	if severity == models.SeverityCritical {
		add([]string{"notify_security_operator"})
	}
	return out
}

// ============================================================================
// Message Sanitization
// ============================================================================

var (
	unixPathRe    = regexp.MustCompile(`(?:/[\w.-]+){2,}`)
	windowsPathRe = regexp.MustCompile(`[A-Za-z]:\\(?:[\w.-]+\\?)+`)
	ipv4Re        = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	sqlFragmentRe = regexp.MustCompile(`(?i)\b(?:select|insert|update|delete|union|drop)\b[^.;]{0,120}`)
	uuidRe        = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	longHexRe     = regexp.MustCompile(`\b[0-9a-fA-F]{16,}\b`)
	emailRe       = regexp.MustCompile(`\b[\w.+-]+@[\w.-]+\.\w+\b`)
)

// sanitizeMessage strips filesystem paths, network addresses, query
// fragments, and identifiers from a failure message so that classified
// errors can be logged and exported without leaking evidence content.
func sanitizeMessage(message string) string {
	s := sqlFragmentRe.ReplaceAllString(message, "[QUERY]")
	s = windowsPathRe.ReplaceAllString(s, "[PATH]")
	s = unixPathRe.ReplaceAllString(s, "[PATH]")
	s = ipv4Re.ReplaceAllString(s, "[IP]")
	s = uuidRe.ReplaceAllString(s, "[ID]")
	s = longHexRe.ReplaceAllString(s, "[ID]")
	s = emailRe.ReplaceAllString(s, "[EMAIL]")
	return s
}
