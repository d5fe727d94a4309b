// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package logger

import (
	"strings"
)

// ============================================================================
// Log Sanitisation
// ============================================================================

// sensitiveKeys lists field names that must never appear in log output with
// their real values. Keys are matched case-insensitively.
var sensitiveKeys = map[string]bool{
	"password":        true,
	"passwd":          true,
	"secret":          true,
	"token":           true,
	"jwt":             true,
	"jwt_secret":      true,
	"api_key":         true,
	"apikey":          true,
	"authorization":   true,
	"cookie":          true,
	"credential":      true,
	"credentials":     true,
	"private_key":     true,
	"master_key":      true,
	"vault_key":       true,
	"encryption_key":  true,
	"session_token":   true,
	"refresh_token":   true,
	"evidence_secret": true,
}

const redactedValue = "[REDACTED]"

// IsSensitiveKey returns true if the given key name refers to a sensitive
// field that should be redacted in logs.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// RedactValue returns the redacted placeholder string.
func RedactValue() string {
	return redactedValue
}

// SanitizeField returns the value as-is if the key is not sensitive,
// or "[REDACTED]" if the key is sensitive.
func SanitizeField(key string, value interface{}) interface{} {
	if IsSensitiveKey(key) {
		return redactedValue
	}
	return value
}

// SanitizeMap creates a copy of the input map with sensitive values redacted.
func SanitizeMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = SanitizeField(k, v)
	}
	return result
}

// sanitizeArgs redacts values whose preceding key is sensitive in a
// variadic key/value list. The input slice is returned unchanged when
// nothing needs redaction.
func sanitizeArgs(args []interface{}) []interface{} {
	redact := false
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok && IsSensitiveKey(key) {
			redact = true
			break
		}
	}
	if !redact {
		return args
	}

	out := make([]interface{}, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i += 2 {
		if key, ok := out[i].(string); ok && IsSensitiveKey(key) {
			out[i+1] = redactedValue
		}
	}
	return out
}
