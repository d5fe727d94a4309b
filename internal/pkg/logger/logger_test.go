// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("info", "json", &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	log.Info("session created", "user_id", "op-1")
	if err := log.Sync(); err != nil {
		t.Logf("sync: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "session created" {
		t.Errorf("message = %v, want %q", entry["message"], "session created")
	}
	if entry["user_id"] != "op-1" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "op-1")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("warn", "json", &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	log.Info("hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn entry should pass at warn level")
	}
}

func TestNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("debug", "json", &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	log.Named("ledger").Info("hash chain verified")

	if !strings.Contains(buf.String(), `"logger":"ledger"`) {
		t.Errorf("named logger field missing: %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	log, err := NewWithOutput("info", "json", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	if err := log.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error: %v", err)
	}
	if got := log.GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want %q", got, "debug")
	}

	if err := log.SetLevel("not-a-level"); err == nil {
		t.Error("SetLevel() should reject unknown levels")
	}
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("info", "json", &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	log.Info("operator login", "password", "hunter2", "username", "alice")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("password value leaked into log output: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("redaction placeholder missing: %q", out)
	}
	if !strings.Contains(out, "alice") {
		t.Errorf("non-sensitive value should survive: %q", out)
	}
}

func TestWithRedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("info", "json", &buf)
	if err != nil {
		t.Fatalf("NewWithOutput() error: %v", err)
	}

	log.With("jwt_secret", "supersecretvalue").Info("config loaded")

	if strings.Contains(buf.String(), "supersecretvalue") {
		t.Errorf("With() leaked a sensitive value: %q", buf.String())
	}
}

func TestSanitizeMap(t *testing.T) {
	in := map[string]interface{}{
		"token":    "abc123",
		"resource": "case-42",
	}
	out := SanitizeMap(in)

	if out["token"] != RedactValue() {
		t.Errorf("token = %v, want redacted", out["token"])
	}
	if out["resource"] != "case-42" {
		t.Errorf("resource = %v, want original value", out["resource"])
	}
	if in["token"] != "abc123" {
		t.Error("SanitizeMap must not mutate its input")
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	log := Nop()
	log.Info("ignored", "key", "value")
	log.Named("sub").Error("also ignored")
}
