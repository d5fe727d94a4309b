// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package session

import (
	"context"
	"testing"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
)

func newTestRegistry(t *testing.T) *OperatorRegistry {
	t.Helper()
	auth, _, _ := newTestAuthority(t)
	return NewOperatorRegistry(auth)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Register("alice", "Alice", "correct-horse-battery", []models.Role{models.RoleInvestigator})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	sctx, err := reg.Authenticate(context.Background(), "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if sctx.Username != "Alice" {
		t.Errorf("Username = %q, want Alice", sctx.Username)
	}
	if sctx.Level != models.LevelHigh {
		t.Errorf("Level = %v, want high", sctx.Level)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Register("alice", "Alice", "correct-horse-battery", []models.Role{models.RoleViewer})

	_, err := reg.Authenticate(context.Background(), "alice", "wrong-password-here")
	if !errors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Authenticate(context.Background(), "mallory", "whatever-password-1")
	if !errors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestAuthenticateDisabledOperator(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Register("alice", "Alice", "correct-horse-battery", []models.Role{models.RoleViewer})

	if err := reg.Disable("alice"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	_, err := reg.Authenticate(context.Background(), "alice", "correct-horse-battery")
	if !errors.IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Register("", "Nobody", "long-enough-password", nil); err == nil {
		t.Error("empty username should be rejected")
	}
	if _, err := reg.Register("bob", "Bob", "short", nil); err == nil {
		t.Error("short password should be rejected")
	}

	reg.Register("carol", "Carol", "long-enough-password", []models.Role{models.RoleViewer})
	if _, err := reg.Register("carol", "Carol 2", "long-enough-password", []models.Role{models.RoleViewer}); err == nil {
		t.Error("duplicate username should be rejected")
	}
}
