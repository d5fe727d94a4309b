// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/crypto"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
)

// OperatorRegistry holds the local operator accounts used for password
// authentication. Accounts live in memory and are seeded from configuration
// at startup.
type OperatorRegistry struct {
	mu        sync.RWMutex
	byName    map[string]*models.Operator
	authority *Authority
}

// NewOperatorRegistry creates an empty registry bound to a session authority.
func NewOperatorRegistry(authority *Authority) *OperatorRegistry {
	return &OperatorRegistry{
		byName:    make(map[string]*models.Operator),
		authority: authority,
	}
}

// Register adds an operator account with a bcrypt-hashed password.
func (r *OperatorRegistry) Register(username, displayName, password string, roles []models.Role) (*models.Operator, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, errors.InvalidInput("username is required")
	}
	if len(password) < 12 {
		return nil, errors.InvalidInput("password must be at least 12 characters")
	}
	for _, role := range roles {
		if !role.IsValid() {
			return nil, errors.InvalidInput("unknown role " + string(role))
		}
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "hash password")
	}

	op := &models.Operator{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[username]; exists {
		return nil, errors.AlreadyExists("operator")
	}
	r.byName[username] = op

	return op, nil
}

// Get looks up an operator by username.
func (r *OperatorRegistry) Get(username string) (*models.Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.byName[strings.ToLower(strings.TrimSpace(username))]
	return op, ok
}

// Disable marks an operator account disabled. Existing sessions are not
// touched here; callers terminate them separately.
func (r *OperatorRegistry) Disable(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return errors.NotFound("operator")
	}
	op.Disabled = true
	return nil
}

// Authenticate verifies credentials and opens a session on success.
// Password verification runs even for unknown usernames so that the response
// time does not reveal account existence.
func (r *OperatorRegistry) Authenticate(ctx context.Context, username, password string) (*models.SecurityContext, error) {
	op, ok := r.Get(username)
	if !ok {
		crypto.CheckPassword(password, dummyHash)
		return nil, errors.Unauthorized("invalid credentials")
	}
	if op.Disabled {
		crypto.CheckPassword(password, dummyHash)
		return nil, errors.Unauthorized("invalid credentials")
	}

	if !crypto.CheckPassword(password, op.PasswordHash) {
		return nil, errors.Unauthorized("invalid credentials")
	}

	return r.authority.CreateSession(ctx, op.ID, op.DisplayName, op.Roles, "password")
}

// dummyHash is a bcrypt hash of a random throwaway value, compared against
// when the account lookup fails.
var dummyHash = func() string {
	h, err := crypto.HashPassword(uuid.New().String())
	if err != nil {
		panic("session: dummy hash generation failed: " + err.Error())
	}
	return h
}()
