// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package models holds the domain types shared by the security core services.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role represents an operator role.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleInvestigator Role = "investigator"
	RoleAnalyst      Role = "analyst"
	RoleAuditor      Role = "auditor"
	RoleViewer       Role = "viewer"
)

// IsValid checks if the role is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleInvestigator, RoleAnalyst, RoleAuditor, RoleViewer:
		return true
	}
	return false
}

// Permission is a fine-grained capability in "resource:operation" form.
type Permission string

// Permissions.
const (
	PermCaseCreate     Permission = "case:create"
	PermCaseRead       Permission = "case:read"
	PermCaseUpdate     Permission = "case:update"
	PermCaseDelete     Permission = "case:delete"
	PermEvidenceCreate Permission = "evidence:create"
	PermEvidenceRead   Permission = "evidence:read"
	PermEvidenceUpdate Permission = "evidence:update"
	PermEvidenceDelete Permission = "evidence:delete"
	PermAuditCreate    Permission = "audit:create"
	PermAuditRead      Permission = "audit:read"
	PermAuditExport    Permission = "audit:export"
	PermReportGenerate Permission = "report:generate"
	PermSessionManage  Permission = "session:manage"
	PermVaultUse       Permission = "vault:use"
	PermAlertManage    Permission = "alert:manage"
)

// rolePermissions is the fixed role-to-permission grant table. Permission
// sets for a session are the union over its roles.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermCaseCreate, PermCaseRead, PermCaseUpdate, PermCaseDelete,
		PermEvidenceCreate, PermEvidenceRead, PermEvidenceUpdate, PermEvidenceDelete,
		PermAuditCreate, PermAuditRead, PermAuditExport,
		PermReportGenerate, PermSessionManage, PermVaultUse, PermAlertManage,
	},
	RoleInvestigator: {
		PermCaseCreate, PermCaseRead, PermCaseUpdate,
		PermEvidenceCreate, PermEvidenceRead, PermEvidenceUpdate,
		PermAuditCreate, PermReportGenerate, PermVaultUse,
	},
	RoleAnalyst: {
		PermCaseRead, PermEvidenceRead,
		PermAuditCreate, PermReportGenerate, PermVaultUse,
	},
	RoleAuditor: {
		PermCaseRead, PermEvidenceRead,
		PermAuditCreate, PermAuditRead, PermAuditExport, PermReportGenerate,
	},
	RoleViewer: {
		PermCaseRead, PermEvidenceRead, PermAuditCreate,
	},
}

// PermissionsForRoles returns the union of each role's fixed permission list.
func PermissionsForRoles(roles []Role) []Permission {
	seen := make(map[Permission]bool)
	var out []Permission
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// SecurityLevel is a coarse ordinal authorization gate derived from role.
type SecurityLevel int

const (
	LevelLow SecurityLevel = iota + 1
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the symbolic name of the level.
func (l SecurityLevel) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalYAML encodes the level by its symbolic name.
func (l SecurityLevel) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

// UnmarshalYAML decodes a symbolic level name.
func (l *SecurityLevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseSecurityLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseSecurityLevel parses a symbolic level name.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch s {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	case "critical":
		return LevelCritical, nil
	}
	return 0, fmt.Errorf("unknown security level %q", s)
}

// roleLevels maps each role to its security level.
var roleLevels = map[Role]SecurityLevel{
	RoleAdmin:        LevelCritical,
	RoleInvestigator: LevelHigh,
	RoleAnalyst:      LevelMedium,
	RoleAuditor:      LevelMedium,
	RoleViewer:       LevelLow,
}

// LevelForRoles derives the session security level from the highest-privilege
// role present.
func LevelForRoles(roles []Role) SecurityLevel {
	level := LevelLow
	for _, r := range roles {
		if l, ok := roleLevels[r]; ok && l > level {
			level = l
		}
	}
	return level
}

// Session is the live record of an authenticated operator session.
type Session struct {
	ID              uuid.UUID     `json:"id"`
	UserID          string        `json:"user_id"`
	Username        string        `json:"username"`
	Roles           []Role        `json:"roles"`
	Permissions     []Permission  `json:"permissions"`
	Level           SecurityLevel `json:"security_level"`
	AuthMethod      string        `json:"auth_method"`
	IPAddress       string        `json:"ip_address,omitempty"`
	UserAgent       string        `json:"user_agent,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
	LastActivity    time.Time     `json:"last_activity"`
	Active          bool          `json:"active"`
	TerminatedAt    *time.Time    `json:"terminated_at,omitempty"`
	TerminateReason string        `json:"terminate_reason,omitempty"`
}

// IsExpired reports whether the session has passed its expiry at the given
// instant.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasPermission reports whether the session holds the given permission.
func (s *Session) HasPermission(p Permission) bool {
	for _, have := range s.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// SecurityContext is the caller-facing view of a validated session. It is a
// snapshot: mutations to the live session are not reflected in contexts
// already handed out.
type SecurityContext struct {
	SessionID   uuid.UUID     `json:"session_id"`
	UserID      string        `json:"user_id"`
	Username    string        `json:"username"`
	Roles       []Role        `json:"roles"`
	Permissions []Permission  `json:"permissions"`
	Level       SecurityLevel `json:"security_level"`
	IPAddress   string        `json:"ip_address,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// HasPermission reports whether the context holds the given permission.
func (c *SecurityContext) HasPermission(p Permission) bool {
	for _, have := range c.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the context holds at least one of the roles.
func (c *SecurityContext) HasAnyRole(roles []Role) bool {
	for _, want := range roles {
		for _, have := range c.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// SecurityPolicy gates one resource:operation pair. Missing policies are a
// default-deny at evaluation time.
type SecurityPolicy struct {
	Resource            string        `json:"resource" yaml:"resource"`
	Operation           string        `json:"operation" yaml:"operation"`
	RequiredPermissions []Permission  `json:"required_permissions" yaml:"required_permissions"`
	RequiredRoles       []Role        `json:"required_roles" yaml:"required_roles"`
	MinimumLevel        SecurityLevel `json:"minimum_level" yaml:"minimum_level"`
	RequireAudit        bool          `json:"require_audit" yaml:"require_audit"`
	RequireApproval     bool          `json:"require_approval" yaml:"require_approval"`
}

// Key returns the policy's lookup key.
func (p *SecurityPolicy) Key() string {
	return p.Resource + ":" + p.Operation
}

// Operator is an entry in the operator directory used for password
// authentication.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
}
