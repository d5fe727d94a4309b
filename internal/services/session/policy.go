// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// PolicyTable is the static resource:operation policy set, loaded once at
// startup and immutable afterwards.
type PolicyTable struct {
	policies map[string]*models.SecurityPolicy
}

// NewPolicyTable builds a table from a policy list. Later entries override
// earlier ones with the same key.
func NewPolicyTable(policies []models.SecurityPolicy) *PolicyTable {
	t := &PolicyTable{policies: make(map[string]*models.SecurityPolicy, len(policies))}
	for i := range policies {
		p := policies[i]
		t.policies[p.Key()] = &p
	}
	return t
}

// Get looks up the policy for resource:operation. The second return is false
// when no policy exists, which callers must treat as deny.
func (t *PolicyTable) Get(resource, operation string) (*models.SecurityPolicy, bool) {
	p, ok := t.policies[resource+":"+operation]
	return p, ok
}

// Len returns the number of policies in the table.
func (t *PolicyTable) Len() int {
	return len(t.policies)
}

// LoadPolicyFile reads additional policies from a YAML file. Callers append
// them after the defaults, so same-key entries override while unlisted
// defaults survive.
func LoadPolicyFile(path string) ([]models.SecurityPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var doc struct {
		Policies []models.SecurityPolicy `yaml:"policies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return doc.Policies, nil
}

// DefaultPolicies returns the built-in policy set.
//
// The audit:create policy is deliberately marked RequireAudit=false: logging
// an event requires that permission check, and auditing the check itself
// would recurse forever.
func DefaultPolicies() []models.SecurityPolicy {
	return []models.SecurityPolicy{
		{
			Resource: "case", Operation: "create",
			RequiredPermissions: []models.Permission{models.PermCaseCreate},
			RequiredRoles:       []models.Role{models.RoleAdmin, models.RoleInvestigator},
			MinimumLevel:        models.LevelHigh,
			RequireAudit:        true,
		},
		{
			Resource: "case", Operation: "read",
			RequiredPermissions: []models.Permission{models.PermCaseRead},
			RequiredRoles: []models.Role{
				models.RoleAdmin, models.RoleInvestigator, models.RoleAnalyst,
				models.RoleAuditor, models.RoleViewer,
			},
			MinimumLevel: models.LevelLow,
			RequireAudit: true,
		},
		{
			Resource: "case", Operation: "update",
			RequiredPermissions: []models.Permission{models.PermCaseUpdate},
			RequiredRoles:       []models.Role{models.RoleAdmin, models.RoleInvestigator},
			MinimumLevel:        models.LevelHigh,
			RequireAudit:        true,
		},
		{
			Resource: "case", Operation: "delete",
			RequiredPermissions: []models.Permission{models.PermCaseDelete},
			RequiredRoles:       []models.Role{models.RoleAdmin},
			MinimumLevel:        models.LevelCritical,
			RequireAudit:        true,
			RequireApproval:     true,
		},
		{
			Resource: "evidence", Operation: "create",
			RequiredPermissions: []models.Permission{models.PermEvidenceCreate},
			RequiredRoles:       []models.Role{models.RoleAdmin, models.RoleInvestigator},
			MinimumLevel:        models.LevelHigh,
			RequireAudit:        true,
		},
		{
			Resource: "evidence", Operation: "read",
			RequiredPermissions: []models.Permission{models.PermEvidenceRead},
			RequiredRoles: []models.Role{
				models.RoleAdmin, models.RoleInvestigator, models.RoleAnalyst,
				models.RoleAuditor, models.RoleViewer,
			},
			MinimumLevel: models.LevelLow,
			RequireAudit: true,
		},
		{
			Resource: "evidence", Operation: "update",
			RequiredPermissions: []models.Permission{models.PermEvidenceUpdate},
			RequiredRoles:       []models.Role{models.RoleAdmin, models.RoleInvestigator},
			MinimumLevel:        models.LevelHigh,
			RequireAudit:        true,
		},
		{
			Resource: "evidence", Operation: "delete",
			RequiredPermissions: []models.Permission{models.PermEvidenceDelete},
			RequiredRoles:       []models.Role{models.RoleAdmin},
			MinimumLevel:        models.LevelCritical,
			RequireAudit:        true,
			RequireApproval:     true,
		},
		{
			Resource: "audit", Operation: "create",
			RequiredPermissions: []models.Permission{models.PermAuditCreate},
			RequiredRoles: []models.Role{
				models.RoleAdmin, models.RoleInvestigator, models.RoleAnalyst,
				models.RoleAuditor, models.RoleViewer,
			},
			MinimumLevel: models.LevelLow,
			RequireAudit: false,
		},
		{
			Resource: "audit", Operation: "read",
			RequiredPermissions: []models.Permission{models.PermAuditRead},
			RequiredRoles:       []models.Role{models.RoleAdmin, models.RoleAuditor},
			MinimumLevel:        models.LevelMedium,
			RequireAudit:        true,
		},
		{
			Resource: "audit", Operation: "export",
			RequiredPermissions: []models.Permission{models.PermAuditExport},
			RequiredRoles:       []models.Role{models.RoleAdmin, models.RoleAuditor},
			MinimumLevel:        models.LevelMedium,
			RequireAudit:        true,
		},
		{
			Resource: "report", Operation: "generate",
			RequiredPermissions: []models.Permission{models.PermReportGenerate},
			RequiredRoles: []models.Role{
				models.RoleAdmin, models.RoleInvestigator, models.RoleAnalyst, models.RoleAuditor,
			},
			MinimumLevel: models.LevelMedium,
			RequireAudit: true,
		},
		{
			Resource: "session", Operation: "manage",
			RequiredPermissions: []models.Permission{models.PermSessionManage},
			RequiredRoles:       []models.Role{models.RoleAdmin},
			MinimumLevel:        models.LevelCritical,
			RequireAudit:        true,
		},
		{
			Resource: "vault", Operation: "use",
			RequiredPermissions: []models.Permission{models.PermVaultUse},
			RequiredRoles: []models.Role{
				models.RoleAdmin, models.RoleInvestigator, models.RoleAnalyst,
			},
			MinimumLevel: models.LevelMedium,
			RequireAudit: true,
		},
		{
			Resource: "alert", Operation: "manage",
			RequiredPermissions: []models.Permission{models.PermAlertManage},
			RequiredRoles:       []models.Role{models.RoleAdmin},
			MinimumLevel:        models.LevelCritical,
			RequireAudit:        true,
		},
	}
}
