// Package authz resolves which roles and permissions a principal holds
// within a request's access context, and guards HTTP routes with the
// result.
//
// Role applicability is a set union across three tiers: global grants apply
// everywhere, org-wide grants apply anywhere inside their org, and branch
// grants apply only at their exact branch. A broader check never hides a
// narrower grant.
package authz

import (
	"context"
	"sort"

	"github.com/gatehouse-io/gatehouse/internal/assignments"
	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/internal/scope"
)

// AssignmentsPort reads a principal's role assignments.
type AssignmentsPort interface {
	ListForPrincipal(ctx context.Context, principalID string) ([]assignments.Assignment, error)
}

// RolesPort reads role details and their permission sets.
type RolesPort interface {
	GetRolesByIDs(ctx context.Context, ids []string) ([]roles.Role, error)
	RolePermissions(ctx context.Context, roleSlug string) ([]string, error)
}

// Resolver answers role questions for a principal within an access context.
type Resolver struct {
	assignments AssignmentsPort
	roles       RolesPort
}

// NewResolver builds a resolver.
func NewResolver(assignmentsPort AssignmentsPort, rolesPort RolesPort) *Resolver {
	return &Resolver{assignments: assignmentsPort, roles: rolesPort}
}

// ApplicableRoles returns the roles whose grants apply within the access
// context, most privileged first. A role granted at several applicable
// scopes appears once.
func (r *Resolver) ApplicableRoles(ctx context.Context, principalID string, access scope.Key) ([]roles.Role, error) {
	grants, err := r.assignments.ListForPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(grants))
	seen := make(map[string]struct{}, len(grants))
	for _, grant := range grants {
		if !grant.Scope.AppliesTo(access) {
			continue
		}
		if _, ok := seen[grant.RoleID]; ok {
			continue
		}
		seen[grant.RoleID] = struct{}{}
		ids = append(ids, grant.RoleID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	applicable, err := r.roles.GetRolesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Level > applicable[j].Level
	})
	return applicable, nil
}

// HasRole reports whether any applicable role carries the given slug.
func (r *Resolver) HasRole(ctx context.Context, principalID, roleSlug string, access scope.Key) (bool, error) {
	applicable, err := r.ApplicableRoles(ctx, principalID, access)
	if err != nil {
		return false, err
	}
	for _, role := range applicable {
		if role.Slug == roleSlug {
			return true, nil
		}
	}
	return false, nil
}

// HighestLevel returns the largest level among applicable roles, or zero
// when the principal holds none.
func (r *Resolver) HighestLevel(ctx context.Context, principalID string, access scope.Key) (int, error) {
	applicable, err := r.ApplicableRoles(ctx, principalID, access)
	if err != nil {
		return 0, err
	}
	if len(applicable) == 0 {
		return 0, nil
	}
	return applicable[0].Level, nil
}
