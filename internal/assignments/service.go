package assignments

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/internal/scope"
)

// RepositoryPort is the persistence contract the service depends on.
type RepositoryPort interface {
	Create(ctx context.Context, principalID, roleID string, key scope.Key) (Assignment, error)
	Delete(ctx context.Context, principalID, roleID string, key scope.Key) (int64, error)
	ListForPrincipal(ctx context.Context, principalID string) ([]Assignment, error)
	ListInScope(ctx context.Context, principalID string, key scope.Key) ([]Assignment, error)
	SyncScope(ctx context.Context, principalID string, desiredRoleIDs []string, key scope.Key) (SyncResult, error)
}

// RolesPort resolves role references against the role catalog.
type RolesPort interface {
	GetRole(ctx context.Context, id string) (roles.Role, error)
	GetRoleBySlug(ctx context.Context, slug string) (roles.Role, error)
	GetRolesByIDs(ctx context.Context, ids []string) ([]roles.Role, error)
}

// NameResolver maps org and branch IDs to display names. Lookups are best
// effort; a failed lookup leaves the name blank rather than failing the
// listing.
type NameResolver interface {
	OrgName(ctx context.Context, orgID string) (string, error)
	BranchName(ctx context.Context, orgID, branchID string) (string, error)
}

// Detail is an assignment joined with its role and human-readable scope.
type Detail struct {
	Assignment
	Role       roles.Role
	Tier       scope.Tier
	OrgName    string
	BranchName string
}

// Service mutates and lists role assignments.
type Service struct {
	repo   RepositoryPort
	roles  RolesPort
	names  NameResolver
	logger *slog.Logger
}

// NewService wires the assignment service. names may be nil when no
// directory mirror is available; listings then carry IDs only.
func NewService(repo RepositoryPort, rolesPort RolesPort, names NameResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: rolesPort, names: names, logger: logger}
}

// Assign grants the role to the principal at the given scope. The role
// reference may be an ID or a slug. Granting the same triple twice returns
// ErrDuplicateAssignment.
func (s *Service) Assign(ctx context.Context, principalID, roleRef string, key scope.Key) (Assignment, error) {
	if err := key.Validate(); err != nil {
		return Assignment{}, err
	}
	role, err := s.resolveRole(ctx, roleRef)
	if err != nil {
		return Assignment{}, err
	}
	assignment, err := s.repo.Create(ctx, principalID, role.ID, key)
	if err != nil {
		return Assignment{}, err
	}
	s.logger.Info("role assigned",
		slog.String("principal_id", principalID),
		slog.String("role", role.Slug),
		slog.String("scope", key.String()))
	return assignment, nil
}

// Remove revokes the role from the principal at the exact scope and reports
// how many assignments were removed. Removing a grant that does not exist
// is not an error; the count is simply zero.
func (s *Service) Remove(ctx context.Context, principalID, roleRef string, key scope.Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	role, err := s.resolveRole(ctx, roleRef)
	if err != nil {
		return 0, err
	}
	removed, err := s.repo.Delete(ctx, principalID, role.ID, key)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("role removed",
			slog.String("principal_id", principalID),
			slog.String("role", role.Slug),
			slog.String("scope", key.String()))
	}
	return removed, nil
}

// SyncScope makes the principal's role set at the exact scope equal to the
// given references. Assignments at every other scope are untouched.
func (s *Service) SyncScope(ctx context.Context, principalID string, roleRefs []string, key scope.Key) (SyncResult, error) {
	if err := key.Validate(); err != nil {
		return SyncResult{}, err
	}
	ids := make([]string, 0, len(roleRefs))
	seen := make(map[string]struct{}, len(roleRefs))
	for _, ref := range roleRefs {
		role, err := s.resolveRole(ctx, ref)
		if err != nil {
			return SyncResult{}, err
		}
		if _, dup := seen[role.ID]; dup {
			continue
		}
		seen[role.ID] = struct{}{}
		ids = append(ids, role.ID)
	}
	result, err := s.repo.SyncScope(ctx, principalID, ids, key)
	if err != nil {
		return SyncResult{}, err
	}
	s.logger.Info("assignments synced",
		slog.String("principal_id", principalID),
		slog.String("scope", key.String()),
		slog.Int("attached", len(result.Attached)),
		slog.Int("detached", len(result.Detached)))
	return result, nil
}

// ListForPrincipal returns the principal's assignments across all scopes,
// joined with role details and scope display names, most privileged role
// first.
func (s *Service) ListForPrincipal(ctx context.Context, principalID string) ([]Detail, error) {
	assignments, err := s.repo.ListForPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []Detail{}, nil
	}

	ids := make([]string, 0, len(assignments))
	idSeen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if _, ok := idSeen[a.RoleID]; ok {
			continue
		}
		idSeen[a.RoleID] = struct{}{}
		ids = append(ids, a.RoleID)
	}
	roleList, err := s.roles.GetRolesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]roles.Role, len(roleList))
	for _, r := range roleList {
		byID[r.ID] = r
	}

	details := make([]Detail, 0, len(assignments))
	for _, a := range assignments {
		role, ok := byID[a.RoleID]
		if !ok {
			// Role deleted under a concurrent admin action; skip the
			// dangling row rather than failing the whole listing.
			continue
		}
		d := Detail{Assignment: a, Role: role, Tier: a.Scope.Tier()}
		s.resolveNames(ctx, &d)
		details = append(details, d)
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Role.Level > details[j].Role.Level
	})
	return details, nil
}

func (s *Service) resolveNames(ctx context.Context, d *Detail) {
	if s.names == nil || d.Scope.OrgID == "" {
		return
	}
	name, err := s.names.OrgName(ctx, d.Scope.OrgID)
	if err != nil {
		s.logger.Debug("org name lookup failed", slog.String("org_id", d.Scope.OrgID), slog.Any("error", err))
	} else {
		d.OrgName = name
	}
	if d.Scope.BranchID == "" {
		return
	}
	name, err = s.names.BranchName(ctx, d.Scope.OrgID, d.Scope.BranchID)
	if err != nil {
		s.logger.Debug("branch name lookup failed", slog.String("branch_id", d.Scope.BranchID), slog.Any("error", err))
		return
	}
	d.BranchName = name
}

func (s *Service) resolveRole(ctx context.Context, ref string) (roles.Role, error) {
	if _, err := uuid.Parse(ref); err == nil {
		role, err := s.roles.GetRole(ctx, ref)
		if err != nil {
			return roles.Role{}, fmt.Errorf("role %s: %w", ref, err)
		}
		return role, nil
	}
	role, err := s.roles.GetRoleBySlug(ctx, ref)
	if err != nil {
		return roles.Role{}, fmt.Errorf("role %s: %w", ref, err)
	}
	return role, nil
}
