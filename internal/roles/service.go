package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
)

// RepositoryPort defines data access methods for role and permission
// definitions.
type RepositoryPort interface {
	ListRoles(ctx context.Context, orgID string) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	GetRoleBySlug(ctx context.Context, slug string) (Role, error)
	GetRolesByIDs(ctx context.Context, ids []string) ([]Role, error)
	CreateRole(ctx context.Context, params CreateRoleParams) (Role, error)
	UpdateRole(ctx context.Context, id, name string, level int, description string) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	RolePermissions(ctx context.Context, roleSlug string) ([]string, error)
	SyncRolePermissions(ctx context.Context, roleID string, permissionIDs []string) (SyncResult, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
	GetPermissionBySlug(ctx context.Context, slug string) (Permission, error)
	CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error)
	UpdatePermission(ctx context.Context, id, name, group, description string) (Permission, error)
	DeletePermission(ctx context.Context, id string) error
	RolesWithPermission(ctx context.Context, permissionID string) ([]string, error)
}

// Service handles role and permission administration. Every mutation that
// can change a role's effective permission set clears that role's cache
// entry before returning, so no later read resolves against stale data.
type Service struct {
	repo   RepositoryPort
	cache  cache.Store
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cacheStore cache.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cacheStore, logger: logger}
}

// ListRoles returns the role catalogue for an organization context.
func (s *Service) ListRoles(ctx context.Context, orgID string) ([]Role, error) {
	return s.repo.ListRoles(ctx, orgID)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// GetRoleBySlug fetches a role by slug.
func (s *Service) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	return s.repo.GetRoleBySlug(ctx, slug)
}

// GetRolesByIDs fetches a batch of roles. Unknown IDs are skipped.
func (s *Service) GetRolesByIDs(ctx context.Context, ids []string) ([]Role, error) {
	return s.repo.GetRolesByIDs(ctx, ids)
}

// CreateRole inserts a new role definition.
func (s *Service) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	params.Slug = strings.TrimSpace(strings.ToLower(params.Slug))
	params.Name = strings.TrimSpace(params.Name)
	if params.Slug == "" {
		return Role{}, errors.New("roles: slug required")
	}
	if params.Name == "" {
		return Role{}, errors.New("roles: name required")
	}
	return s.repo.CreateRole(ctx, params)
}

// UpdateRole updates a role definition and clears its cached permission
// set, since a level change alters what existing checks observe.
func (s *Service) UpdateRole(ctx context.Context, id, name string, level int, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: name required")
	}
	role, err := s.repo.UpdateRole(ctx, id, name, level, description)
	if err != nil {
		return Role{}, err
	}
	if err := s.invalidateRole(ctx, role.Slug); err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role definition and clears its cached permission set.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	return s.invalidateRole(ctx, role.Slug)
}

// RolePermissions returns the permission slugs attached to a role, straight
// from the store. Cached reads live in the authorization aggregator.
func (s *Service) RolePermissions(ctx context.Context, roleSlug string) ([]string, error) {
	return s.repo.RolePermissions(ctx, roleSlug)
}

// SyncPermissions replaces a role's permission set. Entries may reference
// permissions by ID or slug; unknown references fail the whole call. The
// role's cache entry is cleared before returning.
func (s *Service) SyncPermissions(ctx context.Context, roleID string, permissionRefs []string) (SyncResult, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return SyncResult{}, err
	}

	resolved := make([]string, 0, len(permissionRefs))
	seen := make(map[string]struct{}, len(permissionRefs))
	for _, ref := range permissionRefs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		id := ref
		if _, parseErr := uuid.Parse(ref); parseErr != nil {
			perm, err := s.repo.GetPermissionBySlug(ctx, ref)
			if err != nil {
				return SyncResult{}, fmt.Errorf("resolve %q: %w", ref, err)
			}
			id = perm.ID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		resolved = append(resolved, id)
	}

	result, err := s.repo.SyncRolePermissions(ctx, role.ID, resolved)
	if err != nil {
		return SyncResult{}, err
	}
	if err := s.invalidateRole(ctx, role.Slug); err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

// ListPermissions returns all permission definitions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GroupedPermissions returns permissions clustered by their group name.
func (s *Service) GroupedPermissions(ctx context.Context) (map[string][]Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]Permission)
	for _, perm := range perms {
		grouped[perm.Group] = append(grouped[perm.Group], perm)
	}
	return grouped, nil
}

// CreatePermission inserts a new permission definition.
func (s *Service) CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error) {
	params.Slug = strings.TrimSpace(strings.ToLower(params.Slug))
	params.Name = strings.TrimSpace(params.Name)
	if params.Slug == "" {
		return Permission{}, errors.New("roles: permission slug required")
	}
	if params.Name == "" {
		return Permission{}, errors.New("roles: permission name required")
	}
	return s.repo.CreatePermission(ctx, params)
}

// UpdatePermission updates a permission definition.
func (s *Service) UpdatePermission(ctx context.Context, id, name, group, description string) (Permission, error) {
	return s.repo.UpdatePermission(ctx, id, name, group, description)
}

// DeletePermission removes a permission and clears the cached sets of every
// role that granted it.
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	holders, err := s.repo.RolesWithPermission(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	for _, slug := range holders {
		if err := s.invalidateRole(ctx, slug); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) invalidateRole(ctx context.Context, roleSlug string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, cache.RoleKey(roleSlug)); err != nil {
		return fmt.Errorf("roles: invalidate %s: %w", roleSlug, err)
	}
	s.logger.Debug("role permission cache cleared", slog.String("role", roleSlug))
	return nil
}
