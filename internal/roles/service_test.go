package roles

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

type memoryRolesRepo struct {
	roles       map[string]Role
	permissions map[string]Permission
	rolePerms   map[string]map[string]struct{}
}

func newMemoryRolesRepo() *memoryRolesRepo {
	return &memoryRolesRepo{
		roles:       make(map[string]Role),
		permissions: make(map[string]Permission),
		rolePerms:   make(map[string]map[string]struct{}),
	}
}

func (r *memoryRolesRepo) ListRoles(ctx context.Context, orgID string) ([]Role, error) {
	var out []Role
	for _, role := range r.roles {
		if role.OrgID == "" || role.OrgID == orgID {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *memoryRolesRepo) GetRole(ctx context.Context, id string) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrRoleNotFound
	}
	return role, nil
}

func (r *memoryRolesRepo) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	for _, role := range r.roles {
		if role.Slug == slug {
			return role, nil
		}
	}
	return Role{}, shared.ErrRoleNotFound
}

func (r *memoryRolesRepo) GetRolesByIDs(ctx context.Context, ids []string) ([]Role, error) {
	var out []Role
	for _, id := range ids {
		if role, ok := r.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *memoryRolesRepo) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	for _, role := range r.roles {
		if role.Slug == params.Slug {
			return Role{}, fmt.Errorf("role slug %q: %w", params.Slug, shared.ErrDuplicateSlug)
		}
	}
	role := Role{
		ID:          uuid.NewString(),
		Slug:        params.Slug,
		Name:        params.Name,
		Level:       params.Level,
		Description: params.Description,
		OrgID:       params.OrgID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRolesRepo) UpdateRole(ctx context.Context, id, name string, level int, description string) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrRoleNotFound
	}
	role.Name = name
	role.Level = level
	role.Description = description
	r.roles[id] = role
	return role, nil
}

func (r *memoryRolesRepo) DeleteRole(ctx context.Context, id string) error {
	if _, ok := r.roles[id]; !ok {
		return shared.ErrRoleNotFound
	}
	delete(r.roles, id)
	delete(r.rolePerms, id)
	return nil
}

func (r *memoryRolesRepo) RolePermissions(ctx context.Context, roleSlug string) ([]string, error) {
	role, err := r.GetRoleBySlug(ctx, roleSlug)
	if err != nil {
		return nil, err
	}
	var slugs []string
	for permID := range r.rolePerms[role.ID] {
		slugs = append(slugs, r.permissions[permID].Slug)
	}
	return slugs, nil
}

func (r *memoryRolesRepo) SyncRolePermissions(ctx context.Context, roleID string, permissionIDs []string) (SyncResult, error) {
	current := r.rolePerms[roleID]
	if current == nil {
		current = make(map[string]struct{})
	}
	desired := make(map[string]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		desired[id] = struct{}{}
	}
	var result SyncResult
	for id := range current {
		if _, keep := desired[id]; !keep {
			delete(current, id)
			result.Detached++
		}
	}
	for id := range desired {
		if _, have := current[id]; !have {
			current[id] = struct{}{}
			result.Attached++
		}
	}
	r.rolePerms[roleID] = current
	return result, nil
}

func (r *memoryRolesRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, perm := range r.permissions {
		out = append(out, perm)
	}
	return out, nil
}

func (r *memoryRolesRepo) GetPermission(ctx context.Context, id string) (Permission, error) {
	perm, ok := r.permissions[id]
	if !ok {
		return Permission{}, shared.ErrPermissionNotFound
	}
	return perm, nil
}

func (r *memoryRolesRepo) GetPermissionBySlug(ctx context.Context, slug string) (Permission, error) {
	for _, perm := range r.permissions {
		if perm.Slug == slug {
			return perm, nil
		}
	}
	return Permission{}, shared.ErrPermissionNotFound
}

func (r *memoryRolesRepo) CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error) {
	for _, perm := range r.permissions {
		if perm.Slug == params.Slug {
			return Permission{}, fmt.Errorf("permission slug %q: %w", params.Slug, shared.ErrDuplicateSlug)
		}
	}
	perm := Permission{
		ID:          uuid.NewString(),
		Slug:        params.Slug,
		Name:        params.Name,
		Group:       params.Group,
		Description: params.Description,
	}
	r.permissions[perm.ID] = perm
	return perm, nil
}

func (r *memoryRolesRepo) UpdatePermission(ctx context.Context, id, name, group, description string) (Permission, error) {
	perm, ok := r.permissions[id]
	if !ok {
		return Permission{}, shared.ErrPermissionNotFound
	}
	perm.Name = name
	perm.Group = group
	perm.Description = description
	r.permissions[id] = perm
	return perm, nil
}

func (r *memoryRolesRepo) DeletePermission(ctx context.Context, id string) error {
	if _, ok := r.permissions[id]; !ok {
		return shared.ErrPermissionNotFound
	}
	delete(r.permissions, id)
	for _, perms := range r.rolePerms {
		delete(perms, id)
	}
	return nil
}

func (r *memoryRolesRepo) RolesWithPermission(ctx context.Context, permissionID string) ([]string, error) {
	var slugs []string
	for roleID, perms := range r.rolePerms {
		if _, ok := perms[permissionID]; ok {
			slugs = append(slugs, r.roles[roleID].Slug)
		}
	}
	return slugs, nil
}

func newTestService(t *testing.T) (*Service, *memoryRolesRepo, cache.Store) {
	t.Helper()
	repo := newMemoryRolesRepo()
	store := cache.NewMemoryStore(time.Minute)
	return NewService(repo, store, nil), repo, store
}

func TestCreateRoleNormalizesSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Slug: "  Branch-Admin ", Name: "Branch Admin", Level: 100})
	require.NoError(t, err)
	require.Equal(t, "branch-admin", role.Slug)
}

func TestCreateRoleDuplicateSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, CreateRoleParams{Slug: "viewer", Name: "Viewer", Level: 5})
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, CreateRoleParams{Slug: "viewer", Name: "Viewer Again", Level: 5})
	require.ErrorIs(t, err, shared.ErrDuplicateSlug)
}

func TestSyncPermissionsDiff(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Slug: "manager", Name: "Manager", Level: 50})
	require.NoError(t, err)

	view, err := svc.CreatePermission(ctx, CreatePermissionParams{Slug: "orders.view", Name: "View Orders", Group: "orders"})
	require.NoError(t, err)
	edit, err := svc.CreatePermission(ctx, CreatePermissionParams{Slug: "orders.edit", Name: "Edit Orders", Group: "orders"})
	require.NoError(t, err)
	del, err := svc.CreatePermission(ctx, CreatePermissionParams{Slug: "orders.delete", Name: "Delete Orders", Group: "orders"})
	require.NoError(t, err)

	result, err := svc.SyncPermissions(ctx, role.ID, []string{view.ID, edit.ID})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Attached: 2, Detached: 0}, result)

	// Replace edit with delete; view survives untouched.
	result, err = svc.SyncPermissions(ctx, role.ID, []string{view.ID, del.ID})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Attached: 1, Detached: 1}, result)

	perms, err := svc.RolePermissions(ctx, "manager")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"orders.view", "orders.delete"}, perms)
}

func TestSyncPermissionsResolvesSlugs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Slug: "viewer", Name: "Viewer", Level: 5})
	require.NoError(t, err)
	_, err = svc.CreatePermission(ctx, CreatePermissionParams{Slug: "orders.view", Name: "View Orders"})
	require.NoError(t, err)

	result, err := svc.SyncPermissions(ctx, role.ID, []string{"orders.view"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Attached)

	_, err = svc.SyncPermissions(ctx, role.ID, []string{"no.such.permission"})
	require.ErrorIs(t, err, shared.ErrPermissionNotFound)
}

func TestSyncPermissionsClearsRoleCache(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Slug: "manager", Name: "Manager", Level: 50})
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, CreatePermissionParams{Slug: "orders.view", Name: "View Orders"})
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, cache.RoleKey("manager"), []string{"stale.permission"}, time.Minute))

	_, err = svc.SyncPermissions(ctx, role.ID, []string{perm.ID})
	require.NoError(t, err)

	_, ok := store.Get(ctx, cache.RoleKey("manager"))
	require.False(t, ok, "cached set must be cleared before SyncPermissions returns")
}

func TestDeletePermissionClearsHolderCaches(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, CreateRoleParams{Slug: "viewer", Name: "Viewer", Level: 5})
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, CreatePermissionParams{Slug: "orders.view", Name: "View Orders"})
	require.NoError(t, err)
	_, err = svc.SyncPermissions(ctx, role.ID, []string{perm.ID})
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, cache.RoleKey("viewer"), []string{"orders.view"}, time.Minute))

	require.NoError(t, svc.DeletePermission(ctx, perm.ID))

	_, ok := store.Get(ctx, cache.RoleKey("viewer"))
	require.False(t, ok)
}

func TestDeleteRoleNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.DeleteRole(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, shared.ErrRoleNotFound)
}
