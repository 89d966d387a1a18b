package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/app"
	"github.com/gatehouse-io/gatehouse/internal/assignments"
	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/roles"
	"github.com/gatehouse-io/gatehouse/internal/scope"
	"github.com/gatehouse-io/gatehouse/internal/shared"
	_ "github.com/gatehouse-io/gatehouse/internal/testing/guard"
)

type memRolesRepo struct {
	roles     map[string]roles.Role
	perms     map[string]roles.Permission
	rolePerms map[string]map[string]struct{}
}

func newMemRolesRepo() *memRolesRepo {
	return &memRolesRepo{
		roles:     map[string]roles.Role{},
		perms:     map[string]roles.Permission{},
		rolePerms: map[string]map[string]struct{}{},
	}
}

func (m *memRolesRepo) ListRoles(_ context.Context, orgID string) ([]roles.Role, error) {
	var out []roles.Role
	for _, r := range m.roles {
		if r.OrgID == "" || r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRolesRepo) GetRole(_ context.Context, id string) (roles.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return roles.Role{}, shared.ErrRoleNotFound
	}
	return r, nil
}

func (m *memRolesRepo) GetRoleBySlug(_ context.Context, slug string) (roles.Role, error) {
	for _, r := range m.roles {
		if r.Slug == slug {
			return r, nil
		}
	}
	return roles.Role{}, shared.ErrRoleNotFound
}

func (m *memRolesRepo) GetRolesByIDs(_ context.Context, ids []string) ([]roles.Role, error) {
	var out []roles.Role
	for _, id := range ids {
		if r, ok := m.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRolesRepo) CreateRole(_ context.Context, params roles.CreateRoleParams) (roles.Role, error) {
	for _, r := range m.roles {
		if r.Slug == params.Slug {
			return roles.Role{}, shared.ErrDuplicateSlug
		}
	}
	role := roles.Role{
		ID:          uuid.NewString(),
		Slug:        params.Slug,
		Name:        params.Name,
		Level:       params.Level,
		Description: params.Description,
		OrgID:       params.OrgID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memRolesRepo) UpdateRole(_ context.Context, id, name string, level int, description string) (roles.Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return roles.Role{}, shared.ErrRoleNotFound
	}
	role.Name, role.Level, role.Description = name, level, description
	m.roles[id] = role
	return role, nil
}

func (m *memRolesRepo) DeleteRole(_ context.Context, id string) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrRoleNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *memRolesRepo) RolePermissions(_ context.Context, roleSlug string) ([]string, error) {
	var out []string
	for _, r := range m.roles {
		if r.Slug != roleSlug {
			continue
		}
		for permID := range m.rolePerms[r.ID] {
			out = append(out, m.perms[permID].Slug)
		}
	}
	return out, nil
}

func (m *memRolesRepo) SyncRolePermissions(_ context.Context, roleID string, permissionIDs []string) (roles.SyncResult, error) {
	current := m.rolePerms[roleID]
	if current == nil {
		current = map[string]struct{}{}
	}
	desired := map[string]struct{}{}
	for _, id := range permissionIDs {
		desired[id] = struct{}{}
	}
	var result roles.SyncResult
	next := map[string]struct{}{}
	for id := range desired {
		if _, ok := current[id]; !ok {
			result.Attached++
		}
		next[id] = struct{}{}
	}
	for id := range current {
		if _, ok := desired[id]; !ok {
			result.Detached++
		}
	}
	m.rolePerms[roleID] = next
	return result, nil
}

func (m *memRolesRepo) ListPermissions(_ context.Context) ([]roles.Permission, error) {
	var out []roles.Permission
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *memRolesRepo) GetPermission(_ context.Context, id string) (roles.Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return roles.Permission{}, shared.ErrPermissionNotFound
	}
	return p, nil
}

func (m *memRolesRepo) GetPermissionBySlug(_ context.Context, slug string) (roles.Permission, error) {
	for _, p := range m.perms {
		if p.Slug == slug {
			return p, nil
		}
	}
	return roles.Permission{}, shared.ErrPermissionNotFound
}

func (m *memRolesRepo) CreatePermission(_ context.Context, params roles.CreatePermissionParams) (roles.Permission, error) {
	for _, p := range m.perms {
		if p.Slug == params.Slug {
			return roles.Permission{}, shared.ErrDuplicateSlug
		}
	}
	perm := roles.Permission{
		ID:          uuid.NewString(),
		Slug:        params.Slug,
		Name:        params.Name,
		Group:       params.Group,
		Description: params.Description,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	m.perms[perm.ID] = perm
	return perm, nil
}

func (m *memRolesRepo) UpdatePermission(_ context.Context, id, name, group, description string) (roles.Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return roles.Permission{}, shared.ErrPermissionNotFound
	}
	p.Name, p.Group, p.Description = name, group, description
	m.perms[id] = p
	return p, nil
}

func (m *memRolesRepo) DeletePermission(_ context.Context, id string) error {
	if _, ok := m.perms[id]; !ok {
		return shared.ErrPermissionNotFound
	}
	delete(m.perms, id)
	for roleID := range m.rolePerms {
		delete(m.rolePerms[roleID], id)
	}
	return nil
}

func (m *memRolesRepo) RolesWithPermission(_ context.Context, permissionID string) ([]string, error) {
	var out []string
	for roleID, set := range m.rolePerms {
		if _, ok := set[permissionID]; ok {
			out = append(out, m.roles[roleID].Slug)
		}
	}
	return out, nil
}

type memAssignRepo struct {
	rows []assignments.Assignment
}

func (m *memAssignRepo) Create(_ context.Context, principalID, roleID string, key scope.Key) (assignments.Assignment, error) {
	for _, a := range m.rows {
		if a.PrincipalID == principalID && a.RoleID == roleID && a.Scope == key {
			return assignments.Assignment{}, shared.ErrDuplicateAssignment
		}
	}
	a := assignments.Assignment{PrincipalID: principalID, RoleID: roleID, Scope: key, CreatedAt: time.Now().UTC()}
	m.rows = append(m.rows, a)
	return a, nil
}

func (m *memAssignRepo) Delete(_ context.Context, principalID, roleID string, key scope.Key) (int64, error) {
	for i, a := range m.rows {
		if a.PrincipalID == principalID && a.RoleID == roleID && a.Scope == key {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memAssignRepo) ListForPrincipal(_ context.Context, principalID string) ([]assignments.Assignment, error) {
	var out []assignments.Assignment
	for _, a := range m.rows {
		if a.PrincipalID == principalID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAssignRepo) ListInScope(_ context.Context, principalID string, key scope.Key) ([]assignments.Assignment, error) {
	var out []assignments.Assignment
	for _, a := range m.rows {
		if a.PrincipalID == principalID && a.Scope == key {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAssignRepo) SyncScope(_ context.Context, principalID string, desiredRoleIDs []string, key scope.Key) (assignments.SyncResult, error) {
	desired := map[string]struct{}{}
	for _, id := range desiredRoleIDs {
		desired[id] = struct{}{}
	}
	var result assignments.SyncResult
	kept := m.rows[:0:0]
	current := map[string]struct{}{}
	for _, a := range m.rows {
		if a.PrincipalID == principalID && a.Scope == key {
			if _, keep := desired[a.RoleID]; !keep {
				result.Detached = append(result.Detached, a.RoleID)
				continue
			}
			current[a.RoleID] = struct{}{}
		}
		kept = append(kept, a)
	}
	m.rows = kept
	for id := range desired {
		if _, have := current[id]; !have {
			m.rows = append(m.rows, assignments.Assignment{PrincipalID: principalID, RoleID: id, Scope: key, CreatedAt: time.Now().UTC()})
			result.Attached = append(result.Attached, id)
		}
	}
	return result, nil
}

// newTestServer wires the full HTTP stack against in-memory storage and
// seeds an administrator principal called "root".
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cache.NewMemoryStore(time.Minute)

	rolesRepo := newMemRolesRepo()
	rolesService := roles.NewService(rolesRepo, store, logger)

	ctx := context.Background()
	adminRole, err := rolesService.CreateRole(ctx, roles.CreateRoleParams{Slug: "admin", Name: "Administrator", Level: 100})
	require.NoError(t, err)
	for _, slug := range shared.IAMScopes() {
		_, err := rolesService.CreatePermission(ctx, roles.CreatePermissionParams{Slug: slug, Name: slug, Group: "iam"})
		require.NoError(t, err)
	}
	_, err = rolesService.SyncPermissions(ctx, adminRole.ID, shared.IAMScopes())
	require.NoError(t, err)

	assignRepo := &memAssignRepo{}
	assignService := assignments.NewService(assignRepo, rolesService, nil, logger)
	_, err = assignService.Assign(ctx, "root", "admin", scope.Global())
	require.NoError(t, err)

	resolver := authz.NewResolver(assignRepo, rolesService)
	aggregator := authz.NewAggregator(resolver, rolesService, nil, store, logger)
	guard := authz.Middleware{Aggregator: aggregator, Resolver: resolver, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             &app.Config{AppRequestTimeout: 10 * time.Second},
		RolesHandler:       roles.NewHandler(logger, rolesService, guard),
		AssignmentsHandler: assignments.NewHandler(logger, assignService, guard),
		AuthzHandler:       authz.NewHandler(logger, resolver, aggregator),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, principal, orgID, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		req.Header.Set(authz.HeaderPrincipalID, principal)
	}
	if orgID != "" {
		req.Header.Set(authz.HeaderOrgID, orgID)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return res, data
}

func TestAdminGrantsRoleAndPrincipalGainsPermissions(t *testing.T) {
	srv := newTestServer(t)

	// Admin creates a permission and a role carrying it.
	res, _ := call(t, srv, http.MethodPost, "/api/iam/permissions", "root", "",
		`{"slug":"reports.view","name":"View reports","group":"reports"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, body := call(t, srv, http.MethodPost, "/api/iam/roles", "root", "",
		`{"slug":"analyst","name":"Analyst","level":10}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	res, _ = call(t, srv, http.MethodPut, "/api/iam/roles/"+created.ID+"/permissions", "root", "",
		`{"permissions":["reports.view"]}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Grant the role to user-7 inside org-1 only.
	res, _ = call(t, srv, http.MethodPost, "/api/iam/principals/user-7/assignments", "root", "",
		`{"role":"analyst","scope":{"org_id":"org-1"}}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	// Inside org-1 the permission is effective.
	res, body = call(t, srv, http.MethodGet, "/api/me/permissions", "user-7", "org-1", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var perms struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(body, &perms))
	require.Contains(t, perms.Permissions, "reports.view")

	// Outside the org it is not.
	res, body = call(t, srv, http.MethodGet, "/api/me/permissions", "user-7", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	perms.Permissions = nil
	require.NoError(t, json.Unmarshal(body, &perms))
	require.NotContains(t, perms.Permissions, "reports.view")
}

func TestNonAdminCannotAdministerRoles(t *testing.T) {
	srv := newTestServer(t)

	res, _ := call(t, srv, http.MethodPost, "/api/iam/roles", "user-7", "",
		`{"slug":"sneaky","name":"Sneaky","level":999}`)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = call(t, srv, http.MethodGet, "/api/iam/roles", "", "", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestDuplicateAssignmentConflictsOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	res, _ := call(t, srv, http.MethodPost, "/api/iam/principals/user-9/assignments", "root", "",
		`{"role":"admin","scope":{"org_id":"org-1"}}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, _ = call(t, srv, http.MethodPost, "/api/iam/principals/user-9/assignments", "root", "",
		`{"role":"admin","scope":{"org_id":"org-1"}}`)
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestMalformedScopeRejectedOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	res, _ := call(t, srv, http.MethodPost, "/api/iam/principals/user-9/assignments", "root", "",
		`{"role":"admin","scope":{"branch_id":"branch-1"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}
