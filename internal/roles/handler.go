package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Guard wires permission checks around admin routes.
type Guard interface {
	RequireAll(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes role and permission administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Guard
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers role and permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAll(shared.PermRolesView))
			r.Get("/", h.listRoles)
			r.Get("/{roleID}", h.getRole)
			r.Get("/{roleID}/permissions", h.getRolePermissions)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAll(shared.PermRolesEdit))
			r.Post("/", h.createRole)
			r.Put("/{roleID}", h.updateRole)
			r.Delete("/{roleID}", h.deleteRole)
			r.Put("/{roleID}/permissions", h.syncRolePermissions)
		})
	})
	r.Route("/permissions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAll(shared.PermPermissionsView))
			r.Get("/", h.listPermissions)
			r.Get("/grouped", h.groupedPermissions)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAll(shared.PermPermissionsEdit))
			r.Post("/", h.createPermission)
			r.Put("/{permissionID}", h.updatePermission)
			r.Delete("/{permissionID}", h.deletePermission)
		})
	})
}

type roleResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	Description string `json:"description,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Slug:        role.Slug,
		Name:        role.Name,
		Level:       role.Level,
		Description: role.Description,
		OrgID:       role.OrgID,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	orgID := shared.AccessScopeFromContext(r.Context()).OrgID
	roles, err := h.service.ListRoles(r.Context(), orgID)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type createRoleRequest struct {
	Slug        string `json:"slug" validate:"required,min=2,max=64"`
	Name        string `json:"name" validate:"required,max=128"`
	Level       int    `json:"level" validate:"gte=0,lte=1000"`
	Description string `json:"description" validate:"max=512"`
	OrgID       string `json:"org_id" validate:"max=64"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleParams{
		Slug:        req.Slug,
		Name:        req.Name,
		Level:       req.Level,
		Description: req.Description,
		OrgID:       req.OrgID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type updateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Level       int    `json:"level" validate:"gte=0,lte=1000"`
	Description string `json:"description" validate:"max=512"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "roleID"), req.Name, req.Level, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), role.Slug)
	if err != nil {
		h.logger.Error("role permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        toRoleResponse(role),
		"permissions": perms,
	})
}

type syncPermissionsRequest struct {
	// Permissions may reference definitions by ID or slug.
	Permissions []string `json:"permissions" validate:"dive,required"`
}

func (h *Handler) syncRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req syncPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.SyncPermissions(r.Context(), chi.URLParam(r, "roleID"), req.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"attached": result.Attached,
		"detached": result.Detached,
	})
}

type permissionResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Group       string `json:"group,omitempty"`
	Description string `json:"description,omitempty"`
}

func toPermissionResponse(perm Permission) permissionResponse {
	return permissionResponse{
		ID:          perm.ID,
		Slug:        perm.Slug,
		Name:        perm.Name,
		Group:       perm.Group,
		Description: perm.Description,
	}
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, perm := range perms {
		out = append(out, toPermissionResponse(perm))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) groupedPermissions(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.service.GroupedPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make(map[string][]permissionResponse, len(grouped))
	for group, perms := range grouped {
		entries := make([]permissionResponse, 0, len(perms))
		for _, perm := range perms {
			entries = append(entries, toPermissionResponse(perm))
		}
		out[group] = entries
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": out})
}

type createPermissionRequest struct {
	Slug        string `json:"slug" validate:"required,min=2,max=64"`
	Name        string `json:"name" validate:"required,max=128"`
	Group       string `json:"group" validate:"max=64"`
	Description string `json:"description" validate:"max=512"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), CreatePermissionParams{
		Slug:        req.Slug,
		Name:        req.Name,
		Group:       req.Group,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

type updatePermissionRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Group       string `json:"group" validate:"max=64"`
	Description string `json:"description" validate:"max=512"`
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), chi.URLParam(r, "permissionID"), req.Name, req.Group, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePermission(r.Context(), chi.URLParam(r, "permissionID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
