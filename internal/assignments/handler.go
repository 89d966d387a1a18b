package assignments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/scope"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Guard wires permission checks around admin routes.
type Guard interface {
	RequireAll(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes assignment administration endpoints under a principal.
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

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/principals/{principalID}/assignments", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAll(shared.PermAssignmentsView))
			r.Get("/", h.list)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAll(shared.PermAssignmentsEdit))
			r.Post("/", h.assign)
			r.Delete("/", h.remove)
			r.Put("/", h.sync)
		})
	})
}

type scopeRequest struct {
	OrgID    string `json:"org_id" validate:"max=64"`
	BranchID string `json:"branch_id" validate:"max=64"`
}

func (sr scopeRequest) key() (scope.Key, error) {
	return scope.New(sr.OrgID, sr.BranchID)
}

type assignmentResponse struct {
	PrincipalID string `json:"principal_id"`
	RoleID      string `json:"role_id"`
	RoleSlug    string `json:"role_slug,omitempty"`
	RoleName    string `json:"role_name,omitempty"`
	Level       int    `json:"level,omitempty"`
	Tier        string `json:"tier"`
	OrgID       string `json:"org_id,omitempty"`
	OrgName     string `json:"org_name,omitempty"`
	BranchID    string `json:"branch_id,omitempty"`
	BranchName  string `json:"branch_name,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toAssignmentResponse(d Detail) assignmentResponse {
	return assignmentResponse{
		PrincipalID: d.PrincipalID,
		RoleID:      d.RoleID,
		RoleSlug:    d.Role.Slug,
		RoleName:    d.Role.Name,
		Level:       d.Role.Level,
		Tier:        string(d.Tier),
		OrgID:       d.Scope.OrgID,
		OrgName:     d.OrgName,
		BranchID:    d.Scope.BranchID,
		BranchName:  d.BranchName,
		CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")
	details, err := h.service.ListForPrincipal(r.Context(), principalID)
	if err != nil {
		h.logger.Error("list assignments", slog.String("principal_id", principalID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]assignmentResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toAssignmentResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": out})
}

type assignRequest struct {
	// Role may reference the catalog by ID or slug.
	Role  string       `json:"role" validate:"required,max=64"`
	Scope scopeRequest `json:"scope"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := req.Scope.key()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	assignment, err := h.service.Assign(r.Context(), chi.URLParam(r, "principalID"), req.Role, key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"principal_id": assignment.PrincipalID,
		"role_id":      assignment.RoleID,
		"org_id":       assignment.Scope.OrgID,
		"branch_id":    assignment.Scope.BranchID,
		"tier":         string(assignment.Scope.Tier()),
	})
}

type removeRequest struct {
	Role  string       `json:"role" validate:"required,max=64"`
	Scope scopeRequest `json:"scope"`
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := req.Scope.key()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	removed, err := h.service.Remove(r.Context(), chi.URLParam(r, "principalID"), req.Role, key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

type syncRequest struct {
	Roles []string     `json:"roles" validate:"dive,required,max=64"`
	Scope scopeRequest `json:"scope"`
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := req.Scope.key()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.SyncScope(r.Context(), chi.URLParam(r, "principalID"), req.Roles, key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"attached": result.Attached,
		"detached": result.Detached,
	})
}
