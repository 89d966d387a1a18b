package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Handler exposes authorization introspection for the calling principal.
type Handler struct {
	logger     *slog.Logger
	resolver   *Resolver
	aggregator *Aggregator
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, aggregator *Aggregator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: resolver, aggregator: aggregator}
}

// MountRoutes registers introspection routes. All answers are relative to
// the caller's principal and the access context from the request headers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/me", func(r chi.Router) {
		r.Get("/roles", h.myRoles)
		r.Get("/permissions", h.myPermissions)
		r.Post("/check", h.check)
	})
}

func (h *Handler) myRoles(w http.ResponseWriter, r *http.Request) {
	principalID := shared.PrincipalFromContext(r.Context())
	if principalID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no principal attached to request")
		return
	}
	access := shared.AccessScopeFromContext(r.Context())
	applicable, err := h.resolver.ApplicableRoles(r.Context(), principalID, access)
	if err != nil {
		h.logger.Error("introspect roles", slog.String("principal_id", principalID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type roleEntry struct {
		Slug  string `json:"slug"`
		Name  string `json:"name"`
		Level int    `json:"level"`
	}
	out := make([]roleEntry, 0, len(applicable))
	for _, role := range applicable {
		out = append(out, roleEntry{Slug: role.Slug, Name: role.Name, Level: role.Level})
	}
	highest := 0
	if len(applicable) > 0 {
		highest = applicable[0].Level
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"scope":         access.String(),
		"roles":         out,
		"highest_level": highest,
	})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principalID := shared.PrincipalFromContext(r.Context())
	if principalID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no principal attached to request")
		return
	}
	access := shared.AccessScopeFromContext(r.Context())
	perms, err := h.aggregator.AllPermissions(r.Context(), principalID, access)
	if err != nil {
		h.logger.Error("introspect permissions", slog.String("principal_id", principalID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"scope":       access.String(),
		"permissions": perms,
	})
}

type checkRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	principalID := shared.PrincipalFromContext(r.Context())
	if principalID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no principal attached to request")
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	access := shared.AccessScopeFromContext(r.Context())
	all, err := h.aggregator.AllPermissions(r.Context(), principalID, access)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	held := toSet(all)
	results := make(map[string]bool, len(req.Permissions))
	for _, p := range req.Permissions {
		_, ok := held[p]
		results[p] = ok
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"scope":   access.String(),
		"results": results,
	})
}
