package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/scope"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Header names trusted from the authenticating proxy in front of the
// service.
const (
	HeaderPrincipalID = "X-Principal-ID"
	HeaderOrgID       = "X-Org-ID"
	HeaderBranchID    = "X-Branch-ID"
)

// WithPrincipal extracts the authenticated principal from the trusted
// header and stores it in context. Requests without a principal pass
// through; the permission guards reject them.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID := strings.TrimSpace(r.Header.Get(HeaderPrincipalID))
		if principalID != "" {
			r = r.WithContext(shared.ContextWithPrincipal(r.Context(), principalID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithAccessScope resolves the request's access context from the org and
// branch headers. A branch header without an org header is malformed and
// rejected before any handler runs.
func WithAccessScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := scope.New(r.Header.Get(HeaderOrgID), r.Header.Get(HeaderBranchID))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithAccessScope(r.Context(), key)))
	})
}

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Aggregator *Aggregator
	Resolver   *Resolver
	Logger     *slog.Logger
	Metrics    DecisionMetrics
}

// DecisionMetrics counts allow/deny outcomes. A nil value disables
// recording.
type DecisionMetrics interface {
	Decision(outcome string)
}

// RequireAll ensures the principal holds every listed permission in the
// request's access context.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.guard(func(r *http.Request, principalID string, access scope.Key) (bool, error) {
		return m.Aggregator.HasAll(r.Context(), principalID, required, access)
	}, len(required) == 0)
}

// RequireAny ensures the principal holds at least one listed permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.guard(func(r *http.Request, principalID string, access scope.Key) (bool, error) {
		return m.Aggregator.HasAny(r.Context(), principalID, required, access)
	}, len(required) == 0)
}

// RequireRole ensures the principal holds the role in the request's access
// context.
func (m Middleware) RequireRole(roleSlug string) func(http.Handler) http.Handler {
	roleSlug = strings.TrimSpace(strings.ToLower(roleSlug))
	return m.guard(func(r *http.Request, principalID string, access scope.Key) (bool, error) {
		return m.Resolver.HasRole(r.Context(), principalID, roleSlug, access)
	}, roleSlug == "")
}

// RequireMinLevel ensures the principal's most privileged applicable role
// reaches the given level.
func (m Middleware) RequireMinLevel(level int) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, principalID string, access scope.Key) (bool, error) {
		highest, err := m.Resolver.HighestLevel(r.Context(), principalID, access)
		if err != nil {
			return false, err
		}
		return highest >= level, nil
	}, level <= 0)
}

func (m Middleware) guard(check func(*http.Request, string, scope.Key) (bool, error), vacuous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if vacuous {
				next.ServeHTTP(w, r)
				return
			}
			principalID := shared.PrincipalFromContext(r.Context())
			if principalID == "" {
				m.decide("unauthenticated")
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			access := shared.AccessScopeFromContext(r.Context())
			ok, err := check(r, principalID, access)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz check",
						slog.String("principal_id", principalID),
						slog.String("scope", access.String()),
						slog.Any("error", err))
				}
				m.decide("error")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !ok {
				m.deny(w, "forbidden")
				return
			}
			m.decide("allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, outcome string) {
	m.decide(outcome)
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func (m Middleware) decide(outcome string) {
	if m.Metrics != nil {
		m.Metrics.Decision(outcome)
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
