package authz

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-io/gatehouse/internal/directory"
	"github.com/gatehouse-io/gatehouse/internal/platform/cache"
	"github.com/gatehouse-io/gatehouse/internal/scope"
)

// TeamsPort is the slice of the directory client the aggregator needs.
type TeamsPort interface {
	UserTeams(ctx context.Context, principalID, orgID string) ([]directory.Team, error)
	TeamPermissions(ctx context.Context, teamID string) ([]string, error)
}

// CacheMetrics records cache effectiveness. Implementations must be safe
// for concurrent use; a nil CacheMetrics disables recording.
type CacheMetrics interface {
	CacheHit(kind string)
	CacheMiss(kind string)
}

// Aggregator computes a principal's effective permission set: the union of
// every applicable role's permissions plus the principal's team permissions
// within the org. Both sources are cached with a TTL; team lookups degrade
// to the empty set when the directory is unreachable, so an authorization
// check never fails closed on a directory outage while role permissions
// keep working.
type Aggregator struct {
	resolver *Resolver
	roles    RolesPort
	teams    TeamsPort
	cache    cache.Store
	metrics  CacheMetrics
	logger   *slog.Logger

	roleTTL time.Duration
	teamTTL time.Duration

	group singleflight.Group
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTTLs overrides the role and team cache TTLs.
func WithTTLs(roleTTL, teamTTL time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if roleTTL > 0 {
			a.roleTTL = roleTTL
		}
		if teamTTL > 0 {
			a.teamTTL = teamTTL
		}
	}
}

// WithCacheMetrics wires cache hit/miss counters.
func WithCacheMetrics(m CacheMetrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator builds an aggregator. teams may be nil when no directory is
// configured; team permissions then always resolve to the empty set.
func NewAggregator(resolver *Resolver, rolesPort RolesPort, teams TeamsPort, store cache.Store, logger *slog.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		resolver: resolver,
		roles:    rolesPort,
		teams:    teams,
		cache:    store,
		logger:   logger,
		roleTTL:  5 * time.Minute,
		teamTTL:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RolePermissions returns the permission slugs of a single role, from cache
// when fresh. Concurrent misses for the same role collapse into one store
// read.
func (a *Aggregator) RolePermissions(ctx context.Context, roleSlug string) ([]string, error) {
	key := cache.RoleKey(roleSlug)
	if perms, ok := a.cache.Get(ctx, key); ok {
		a.hit("role")
		return perms, nil
	}
	a.miss("role")

	v, err, _ := a.group.Do(key, func() (any, error) {
		perms, err := a.roles.RolePermissions(ctx, roleSlug)
		if err != nil {
			return nil, err
		}
		if err := a.cache.Set(ctx, key, perms, a.roleTTL); err != nil {
			a.logger.Warn("cache role permissions", slog.String("role", roleSlug), slog.Any("error", err))
		}
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// TeamPermissions returns the permission slugs the principal inherits from
// team membership within the access context's org. Outside any org the set
// is empty: team permissions are org-scoped. A directory failure logs and
// yields the empty set rather than an error.
func (a *Aggregator) TeamPermissions(ctx context.Context, principalID string, access scope.Key) ([]string, error) {
	if access.OrgID == "" || a.teams == nil {
		return nil, nil
	}
	key := cache.TeamPermsKey(principalID, access.OrgID)
	if perms, ok := a.cache.Get(ctx, key); ok {
		a.hit("team")
		return perms, nil
	}
	a.miss("team")

	v, err, _ := a.group.Do(key, func() (any, error) {
		perms, err := a.fetchTeamPermissions(ctx, principalID, access.OrgID)
		if err != nil {
			a.logger.Warn("team permissions unavailable",
				slog.String("principal_id", principalID),
				slog.String("org_id", access.OrgID),
				slog.Any("error", err))
			return []string{}, nil
		}
		if err := a.cache.Set(ctx, key, perms, a.teamTTL); err != nil {
			a.logger.Warn("cache team permissions", slog.String("principal_id", principalID), slog.Any("error", err))
		}
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (a *Aggregator) fetchTeamPermissions(ctx context.Context, principalID, orgID string) ([]string, error) {
	teams, err := a.teams.UserTeams(ctx, principalID, orgID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, team := range teams {
		perms, err := a.teams.TeamPermissions(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}
	return sortedSet(set), nil
}

// AllPermissions returns the principal's full effective permission set in
// the access context: applicable role permissions unioned with team
// permissions, deduplicated and sorted.
func (a *Aggregator) AllPermissions(ctx context.Context, principalID string, access scope.Key) ([]string, error) {
	applicable, err := a.resolver.ApplicableRoles(ctx, principalID, access)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, role := range applicable {
		perms, err := a.RolePermissions(ctx, role.Slug)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}
	teamPerms, err := a.TeamPermissions(ctx, principalID, access)
	if err != nil {
		return nil, err
	}
	for _, p := range teamPerms {
		set[p] = struct{}{}
	}
	return sortedSet(set), nil
}

// Has reports whether the principal holds the permission in the access
// context.
func (a *Aggregator) Has(ctx context.Context, principalID, permission string, access scope.Key) (bool, error) {
	all, err := a.AllPermissions(ctx, principalID, access)
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// HasAny reports whether the principal holds at least one of the
// permissions.
func (a *Aggregator) HasAny(ctx context.Context, principalID string, permissions []string, access scope.Key) (bool, error) {
	all, err := a.AllPermissions(ctx, principalID, access)
	if err != nil {
		return false, err
	}
	held := toSet(all)
	for _, p := range permissions {
		if _, ok := held[p]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the principal holds every one of the permissions.
func (a *Aggregator) HasAll(ctx context.Context, principalID string, permissions []string, access scope.Key) (bool, error) {
	all, err := a.AllPermissions(ctx, principalID, access)
	if err != nil {
		return false, err
	}
	held := toSet(all)
	for _, p := range permissions {
		if _, ok := held[p]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// InvalidateTeamPermissions drops the cached team permission set for the
// principal within an org, forcing the next check to re-read the directory.
func (a *Aggregator) InvalidateTeamPermissions(ctx context.Context, principalID, orgID string) error {
	return a.cache.Delete(ctx, cache.TeamPermsKey(principalID, orgID))
}

func (a *Aggregator) hit(kind string) {
	if a.metrics != nil {
		a.metrics.CacheHit(kind)
	}
}

func (a *Aggregator) miss(kind string) {
	if a.metrics != nil {
		a.metrics.CacheMiss(kind)
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
