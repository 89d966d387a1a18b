package directory

import (
	"context"
	"log/slog"
)

// TeamReader is the subset of team lookups the local mirror can answer.
type TeamReader interface {
	UserTeams(ctx context.Context, principalID, orgID string) ([]Team, error)
	TeamPermissions(ctx context.Context, teamID string) ([]string, error)
}

// Fallback serves team lookups from the console API first and falls back
// to the local mirror when the console is unreachable. Mirror data is at
// most one sync interval stale, which beats answering with nothing during
// an outage. Snapshot always goes to the console: the mirror is its output,
// not a source.
type Fallback struct {
	primary Client
	mirror  TeamReader
	logger  *slog.Logger
}

// NewFallback wires the two-stage client. logger may be nil.
func NewFallback(primary Client, mirror TeamReader, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, mirror: mirror, logger: logger}
}

// UserTeams implements Client.
func (f *Fallback) UserTeams(ctx context.Context, principalID, orgID string) ([]Team, error) {
	teams, err := f.primary.UserTeams(ctx, principalID, orgID)
	if err == nil {
		return teams, nil
	}
	f.logger.Warn("directory unavailable, serving teams from mirror",
		slog.String("principal_id", principalID),
		slog.String("org_id", orgID),
		slog.Any("error", err))
	teams, mirrorErr := f.mirror.UserTeams(ctx, principalID, orgID)
	if mirrorErr != nil {
		return nil, err
	}
	return teams, nil
}

// TeamPermissions implements Client.
func (f *Fallback) TeamPermissions(ctx context.Context, teamID string) ([]string, error) {
	perms, err := f.primary.TeamPermissions(ctx, teamID)
	if err == nil {
		return perms, nil
	}
	f.logger.Warn("directory unavailable, serving team permissions from mirror",
		slog.String("team_id", teamID),
		slog.Any("error", err))
	perms, mirrorErr := f.mirror.TeamPermissions(ctx, teamID)
	if mirrorErr != nil {
		return nil, err
	}
	return perms, nil
}

// Snapshot implements Client.
func (f *Fallback) Snapshot(ctx context.Context) (Snapshot, error) {
	return f.primary.Snapshot(ctx)
}
