package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

type stubClient struct {
	teams map[string][]Team
	perms map[string][]string
	err   error
}

func (s *stubClient) UserTeams(_ context.Context, principalID, orgID string) ([]Team, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.teams[principalID+"/"+orgID], nil
}

func (s *stubClient) TeamPermissions(_ context.Context, teamID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[teamID], nil
}

func (s *stubClient) Snapshot(context.Context) (Snapshot, error) {
	if s.err != nil {
		return Snapshot{}, s.err
	}
	return Snapshot{}, nil
}

type stubMirror struct {
	teams map[string][]Team
	perms map[string][]string
	err   error
}

func (s *stubMirror) UserTeams(_ context.Context, principalID, orgID string) ([]Team, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.teams[principalID+"/"+orgID], nil
}

func (s *stubMirror) TeamPermissions(_ context.Context, teamID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[teamID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackPrefersPrimary(t *testing.T) {
	primary := &stubClient{teams: map[string][]Team{
		"user-1/org-1": {{ID: "team-1", Name: "Platform"}},
	}}
	mirror := &stubMirror{teams: map[string][]Team{
		"user-1/org-1": {{ID: "team-stale", Name: "Stale"}},
	}}

	fb := NewFallback(primary, mirror, discardLogger())
	teams, err := fb.UserTeams(context.Background(), "user-1", "org-1")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.Equal(t, "team-1", teams[0].ID)
}

func TestFallbackServesMirrorOnOutage(t *testing.T) {
	primary := &stubClient{err: shared.ErrDirectoryUnavailable}
	mirror := &stubMirror{
		teams: map[string][]Team{"user-1/org-1": {{ID: "team-1", Name: "Platform", IsLeader: true}}},
		perms: map[string][]string{"team-1": {"reports.view"}},
	}

	fb := NewFallback(primary, mirror, discardLogger())

	teams, err := fb.UserTeams(context.Background(), "user-1", "org-1")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.True(t, teams[0].IsLeader)

	perms, err := fb.TeamPermissions(context.Background(), "team-1")
	require.NoError(t, err)
	require.Equal(t, []string{"reports.view"}, perms)
}

func TestFallbackReportsPrimaryErrorWhenBothFail(t *testing.T) {
	primary := &stubClient{err: shared.ErrDirectoryUnavailable}
	mirror := &stubMirror{err: errors.New("mirror: query failed")}

	fb := NewFallback(primary, mirror, discardLogger())
	_, err := fb.UserTeams(context.Background(), "user-1", "org-1")
	require.ErrorIs(t, err, shared.ErrDirectoryUnavailable)
}

func TestFallbackSnapshotNeverUsesMirror(t *testing.T) {
	primary := &stubClient{err: shared.ErrDirectoryUnavailable}
	fb := NewFallback(primary, &stubMirror{}, discardLogger())

	_, err := fb.Snapshot(context.Background())
	require.ErrorIs(t, err, shared.ErrDirectoryUnavailable)
}
