package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

func TestHTTPClientUserTeams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/orgs/org-1/users/user-1/teams", r.URL.Path)
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"teams":[{"id":"team-1","name":"Platform","is_leader":true},{"id":"team-2","name":"Support","is_leader":false}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "sekrit", time.Second)
	teams, err := client.UserTeams(context.Background(), "user-1", "org-1")
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.Equal(t, "team-1", teams[0].ID)
	require.True(t, teams[0].IsLeader)
}

func TestHTTPClientTeamPermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/teams/team-1/permissions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"permissions":["reports.view","reports.export"]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second)
	perms, err := client.TeamPermissions(context.Background(), "team-1")
	require.NoError(t, err)
	require.Equal(t, []string{"reports.view", "reports.export"}, perms)
}

func TestHTTPClientServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second)
	_, err := client.UserTeams(context.Background(), "user-1", "org-1")
	require.ErrorIs(t, err, shared.ErrDirectoryUnavailable)
}

func TestHTTPClientConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewHTTPClient(srv.URL, "", 200*time.Millisecond)
	_, err := client.TeamPermissions(context.Background(), "team-1")
	require.ErrorIs(t, err, shared.ErrDirectoryUnavailable)
}

func TestHTTPClientMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second)
	_, err := client.Snapshot(context.Background())
	require.ErrorIs(t, err, shared.ErrDirectoryUnavailable)
}
