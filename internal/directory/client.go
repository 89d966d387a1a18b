package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Client reads team data from the directory.
type Client interface {
	// UserTeams lists the teams the principal belongs to within an org.
	UserTeams(ctx context.Context, principalID, orgID string) ([]Team, error)
	// TeamPermissions lists the permission slugs granted to a team.
	TeamPermissions(ctx context.Context, teamID string) ([]string, error)
	// Snapshot fetches the full org and branch listing for the mirror.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// HTTPClient talks to the console directory API over HTTP with a bearer
// token. Every failure is reported as ErrDirectoryUnavailable so callers
// can apply their degradation policy without inspecting transport details.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds a client for the console directory API.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// UserTeams implements Client.
func (c *HTTPClient) UserTeams(ctx context.Context, principalID, orgID string) ([]Team, error) {
	path := fmt.Sprintf("/api/orgs/%s/users/%s/teams", url.PathEscape(orgID), url.PathEscape(principalID))
	var payload struct {
		Teams []Team `json:"teams"`
	}
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Teams, nil
}

// TeamPermissions implements Client.
func (c *HTTPClient) TeamPermissions(ctx context.Context, teamID string) ([]string, error) {
	path := fmt.Sprintf("/api/teams/%s/permissions", url.PathEscape(teamID))
	var payload struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Permissions, nil
}

// Snapshot implements Client.
func (c *HTTPClient) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := c.getJSON(ctx, "/api/directory/snapshot", &snap); err != nil {
		return Snapshot{}, err
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	return snap, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %s: %v: %w", path, err, shared.ErrDirectoryUnavailable)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("directory: %s: status %d: %w", path, res.StatusCode, shared.ErrDirectoryUnavailable)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: %s: decode: %v: %w", path, err, shared.ErrDirectoryUnavailable)
	}
	return nil
}
