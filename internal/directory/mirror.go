package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
)

// Mirror persists a local copy of directory orgs and branches. The mirror
// exists so assignment listings can show names without a directory round
// trip, and so names survive directory outages.
type Mirror struct {
	pool *pgxpool.Pool
}

// NewMirror constructs a mirror over the given pool.
func NewMirror(pool *pgxpool.Pool) *Mirror {
	return &Mirror{pool: pool}
}

// OrgName returns the mirrored organization name.
func (m *Mirror) OrgName(ctx context.Context, orgID string) (string, error) {
	var name string
	err := m.pool.QueryRow(ctx,
		`SELECT name FROM directory_orgs WHERE id = $1`, orgID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("directory: org %s not mirrored", orgID)
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// BranchName returns the mirrored branch name within an org.
func (m *Mirror) BranchName(ctx context.Context, orgID, branchID string) (string, error) {
	var name string
	err := m.pool.QueryRow(ctx,
		`SELECT name FROM directory_branches WHERE org_id = $1 AND id = $2`,
		orgID, branchID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("directory: branch %s/%s not mirrored", orgID, branchID)
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// Orgs lists all mirrored organizations ordered by name.
func (m *Mirror) Orgs(ctx context.Context) ([]Org, error) {
	rows, err := m.pool.Query(ctx, `SELECT id, name FROM directory_orgs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Org
	for rows.Next() {
		var o Org
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// Branches lists the mirrored branches of an org ordered by name.
func (m *Mirror) Branches(ctx context.Context, orgID string) ([]Branch, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT id, org_id, name FROM directory_branches WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.OrgID, &b.Name); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// UserTeams lists the mirrored teams the principal belongs to within an
// org. Serves as the fallback stage when the directory is unreachable.
func (m *Mirror) UserTeams(ctx context.Context, principalID, orgID string) ([]Team, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT t.id, t.name, tm.is_leader
		   FROM directory_teams t
		   JOIN directory_team_members tm ON tm.team_id = t.id
		  WHERE tm.principal_id = $1 AND t.org_id = $2
		  ORDER BY t.name`, principalID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.IsLeader); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// TeamPermissions lists the mirrored permission slugs granted to a team.
func (m *Mirror) TeamPermissions(ctx context.Context, teamID string) ([]string, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT permission FROM directory_team_permissions WHERE team_id = $1 ORDER BY permission`,
		teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ReplaceSnapshot swaps the mirror contents for the given snapshot in one
// transaction, so readers never observe a half-refreshed mirror.
func (m *Mirror) ReplaceSnapshot(ctx context.Context, snap Snapshot) error {
	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	return db.WithTx(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM directory_teams`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM directory_branches`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM directory_orgs`); err != nil {
			return err
		}
		for _, o := range snap.Orgs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO directory_orgs (id, name, synced_at) VALUES ($1, $2, $3)`,
				o.ID, o.Name, fetchedAt); err != nil {
				return fmt.Errorf("mirror org %s: %w", o.ID, err)
			}
		}
		for _, b := range snap.Branches {
			if _, err := tx.Exec(ctx,
				`INSERT INTO directory_branches (id, org_id, name, synced_at) VALUES ($1, $2, $3, $4)`,
				b.ID, b.OrgID, b.Name, fetchedAt); err != nil {
				return fmt.Errorf("mirror branch %s: %w", b.ID, err)
			}
		}
		for _, t := range snap.Teams {
			if _, err := tx.Exec(ctx,
				`INSERT INTO directory_teams (id, org_id, name, synced_at) VALUES ($1, $2, $3, $4)`,
				t.ID, t.OrgID, t.Name, fetchedAt); err != nil {
				return fmt.Errorf("mirror team %s: %w", t.ID, err)
			}
			for _, member := range t.Members {
				if _, err := tx.Exec(ctx,
					`INSERT INTO directory_team_members (team_id, principal_id, is_leader) VALUES ($1, $2, $3)`,
					t.ID, member.PrincipalID, member.IsLeader); err != nil {
					return fmt.Errorf("mirror team %s member %s: %w", t.ID, member.PrincipalID, err)
				}
			}
			for _, perm := range t.Permissions {
				if _, err := tx.Exec(ctx,
					`INSERT INTO directory_team_permissions (team_id, permission) VALUES ($1, $2)`,
					t.ID, perm); err != nil {
					return fmt.Errorf("mirror team %s permission %s: %w", t.ID, perm, err)
				}
			}
		}
		return nil
	})
}
