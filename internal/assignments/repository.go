package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/scope"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Repository provides PostgreSQL backed persistence for role assignments.
// The role_assignments table carries a unique index over
// (principal_id, role_id, org_id, branch_id) with NULLS NOT DISTINCT, so a
// race between two identical creates yields exactly one row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scopeArgs(key scope.Key) (pgtype.Text, pgtype.Text) {
	org := pgtype.Text{String: key.OrgID, Valid: key.OrgID != ""}
	branch := pgtype.Text{String: key.BranchID, Valid: key.BranchID != ""}
	return org, branch
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var (
		a      Assignment
		org    pgtype.Text
		branch pgtype.Text
	)
	if err := row.Scan(&a.PrincipalID, &a.RoleID, &org, &branch, &a.CreatedAt); err != nil {
		return Assignment{}, err
	}
	a.Scope = scope.Key{OrgID: org.String, BranchID: branch.String}
	return a, nil
}

// Create inserts an assignment for the exact triple. A concurrent or prior
// identical assignment surfaces as ErrDuplicateAssignment.
func (r *Repository) Create(ctx context.Context, principalID, roleID string, key scope.Key) (Assignment, error) {
	org, branch := scopeArgs(key)
	row := r.pool.QueryRow(ctx,
		`INSERT INTO role_assignments (principal_id, role_id, org_id, branch_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING principal_id, role_id, org_id, branch_id, created_at`,
		principalID, roleID, org, branch, time.Now().UTC())
	assignment, err := scanAssignment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, fmt.Errorf("%s role %s at %s: %w", principalID, roleID, key, shared.ErrDuplicateAssignment)
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Assignment{}, shared.ErrRoleNotFound
		}
		return Assignment{}, err
	}
	return assignment, nil
}

// Delete removes the assignment matching the exact scope. It returns the
// number of removed rows; 0 means nothing matched and is not an error.
func (r *Repository) Delete(ctx context.Context, principalID, roleID string, key scope.Key) (int64, error) {
	org, branch := scopeArgs(key)
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM role_assignments
		 WHERE principal_id = $1 AND role_id = $2
		   AND org_id IS NOT DISTINCT FROM $3
		   AND branch_id IS NOT DISTINCT FROM $4`,
		principalID, roleID, org, branch)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListForPrincipal returns every assignment held by the principal across
// all scopes.
func (r *Repository) ListForPrincipal(ctx context.Context, principalID string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT principal_id, role_id, org_id, branch_id, created_at
		 FROM role_assignments
		 WHERE principal_id = $1
		 ORDER BY created_at`,
		principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// ListInScope returns the principal's assignments matching the exact scope.
func (r *Repository) ListInScope(ctx context.Context, principalID string, key scope.Key) ([]Assignment, error) {
	org, branch := scopeArgs(key)
	rows, err := r.pool.Query(ctx,
		`SELECT principal_id, role_id, org_id, branch_id, created_at
		 FROM role_assignments
		 WHERE principal_id = $1
		   AND org_id IS NOT DISTINCT FROM $2
		   AND branch_id IS NOT DISTINCT FROM $3
		 ORDER BY created_at`,
		principalID, org, branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// SyncScope replaces the principal's role set within the exact scope,
// touching nothing outside it. Detaches run before attaches, both inside
// one transaction so the scope never ends up half-synced.
func (r *Repository) SyncScope(ctx context.Context, principalID string, desiredRoleIDs []string, key scope.Key) (SyncResult, error) {
	desired := make(map[string]struct{}, len(desiredRoleIDs))
	for _, id := range desiredRoleIDs {
		desired[id] = struct{}{}
	}
	org, branch := scopeArgs(key)

	var result SyncResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT role_id FROM role_assignments
			 WHERE principal_id = $1
			   AND org_id IS NOT DISTINCT FROM $2
			   AND branch_id IS NOT DISTINCT FROM $3
			 FOR UPDATE`,
			principalID, org, branch)
		if err != nil {
			return err
		}
		current := make(map[string]struct{})
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			current[id] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for id := range current {
			if _, keep := desired[id]; !keep {
				if _, err := tx.Exec(ctx,
					`DELETE FROM role_assignments
					 WHERE principal_id = $1 AND role_id = $2
					   AND org_id IS NOT DISTINCT FROM $3
					   AND branch_id IS NOT DISTINCT FROM $4`,
					principalID, id, org, branch); err != nil {
					return err
				}
				result.Detached = append(result.Detached, id)
			}
		}
		now := time.Now().UTC()
		for id := range desired {
			if _, have := current[id]; !have {
				if _, err := tx.Exec(ctx,
					`INSERT INTO role_assignments (principal_id, role_id, org_id, branch_id, created_at)
					 VALUES ($1, $2, $3, $4, $5)`,
					principalID, id, org, branch, now); err != nil {
					var pgErr *pgconn.PgError
					if errors.As(err, &pgErr) && pgErr.Code == "23503" {
						return fmt.Errorf("attach %s: %w", id, shared.ErrRoleNotFound)
					}
					return err
				}
				result.Attached = append(result.Attached, id)
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}
