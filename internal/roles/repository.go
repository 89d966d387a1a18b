package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/platform/db"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Repository provides PostgreSQL backed persistence for role and
// permission definitions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, slug, name, level, description, org_id, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var (
		role  Role
		orgID pgtype.Text
	)
	if err := row.Scan(&role.ID, &role.Slug, &role.Name, &role.Level, &role.Description, &orgID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.OrgID = orgID.String
	return role, nil
}

// ListRoles returns role definitions visible in the given organization
// catalogue (shared definitions plus that org's own), most privileged first.
// An empty orgID lists shared definitions only.
func (r *Repository) ListRoles(ctx context.Context, orgID string) ([]Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE org_id IS NULL ORDER BY level DESC, slug`
	args := []any{}
	if orgID != "" {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE org_id IS NULL OR org_id = $1 ORDER BY level DESC, slug`
		args = append(args, orgID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrRoleNotFound
	}
	return role, err
}

// GetRoleBySlug fetches a role by its unique slug.
func (r *Repository) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE slug = $1`, slug)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrRoleNotFound
	}
	return role, err
}

// GetRolesByIDs fetches the given roles in one round trip. Unknown IDs are
// silently dropped; resolution treats them as no longer assigned.
func (r *Repository) GetRolesByIDs(ctx context.Context, ids []string) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRoleParams carries the fields for a new role definition.
type CreateRoleParams struct {
	Slug        string
	Name        string
	Level       int
	Description string
	OrgID       string
}

// CreateRole inserts a new role definition.
func (r *Repository) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (id, slug, name, level, description, org_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 RETURNING `+roleColumns,
		uuid.NewString(), params.Slug, params.Name, params.Level, params.Description, nullText(params.OrgID), now)
	role, err := scanRole(row)
	if isUniqueViolation(err) {
		return Role{}, fmt.Errorf("role slug %q: %w", params.Slug, shared.ErrDuplicateSlug)
	}
	return role, err
}

// UpdateRole updates a role's mutable fields. The slug is immutable.
func (r *Repository) UpdateRole(ctx context.Context, id, name string, level int, description string) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, level = $3, description = $4, updated_at = $5
		 WHERE id = $1
		 RETURNING `+roleColumns,
		id, name, level, description, time.Now().UTC())
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrRoleNotFound
	}
	return role, err
}

// DeleteRole removes a role definition together with its permission links
// and assignments (cascaded by the schema).
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRoleNotFound
	}
	return nil
}

// RolePermissions returns the permission slugs attached to a role,
// identified by role slug.
func (r *Repository) RolePermissions(ctx context.Context, roleSlug string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.slug
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN roles ro ON ro.id = rp.role_id
		 WHERE ro.slug = $1
		 ORDER BY p.slug`,
		roleSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// SyncRolePermissions replaces a role's permission set with the desired
// permission IDs, applying only the difference. Both phases run in one
// transaction.
func (r *Repository) SyncRolePermissions(ctx context.Context, roleID string, permissionIDs []string) (SyncResult, error) {
	desired := make(map[string]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		desired[id] = struct{}{}
	}

	var result SyncResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
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

		now := time.Now().UTC()
		for id := range current {
			if _, keep := desired[id]; !keep {
				if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, id); err != nil {
					return err
				}
				result.Detached++
			}
		}
		for id := range desired {
			if _, have := current[id]; !have {
				if _, err := tx.Exec(ctx,
					`INSERT INTO role_permissions (role_id, permission_id, created_at) VALUES ($1, $2, $3)`,
					roleID, id, now); err != nil {
					return err
				}
				result.Attached++
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

func nullText(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	return pgtype.Text{String: value, Valid: value != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
