package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

const permissionColumns = `id, slug, name, perm_group, description, created_at, updated_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var perm Permission
	if err := row.Scan(&perm.ID, &perm.Slug, &perm.Name, &perm.Group, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// ListPermissions returns all permission definitions ordered by group then slug.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY perm_group, slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// GetPermission fetches a permission by ID.
func (r *Repository) GetPermission(ctx context.Context, id string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	perm, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.ErrPermissionNotFound
	}
	return perm, err
}

// GetPermissionBySlug fetches a permission by its unique slug.
func (r *Repository) GetPermissionBySlug(ctx context.Context, slug string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE slug = $1`, slug)
	perm, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.ErrPermissionNotFound
	}
	return perm, err
}

// CreatePermissionParams carries the fields for a new permission definition.
type CreatePermissionParams struct {
	Slug        string
	Name        string
	Group       string
	Description string
}

// CreatePermission inserts a new permission definition.
func (r *Repository) CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (id, slug, name, perm_group, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING `+permissionColumns,
		uuid.NewString(), params.Slug, params.Name, params.Group, params.Description, now)
	perm, err := scanPermission(row)
	if isUniqueViolation(err) {
		return Permission{}, fmt.Errorf("permission slug %q: %w", params.Slug, shared.ErrDuplicateSlug)
	}
	return perm, err
}

// UpdatePermission updates a permission's mutable fields. The slug is immutable.
func (r *Repository) UpdatePermission(ctx context.Context, id, name, group, description string) (Permission, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, perm_group = $3, description = $4, updated_at = $5
		 WHERE id = $1
		 RETURNING `+permissionColumns,
		id, name, group, description, time.Now().UTC())
	perm, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.ErrPermissionNotFound
	}
	return perm, err
}

// DeletePermission removes a permission definition. Role links cascade.
func (r *Repository) DeletePermission(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPermissionNotFound
	}
	return nil
}

// RolesWithPermission returns the slugs of roles currently granting the
// permission; used to invalidate their cached sets when the permission
// definition is deleted.
func (r *Repository) RolesWithPermission(ctx context.Context, permissionID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ro.slug
		 FROM roles ro
		 JOIN role_permissions rp ON rp.role_id = ro.id
		 WHERE rp.permission_id = $1`,
		permissionID)
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
