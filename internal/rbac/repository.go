package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Repository is the persistence port of the RBAC service.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	CreateRole(ctx context.Context, key, name string) (Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, name string) (Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	RolesByKeys(ctx context.Context, keys []string) ([]Role, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	PermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error)
	UpsertPermission(ctx context.Context, p Permission) (Permission, error)

	RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	AddRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) (int, error)
	RemoveRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error)
	ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error
	AddUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (int, error)
	RemoveUserRole(ctx context.Context, userID, roleID uuid.UUID) error

	PermissionKeysForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]string, error)
}

// PGRepository implements Repository with pgx.
type PGRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PGRepository)(nil)

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, key, name, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	if err := row.Scan(&r.ID, &r.Key, &r.Name, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Role{}, httpx.TranslatePgError(err)
	}
	return r, nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Label, &p.Group); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListRoles returns roles ordered by key.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY key`)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id=$1`, id))
	if err != nil {
		return Role{}, fmt.Errorf("role %s: %w", id, err)
	}
	return role, nil
}

// CreateRole inserts a role.
func (r *PGRepository) CreateRole(ctx context.Context, key, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles (id, key, name, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING `+roleColumns, uuid.New(), key, name))
}

// UpdateRole renames a role.
func (r *PGRepository) UpdateRole(ctx context.Context, id uuid.UUID, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `UPDATE roles SET name=$2, updated_at=NOW() WHERE id=$1 RETURNING `+roleColumns, id, name))
}

// DeleteRole removes an unassigned role and its grants.
func (r *PGRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var assigned bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM user_roles WHERE role_id=$1)`, id).Scan(&assigned); err != nil {
			return err
		}
		if assigned {
			return fmt.Errorf("%w: role is still assigned to users", httpx.ErrConflict)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("role %s: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

// RolesByKeys returns the roles matching keys; unknown keys are skipped.
func (r *PGRepository) RolesByKeys(ctx context.Context, keys []string) ([]Role, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE key = ANY($1) ORDER BY key`, keys)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// ListPermissions returns the catalog ordered by group and key.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, key, label, "group" FROM permissions ORDER BY "group", key`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// PermissionsByKeys returns permissions matching keys; unknown keys are skipped.
func (r *PGRepository) PermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, key, label, "group" FROM permissions WHERE key = ANY($1) ORDER BY key`, keys)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// UpsertPermission inserts or relabels a permission keyed by its key.
func (r *PGRepository) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	var out Permission
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (id, key, label, "group") VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET label=EXCLUDED.label, "group"=EXCLUDED."group"
RETURNING id, key, label, "group"`, uuid.New(), p.Key, p.Label, p.Group).Scan(&out.ID, &out.Key, &out.Label, &out.Group)
	if err != nil {
		return Permission{}, err
	}
	return out, nil
}

// RolePermissions lists the grants of a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.key, p.label, p."group"
FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id=$1 ORDER BY p.key`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// ReplaceRolePermissions swaps the grant set of a role in one transaction.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1`, roleID); err != nil {
			return err
		}
		_, err := insertLinks(ctx, tx, `role_permissions`, `role_id`, `permission_id`, roleID, permissionIDs)
		return err
	})
}

// AddRolePermissions grants permissions, ignoring existing links.
func (r *PGRepository) AddRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) (int, error) {
	return insertLinks(ctx, r.pool, `role_permissions`, `role_id`, `permission_id`, roleID, permissionIDs)
}

// RemoveRolePermission revokes one grant.
func (r *PGRepository) RemoveRolePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id=$1 AND permission_id=$2`, roleID, permissionID)
	return err
}

// UserExists reports whether the user row exists.
func (r *PGRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists)
	return exists, err
}

// UserRoles lists the roles of a user.
func (r *PGRepository) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.key, r.name, r.created_at, r.updated_at
FROM user_roles ur JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id=$1 ORDER BY r.key`, userID)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// ReplaceUserRoles swaps the role set of a user in one transaction.
func (r *PGRepository) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1`, userID); err != nil {
			return err
		}
		_, err := insertLinks(ctx, tx, `user_roles`, `user_id`, `role_id`, userID, roleIDs)
		return err
	})
}

// AddUserRoles assigns roles, ignoring existing links.
func (r *PGRepository) AddUserRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (int, error) {
	return insertLinks(ctx, r.pool, `user_roles`, `user_id`, `role_id`, userID, roleIDs)
}

// RemoveUserRole unassigns one role.
func (r *PGRepository) RemoveUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1 AND role_id=$2`, userID, roleID)
	return err
}

// PermissionKeysForRoles returns the distinct permission keys granted to roleIDs.
func (r *PGRepository) PermissionKeysForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT p.key
FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = ANY($1) ORDER BY p.key`, roleIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func insertLinks(ctx context.Context, q db.Querier, table, ownerCol, refCol string, owner uuid.UUID, refs []uuid.UUID) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	sql := `INSERT INTO ` + table + ` (` + ownerCol + `, ` + refCol + `) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING`
	tag, err := q.Exec(ctx, sql, owner, refs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
