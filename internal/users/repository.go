package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	workflow.Store[*User]
	Create(ctx context.Context, in NewUser) (*User, error)
	Update(ctx context.Context, u *User, expectedVersion int64) error
	SetActive(ctx context.Context, id uuid.UUID, active bool, accountStatus string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const userColumns = `id, email, name, username, bio, avatar, account_status, is_active, last_login_at, ` +
	shared.WorkflowColumns + `, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	dest := []any{&u.ID, &u.Email, &u.Name, &u.Username, &u.Bio, &u.Avatar, &u.AccountStatus, &u.IsActive, &u.LastLoginAt}
	dest = append(dest, shared.WorkflowScan(&u.State)...)
	dest = append(dest, &u.CreatedAt, &u.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	u.IsRejected = u.Status == workflow.StatusRejected
	return &u, nil
}

// Load fetches one user.
func (r *Repository) Load(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// Create inserts a user and links the requested roles in one transaction.
func (r *Repository) Create(ctx context.Context, in NewUser) (*User, error) {
	var out *User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, `INSERT INTO users
(id, email, name, username, password_hash, account_status, is_active, status, created_by_id, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
RETURNING `+userColumns,
			in.ID, in.Email, in.Name, in.Username, in.PasswordHash, in.AccountStatus, in.IsActive, string(in.Status), in.CreatedByID))
		if err != nil {
			return err
		}
		if len(in.RoleKeys) > 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE key = ANY($2) ON CONFLICT DO NOTHING`, u.ID, in.RoleKeys); err != nil {
				return fmt.Errorf("assign roles: %w", err)
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes profile columns guarded by version.
func (r *Repository) Update(ctx context.Context, u *User, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email=$3, name=$4, username=$5, bio=$6, avatar=$7, account_status=$8,
is_active=$9, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2`,
		u.ID, expectedVersion, u.Email, u.Name, u.Username, u.Bio, u.Avatar, u.AccountStatus, u.IsActive)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s was modified concurrently", httpx.ErrConflict, u.ID)
	}
	return nil
}

// SetActive toggles login ability. It bumps the version so stale profile
// edits conflict.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool, accountStatus string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active=$2, account_status=$3,
version=version+1, updated_at=NOW() WHERE id=$1`, id, active, accountStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// Delete removes a user and its role links. Users still referenced by
// articles yield ErrConflict.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			return httpx.TranslatePgError(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %s: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

// SaveTransition persists a workflow transition.
func (r *Repository) SaveTransition(ctx context.Context, u *User, expectedVersion int64) error {
	return shared.SaveWorkflowState(ctx, r.pool, "users", u.ID, &u.State, expectedVersion)
}

// List returns one page of users plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var f db.Filter
	if filter.Status != "" {
		f.Where("status = " + f.Arg(string(filter.Status)))
	}
	if filter.Active != nil {
		f.Where("is_active = " + f.Arg(*filter.Active))
	}
	f.Search(filter.Search, "email", "name", "username")
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())

	var (
		users []User
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+userColumns+` FROM users`+f.SQL()+` ORDER BY created_at DESC`+limit, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, *u)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM users`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
