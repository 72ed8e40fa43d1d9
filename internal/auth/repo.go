package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Register(ctx context.Context, in NewAccount) (*Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	RecordLogin(ctx context.Context, id uuid.UUID, ip string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, password_hash, is_active, account_status, last_login_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.AccountStatus, &a.LastLoginAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &a, nil
}

// FindByEmail fetches a user by lower-cased email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE email=$1`, strings.ToLower(email)))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id=$1`, id))
}

// Register creates a draft account holding the default user role.
func (r *PGRepository) Register(ctx context.Context, in NewAccount) (*Account, error) {
	var out *Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		id := uuid.New()
		var username *string
		if in.Username != "" {
			username = &in.Username
		}
		acc, err := scanAccount(tx.QueryRow(ctx, `INSERT INTO users
(id, email, name, username, password_hash, account_status, is_active, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, 1, NOW(), NOW())
RETURNING `+accountColumns, id, in.Email, in.Name, username, in.PasswordHash, AccountActive, string(workflow.StatusDraft)))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE key=$2 ON CONFLICT DO NOTHING`, id, rbac.RoleUser); err != nil {
			return fmt.Errorf("assign default role: %w", err)
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePassword stores a new password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// RecordLogin stamps the last login time and address.
func (r *PGRepository) RecordLogin(ctx context.Context, id uuid.UUID, ip string, at time.Time) error {
	var addr *string
	if ip != "" {
		addr = &ip
	}
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at=$2, last_login_ip=$3 WHERE id=$1`, id, at, addr)
	return err
}

var _ Repository = (*PGRepository)(nil)
