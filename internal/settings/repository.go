package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

const singletonKey = "singleton"

// Repository persists the settings singleton.
type Repository interface {
	// Load returns httpx.ErrNotFound when nothing has been saved yet.
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// PGRepository stores settings as jsonb sections in app_settings.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Load(ctx context.Context) (*Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx,
		`SELECT system, email, security, updated_at FROM app_settings WHERE key=$1`, singletonKey,
	).Scan(&s.System, &s.Email, &s.Security, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.Security.IPWhitelist == nil {
		s.Security.IPWhitelist = []string{}
	}
	return &s, nil
}

func (r *PGRepository) Save(ctx context.Context, s *Settings) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO app_settings (key, system, email, security, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO UPDATE
		SET system=EXCLUDED.system, email=EXCLUDED.email, security=EXCLUDED.security, updated_at=NOW()
		RETURNING updated_at`,
		singletonKey, s.System, s.Email, s.Security,
	).Scan(&s.UpdatedAt)
}
