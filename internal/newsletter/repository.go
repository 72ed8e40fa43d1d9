package newsletter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Repository persists subscriptions.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByEmail(ctx context.Context, email string) (*Subscription, error)
	FindByVerifyToken(ctx context.Context, token string) (*Subscription, error)
	FindByUnsubscribeToken(ctx context.Context, token string) (*Subscription, error)
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Subscription, int, error)
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const subscriptionColumns = `id, email, is_verified, is_active, verify_token, verify_token_expires_at, unsubscribe_token, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	if err := row.Scan(&s.ID, &s.Email, &s.IsVerified, &s.IsActive, &s.VerifyToken, &s.VerifyTokenExpiresAt,
		&s.UnsubscribeToken, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &s, nil
}

func (r *PGRepository) findOne(ctx context.Context, column string, value any) (*Subscription, error) {
	s, err := scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM newsletter_subscriptions WHERE `+column+`=$1`, value))
	if err != nil {
		return nil, fmt.Errorf("subscription: %w", err)
	}
	return s, nil
}

// Get fetches a subscription by id.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return r.findOne(ctx, "id", id)
}

// FindByEmail fetches a subscription by its lower-cased address.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Subscription, error) {
	return r.findOne(ctx, "email", email)
}

// FindByVerifyToken fetches the subscription awaiting confirmation with token.
func (r *PGRepository) FindByVerifyToken(ctx context.Context, token string) (*Subscription, error) {
	return r.findOne(ctx, "verify_token", token)
}

// FindByUnsubscribeToken fetches the subscription owning token.
func (r *PGRepository) FindByUnsubscribeToken(ctx context.Context, token string) (*Subscription, error) {
	return r.findOne(ctx, "unsubscribe_token", token)
}

// Create inserts a subscription and fills generated fields.
func (r *PGRepository) Create(ctx context.Context, sub *Subscription) error {
	created, err := scanSubscription(r.pool.QueryRow(ctx, `INSERT INTO newsletter_subscriptions
(id, email, is_verified, is_active, verify_token, verify_token_expires_at, unsubscribe_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING `+subscriptionColumns, sub.ID, sub.Email, sub.IsVerified, sub.IsActive, sub.VerifyToken, sub.VerifyTokenExpiresAt, sub.UnsubscribeToken))
	if err != nil {
		return err
	}
	*sub = *created
	return nil
}

// Update writes flags and tokens back.
func (r *PGRepository) Update(ctx context.Context, sub *Subscription) error {
	updated, err := scanSubscription(r.pool.QueryRow(ctx, `UPDATE newsletter_subscriptions
SET is_verified=$2, is_active=$3, verify_token=$4, verify_token_expires_at=$5, unsubscribe_token=$6, updated_at=NOW()
WHERE id=$1
RETURNING `+subscriptionColumns, sub.ID, sub.IsVerified, sub.IsActive, sub.VerifyToken, sub.VerifyTokenExpiresAt, sub.UnsubscribeToken))
	if err != nil {
		return fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	*sub = *updated
	return nil
}

// Delete removes a subscription.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM newsletter_subscriptions WHERE id=$1`, id)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// List returns one page of subscriptions, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Subscription, int, error) {
	var f db.Filter
	f.Search(filter.Query, "email")
	switch filter.Status {
	case FilterActive:
		f.Where("is_active")
	case FilterInactive:
		f.Where("NOT is_active")
	case FilterVerified:
		f.Where("is_verified")
	case FilterUnverified:
		f.Where("NOT is_verified")
	}
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())

	var (
		items []Subscription
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+subscriptionColumns+` FROM newsletter_subscriptions`+f.SQL()+` ORDER BY created_at DESC`+limit, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSubscription(rows)
			if err != nil {
				return err
			}
			items = append(items, *s)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM newsletter_subscriptions`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// PurgeExpiredTokens clears confirmation tokens that expired before now.
func (r *PGRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE newsletter_subscriptions
SET verify_token=NULL, verify_token_expires_at=NULL, updated_at=NOW()
WHERE verify_token IS NOT NULL AND verify_token_expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
