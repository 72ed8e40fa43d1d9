package ads

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
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Counter names a tracked engagement column.
type Counter string

const (
	CounterClicks      Counter = "clicks"
	CounterImpressions Counter = "impressions"
)

// Repository persists ads.
type Repository interface {
	workflow.Store[*Ad]
	Create(ctx context.Context, ad *Ad) error
	Update(ctx context.Context, ad *Ad, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Ad, int, error)
	ListActive(ctx context.Context, typ AdType, now time.Time) ([]Ad, error)
	Increment(ctx context.Context, id uuid.UUID, counter Counter) error
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

const adColumns = `id, title, content, image, link, type, start_date, end_date, views, clicks, impressions, ` +
	shared.WorkflowColumns + `, created_at, updated_at`

func scanAd(row pgx.Row) (*Ad, error) {
	var a Ad
	dest := []any{&a.ID, &a.Title, &a.Content, &a.Image, &a.Link, &a.Type, &a.StartDate, &a.EndDate, &a.Views, &a.Clicks, &a.Impressions}
	dest = append(dest, shared.WorkflowScan(&a.State)...)
	dest = append(dest, &a.CreatedAt, &a.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &a, nil
}

func collectAds(rows pgx.Rows) ([]Ad, error) {
	defer rows.Close()
	var out []Ad
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Load fetches one ad.
func (r *PGRepository) Load(ctx context.Context, id uuid.UUID) (*Ad, error) {
	a, err := scanAd(r.pool.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("ad %s: %w", id, err)
	}
	return a, nil
}

// Create inserts a new ad and fills generated columns.
func (r *PGRepository) Create(ctx context.Context, ad *Ad) error {
	st := ad.State
	row := r.pool.QueryRow(ctx, `INSERT INTO ads
(id, title, content, image, link, type, start_date, end_date, status, created_by_id, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW())
RETURNING `+adColumns,
		ad.ID, ad.Title, ad.Content, ad.Image, ad.Link, string(ad.Type), ad.StartDate, ad.EndDate, string(st.Status), st.CreatedByID)
	created, err := scanAd(row)
	if err != nil {
		return err
	}
	*ad = *created
	return nil
}

// Update writes editable columns guarded by version.
func (r *PGRepository) Update(ctx context.Context, ad *Ad, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ads SET title=$3, content=$4, image=$5, link=$6, type=$7,
start_date=$8, end_date=$9, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2`,
		ad.ID, expectedVersion, ad.Title, ad.Content, ad.Image, ad.Link, string(ad.Type), ad.StartDate, ad.EndDate)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ad %s was modified concurrently", httpx.ErrConflict, ad.ID)
	}
	return nil
}

// Delete removes an ad.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ad %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// SaveTransition persists a workflow transition.
func (r *PGRepository) SaveTransition(ctx context.Context, ad *Ad, expectedVersion int64) error {
	return shared.SaveWorkflowState(ctx, r.pool, "ads", ad.ID, &ad.State, expectedVersion)
}

// List returns one page of ads plus the total matching count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Ad, int, error) {
	var f db.Filter
	if filter.Status != "" {
		f.Where("status = " + f.Arg(string(filter.Status)))
	}
	if filter.Type != "" {
		f.Where("type = " + f.Arg(string(filter.Type)))
	}
	f.Search(filter.Search, "title", "content")
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())

	var (
		items []Ad
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+adColumns+` FROM ads`+f.SQL()+` ORDER BY created_at DESC`+limit, args...)
		if err != nil {
			return err
		}
		items, err = collectAds(rows)
		return err
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM ads`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListActive returns published ads whose date window contains now.
func (r *PGRepository) ListActive(ctx context.Context, typ AdType, now time.Time) ([]Ad, error) {
	var f db.Filter
	f.Where("status = " + f.Arg(string(workflow.StatusPublished)))
	p := f.Arg(now)
	f.Where("(start_date IS NULL OR start_date <= " + p + ")")
	f.Where("(end_date IS NULL OR end_date >= " + p + ")")
	if typ != "" {
		f.Where("type = " + f.Arg(string(typ)))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+adColumns+` FROM ads`+f.SQL()+` ORDER BY created_at DESC`, f.Args()...)
	if err != nil {
		return nil, err
	}
	return collectAds(rows)
}

// Increment bumps an engagement counter on a published ad.
func (r *PGRepository) Increment(ctx context.Context, id uuid.UUID, counter Counter) error {
	column := "clicks"
	if counter == CounterImpressions {
		column = "impressions"
	}
	tag, err := r.pool.Exec(ctx, `UPDATE ads SET `+column+`=`+column+`+1 WHERE id=$1 AND status=$2`, id, string(workflow.StatusPublished))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ad %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}
