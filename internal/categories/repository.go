package categories

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

// Repository persists categories.
type Repository interface {
	workflow.Store[*Category]
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Category, int, error)
	ListPublished(ctx context.Context) ([]Category, error)
	Reorder(ctx context.Context, items []Position) error
	NextSortOrder(ctx context.Context) (int, error)
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

const categoryColumns = `id, name, slug, description, image, color, sort_order, ` + shared.WorkflowColumns + `, created_at, updated_at`

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	dest := []any{&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image, &c.Color, &c.SortOrder}
	dest = append(dest, shared.WorkflowScan(&c.State)...)
	dest = append(dest, &c.CreatedAt, &c.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &c, nil
}

func collect(rows pgx.Rows) ([]Category, error) {
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Load fetches one category.
func (r *PGRepository) Load(ctx context.Context, id uuid.UUID) (*Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", id, err)
	}
	return c, nil
}

// Create inserts a category.
func (r *PGRepository) Create(ctx context.Context, c *Category) error {
	created, err := scanCategory(r.pool.QueryRow(ctx, `INSERT INTO categories
(id, name, slug, description, image, color, sort_order, status, created_by_id, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
RETURNING `+categoryColumns,
		c.ID, c.Name, c.Slug, c.Description, c.Image, c.Color, c.SortOrder, string(c.Status), c.CreatedByID))
	if err != nil {
		return err
	}
	*c = *created
	return nil
}

// Update writes editable columns guarded by version.
func (r *PGRepository) Update(ctx context.Context, c *Category, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name=$3, slug=$4, description=$5, image=$6, color=$7,
sort_order=$8, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2`,
		c.ID, expectedVersion, c.Name, c.Slug, c.Description, c.Image, c.Color, c.SortOrder)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: category %s was modified concurrently", httpx.ErrConflict, c.ID)
	}
	return nil
}

// Delete removes a category. Categories still holding articles yield ErrConflict.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// SaveTransition persists a workflow transition.
func (r *PGRepository) SaveTransition(ctx context.Context, c *Category, expectedVersion int64) error {
	return shared.SaveWorkflowState(ctx, r.pool, "categories", c.ID, &c.State, expectedVersion)
}

// List returns one page of categories plus the total count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Category, int, error) {
	var f db.Filter
	if filter.Status != "" {
		f.Where("status = " + f.Arg(string(filter.Status)))
	}
	f.Search(filter.Search, "name", "slug")
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())

	var (
		items []Category
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+categoryColumns+` FROM categories`+f.SQL()+` ORDER BY sort_order ASC, name ASC`+limit, args...)
		if err != nil {
			return err
		}
		items, err = collect(rows)
		return err
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM categories`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListPublished returns published categories in display order.
func (r *PGRepository) ListPublished(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE status=$1 ORDER BY sort_order ASC, name ASC`,
		string(workflow.StatusPublished))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Reorder updates sort orders atomically. Each row's version is bumped.
func (r *PGRepository) Reorder(ctx context.Context, items []Position) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(`UPDATE categories SET sort_order=$2, version=version+1, updated_at=NOW() WHERE id=$1`, it.ID, it.SortOrder)
		}
		br := tx.SendBatch(ctx, batch)
		for _, it := range items {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return err
			}
			if tag.RowsAffected() == 0 {
				_ = br.Close()
				return fmt.Errorf("category %s: %w", it.ID, httpx.ErrNotFound)
			}
		}
		return br.Close()
	})
}

// NextSortOrder returns one past the highest sort order.
func (r *PGRepository) NextSortOrder(ctx context.Context) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(sort_order), -1) + 1 FROM categories`).Scan(&next)
	return next, err
}
