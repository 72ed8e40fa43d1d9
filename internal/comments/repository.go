package comments

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

// Repository persists comments and keeps articles.comments_count in step.
type Repository interface {
	ArticlePublished(ctx context.Context, articleID uuid.UUID) (bool, error)
	Create(ctx context.Context, c *Comment) error
	Get(ctx context.Context, id uuid.UUID) (*Comment, error)
	SetVisibility(ctx context.Context, id uuid.UUID, status string, hidden bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Comment, int, error)
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

const commentColumns = `id, article_id, user_id, guest_name, guest_email, content, status, is_hidden, created_at, updated_at`

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.ArticleID, &c.UserID, &c.GuestName, &c.GuestEmail, &c.Content, &c.Status, &c.IsHidden, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &c, nil
}

func recount(ctx context.Context, q db.Querier, articleID uuid.UUID) error {
	_, err := q.Exec(ctx, `UPDATE articles SET comments_count=(
SELECT COUNT(*) FROM article_comments WHERE article_id=$1 AND status=$2 AND NOT is_hidden)
WHERE id=$1`, articleID, StatusVisible)
	return err
}

// ArticlePublished reports whether the article exists and is published.
func (r *PGRepository) ArticlePublished(ctx context.Context, articleID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE id=$1 AND status=$2)`,
		articleID, string(workflow.StatusPublished)).Scan(&ok)
	return ok, err
}

// Create inserts a comment.
func (r *PGRepository) Create(ctx context.Context, c *Comment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		created, err := scanComment(tx.QueryRow(ctx, `INSERT INTO article_comments
(id, article_id, user_id, guest_name, guest_email, content, status, is_hidden, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW(), NOW())
RETURNING `+commentColumns, c.ID, c.ArticleID, c.UserID, c.GuestName, c.GuestEmail, c.Content, c.Status))
		if err != nil {
			return err
		}
		*c = *created
		return recount(ctx, tx, c.ArticleID)
	})
}

// Get fetches one comment.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM article_comments WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("comment %s: %w", id, err)
	}
	return c, nil
}

// SetVisibility moderates a comment.
func (r *PGRepository) SetVisibility(ctx context.Context, id uuid.UUID, status string, hidden bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var articleID uuid.UUID
		err := tx.QueryRow(ctx, `UPDATE article_comments SET status=$2, is_hidden=$3, updated_at=NOW() WHERE id=$1 RETURNING article_id`,
			id, status, hidden).Scan(&articleID)
		if err != nil {
			return httpx.TranslatePgError(err)
		}
		return recount(ctx, tx, articleID)
	})
}

// Delete removes a comment.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var articleID uuid.UUID
		if err := tx.QueryRow(ctx, `DELETE FROM article_comments WHERE id=$1 RETURNING article_id`, id).Scan(&articleID); err != nil {
			return httpx.TranslatePgError(err)
		}
		return recount(ctx, tx, articleID)
	})
}

// List returns one page of comments, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Comment, int, error) {
	var f db.Filter
	if filter.ArticleID != nil {
		f.Where("article_id = " + f.Arg(*filter.ArticleID))
	}
	switch filter.Status {
	case "":
	case StatusVisible:
		f.Where("status = " + f.Arg(StatusVisible) + " AND NOT is_hidden")
	default:
		f.Where("status = " + f.Arg(filter.Status))
	}
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())

	var (
		items []Comment
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+commentColumns+` FROM article_comments`+f.SQL()+` ORDER BY created_at DESC`+limit, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanComment(rows)
			if err != nil {
				return err
			}
			items = append(items, *c)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM article_comments`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
