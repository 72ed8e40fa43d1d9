package articles

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Repository persists articles.
type Repository interface {
	workflow.Store[*Article]
	Create(ctx context.Context, a *Article) error
	Update(ctx context.Context, a *Article, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Article, int, error)
	FindPublishedBySlug(ctx context.Context, slug string) (*Article, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context, status workflow.Status) (int, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	AuthorContact(ctx context.Context, id uuid.UUID) (Contact, error)
	Authors(ctx context.Context, id uuid.UUID) ([]Author, error)
	SetAuthors(ctx context.Context, id uuid.UUID, mainID uuid.UUID, coAuthorIDs []uuid.UUID, expectedVersion int64) error
	SetMainAuthor(ctx context.Context, id uuid.UUID, userID uuid.UUID, expectedVersion int64) error
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

const articleColumns = `id, title, slug, excerpt, content, author_id,
ARRAY(SELECT aa.user_id FROM article_authors aa WHERE aa.article_id = articles.id ORDER BY aa.created_at, aa.user_id),
category_id, tags, views, likes_count, comments_count, published_at, ` +
	shared.WorkflowColumns + `, created_at, updated_at`

var orderBy = map[Sort]string{
	SortNewest:    "created_at DESC",
	SortOldest:    "created_at ASC",
	SortPopular:   "views DESC, created_at DESC",
	SortPublished: "published_at DESC NULLS LAST, created_at DESC",
}

func scanArticle(row pgx.Row) (*Article, error) {
	var a Article
	dest := []any{&a.ID, &a.Title, &a.Slug, &a.Excerpt, &a.Content, &a.AuthorID, &a.CoAuthorIDs, &a.CategoryID, &a.Tags,
		&a.Views, &a.LikesCount, &a.CommentsCount, &a.PublishedAt}
	dest = append(dest, shared.WorkflowScan(&a.State)...)
	dest = append(dest, &a.CreatedAt, &a.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if a.CoAuthorIDs == nil {
		a.CoAuthorIDs = []uuid.UUID{}
	}
	return &a, nil
}

// Load fetches one article.
func (r *PGRepository) Load(ctx context.Context, id uuid.UUID) (*Article, error) {
	a, err := scanArticle(r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("article %s: %w", id, err)
	}
	return a, nil
}

// Create inserts an article.
func (r *PGRepository) Create(ctx context.Context, a *Article) error {
	created, err := scanArticle(r.pool.QueryRow(ctx, `INSERT INTO articles
(id, title, slug, excerpt, content, author_id, category_id, tags, published_at, status, created_by_id, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, NOW(), NOW())
RETURNING `+articleColumns,
		a.ID, a.Title, a.Slug, a.Excerpt, a.Content, a.AuthorID, a.CategoryID, a.Tags, a.PublishedAt, string(a.Status), a.CreatedByID))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// Update writes editable columns guarded by version.
func (r *PGRepository) Update(ctx context.Context, a *Article, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE articles SET title=$3, excerpt=$4, content=$5, category_id=$6, tags=$7,
version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2`,
		a.ID, expectedVersion, a.Title, a.Excerpt, a.Content, a.CategoryID, a.Tags)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: article %s was modified concurrently", httpx.ErrConflict, a.ID)
	}
	return nil
}

// Delete removes an article together with its comments, likes, media and
// co-author links.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"article_comments", "article_likes", "article_media", "article_authors"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE article_id=$1`, id); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM articles WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("article %s: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

// SaveTransition persists a workflow transition and the publish timestamp.
func (r *PGRepository) SaveTransition(ctx context.Context, a *Article, expectedVersion int64) error {
	return shared.SaveWorkflowState(ctx, r.pool, "articles", a.ID, &a.State, expectedVersion,
		shared.Column{Name: "published_at", Value: a.PublishedAt})
}

// List returns one page of articles plus the total count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Article, int, error) {
	var f db.Filter
	if filter.Status != "" {
		f.Where("status = " + f.Arg(string(filter.Status)))
	}
	if filter.CategoryID != nil {
		f.Where("category_id = " + f.Arg(*filter.CategoryID))
	}
	if filter.AuthorID != nil {
		f.Where("author_id = " + f.Arg(*filter.AuthorID))
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		f.Where(f.Arg(tag) + " = ANY(tags)")
	}
	f.Search(filter.Search, "title", "excerpt", "content")
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())
	order, ok := orderBy[filter.Sort]
	if !ok {
		order = orderBy[SortNewest]
	}

	var (
		items []Article
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+articleColumns+` FROM articles`+f.SQL()+` ORDER BY `+order+limit, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanArticle(rows)
			if err != nil {
				return err
			}
			items = append(items, *a)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM articles`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindPublishedBySlug fetches a published article by slug.
func (r *PGRepository) FindPublishedBySlug(ctx context.Context, slug string) (*Article, error) {
	a, err := scanArticle(r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug=$1 AND status=$2`,
		slug, string(workflow.StatusPublished)))
	if err != nil {
		return nil, fmt.Errorf("article %q: %w", slug, err)
	}
	return a, nil
}

// IncrementViews bumps the view counter.
func (r *PGRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE articles SET views=views+1 WHERE id=$1`, id)
	return err
}

// CountByStatus counts articles in one status.
func (r *PGRepository) CountByStatus(ctx context.Context, status workflow.Status) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE status=$1`, string(status)).Scan(&n)
	return n, err
}

// CategoryExists reports whether a category id is known.
func (r *PGRepository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

// AuthorContact returns the email and name of a user.
func (r *PGRepository) AuthorContact(ctx context.Context, id uuid.UUID) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `SELECT email, name FROM users WHERE id=$1`, id).Scan(&c.Email, &c.Name)
	if err != nil {
		return Contact{}, httpx.TranslatePgError(err)
	}
	return c, nil
}

// Authors lists the main author followed by co-authors.
func (r *PGRepository) Authors(ctx context.Context, id uuid.UUID) ([]Author, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.name, u.email, u.id = a.author_id
FROM articles a
JOIN users u ON u.id = a.author_id
	OR u.id IN (SELECT aa.user_id FROM article_authors aa WHERE aa.article_id = a.id)
WHERE a.id = $1
ORDER BY (u.id = a.author_id) DESC, u.name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Author{}
	for rows.Next() {
		var au Author
		if err := rows.Scan(&au.UserID, &au.Name, &au.Email, &au.IsMain); err != nil {
			return nil, err
		}
		out = append(out, au)
	}
	return out, rows.Err()
}

// SetAuthors replaces the main author and the co-author links. Every user
// must exist.
func (r *PGRepository) SetAuthors(ctx context.Context, id uuid.UUID, mainID uuid.UUID, coAuthorIDs []uuid.UUID, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := requireUsers(ctx, tx, append([]uuid.UUID{mainID}, coAuthorIDs...)); err != nil {
			return err
		}
		if err := bumpAuthor(ctx, tx, id, mainID, expectedVersion); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM article_authors WHERE article_id=$1`, id); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, uid := range coAuthorIDs {
			batch.Queue(`INSERT INTO article_authors (article_id, user_id, created_at) VALUES ($1, $2, NOW())`, id, uid)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// SetMainAuthor promotes userID to main author. The previous main author
// stays credited as a co-author.
func (r *PGRepository) SetMainAuthor(ctx context.Context, id uuid.UUID, userID uuid.UUID, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := requireUsers(ctx, tx, []uuid.UUID{userID}); err != nil {
			return err
		}
		var previous uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT author_id FROM articles WHERE id=$1 FOR UPDATE`, id).Scan(&previous); err != nil {
			return fmt.Errorf("article %s: %w", id, httpx.TranslatePgError(err))
		}
		if err := bumpAuthor(ctx, tx, id, userID, expectedVersion); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM article_authors WHERE article_id=$1 AND user_id=$2`, id, userID); err != nil {
			return err
		}
		if previous == userID {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO article_authors (article_id, user_id, created_at) VALUES ($1, $2, NOW())
ON CONFLICT (article_id, user_id) DO NOTHING`, id, previous)
		return err
	})
}

func requireUsers(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	rows, err := tx.Query(ctx, `SELECT t.want FROM unnest($1::uuid[]) AS t(want)
WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = t.want)`, ids)
	if err != nil {
		return err
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, missing[0])
	}
	return nil
}

func bumpAuthor(ctx context.Context, tx pgx.Tx, id, authorID uuid.UUID, expectedVersion int64) error {
	tag, err := tx.Exec(ctx, `UPDATE articles SET author_id=$3, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2`, id, expectedVersion, authorID)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: article %s was modified concurrently", httpx.ErrConflict, id)
	}
	return nil
}
