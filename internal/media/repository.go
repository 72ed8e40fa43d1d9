package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Repository persists media items.
type Repository interface {
	ArticleExists(ctx context.Context, articleID uuid.UUID) (bool, error)
	List(ctx context.Context, articleID uuid.UUID) ([]Item, error)
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	Create(ctx context.Context, it *Item) error
	SavePositions(ctx context.Context, items []Item) error
	Delete(ctx context.Context, id uuid.UUID) error
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

const itemColumns = `id, article_id, type, url, title, position, created_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.ArticleID, &it.Type, &it.URL, &it.Title, &it.Position, &it.CreatedAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &it, nil
}

// ArticleExists reports whether an article id is known.
func (r *PGRepository) ArticleExists(ctx context.Context, articleID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE id=$1)`, articleID).Scan(&ok)
	return ok, err
}

// List returns the items of an article by position.
func (r *PGRepository) List(ctx context.Context, articleID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM article_media WHERE article_id=$1 ORDER BY position ASC, created_at ASC`, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Get fetches one item.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM article_media WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("media %s: %w", id, err)
	}
	return it, nil
}

// Create inserts an item, shifting later siblings to make room.
func (r *PGRepository) Create(ctx context.Context, it *Item) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE article_media SET position=position+1 WHERE article_id=$1 AND position >= $2`,
			it.ArticleID, it.Position); err != nil {
			return err
		}
		created, err := scanItem(tx.QueryRow(ctx, `INSERT INTO article_media (id, article_id, type, url, title, position, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING `+itemColumns,
			it.ID, it.ArticleID, string(it.Type), it.URL, it.Title, it.Position))
		if err != nil {
			return err
		}
		*it = *created
		return nil
	})
}

// SavePositions writes the positions of items atomically.
func (r *PGRepository) SavePositions(ctx context.Context, items []Item) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(`UPDATE article_media SET position=$2 WHERE id=$1`, it.ID, it.Position)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Delete removes an item and closes the gap it leaves.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			articleID uuid.UUID
			position  int
		)
		if err := tx.QueryRow(ctx, `DELETE FROM article_media WHERE id=$1 RETURNING article_id, position`, id).Scan(&articleID, &position); err != nil {
			return httpx.TranslatePgError(err)
		}
		_, err := tx.Exec(ctx, `UPDATE article_media SET position=position-1 WHERE article_id=$1 AND position > $2`, articleID, position)
		return err
	})
}
