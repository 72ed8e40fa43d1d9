// Package likes tracks reader likes on published articles.
package likes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// State is the like status of an article for one reader.
type State struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

// Repository persists likes and keeps articles.likes_count in step.
type Repository interface {
	ArticlePublished(ctx context.Context, articleID uuid.UUID) (bool, error)
	Toggle(ctx context.Context, articleID, userID uuid.UUID) (State, error)
	Status(ctx context.Context, articleID, userID uuid.UUID) (State, error)
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

// ArticlePublished reports whether the article exists and is published.
func (r *PGRepository) ArticlePublished(ctx context.Context, articleID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM articles WHERE id=$1 AND status=$2)`,
		articleID, string(workflow.StatusPublished)).Scan(&ok)
	return ok, err
}

// Toggle removes an existing like or adds a new one.
func (r *PGRepository) Toggle(ctx context.Context, articleID, userID uuid.UUID) (State, error) {
	var st State
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM article_likes WHERE article_id=$1 AND user_id=$2`, articleID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO article_likes (id, article_id, user_id, created_at)
VALUES ($1, $2, $3, NOW()) ON CONFLICT (article_id, user_id) DO NOTHING`, uuid.New(), articleID, userID); err != nil {
				return err
			}
			st.Liked = true
		}
		return tx.QueryRow(ctx, `UPDATE articles SET likes_count=(SELECT COUNT(*) FROM article_likes WHERE article_id=$1)
WHERE id=$1 RETURNING likes_count`, articleID).Scan(&st.Count)
	})
	if err != nil {
		return State{}, httpx.TranslatePgError(err)
	}
	return st, nil
}

// Status reports whether userID likes the article and the total count.
func (r *PGRepository) Status(ctx context.Context, articleID, userID uuid.UUID) (State, error) {
	var st State
	err := r.pool.QueryRow(ctx, `SELECT likes_count,
EXISTS(SELECT 1 FROM article_likes WHERE article_id=$1 AND user_id=$2)
FROM articles WHERE id=$1`, articleID, userID).Scan(&st.Count, &st.Liked)
	if err != nil {
		return State{}, httpx.TranslatePgError(err)
	}
	return st, nil
}

// Service exposes like operations.
type Service struct {
	repo Repository
}

// NewService constructs the likes service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Toggle likes or unlikes a published article as the caller.
func (s *Service) Toggle(ctx context.Context, actor *rbac.Principal, articleID uuid.UUID) (State, error) {
	if actor.ActorID() == uuid.Nil {
		return State{}, fmt.Errorf("%w: sign in to like articles", httpx.ErrUnauthorized)
	}
	ok, err := s.repo.ArticlePublished(ctx, articleID)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, fmt.Errorf("article %s: %w", articleID, httpx.ErrNotFound)
	}
	return s.repo.Toggle(ctx, articleID, actor.UserID)
}

// Status returns the like count and whether the caller likes the article.
// Anonymous callers always see liked=false.
func (s *Service) Status(ctx context.Context, actor *rbac.Principal, articleID uuid.UUID) (State, error) {
	return s.repo.Status(ctx, articleID, actor.ActorID())
}
