package authors

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Repository reads the authors directory.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Author, int, error)
	Get(ctx context.Context, id uuid.UUID) (*Author, error)
	Search(ctx context.Context, q string, limit int) ([]Author, error)
	Stats(ctx context.Context) (Stats, error)
}

// PGRepository implements Repository over the users, roles and articles tables.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// Published articles are counted for the main author and every co-author.
const authorColumns = `u.id, u.name, u.email, u.username, u.bio, u.avatar, u.account_status, u.is_active,
ARRAY(SELECT r.key FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = u.id ORDER BY r.key),
COALESCE(pub.articles, 0), COALESCE(pub.views, 0), u.created_at`

const authorFrom = ` FROM users u
LEFT JOIN LATERAL (
	SELECT COUNT(*) AS articles, SUM(a.views) AS views
	FROM articles a
	WHERE a.status = 'published'
	  AND (a.author_id = u.id OR EXISTS (SELECT 1 FROM article_authors aa WHERE aa.article_id = a.id AND aa.user_id = u.id))
) pub ON TRUE`

func staffFilter() *db.Filter {
	f := &db.Filter{}
	f.Where(`EXISTS (SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = u.id AND r.key <> ` + f.Arg(rbac.RoleUser) + `)`)
	return f
}

func scanAuthor(row pgx.Row) (*Author, error) {
	var a Author
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Username, &a.Bio, &a.Avatar, &a.AccountStatus, &a.IsActive,
		&a.Roles, &a.PublishedArticles, &a.TotalViews, &a.CreatedAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	if a.Roles == nil {
		a.Roles = []string{}
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]Author, error) {
	defer rows.Close()
	var out []Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// List returns one page of staff, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Author, int, error) {
	f := staffFilter()
	if filter.Role != "" {
		f.Where(`EXISTS (SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = u.id AND r.key = ` + f.Arg(filter.Role) + `)`)
	}
	if filter.AccountStatus != "" {
		f.Where("u.account_status = " + f.Arg(filter.AccountStatus))
	}
	f.Search(filter.Search, "u.name", "u.email", "u.bio")
	limit, args := f.Page(filter.Page.Limit, filter.Page.Offset())

	var (
		items []Author
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+authorColumns+authorFrom+f.SQL()+` ORDER BY u.created_at DESC`+limit, args...)
		if err != nil {
			return err
		}
		items, err = collect(rows)
		return err
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM users u`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get fetches one staff member.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Author, error) {
	f := staffFilter()
	f.Where("u.id = " + f.Arg(id))
	a, err := scanAuthor(r.pool.QueryRow(ctx, `SELECT `+authorColumns+authorFrom+f.SQL(), f.Args()...))
	if err != nil {
		return nil, fmt.Errorf("author %s: %w", id, err)
	}
	return a, nil
}

// Search matches active staff by name, email or username.
func (r *PGRepository) Search(ctx context.Context, q string, limit int) ([]Author, error) {
	f := staffFilter()
	f.Where("u.is_active")
	f.Search(q, "u.name", "u.email", "u.username")
	args := append(f.Args(), limit)
	rows, err := r.pool.Query(ctx, `SELECT `+authorColumns+authorFrom+f.SQL()+
		fmt.Sprintf(` ORDER BY u.name LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Stats counts staff by activity and by role.
func (r *PGRepository) Stats(ctx context.Context) (Stats, error) {
	out := Stats{ByRole: map[string]int{}}
	f := staffFilter()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE u.is_active) FROM users u`+f.SQL(), f.Args()...).
			Scan(&out.Total, &out.Active)
	})
	byRole := map[string]int{}
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT r.key, COUNT(DISTINCT ur.user_id)
FROM user_roles ur JOIN roles r ON r.id = ur.role_id
WHERE r.key <> $1
GROUP BY r.key`, rbac.RoleUser)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				key string
				n   int
			)
			if err := rows.Scan(&key, &n); err != nil {
				return err
			}
			byRole[key] = n
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	out.Inactive = out.Total - out.Active
	out.ByRole = byRole
	return out, nil
}
