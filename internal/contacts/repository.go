package contacts

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

// Repository persists contact messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id uuid.UUID) (*Message, error)
	List(ctx context.Context, filter ListFilter) ([]Message, int, error)
	UnreadCount(ctx context.Context) (int, error)
	SetRead(ctx context.Context, id uuid.UUID, read bool) (*Message, error)
	SetArchived(ctx context.Context, id uuid.UUID, at *time.Time) (*Message, error)
	MarkAllRead(ctx context.Context) (int64, error)
	ArchiveRead(ctx context.Context, cutoff, now time.Time) (int64, error)
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

const messageColumns = `id, name, email, message, subject, phone, company, is_read, archived_at, host(ip_address), user_agent, created_at, updated_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.Subject, &m.Phone, &m.Company, &m.IsRead,
		&m.ArchivedAt, &m.IPAddress, &m.UserAgent, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &m, nil
}

// Create inserts a message.
func (r *PGRepository) Create(ctx context.Context, m *Message) error {
	created, err := scanMessage(r.pool.QueryRow(ctx, `INSERT INTO contacts
(id, name, email, message, subject, phone, company, is_read, ip_address, user_agent, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8::inet, $9, NOW(), NOW())
RETURNING `+messageColumns, m.ID, m.Name, m.Email, m.Message, m.Subject, m.Phone, m.Company, m.IPAddress, m.UserAgent))
	if err != nil {
		return err
	}
	*m = *created
	return nil
}

// Get fetches one message.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM contacts WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", id, err)
	}
	return m, nil
}

// List returns one page of the inbox or the archive, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Message, int, error) {
	var f db.Filter
	if filter.Archived {
		f.Where("archived_at IS NOT NULL")
	} else {
		f.Where("archived_at IS NULL")
	}
	if filter.UnreadOnly {
		f.Where("NOT is_read")
	}
	page := shared.NewPage(filter.Page.Page, filter.Page.Limit)
	limit, args := f.Page(page.Limit, page.Offset())

	var (
		items []Message
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT `+messageColumns+` FROM contacts`+f.SQL()+` ORDER BY created_at DESC`+limit, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			items = append(items, *m)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM contacts`+f.SQL(), f.Args()...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UnreadCount counts unread messages still in the inbox.
func (r *PGRepository) UnreadCount(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE NOT is_read AND archived_at IS NULL`).Scan(&n)
	return n, err
}

// SetRead flips the read flag.
func (r *PGRepository) SetRead(ctx context.Context, id uuid.UUID, read bool) (*Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `UPDATE contacts SET is_read=$2, updated_at=NOW() WHERE id=$1 RETURNING `+messageColumns, id, read))
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", id, err)
	}
	return m, nil
}

// SetArchived stamps or clears archived_at.
func (r *PGRepository) SetArchived(ctx context.Context, id uuid.UUID, at *time.Time) (*Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `UPDATE contacts SET archived_at=$2, updated_at=NOW() WHERE id=$1 RETURNING `+messageColumns, id, at))
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", id, err)
	}
	return m, nil
}

// MarkAllRead marks every unread message as read.
func (r *PGRepository) MarkAllRead(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE contacts SET is_read=TRUE, updated_at=NOW() WHERE NOT is_read`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ArchiveRead archives read messages created before cutoff.
func (r *PGRepository) ArchiveRead(ctx context.Context, cutoff, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE contacts SET archived_at=$2, updated_at=NOW()
WHERE is_read AND archived_at IS NULL AND created_at < $1`, cutoff, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a message.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id=$1`, id)
	if err != nil {
		return httpx.TranslatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}
