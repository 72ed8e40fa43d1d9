package contacts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
)

// IdempotencyPort claims request keys so retried submissions are stored once.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service manages the contact inbox.
type Service struct {
	repo   Repository
	idem   IdempotencyPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the contacts service. idem may be nil, in which case
// idempotency keys are ignored.
func NewService(repo Repository, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idem: idem, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a public submission.
func (s *Service) Create(ctx context.Context, in CreateInput, origin Origin) (*Message, error) {
	key := strings.TrimSpace(origin.IdempotencyKey)
	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, Module); err != nil {
			return nil, err
		}
	}
	m := &Message{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Message:   strings.TrimSpace(in.Message),
		Subject:   in.Subject,
		Phone:     in.Phone,
		Company:   in.Company,
		IPAddress: optional(origin.IP, 45),
		UserAgent: optional(origin.UserAgent, 500),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if key != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, key); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return nil, err
	}
	return m, nil
}

// List pages through the inbox, or the archive when filter.Archived is set.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[Message], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Message]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// Get returns one message.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	return s.repo.Get(ctx, id)
}

// UnreadCount counts unread inbox messages.
func (s *Service) UnreadCount(ctx context.Context) (UnreadCount, error) {
	n, err := s.repo.UnreadCount(ctx)
	return UnreadCount{Count: n}, err
}

// MarkRead sets the read flag.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, read bool) (*Message, error) {
	return s.repo.SetRead(ctx, id, read)
}

// MarkAllRead clears the unread inbox.
func (s *Service) MarkAllRead(ctx context.Context) (Affected, error) {
	n, err := s.repo.MarkAllRead(ctx)
	return Affected{Affected: n}, err
}

// Archive moves a message out of the inbox.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*Message, error) {
	now := s.now()
	return s.repo.SetArchived(ctx, id, &now)
}

// Unarchive returns a message to the inbox.
func (s *Service) Unarchive(ctx context.Context, id uuid.UUID) (*Message, error) {
	return s.repo.SetArchived(ctx, id, nil)
}

// ArchiveRead archives read messages older than olderThan. Non-positive
// values fall back to DefaultArchiveAfter.
func (s *Service) ArchiveRead(ctx context.Context, olderThan time.Duration) (Affected, error) {
	if olderThan <= 0 {
		olderThan = DefaultArchiveAfter
	}
	now := s.now()
	n, err := s.repo.ArchiveRead(ctx, now.Add(-olderThan), now)
	if err != nil {
		return Affected{}, err
	}
	if n > 0 {
		s.logger.Info("archived read contact messages", slog.Int64("count", n))
	}
	return Affected{Affected: n}, nil
}

// Remove deletes a message.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func optional(v string, max int) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if len(v) > max {
		v = v[:max]
	}
	return &v
}
