package comments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Service manages article comments.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the comments service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Add posts a visible comment as the signed-in caller.
func (s *Service) Add(ctx context.Context, actor *rbac.Principal, articleID uuid.UUID, in AddInput) (*Comment, error) {
	if actor.ActorID() == uuid.Nil {
		return nil, fmt.Errorf("%w: sign in to comment", httpx.ErrUnauthorized)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content required", httpx.ErrValidation)
	}
	if err := s.requirePublished(ctx, articleID); err != nil {
		return nil, err
	}
	uid := actor.UserID
	c := &Comment{ID: uuid.New(), ArticleID: articleID, UserID: &uid, Content: content, Status: StatusVisible}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddPublic posts a guest comment held for moderation.
func (s *Service) AddPublic(ctx context.Context, articleID uuid.UUID, in GuestInput) (*Comment, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	content := strings.TrimSpace(in.Content)
	if name == "" || email == "" || content == "" {
		return nil, fmt.Errorf("%w: name, email and content required", httpx.ErrValidation)
	}
	if err := s.requirePublished(ctx, articleID); err != nil {
		return nil, err
	}
	c := &Comment{ID: uuid.New(), ArticleID: articleID, GuestName: &name, GuestEmail: &email, Content: content, Status: StatusPending}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns comments for moderation.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[Comment], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Comment]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// ListPublic returns visible comments of an article. Guest emails are not exposed.
func (s *Service) ListPublic(ctx context.Context, articleID uuid.UUID, page shared.Page) (shared.PageResult[Comment], error) {
	out, err := s.List(ctx, ListFilter{ArticleID: &articleID, Status: StatusVisible, Page: page})
	if err != nil {
		return out, err
	}
	for i := range out.Items {
		out.Items[i].GuestEmail = nil
	}
	return out, nil
}

// Moderate changes the status or hidden flag of a comment.
func (s *Service) Moderate(ctx context.Context, id uuid.UUID, in ModerateInput) (*Comment, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status, hidden := c.Status, c.IsHidden
	if in.Status != nil {
		switch *in.Status {
		case StatusVisible, StatusPending:
			status, hidden = *in.Status, false
		case StatusHidden:
			status, hidden = StatusHidden, true
		default:
			return nil, fmt.Errorf("%w: unknown comment status %q", httpx.ErrValidation, *in.Status)
		}
	}
	if in.Hidden != nil {
		hidden = *in.Hidden
	}
	if err := s.repo.SetVisibility(ctx, id, status, hidden); err != nil {
		return nil, err
	}
	c.Status, c.IsHidden = status, hidden
	return c, nil
}

// Remove deletes a comment. Only its author, privileged roles or holders of
// comments.delete may do so.
func (s *Service) Remove(ctx context.Context, actor *rbac.Principal, id uuid.UUID) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	owner := c.UserID != nil && *c.UserID == actor.ActorID()
	if !owner && !actor.IsPrivileged() && !actor.HasPermission(rbac.PermCommentsDelete) {
		return fmt.Errorf("%w: only the author may delete this comment", httpx.ErrForbidden)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) requirePublished(ctx context.Context, articleID uuid.UUID) error {
	ok, err := s.repo.ArticlePublished(ctx, articleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("article %s: %w", articleID, httpx.ErrNotFound)
	}
	return nil
}
