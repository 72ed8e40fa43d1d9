package authors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/auth"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Service serves the read side of staff accounts. Account changes go
// through the users module.
type Service struct {
	repo Repository
}

// NewService constructs the authors service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of staff.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[Author], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	filter.Role = strings.ToLower(strings.TrimSpace(filter.Role))
	filter.AccountStatus = strings.ToLower(strings.TrimSpace(filter.AccountStatus))
	switch filter.AccountStatus {
	case "", auth.AccountActive, auth.AccountInactive, "suspended":
	default:
		return shared.PageResult[Author]{}, fmt.Errorf("%w: unknown account status %q", httpx.ErrValidation, filter.AccountStatus)
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Author]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// Get returns one staff member.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Author, error) {
	return s.repo.Get(ctx, id)
}

// Search returns up to SearchLimit active staff matching q. A blank query
// matches nobody.
func (s *Service) Search(ctx context.Context, q string) ([]Author, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Author{}, nil
	}
	items, err := s.repo.Search(ctx, q, SearchLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Author{}
	}
	return items, nil
}

// Stats summarises the directory.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
