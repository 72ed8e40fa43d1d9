package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Service manages article media.
type Service struct {
	repo Repository
}

// NewService constructs the media service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add attaches an item to an article. Without a position it goes last.
func (s *Service) Add(ctx context.Context, articleID uuid.UUID, in AddInput) (*Item, error) {
	ok, err := s.repo.ArticleExists(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("article %s: %w", articleID, httpx.ErrNotFound)
	}
	existing, err := s.repo.List(ctx, articleID)
	if err != nil {
		return nil, err
	}
	position := len(existing)
	if n := len(existing); n > 0 && existing[n-1].Position >= position {
		position = existing[n-1].Position + 1
	}
	if in.Position != nil && *in.Position < position {
		position = *in.Position
	}
	it := &Item{ID: uuid.New(), ArticleID: articleID, Type: in.Type, URL: in.URL, Title: in.Title, Position: position}
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// List returns the media of an article in position order.
func (s *Service) List(ctx context.Context, articleID uuid.UUID) ([]Item, error) {
	return s.repo.List(ctx, articleID)
}

// Move places one item at a new position and renumbers its siblings.
func (s *Service) Move(ctx context.Context, articleID uuid.UUID, in MoveInput) ([]Item, error) {
	items, err := s.repo.List(ctx, articleID)
	if err != nil {
		return nil, err
	}
	reordered, ok := Reposition(items, in.ID, in.Position)
	if !ok {
		return nil, fmt.Errorf("media %s: %w", in.ID, httpx.ErrNotFound)
	}
	if err := s.repo.SavePositions(ctx, reordered); err != nil {
		return nil, err
	}
	return reordered, nil
}

// Remove detaches an item.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
