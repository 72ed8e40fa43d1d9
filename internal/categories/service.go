package categories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// AuditPort records admin mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates category management and review.
type Service struct {
	repo    Repository
	engine  *workflow.Engine[*Category]
	history shared.HistoryStore
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the categories service. history and audit may be nil.
func NewService(repo Repository, history shared.HistoryStore, audit AuditPort, metrics *workflow.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := workflow.Config[*Category]{
		Kind:   "category",
		Module: Module,
		Permissions: workflow.Permissions{
			Approve: rbac.PermCategoriesReviewApprove,
			Reject:  rbac.PermCategoriesReviewReject,
			Archive: rbac.PermCategoriesArchive,
		},
		Metrics: metrics,
		Logger:  logger,
	}
	if history != nil {
		cfg.Recorder = history
	}
	return &Service{
		repo:    repo,
		engine:  workflow.NewEngine[*Category](repo, cfg),
		history: history,
		audit:   audit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a category. Privileged creators publish directly.
func (s *Service) Create(ctx context.Context, actor *rbac.Principal, in CreateCategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", httpx.ErrValidation)
	}
	slug := shared.Slugify(in.Slug)
	if slug == "" {
		slug = shared.Slugify(name)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", httpx.ErrValidation)
	}
	c := &Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		Image:       in.Image,
		Color:       in.Color,
		State:       workflow.NewState(actor.ActorID(), workflow.InitialStatus(actor.IsPrivileged(), "", false)),
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	} else {
		next, err := s.repo.NextSortOrder(ctx)
		if err != nil {
			return nil, err
		}
		c.SortOrder = next
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "categories.create", c.ID, map[string]any{"slug": c.Slug, "status": c.Status})
	return c, nil
}

// Update patches editable fields.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id uuid.UUID, in UpdateCategoryInput) (*Category, error) {
	c, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name required", httpx.ErrValidation)
		}
		c.Name = name
	}
	if in.Slug != nil {
		slug := shared.Slugify(*in.Slug)
		if slug == "" {
			return nil, fmt.Errorf("%w: invalid slug", httpx.ErrValidation)
		}
		c.Slug = slug
	}
	if in.Description != nil {
		c.Description = in.Description
	}
	if in.Image != nil {
		c.Image = in.Image
	}
	if in.Color != nil {
		c.Color = in.Color
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	}
	expected := c.Version
	if err := s.repo.Update(ctx, c, expected); err != nil {
		return nil, err
	}
	c.Version = expected + 1
	s.record(ctx, actor, "categories.update", c.ID, nil)
	return c, nil
}

// Delete removes a category.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "categories.delete", id, nil)
	return nil
}

// Get returns one category.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.repo.Load(ctx, id)
}

// List returns a page of categories for administration.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[Category], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Category]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// ListPublic returns published categories in display order.
func (s *Service) ListPublic(ctx context.Context) ([]Category, error) {
	items, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Category{}
	}
	return items, nil
}

// Reorder assigns new sort orders. Duplicate ids are rejected.
func (s *Service) Reorder(ctx context.Context, actor *rbac.Principal, in ReorderInput) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: items required", httpx.ErrValidation)
	}
	seen := make(map[uuid.UUID]struct{}, len(in.Items))
	for _, it := range in.Items {
		if it.SortOrder < 0 {
			return fmt.Errorf("%w: sortOrder must not be negative", httpx.ErrValidation)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: category %s listed twice", httpx.ErrValidation, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	if err := s.repo.Reorder(ctx, in.Items); err != nil {
		return err
	}
	s.record(ctx, actor, "categories.reorder", uuid.Nil, map[string]any{"count": len(in.Items)})
	return nil
}

// ReviewQueue lists categories awaiting review.
func (s *Service) ReviewQueue(ctx context.Context, page shared.Page) (shared.PageResult[Category], error) {
	return s.List(ctx, ListFilter{Status: workflow.StatusInReview, Page: page})
}

// Submit sends a draft or rejected category to review.
func (s *Service) Submit(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Category, error) {
	return s.engine.Submit(ctx, id, actor)
}

// Approve publishes a category in review.
func (s *Service) Approve(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Category, error) {
	return s.engine.Approve(ctx, id, actor)
}

// Reject declines a category in review.
func (s *Service) Reject(ctx context.Context, actor *rbac.Principal, id uuid.UUID, comment *string) (*Category, error) {
	return s.engine.Reject(ctx, id, actor, comment)
}

// Archive retires a published category.
func (s *Service) Archive(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Category, error) {
	return s.engine.Archive(ctx, id, actor)
}

// History lists review transitions of a category.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.ReviewEntry, error) {
	if _, err := s.repo.Load(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []shared.ReviewEntry{}, nil
	}
	return s.history.List(ctx, Module, id)
}

func (s *Service) record(ctx context.Context, actor *rbac.Principal, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entityID := "*"
	if id != uuid.Nil {
		entityID = id.String()
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ActorID(),
		Action:   action,
		Entity:   Module,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit category mutation", slog.String("action", action), slog.Any("error", err))
	}
}
