package ads

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

// Service orchestrates ad management and review.
type Service struct {
	repo    Repository
	engine  *workflow.Engine[*Ad]
	history shared.HistoryStore
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the ads service. history and audit may be nil.
func NewService(repo Repository, history shared.HistoryStore, audit AuditPort, metrics *workflow.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := workflow.Config[*Ad]{
		Kind:   "ad",
		Module: Module,
		Permissions: workflow.Permissions{
			Approve: rbac.PermAdsReviewApprove,
			Reject:  rbac.PermAdsReviewReject,
			Archive: rbac.PermAdsArchive,
		},
		Metrics: metrics,
		Logger:  logger,
	}
	if history != nil {
		cfg.Recorder = history
	}
	return &Service{
		repo:    repo,
		engine:  workflow.NewEngine[*Ad](repo, cfg),
		history: history,
		audit:   audit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new ad. Privileged creators publish directly; everyone else starts in draft.
func (s *Service) Create(ctx context.Context, actor *rbac.Principal, in CreateAdInput) (*Ad, error) {
	if err := validateWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	typ := in.Type
	if typ == "" {
		typ = AdTypeBanner
	}
	ad := &Ad{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Image:     in.Image,
		Link:      in.Link,
		Type:      typ,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		State:     workflow.NewState(actor.ActorID(), workflow.InitialStatus(actor.IsPrivileged(), "", false)),
	}
	if ad.Title == "" {
		return nil, fmt.Errorf("%w: title required", httpx.ErrValidation)
	}
	if err := s.repo.Create(ctx, ad); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "ads.create", ad.ID, map[string]any{"status": ad.Status})
	return ad, nil
}

// Update patches editable fields.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id uuid.UUID, in UpdateAdInput) (*Ad, error) {
	ad, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title required", httpx.ErrValidation)
		}
		ad.Title = title
	}
	if in.Content != nil {
		ad.Content = in.Content
	}
	if in.Image != nil {
		ad.Image = in.Image
	}
	if in.Link != nil {
		ad.Link = in.Link
	}
	if in.Type != nil {
		ad.Type = *in.Type
	}
	if in.StartDate != nil {
		ad.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		ad.EndDate = in.EndDate
	}
	if err := validateWindow(ad.StartDate, ad.EndDate); err != nil {
		return nil, err
	}
	expected := ad.Version
	if err := s.repo.Update(ctx, ad, expected); err != nil {
		return nil, err
	}
	ad.Version = expected + 1
	s.record(ctx, actor, "ads.update", ad.ID, nil)
	return ad, nil
}

// Delete removes an ad.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "ads.delete", id, nil)
	return nil
}

// Get returns one ad.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Ad, error) {
	return s.repo.Load(ctx, id)
}

// List returns a page of ads for administration.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[Ad], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Ad]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// ReviewQueue lists ads awaiting review.
func (s *Service) ReviewQueue(ctx context.Context, page shared.Page) (shared.PageResult[Ad], error) {
	return s.List(ctx, ListFilter{Status: workflow.StatusInReview, Page: page})
}

// ListActive returns published ads currently inside their date window.
func (s *Service) ListActive(ctx context.Context, typ AdType) ([]Ad, error) {
	if typ != "" && !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown ad type %q", httpx.ErrValidation, typ)
	}
	items, err := s.repo.ListActive(ctx, typ, s.now())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Ad{}
	}
	return items, nil
}

// RecordClick counts a click on a published ad.
func (s *Service) RecordClick(ctx context.Context, id uuid.UUID) error {
	return s.repo.Increment(ctx, id, CounterClicks)
}

// RecordImpression counts an impression on a published ad.
func (s *Service) RecordImpression(ctx context.Context, id uuid.UUID) error {
	return s.repo.Increment(ctx, id, CounterImpressions)
}

// Submit sends a draft or rejected ad to review.
func (s *Service) Submit(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Ad, error) {
	return s.engine.Submit(ctx, id, actor)
}

// Approve publishes an ad in review.
func (s *Service) Approve(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Ad, error) {
	return s.engine.Approve(ctx, id, actor)
}

// Reject declines an ad in review.
func (s *Service) Reject(ctx context.Context, actor *rbac.Principal, id uuid.UUID, comment *string) (*Ad, error) {
	return s.engine.Reject(ctx, id, actor, comment)
}

// Archive retires a published ad.
func (s *Service) Archive(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Ad, error) {
	return s.engine.Archive(ctx, id, actor)
}

// History lists review transitions of an ad.
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
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ActorID(),
		Action:   action,
		Entity:   Module,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit ad mutation", slog.String("action", action), slog.Any("error", err))
	}
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: endDate must not precede startDate", httpx.ErrValidation)
	}
	return nil
}
