package articles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// AuditPort records admin mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates article authoring, review and public reads.
type Service struct {
	repo    Repository
	engine  *workflow.Engine[*Article]
	history shared.HistoryStore
	audit   AuditPort
	mailer  shared.Mailer
	logger  *slog.Logger
	slugs   singleflight.Group
	now     func() time.Time
}

// Options carries optional collaborators.
type Options struct {
	History shared.HistoryStore
	Audit   AuditPort
	Mailer  shared.Mailer
	Metrics *workflow.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs the articles service.
func NewService(repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	s := &Service{
		repo:    repo,
		history: opts.History,
		audit:   opts.Audit,
		mailer:  opts.Mailer,
		logger:  opts.Logger,
		now:     opts.Clock,
	}
	cfg := workflow.Config[*Article]{
		Kind:   "article",
		Module: Module,
		Permissions: workflow.Permissions{
			Approve: rbac.PermArticlesReviewApprove,
			Reject:  rbac.PermArticlesReviewReject,
			Archive: rbac.PermArticlesArchive,
		},
		SubmitGate: ownershipGate,
		OnPublish: func(a *Article, at time.Time) {
			a.PublishedAt = &at
		},
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
		Clock:   opts.Clock,
	}
	if opts.History != nil {
		cfg.Recorder = opts.History
	}
	s.engine = workflow.NewEngine[*Article](repo, cfg)
	return s
}

func ownershipGate(a *Article, actor workflow.Actor) error {
	if p, ok := actor.(*rbac.Principal); ok && p.IsPrivileged() {
		return nil
	}
	if !a.CreditsAuthor(actor.ActorID()) {
		return fmt.Errorf("%w: only the article's authors may modify it", httpx.ErrForbidden)
	}
	return nil
}

// Create stores a new article authored by actor. Privileged callers may
// request published; everyone else starts in draft.
func (s *Service) Create(ctx context.Context, actor *rbac.Principal, in CreateArticleInput) (*Article, error) {
	if actor.ActorID() == uuid.Nil {
		return nil, fmt.Errorf("%w: author required", httpx.ErrUnauthorized)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: title and content required", httpx.ErrValidation)
	}
	requested, err := workflow.ParseStatus(string(in.Status))
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	now := s.now()
	a := &Article{
		ID:         uuid.New(),
		Title:      title,
		Slug:       shared.UniqueSlug(title, now),
		Excerpt:    in.Excerpt,
		Content:    in.Content,
		AuthorID:   actor.UserID,
		CategoryID: in.CategoryID,
		Tags:       normalizeTags(in.Tags),
		State:      workflow.NewState(actor.UserID, workflow.InitialStatus(actor.IsPrivileged(), requested, true)),
	}
	if a.Status == workflow.StatusPublished {
		a.PublishedAt = &now
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "articles.create", a.ID, map[string]any{"slug": a.Slug, "status": a.Status})
	return a, nil
}

// Update patches an article. Non-privileged callers may edit only articles
// they are credited on and only while draft or rejected.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id uuid.UUID, in UpdateArticleInput) (*Article, error) {
	a, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownershipGate(a, actor); err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && (a.Status == workflow.StatusInReview || a.Status == workflow.StatusPublished) {
		return nil, fmt.Errorf("%w: article in status %s is locked for editing", httpx.ErrForbidden, a.Status)
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title required", httpx.ErrValidation)
		}
		a.Title = title
	}
	if in.Excerpt != nil {
		a.Excerpt = in.Excerpt
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, fmt.Errorf("%w: content required", httpx.ErrValidation)
		}
		a.Content = *in.Content
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
		a.CategoryID = in.CategoryID
	}
	if in.Tags != nil {
		a.Tags = normalizeTags(in.Tags)
	}
	expected := a.Version
	if err := s.repo.Update(ctx, a, expected); err != nil {
		return nil, err
	}
	a.Version = expected + 1
	s.record(ctx, actor, "articles.update", a.ID, nil)
	return a, nil
}

// Delete removes an article. Non-privileged callers may delete only their own.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id uuid.UUID) error {
	a, err := s.repo.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := ownershipGate(a, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "articles.delete", id, map[string]any{"slug": a.Slug})
	return nil
}

// Get returns one article.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Article, error) {
	return s.repo.Load(ctx, id)
}

// List returns a page of articles for administration.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[Article], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Article]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// ListPublished returns published articles, latest publication first.
func (s *Service) ListPublished(ctx context.Context, filter ListFilter) (shared.PageResult[Article], error) {
	filter.Status = workflow.StatusPublished
	filter.AuthorID = nil
	if filter.Sort != SortPopular {
		filter.Sort = SortPublished
	}
	return s.List(ctx, filter)
}

// ListArchived returns archived articles.
func (s *Service) ListArchived(ctx context.Context, page shared.Page) (shared.PageResult[Article], error) {
	return s.List(ctx, ListFilter{Status: workflow.StatusArchived, Sort: SortPublished, Page: page})
}

// GetBySlug returns a published article and counts the view. Concurrent
// reads of the same slug share one lookup.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, fmt.Errorf("%w: slug required", httpx.ErrValidation)
	}
	// The shared lookup must outlive the first caller's request.
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := s.slugs.Do(slug, func() (any, error) {
		return s.repo.FindPublishedBySlug(lookupCtx, slug)
	})
	if err != nil {
		return nil, err
	}
	out := *(v.(*Article))
	if err := s.repo.IncrementViews(ctx, out.ID); err != nil {
		s.logger.Warn("increment article views", slog.String("article_id", out.ID.String()), slog.Any("error", err))
	} else {
		out.Views++
	}
	return &out, nil
}

// ReviewQueue lists articles awaiting review, oldest first.
func (s *Service) ReviewQueue(ctx context.Context, page shared.Page) (shared.PageResult[Article], error) {
	return s.List(ctx, ListFilter{Status: workflow.StatusInReview, Sort: SortOldest, Page: page})
}

// InReviewCount counts articles awaiting review.
func (s *Service) InReviewCount(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, workflow.StatusInReview)
}

// Submit sends the caller's draft or rejected article to review.
func (s *Service) Submit(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Article, error) {
	return s.engine.Submit(ctx, id, actor)
}

// Approve publishes an article in review and notifies its author.
func (s *Service) Approve(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Article, error) {
	a, err := s.engine.Approve(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, a, "Your article was published", fmt.Sprintf("Your article %q has been approved and published.", a.Title))
	return a, nil
}

// Reject declines an article in review and notifies its author.
func (s *Service) Reject(ctx context.Context, actor *rbac.Principal, id uuid.UUID, comment *string) (*Article, error) {
	a, err := s.engine.Reject(ctx, id, actor, comment)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("Your article %q was sent back for changes.", a.Title)
	if a.ReviewComment != nil {
		body += "\n\nReviewer comment: " + *a.ReviewComment
	}
	s.notify(ctx, a, "Your article needs changes", body)
	return a, nil
}

// Archive retires a published article. PublishedAt is kept.
func (s *Service) Archive(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*Article, error) {
	return s.engine.Archive(ctx, id, actor)
}

// History lists review transitions of an article.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.ReviewEntry, error) {
	if _, err := s.repo.Load(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []shared.ReviewEntry{}, nil
	}
	return s.history.List(ctx, Module, id)
}

// Authors lists the users credited on an article, main author first.
func (s *Service) Authors(ctx context.Context, id uuid.UUID) ([]Author, error) {
	if _, err := s.repo.Load(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Authors(ctx, id)
}

// SetAuthors replaces the credited authors. The first id becomes the main
// author. Non-privileged callers must keep themselves on the list.
func (s *Service) SetAuthors(ctx context.Context, actor *rbac.Principal, id uuid.UUID, in SetAuthorsInput) (*Article, error) {
	ids := uniqueIDs(in.AuthorIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one author required", httpx.ErrValidation)
	}
	a, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownershipGate(a, actor); err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && !containsID(ids, actor.ActorID()) {
		return nil, fmt.Errorf("%w: you cannot remove yourself from the authors", httpx.ErrValidation)
	}
	if err := s.repo.SetAuthors(ctx, a.ID, ids[0], ids[1:], a.Version); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "articles.authors.set", a.ID, map[string]any{"authors": ids})
	return s.repo.Load(ctx, a.ID)
}

// SetMainAuthor promotes userID to main author; the previous main author
// remains a co-author.
func (s *Service) SetMainAuthor(ctx context.Context, actor *rbac.Principal, id uuid.UUID, userID uuid.UUID) (*Article, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: userId required", httpx.ErrValidation)
	}
	a, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownershipGate(a, actor); err != nil {
		return nil, err
	}
	if err := s.repo.SetMainAuthor(ctx, a.ID, userID, a.Version); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "articles.authors.main", a.ID, map[string]any{"author": userID})
	return s.repo.Load(ctx, a.ID)
}

func (s *Service) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	ok, err := s.repo.CategoryExists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: category %s does not exist", httpx.ErrValidation, *id)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, a *Article, subject, body string) {
	if s.mailer == nil {
		return
	}
	contact, err := s.repo.AuthorContact(ctx, a.AuthorID)
	if err != nil {
		s.logger.Warn("lookup article author", slog.String("article_id", a.ID.String()), slog.Any("error", err))
		return
	}
	if err := s.mailer.Send(ctx, shared.MailMessage{To: contact.Email, Subject: subject, Body: body}); err != nil {
		s.logger.Warn("queue review notice", slog.String("article_id", a.ID.String()), slog.Any("error", err))
	}
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
		s.logger.Warn("audit article mutation", slog.String("action", action), slog.Any("error", err))
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil && !containsID(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
