package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/newsdesk/newsdesk/internal/auth"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// AuditPort records admin mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Options carries optional collaborators.
type Options struct {
	History    shared.HistoryStore
	Audit      AuditPort
	Mailer     shared.Mailer
	Metrics    *workflow.Metrics
	Logger     *slog.Logger
	BcryptCost int
}

// Service handles user business logic.
type Service struct {
	repo    RepositoryPort
	engine  *workflow.Engine[*User]
	history shared.HistoryStore
	audit   AuditPort
	mailer  shared.Mailer
	logger  *slog.Logger
	cost    int
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	cfg := workflow.Config[*User]{
		Kind:   "user",
		Module: Module,
		Permissions: workflow.Permissions{
			Approve: rbac.PermUsersReviewApprove,
			Reject:  rbac.PermUsersReviewReject,
			Archive: rbac.PermUsersArchive,
		},
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
	}
	if opts.History != nil {
		cfg.Recorder = opts.History
	}
	return &Service{
		repo:    repo,
		engine:  workflow.NewEngine[*User](repo, cfg),
		history: opts.History,
		audit:   opts.Audit,
		mailer:  opts.Mailer,
		logger:  opts.Logger,
		cost:    opts.BcryptCost,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create provisions an account on behalf of an administrator. Privileged
// creators publish it directly. Without role keys the account gets the user
// role; explicit keys require the role assignment permission.
func (s *Service) Create(ctx context.Context, actor *rbac.Principal, in CreateUserInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and name required", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	roles := normalizeKeys(in.RoleKeys)
	if len(roles) > 0 && !actor.HasPermission(rbac.PermUsersAssignRoles) {
		return nil, fmt.Errorf("%w: assigning roles requires %s", httpx.ErrForbidden, rbac.PermUsersAssignRoles)
	}
	if len(roles) == 0 {
		roles = []string{rbac.RoleUser}
	}
	nu := NewUser{
		User: User{
			ID:            uuid.New(),
			Email:         email,
			Name:          name,
			Username:      optional(in.Username),
			AccountStatus: auth.AccountActive,
			IsActive:      true,
			State:         workflow.NewState(actor.ActorID(), workflow.InitialStatus(actor.IsPrivileged(), "", false)),
		},
		PasswordHash: string(hash),
		RoleKeys:     roles,
	}
	u, err := s.repo.Create(ctx, nu)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "users.create", u.ID, map[string]any{"email": u.Email, "roles": roles})
	return u, nil
}

// Update patches profile fields. Changing the account status also sets the
// login flag: only active accounts may sign in.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id uuid.UUID, in UpdateUserInput) (*User, error) {
	u, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, fmt.Errorf("%w: email required", httpx.ErrValidation)
		}
		u.Email = email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name required", httpx.ErrValidation)
		}
		u.Name = name
	}
	if in.Username != nil {
		u.Username = optional(*in.Username)
	}
	if in.Bio != nil {
		u.Bio = in.Bio
	}
	if in.Avatar != nil {
		u.Avatar = in.Avatar
	}
	if in.AccountStatus != nil {
		if *in.AccountStatus != auth.AccountActive && u.ID == actor.ActorID() {
			return nil, fmt.Errorf("%w: cannot change your own account status", httpx.ErrValidation)
		}
		u.AccountStatus = *in.AccountStatus
		u.IsActive = u.AccountStatus == auth.AccountActive
	}
	expected := u.Version
	if err := s.repo.Update(ctx, u, expected); err != nil {
		return nil, err
	}
	u.Version = expected + 1
	s.record(ctx, actor, "users.update", u.ID, nil)
	return u, nil
}

// SetActive enables or disables login. Callers cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor *rbac.Principal, id uuid.UUID, active bool) (*User, error) {
	if !active && id == actor.ActorID() {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", httpx.ErrValidation)
	}
	status := auth.AccountActive
	if !active {
		status = auth.AccountInactive
	}
	if err := s.repo.SetActive(ctx, id, active, status); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "users.set_active", id, map[string]any{"active": active})
	return s.repo.Load(ctx, id)
}

// Delete removes an account. Callers cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id uuid.UUID) error {
	if id == actor.ActorID() {
		return fmt.Errorf("%w: cannot delete your own account", httpx.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "users.delete", id, nil)
	return nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.Load(ctx, id)
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.PageResult[User], error) {
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[User]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// ReviewQueue lists accounts awaiting review.
func (s *Service) ReviewQueue(ctx context.Context, page shared.Page) (shared.PageResult[User], error) {
	return s.List(ctx, ListFilter{Status: workflow.StatusInReview, Page: page})
}

// Submit sends a draft or rejected account to review.
func (s *Service) Submit(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*User, error) {
	u, err := s.engine.Submit(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	u.IsRejected = false
	return u, nil
}

// Approve publishes an account in review and notifies its owner.
func (s *Service) Approve(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*User, error) {
	u, err := s.engine.Approve(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	u.IsRejected = false
	s.notify(ctx, u, "Your account was approved", "Your newsdesk account has been reviewed and approved.")
	return u, nil
}

// Reject declines an account in review and notifies its owner.
func (s *Service) Reject(ctx context.Context, actor *rbac.Principal, id uuid.UUID, comment *string) (*User, error) {
	u, err := s.engine.Reject(ctx, id, actor, comment)
	if err != nil {
		return nil, err
	}
	u.IsRejected = true
	body := "Your newsdesk account was not approved."
	if u.ReviewComment != nil {
		body += "\n\nReviewer comment: " + *u.ReviewComment
	}
	s.notify(ctx, u, "Your account needs attention", body)
	return u, nil
}

// Archive retires a published account.
func (s *Service) Archive(ctx context.Context, actor *rbac.Principal, id uuid.UUID) (*User, error) {
	u, err := s.engine.Archive(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	u.IsRejected = false
	return u, nil
}

// History lists review transitions of an account.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.ReviewEntry, error) {
	if _, err := s.repo.Load(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []shared.ReviewEntry{}, nil
	}
	return s.history.List(ctx, Module, id)
}

func (s *Service) notify(ctx context.Context, u *User, subject, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, shared.MailMessage{To: u.Email, Subject: subject, Body: body}); err != nil {
		s.logger.Warn("queue account review notice", slog.String("user_id", u.ID.String()), slog.Any("error", err))
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
		s.logger.Warn("audit user mutation", slog.String("action", action), slog.Any("error", err))
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
