package settings

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Module tags audit entries for settings.
const Module = "settings"

const cacheTTL = time.Minute

// AuditPort records admin mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reads and patches the settings singleton.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	cache  *lru.LRU[string, Settings]
	mu     sync.Mutex
	now    func() time.Time
}

// NewService constructs the settings service. audit may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: logger,
		cache:  lru.NewLRU[string, Settings](1, nil, cacheTTL),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the masked settings, falling back to defaults.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	cur, err := s.current(ctx)
	if err != nil {
		return Settings{}, err
	}
	return cur.Masked(), nil
}

// Current returns the unmasked settings for internal consumers.
func (s *Service) Current(ctx context.Context) (Settings, error) {
	return s.current(ctx)
}

// UpdateSystem merges in into the system section.
func (s *Service) UpdateSystem(ctx context.Context, actor *rbac.Principal, in UpdateSystemInput) (System, error) {
	out, err := s.update(ctx, actor, "settings.system.update", func(cur *Settings) { in.apply(&cur.System) })
	if err != nil {
		return System{}, err
	}
	return out.System, nil
}

// UpdateEmail merges in into the email section. The stored password is kept
// unless a non-empty one is supplied.
func (s *Service) UpdateEmail(ctx context.Context, actor *rbac.Principal, in UpdateEmailInput) (Email, error) {
	out, err := s.update(ctx, actor, "settings.email.update", func(cur *Settings) { in.apply(&cur.Email) })
	if err != nil {
		return Email{}, err
	}
	return out.Email.Masked(), nil
}

// UpdateSecurity merges in into the security section.
func (s *Service) UpdateSecurity(ctx context.Context, actor *rbac.Principal, in UpdateSecurityInput) (Security, error) {
	out, err := s.update(ctx, actor, "settings.security.update", func(cur *Settings) { in.apply(&cur.Security) })
	if err != nil {
		return Security{}, err
	}
	return out.Security, nil
}

func (s *Service) current(ctx context.Context) (Settings, error) {
	if cached, ok := s.cache.Get(singletonKey); ok {
		return cached, nil
	}
	stored, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, httpx.ErrNotFound):
		return Defaults(), nil
	case err != nil:
		return Settings{}, err
	}
	s.cache.Add(singletonKey, *stored)
	return *stored, nil
}

func (s *Service) update(ctx context.Context, actor *rbac.Principal, action string, patch func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Remove(singletonKey)
	cur, err := s.current(ctx)
	if err != nil {
		return Settings{}, err
	}
	cur.Security.IPWhitelist = append([]string{}, cur.Security.IPWhitelist...)
	patch(&cur)
	if err := s.repo.Save(ctx, &cur); err != nil {
		s.cache.Remove(singletonKey)
		return Settings{}, err
	}
	s.cache.Add(singletonKey, cur)
	s.record(ctx, actor, action)
	return cur, nil
}

func (s *Service) record(ctx context.Context, actor *rbac.Principal, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ActorID(),
		Action:   action,
		Entity:   Module,
		EntityID: singletonKey,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit settings mutation", slog.String("action", action), slog.Any("error", err))
	}
}
