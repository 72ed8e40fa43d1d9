package newsletter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// VerifyTokenTTL bounds how long a confirmation link stays valid.
const VerifyTokenTTL = 24 * time.Hour

// Options configures the service.
type Options struct {
	Mailer        shared.Mailer
	PublicBaseURL string
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Service implements subscribe, confirm and unsubscribe flows.
type Service struct {
	repo          Repository
	mailer        shared.Mailer
	publicBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

// NewService constructs the newsletter service.
func NewService(repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:          repo,
		mailer:        opts.Mailer,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:        opts.Logger,
		now:           opts.Clock,
	}
}

// Subscribe registers email (or re-arms a lapsed subscription) and sends a
// confirmation link.
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*Subscription, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", httpx.ErrValidation)
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsActive && existing.IsVerified {
		return nil, fmt.Errorf("%w: already subscribed", httpx.ErrDuplicate)
	}

	verify, err := newToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(VerifyTokenTTL)

	sub := existing
	if sub == nil {
		sub = &Subscription{ID: uuid.New(), Email: email}
	}
	if sub.UnsubscribeToken == nil {
		unsubscribe, err := newToken()
		if err != nil {
			return nil, err
		}
		sub.UnsubscribeToken = &unsubscribe
	}
	sub.IsActive = true
	sub.IsVerified = false
	sub.VerifyToken = &verify
	sub.VerifyTokenExpiresAt = &expires

	if existing != nil {
		err = s.repo.Update(ctx, sub)
	} else {
		err = s.repo.Create(ctx, sub)
	}
	if err != nil {
		return nil, err
	}
	s.sendConfirmation(ctx, sub.Email, verify, *sub.UnsubscribeToken)
	return sub, nil
}

func (s *Service) sendConfirmation(ctx context.Context, email, verify, unsubscribe string) {
	if s.mailer == nil {
		s.logger.Warn("mail not configured, skipping newsletter confirmation", slog.String("email", email))
		return
	}
	verifyURL := s.publicBaseURL + "/newsletter/verify?token=" + url.QueryEscape(verify)
	unsubscribeURL := s.publicBaseURL + "/newsletter/unsubscribe?token=" + url.QueryEscape(unsubscribe)
	err := s.mailer.Send(ctx, shared.MailMessage{
		To:      email,
		Subject: "Confirm your newsletter subscription",
		Body: "Thanks for subscribing.\n\nConfirm your subscription: " + verifyURL +
			"\n\nUnsubscribe at any time: " + unsubscribeURL +
			"\n\nIf you did not request this, ignore this email.",
	})
	if err != nil {
		s.logger.Warn("queue newsletter confirmation", slog.String("email", email), slog.Any("error", err))
	}
}

// Verify confirms the subscription holding token.
func (s *Service) Verify(ctx context.Context, token string) (*Subscription, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token required", httpx.ErrValidation)
	}
	sub, err := s.repo.FindByVerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sub.VerifyTokenExpiresAt == nil || sub.VerifyTokenExpiresAt.Before(s.now()) {
		return nil, fmt.Errorf("%w: token expired, subscribe again", httpx.ErrValidation)
	}
	sub.IsVerified = true
	sub.IsActive = true
	sub.VerifyToken = nil
	sub.VerifyTokenExpiresAt = nil
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe deactivates the subscription owning token.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token required", httpx.ErrValidation)
	}
	sub, err := s.repo.FindByUnsubscribeToken(ctx, token)
	if err != nil {
		return err
	}
	return s.deactivate(ctx, sub)
}

// UnsubscribeByEmail deactivates the subscription of email.
func (s *Service) UnsubscribeByEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email required", httpx.ErrValidation)
	}
	sub, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.deactivate(ctx, sub)
}

func (s *Service) deactivate(ctx context.Context, sub *Subscription) error {
	sub.IsActive = false
	return s.repo.Update(ctx, sub)
}

// AdminList pages through subscriptions.
func (s *Service) AdminList(ctx context.Context, filter ListFilter) (shared.PageResult[Subscription], error) {
	switch filter.Status {
	case "", FilterActive, FilterInactive, FilterVerified, FilterUnverified:
	default:
		return shared.PageResult[Subscription]{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filter.Status)
	}
	filter.Page = shared.NewPage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.PageResult[Subscription]{}, err
	}
	return shared.NewPageResult(items, filter.Page, total), nil
}

// AdminUpdate sets the flags present in in.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, in AdminUpdateInput) (*Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.IsActive != nil {
		sub.IsActive = *in.IsActive
	}
	if in.IsVerified != nil {
		sub.IsVerified = *in.IsVerified
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// AdminRemove deletes a subscription.
func (s *Service) AdminRemove(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// PurgeExpiredTokens clears confirmation tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged newsletter tokens", slog.Int64("count", n))
	}
	return n, nil
}

func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
