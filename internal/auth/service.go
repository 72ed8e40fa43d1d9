package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)

// Resolver returns the effective access of a user.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (rbac.Resolution, error)
}

// Options tunes the service.
type Options struct {
	PublicBaseURL string
	BcryptCost    int
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	resolver Resolver
	tokens   *TokenIssuer
	refresh  *TokenStore
	resets   *TokenStore
	mailer   shared.Mailer
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

// NewService constructs a new Service. mailer may be nil when mail is not configured.
func NewService(repo Repository, resolver Resolver, tokens *TokenIssuer, refresh, resets *TokenStore, mailer shared.Mailer, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		tokens:   tokens,
		refresh:  refresh,
		resets:   resets,
		mailer:   mailer,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login validates credentials and issues a token pair carrying the resolved
// permission snapshot.
func (s *Service) Login(ctx context.Context, in LoginInput, ip string) (*TokenPair, error) {
	acc, err := s.repo.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(in.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !acc.CanLogin() {
		return nil, fmt.Errorf("%w: account inactive or suspended", httpx.ErrUnauthorized)
	}
	now := s.now()
	if err := s.repo.RecordLogin(ctx, acc.ID, ip, now); err != nil {
		s.logger.Warn("record login", slog.String("user_id", acc.ID.String()), slog.Any("error", err))
	}
	acc.LastLoginAt = &now
	return s.issuePair(ctx, acc)
}

// Refresh rotates a refresh token and re-resolves permissions.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.refresh.Consume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	acc, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", httpx.ErrUnauthorized)
		}
		return nil, err
	}
	if !acc.CanLogin() {
		return nil, fmt.Errorf("%w: account inactive or suspended", httpx.ErrUnauthorized)
	}
	return s.issuePair(ctx, acc)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.refresh.Revoke(ctx, refreshToken)
}

// Register creates a self-service account in draft with the default user role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	email := normalizeEmail(in.Email)
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc, err := s.repo.Register(ctx, NewAccount{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return acc.profile(), nil
}

// Me returns the profile and current access of the caller.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Profile, rbac.Resolution, error) {
	acc, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, rbac.Resolution{}, err
	}
	access, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, rbac.Resolution{}, err
	}
	return acc.profile(), access, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error {
	acc, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(in.OldPassword)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", httpx.ErrValidation)
	}
	return s.setPassword(ctx, userID, in.NewPassword)
}

// ForgotPassword mails a single-use reset link. Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acc, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := s.resets.Issue(ctx, acc.ID)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		s.logger.Info("password reset issued without mailer", slog.String("user_id", acc.ID.String()))
		return nil
	}
	link := strings.TrimRight(s.opts.PublicBaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	return s.mailer.Send(ctx, shared.MailMessage{
		To:      acc.Email,
		Subject: "Reset your password",
		Body:    "Use the following link to choose a new password: " + link,
	})
}

// ResetPassword consumes a reset token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	userID, err := s.resets.Consume(ctx, in.Token)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, userID, in.NewPassword)
}

func (s *Service) setPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

func (s *Service) issuePair(ctx context.Context, acc *Account) (*TokenPair, error) {
	access, err := s.resolver.Resolve(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	principal := rbac.Principal{UserID: acc.ID, Email: acc.Email, Roles: access.Roles, Permissions: access.Permissions}
	accessToken, expiresAt, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Issue(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         acc.profile(),
		Access:       &access,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
