package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Account status values stored in users.account_status.
const (
	AccountActive    = "active"
	AccountInactive  = "inactive"
	AccountSuspended = "suspended"
)

// Account is the credential view of a user row.
type Account struct {
	ID            uuid.UUID
	Email         string
	Name          string
	PasswordHash  string
	IsActive      bool
	AccountStatus string
	LastLoginAt   *time.Time
}

// CanLogin reports whether the account may authenticate.
func (a *Account) CanLogin() bool {
	return a.IsActive && a.AccountStatus == AccountActive
}

// NewAccount carries registration fields.
type NewAccount struct {
	Email        string
	Name         string
	Username     string
	PasswordHash string
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	User         *Profile         `json:"user"`
	Access       *rbac.Resolution `json:"access"`
}

// Profile is the public projection of the signed-in user.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshInput carries a refresh token.
type RefreshInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RegisterInput carries self-registration fields.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"omitempty,max=60"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ChangePasswordInput carries the current and next password.
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// ForgotPasswordInput carries the account email.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordInput carries a reset token and the new password.
type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

func (a *Account) profile() *Profile {
	return &Profile{ID: a.ID, Email: a.Email, Name: a.Name, IsActive: a.IsActive, LastLoginAt: a.LastLoginAt}
}
