package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Module tags review history and metrics.
const Module = "users"

// User represents a managed account. Review state gates whether the account
// is visible as a contributor.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Username      *string    `json:"username"`
	Bio           *string    `json:"bio"`
	Avatar        *string    `json:"avatar"`
	AccountStatus string     `json:"accountStatus"`
	IsActive      bool       `json:"isActive"`
	IsRejected    bool       `json:"isRejected"`
	LastLoginAt   *time.Time `json:"lastLoginAt"`
	workflow.State
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkflowState exposes the review columns to the engine.
func (u *User) WorkflowState() *workflow.State {
	return &u.State
}

// CreateUserInput is the payload for admin-created accounts.
type CreateUserInput struct {
	Email    string   `json:"email" validate:"required,email,max=255"`
	Name     string   `json:"name" validate:"required,max=120"`
	Username string   `json:"username" validate:"omitempty,max=60,alphanum"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	RoleKeys []string `json:"roleKeys" validate:"omitempty,dive,max=60"`
}

// UpdateUserInput patches profile fields.
type UpdateUserInput struct {
	Email         *string `json:"email" validate:"omitempty,email,max=255"`
	Name          *string `json:"name" validate:"omitempty,min=1,max=120"`
	Username      *string `json:"username" validate:"omitempty,max=60,alphanum"`
	Bio           *string `json:"bio" validate:"omitempty,max=2000"`
	Avatar        *string `json:"avatar" validate:"omitempty,max=500"`
	AccountStatus *string `json:"accountStatus" validate:"omitempty,oneof=active inactive suspended"`
}

// SetActiveInput toggles login ability.
type SetActiveInput struct {
	Active *bool `json:"active" validate:"required"`
}

// NewUser carries the columns written on creation.
type NewUser struct {
	User
	PasswordHash string
	RoleKeys     []string
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status workflow.Status
	Active *bool
	Search string
	Page   shared.Page
}
