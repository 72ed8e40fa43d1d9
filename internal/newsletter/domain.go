// Package newsletter implements double opt-in subscriptions.
package newsletter

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
)

// Listing filters accepted by AdminList.
const (
	FilterActive     = "active"
	FilterInactive   = "inactive"
	FilterVerified   = "verified"
	FilterUnverified = "unverified"
)

// Subscription is one newsletter address. Tokens never leave the service.
type Subscription struct {
	ID                   uuid.UUID  `json:"id"`
	Email                string     `json:"email"`
	IsVerified           bool       `json:"isVerified"`
	IsActive             bool       `json:"isActive"`
	VerifyToken          *string    `json:"-"`
	VerifyTokenExpiresAt *time.Time `json:"-"`
	UnsubscribeToken     *string    `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// SubscribeInput is the public subscribe payload.
type SubscribeInput struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

// AdminUpdateInput toggles subscription flags.
type AdminUpdateInput struct {
	IsActive   *bool `json:"isActive"`
	IsVerified *bool `json:"isVerified"`
}

// ListFilter narrows AdminList.
type ListFilter struct {
	Query  string
	Status string
	Page   shared.Page
}
