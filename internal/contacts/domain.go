// Package contacts stores messages sent through the public contact form.
package contacts

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
)

// Module names the idempotency scope of the contact form.
const Module = "contacts"

// DefaultArchiveAfter is the age past which read messages are archived.
const DefaultArchiveAfter = 30 * 24 * time.Hour

// Message is one contact form submission.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Message    string     `json:"message"`
	Subject    *string    `json:"subject"`
	Phone      *string    `json:"phone"`
	Company    *string    `json:"company"`
	IsRead     bool       `json:"isRead"`
	ArchivedAt *time.Time `json:"archivedAt"`
	IPAddress  *string    `json:"ipAddress"`
	UserAgent  *string    `json:"userAgent"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// CreateInput is the public contact form payload.
type CreateInput struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Email   string  `json:"email" validate:"required,email,max=150"`
	Message string  `json:"message" validate:"required,max=10000"`
	Subject *string `json:"subject" validate:"omitempty,max=50"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Company *string `json:"company" validate:"omitempty,max=100"`
}

// Origin describes the client that submitted a message.
type Origin struct {
	IP             string
	UserAgent      string
	IdempotencyKey string
}

// ReadInput toggles the read flag.
type ReadInput struct {
	Read *bool `json:"read" validate:"required"`
}

// ListFilter narrows the inbox.
type ListFilter struct {
	UnreadOnly bool
	Archived   bool
	Page       shared.Page
}

// UnreadCount is returned by the unread counter endpoint.
type UnreadCount struct {
	Count int `json:"count"`
}

// Affected reports the rows touched by a bulk operation.
type Affected struct {
	Affected int64 `json:"affected"`
}
