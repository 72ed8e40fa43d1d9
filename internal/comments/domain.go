package comments

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
)

// Status values of a comment.
const (
	StatusVisible = "visible"
	StatusPending = "pending"
	StatusHidden  = "hidden"
)

// Comment is a reader reply on an article.
type Comment struct {
	ID         uuid.UUID  `json:"id"`
	ArticleID  uuid.UUID  `json:"articleId"`
	UserID     *uuid.UUID `json:"userId"`
	GuestName  *string    `json:"guestName,omitempty"`
	GuestEmail *string    `json:"guestEmail,omitempty"`
	Content    string     `json:"content"`
	Status     string     `json:"status"`
	IsHidden   bool       `json:"isHidden"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// AddInput is the payload of an authenticated comment.
type AddInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// GuestInput is the payload of an anonymous comment.
type GuestInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Content string `json:"content" validate:"required,max=5000"`
}

// ModerateInput changes visibility.
type ModerateInput struct {
	Status *string `json:"status" validate:"omitempty,oneof=visible pending hidden"`
	Hidden *bool   `json:"hidden"`
}

// ListFilter narrows admin listings.
type ListFilter struct {
	ArticleID *uuid.UUID
	Status    string
	Page      shared.Page
}
