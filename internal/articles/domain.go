package articles

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Module tags review history and metrics.
const Module = "articles"

// Article is a reviewable news story.
type Article struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Slug          string      `json:"slug"`
	Excerpt       *string     `json:"excerpt"`
	Content       string      `json:"content"`
	AuthorID      uuid.UUID   `json:"authorId"`
	CoAuthorIDs   []uuid.UUID `json:"coAuthorIds"`
	CategoryID    *uuid.UUID  `json:"categoryId"`
	Tags          []string    `json:"tags"`
	Views         int64       `json:"views"`
	LikesCount    int64       `json:"likesCount"`
	CommentsCount int64       `json:"commentsCount"`
	PublishedAt   *time.Time  `json:"publishedAt"`
	workflow.State
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkflowState exposes the review columns to the engine.
func (a *Article) WorkflowState() *workflow.State {
	return &a.State
}

// CreditsAuthor reports whether userID is the main author or a co-author.
func (a *Article) CreditsAuthor(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	if a.AuthorID == userID {
		return true
	}
	for _, id := range a.CoAuthorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CreateArticleInput is the payload for Create. Status is honoured only for
// privileged callers.
type CreateArticleInput struct {
	Title      string          `json:"title" validate:"required,max=255"`
	Excerpt    *string         `json:"excerpt" validate:"omitempty,max=500"`
	Content    string          `json:"content" validate:"required"`
	CategoryID *uuid.UUID      `json:"categoryId"`
	Tags       []string        `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Status     workflow.Status `json:"status" validate:"omitempty,oneof=draft published"`
}

// UpdateArticleInput patches editable fields. Status moves only through the workflow.
type UpdateArticleInput struct {
	Title      *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Excerpt    *string    `json:"excerpt" validate:"omitempty,max=500"`
	Content    *string    `json:"content" validate:"omitempty,min=1"`
	CategoryID *uuid.UUID `json:"categoryId"`
	Tags       []string   `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// Author is a user credited on an article. The main author is the one
// recorded in articles.author_id.
type Author struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	IsMain bool      `json:"isMain"`
}

// SetAuthorsInput replaces the credited authors. The first id becomes the main author.
type SetAuthorsInput struct {
	AuthorIDs []uuid.UUID `json:"authorIds" validate:"required,min=1,max=10"`
}

// SetMainAuthorInput promotes one user to main author.
type SetMainAuthorInput struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

// Sort orders listings.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortOldest    Sort = "oldest"
	SortPopular   Sort = "popular"
	SortPublished Sort = "published"
)

// ParseSort maps a query value onto a known order, defaulting to newest.
func ParseSort(raw string) Sort {
	switch Sort(raw) {
	case SortOldest, SortPopular, SortPublished:
		return Sort(raw)
	}
	return SortNewest
}

// ListFilter narrows listings.
type ListFilter struct {
	Status     workflow.Status
	CategoryID *uuid.UUID
	AuthorID   *uuid.UUID
	Tag        string
	Search     string
	Sort       Sort
	Page       shared.Page
}

// Contact is the mail identity of an author.
type Contact struct {
	Email string
	Name  string
}
