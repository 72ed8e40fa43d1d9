package categories

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Module tags review history and metrics.
const Module = "categories"

// Category groups articles.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	Color       *string   `json:"color"`
	SortOrder   int       `json:"sortOrder"`
	workflow.State
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkflowState exposes the review columns to the engine.
func (c *Category) WorkflowState() *workflow.State {
	return &c.State
}

// CreateCategoryInput is the payload for Create.
type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Slug        string  `json:"slug" validate:"omitempty,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Image       *string `json:"image" validate:"omitempty,max=500"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	SortOrder   *int    `json:"sortOrder" validate:"omitempty,min=0"`
}

// UpdateCategoryInput patches editable fields.
type UpdateCategoryInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Image       *string `json:"image" validate:"omitempty,max=500"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	SortOrder   *int    `json:"sortOrder" validate:"omitempty,min=0"`
}

// Position assigns a sort order to one category.
type Position struct {
	ID        uuid.UUID `json:"id" validate:"required"`
	SortOrder int       `json:"sortOrder" validate:"min=0"`
}

// ReorderInput is the payload for Reorder.
type ReorderInput struct {
	Items []Position `json:"items" validate:"required,min=1,dive"`
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status workflow.Status
	Search string
	Page   shared.Page
}
