package ads

import (
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Module tags review history and metrics.
const Module = "ads"

// AdType enumerates placements.
type AdType string

const (
	// AdTypeBanner is the default placement.
	AdTypeBanner  AdType = "banner"
	AdTypeSidebar AdType = "sidebar"
	AdTypePopup   AdType = "popup"
	AdTypeInline  AdType = "inline"
)

// Valid reports whether t is a known placement.
func (t AdType) Valid() bool {
	switch t {
	case AdTypeBanner, AdTypeSidebar, AdTypePopup, AdTypeInline:
		return true
	}
	return false
}

// Ad is a reviewable advertisement.
type Ad struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Content     *string    `json:"content"`
	Image       *string    `json:"image"`
	Link        *string    `json:"link"`
	Type        AdType     `json:"type"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Views       int64      `json:"views"`
	Clicks      int64      `json:"clicks"`
	Impressions int64      `json:"impressions"`
	workflow.State
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkflowState exposes the review columns to the engine.
func (a *Ad) WorkflowState() *workflow.State {
	return &a.State
}

// CreateAdInput is the payload for Create.
type CreateAdInput struct {
	Title     string     `json:"title" validate:"required,max=200"`
	Content   *string    `json:"content"`
	Image     *string    `json:"image" validate:"omitempty,max=500"`
	Link      *string    `json:"link" validate:"omitempty,url"`
	Type      AdType     `json:"type" validate:"omitempty,oneof=banner sidebar popup inline"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// UpdateAdInput patches editable fields. Status is never changed here.
type UpdateAdInput struct {
	Title     *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Content   *string    `json:"content"`
	Image     *string    `json:"image" validate:"omitempty,max=500"`
	Link      *string    `json:"link" validate:"omitempty,url"`
	Type      *AdType    `json:"type" validate:"omitempty,oneof=banner sidebar popup inline"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status workflow.Status
	Type   AdType
	Search string
	Page   shared.Page
}
