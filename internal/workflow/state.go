// Package workflow implements the review lifecycle shared by articles,
// categories, ads and user accounts.
//
//	draft|rejected --submit--> in_review --approve--> published --archive--> archived
//	                           in_review --reject---> rejected
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Status is the lifecycle stage of a reviewable record.
type Status string

const (
	// StatusDraft is the initial stage for non-privileged creators.
	StatusDraft Status = "draft"
	// StatusInReview awaits a reviewer decision.
	StatusInReview Status = "in_review"
	// StatusRejected was declined and may be resubmitted.
	StatusRejected Status = "rejected"
	// StatusPublished is publicly visible.
	StatusPublished Status = "published"
	// StatusArchived is terminal.
	StatusArchived Status = "archived"
)

// Statuses lists every lifecycle stage in order.
var Statuses = []Status{StatusDraft, StatusInReview, StatusRejected, StatusPublished, StatusArchived}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusRejected, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ParseStatus validates a raw status value. Empty input yields "".
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" || s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, raw)
}

// State holds the review columns every workflowed table carries.
type State struct {
	Status        Status     `json:"status"`
	CreatedByID   *uuid.UUID `json:"createdById"`
	SubmittedAt   *time.Time `json:"submittedAt"`
	SubmittedByID *uuid.UUID `json:"submittedById"`
	ReviewedAt    *time.Time `json:"reviewedAt"`
	ReviewedByID  *uuid.UUID `json:"reviewedById"`
	ReviewComment *string    `json:"reviewComment"`
	Version       int64      `json:"version"`
}

// Record is implemented by every entity that embeds a State.
type Record interface {
	WorkflowState() *State
}

// NewState returns the state of a freshly created record.
func NewState(creator uuid.UUID, status Status) State {
	st := State{Status: status}
	if creator != uuid.Nil {
		id := creator
		st.CreatedByID = &id
	}
	return st
}

// InitialStatus decides the creation status. Only privileged creators skip
// review: they get published, or with honourRequested the requested status
// (draft or published, defaulting to draft). Everyone else starts in draft.
func InitialStatus(privileged bool, requested Status, honourRequested bool) Status {
	if !privileged {
		return StatusDraft
	}
	if !honourRequested {
		return StatusPublished
	}
	if requested == StatusPublished {
		return StatusPublished
	}
	return StatusDraft
}

func (st *State) submit(actor uuid.UUID, now time.Time) {
	st.Status = StatusInReview
	st.SubmittedAt = timePtr(now)
	st.SubmittedByID = uuidPtr(actor)
	st.ReviewedAt = nil
	st.ReviewedByID = nil
	st.ReviewComment = nil
}

func (st *State) decide(status Status, reviewer uuid.UUID, now time.Time, comment *string) {
	st.Status = status
	st.ReviewedAt = timePtr(now)
	st.ReviewedByID = uuidPtr(reviewer)
	st.ReviewComment = comment
}

func (st *State) archive(reviewer uuid.UUID, now time.Time) {
	st.Status = StatusArchived
	st.ReviewedAt = timePtr(now)
	st.ReviewedByID = uuidPtr(reviewer)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

// NormalizeComment trims a review comment; blank comments become nil.
func NormalizeComment(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// RejectInput is the body of a reject request.
type RejectInput struct {
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}
