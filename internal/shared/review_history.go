package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/db"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// ReviewEntry is one row of review_history.
type ReviewEntry struct {
	ID      int64           `json:"id"`
	Module  string          `json:"module"`
	RefID   uuid.UUID       `json:"refId"`
	ActorID uuid.UUID       `json:"actorId"`
	Action  workflow.Action `json:"action"`
	From    workflow.Status `json:"from"`
	To      workflow.Status `json:"to"`
	Note    string          `json:"note,omitempty"`
	At      time.Time       `json:"at"`
}

// ReviewHistory persists workflow transitions.
type ReviewHistory struct {
	db db.Querier
}

var _ workflow.Recorder = (*ReviewHistory)(nil)

// NewReviewHistory constructs ReviewHistory.
func NewReviewHistory(q db.Querier) *ReviewHistory {
	return &ReviewHistory{db: q}
}

// Record writes a transition entry.
func (h *ReviewHistory) Record(ctx context.Context, ev workflow.Event) error {
	if h == nil || h.db == nil {
		return errors.New("review history not initialised")
	}
	if ev.Module == "" {
		return errors.New("review module required")
	}
	if ev.ActorID == uuid.Nil {
		return errors.New("review actor required")
	}
	if ev.RefID == uuid.Nil {
		return errors.New("review ref id required")
	}
	if ev.Action == "" {
		return errors.New("review action required")
	}
	var at *time.Time
	if !ev.At.IsZero() {
		at = &ev.At
	}
	_, err := h.db.Exec(ctx, `INSERT INTO review_history (module, ref_id, actor_id, action, from_status, to_status, note, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		ev.Module, ev.RefID, ev.ActorID, string(ev.Action), string(ev.From), string(ev.To), ev.Note, at)
	return err
}

// List returns the transitions of one record, oldest first.
func (h *ReviewHistory) List(ctx context.Context, module string, ref uuid.UUID) ([]ReviewEntry, error) {
	if h == nil || h.db == nil {
		return nil, errors.New("review history not initialised")
	}
	rows, err := h.db.Query(ctx, `SELECT id, module, ref_id, actor_id, action, from_status, to_status, note, at
FROM review_history WHERE module=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := []ReviewEntry{}
	for rows.Next() {
		var l ReviewEntry
		var action, from, to string
		if err := rows.Scan(&l.ID, &l.Module, &l.RefID, &l.ActorID, &action, &from, &to, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = workflow.Action(action)
		l.From = workflow.Status(from)
		l.To = workflow.Status(to)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// HistoryStore records and lists transitions.
type HistoryStore interface {
	workflow.Recorder
	List(ctx context.Context, module string, ref uuid.UUID) ([]ReviewEntry, error)
}
