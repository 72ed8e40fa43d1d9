package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Actor is the caller driving a transition.
type Actor interface {
	ActorID() uuid.UUID
	HasPermission(key string) bool
}

// Store loads and persists workflowed records of one entity type.
type Store[T Record] interface {
	// Load returns an isolated copy of the record or httpx.ErrNotFound.
	Load(ctx context.Context, id uuid.UUID) (T, error)
	// SaveTransition writes status, review columns and publish side effects in
	// one update guarded by expectedVersion, returning httpx.ErrConflict when
	// the stored version moved on.
	SaveTransition(ctx context.Context, rec T, expectedVersion int64) error
}

// Permissions names the keys required for reviewer transitions.
type Permissions struct {
	Approve string
	Reject  string
	Archive string
}

// Config parameterises an Engine for a single entity type.
type Config[T Record] struct {
	// Kind is the singular label used in error messages, e.g. "article".
	Kind string
	// Module tags history events and metrics, e.g. "articles".
	Module      string
	Permissions Permissions
	// SubmitGate runs before the submit state check; ownership rules live here.
	SubmitGate func(rec T, actor Actor) error
	// OnPublish applies entity specific side effects on entering published.
	OnPublish func(rec T, at time.Time)
	// RequireRejectComment turns a blank rejection comment into a validation error.
	RequireRejectComment bool
	Recorder             Recorder
	Metrics              *Metrics
	Logger               *slog.Logger
	Clock                func() time.Time
}

// Engine enforces the review lifecycle for one entity type.
type Engine[T Record] struct {
	cfg   Config[T]
	store Store[T]
}

// NewEngine constructs an Engine.
func NewEngine[T Record](store Store[T], cfg Config[T]) *Engine[T] {
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Kind == "" {
		cfg.Kind = "record"
	}
	if cfg.Module == "" {
		cfg.Module = cfg.Kind
	}
	return &Engine[T]{cfg: cfg, store: store}
}

// Submit moves a draft or rejected record into review.
func (e *Engine[T]) Submit(ctx context.Context, id uuid.UUID, actor Actor) (T, error) {
	return e.run(ctx, id, actor, ActionSubmit, "", func(rec T, st *State, now time.Time) error {
		if e.cfg.SubmitGate != nil {
			if err := e.cfg.SubmitGate(rec, actor); err != nil {
				return err
			}
		}
		if st.Status != StatusDraft && st.Status != StatusRejected {
			return fmt.Errorf("%w: %s cannot be submitted from status %s", httpx.ErrInvalidTransition, e.cfg.Kind, st.Status)
		}
		st.submit(actor.ActorID(), now)
		return nil
	})
}

// Approve publishes a record that is in review.
func (e *Engine[T]) Approve(ctx context.Context, id uuid.UUID, actor Actor) (T, error) {
	return e.run(ctx, id, actor, ActionApprove, e.cfg.Permissions.Approve, func(rec T, st *State, now time.Time) error {
		if st.Status != StatusInReview {
			return fmt.Errorf("%w: %s is not in review", httpx.ErrInvalidTransition, e.cfg.Kind)
		}
		st.decide(StatusPublished, actor.ActorID(), now, nil)
		if e.cfg.OnPublish != nil {
			e.cfg.OnPublish(rec, now)
		}
		return nil
	})
}

// Reject declines a record that is in review. A blank comment is stored as null.
func (e *Engine[T]) Reject(ctx context.Context, id uuid.UUID, actor Actor, comment *string) (T, error) {
	note := NormalizeComment(comment)
	if note == nil && e.cfg.RequireRejectComment {
		var zero T
		return zero, fmt.Errorf("%w: rejection comment required", httpx.ErrValidation)
	}
	return e.run(ctx, id, actor, ActionReject, e.cfg.Permissions.Reject, func(rec T, st *State, now time.Time) error {
		if st.Status != StatusInReview {
			return fmt.Errorf("%w: %s is not in review", httpx.ErrInvalidTransition, e.cfg.Kind)
		}
		st.decide(StatusRejected, actor.ActorID(), now, note)
		return nil
	})
}

// Archive retires a published record. Publish timestamps are preserved.
func (e *Engine[T]) Archive(ctx context.Context, id uuid.UUID, actor Actor) (T, error) {
	return e.run(ctx, id, actor, ActionArchive, e.cfg.Permissions.Archive, func(rec T, st *State, now time.Time) error {
		if st.Status != StatusPublished {
			return fmt.Errorf("%w: only published %s can be archived", httpx.ErrInvalidTransition, e.cfg.Kind)
		}
		st.archive(actor.ActorID(), now)
		return nil
	})
}

type mutation[T Record] func(rec T, st *State, now time.Time) error

func (e *Engine[T]) run(ctx context.Context, id uuid.UUID, actor Actor, action Action, permission string, apply mutation[T]) (T, error) {
	var zero T
	if actor == nil || actor.ActorID() == uuid.Nil {
		return zero, fmt.Errorf("%w: actor required", httpx.ErrUnauthorized)
	}
	rec, err := e.store.Load(ctx, id)
	if err != nil {
		e.cfg.Metrics.observe(e.cfg.Module, action, err)
		return zero, err
	}
	if permission != "" && !actor.HasPermission(permission) {
		err := fmt.Errorf("%w: %s requires %s", httpx.ErrForbidden, action.verb(), permission)
		e.cfg.Metrics.observe(e.cfg.Module, action, err)
		return zero, err
	}
	st := rec.WorkflowState()
	from := st.Status
	expected := st.Version
	now := e.cfg.Clock()
	if err := apply(rec, st, now); err != nil {
		e.cfg.Metrics.observe(e.cfg.Module, action, err)
		return zero, err
	}
	if err := e.store.SaveTransition(ctx, rec, expected); err != nil {
		e.cfg.Metrics.observe(e.cfg.Module, action, err)
		return zero, err
	}
	st.Version = expected + 1
	e.cfg.Metrics.observe(e.cfg.Module, action, nil)
	e.record(ctx, Event{
		Module:  e.cfg.Module,
		RefID:   id,
		ActorID: actor.ActorID(),
		Action:  action,
		From:    from,
		To:      st.Status,
		Note:    derefString(st.ReviewComment, action),
		At:      now,
	})
	return rec, nil
}

func (e *Engine[T]) record(ctx context.Context, ev Event) {
	if e.cfg.Recorder == nil {
		return
	}
	if err := e.cfg.Recorder.Record(ctx, ev); err != nil && e.cfg.Logger != nil {
		e.cfg.Logger.Warn("record workflow event",
			slog.String("module", ev.Module),
			slog.String("ref_id", ev.RefID.String()),
			slog.String("action", string(ev.Action)),
			slog.Any("error", err))
	}
}

func derefString(s *string, action Action) string {
	if s == nil || action != ActionReject {
		return ""
	}
	return *s
}
