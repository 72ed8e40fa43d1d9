package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

type doc struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	PublishedAt *time.Time
	State
}

func (d *doc) WorkflowState() *State { return &d.State }

type memoryDocs struct {
	mu      sync.Mutex
	records map[uuid.UUID]doc
	saveErr error
}

func newMemoryDocs() *memoryDocs {
	return &memoryDocs{records: make(map[uuid.UUID]doc)}
}

func (m *memoryDocs) put(d doc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[d.ID] = d
}

func (m *memoryDocs) get(id uuid.UUID) doc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *memoryDocs) Load(ctx context.Context, id uuid.UUID) (*doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.records[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &d, nil
}

func (m *memoryDocs) SaveTransition(ctx context.Context, rec *doc, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	current, ok := m.records[rec.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	if current.Version != expectedVersion {
		return httpx.ErrConflict
	}
	next := *rec
	next.Version = expectedVersion + 1
	m.records[rec.ID] = next
	return nil
}

type stubActor struct {
	id    uuid.UUID
	perms map[string]bool
}

func (a stubActor) ActorID() uuid.UUID { return a.id }
func (a stubActor) HasPermission(key string) bool { return a.perms[key] }

func reviewer() stubActor {
	return stubActor{id: uuid.New(), perms: map[string]bool{
		"docs.review.approve": true,
		"docs.review.reject":  true,
		"docs.archive":        true,
	}}
}

type memoryRecorder struct {
	events []Event
	err    error
}

func (r *memoryRecorder) Record(ctx context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newDocEngine(store *memoryDocs, recorder Recorder) *Engine[*doc] {
	return NewEngine[*doc](store, Config[*doc]{
		Kind:   "doc",
		Module: "docs",
		Permissions: Permissions{
			Approve: "docs.review.approve",
			Reject:  "docs.review.reject",
			Archive: "docs.archive",
		},
		OnPublish: func(d *doc, at time.Time) { d.PublishedAt = &at },
		Recorder:  recorder,
		Clock:     func() time.Time { return fixedNow },
	})
}

func seedDoc(store *memoryDocs, status Status) doc {
	d := doc{ID: uuid.New(), OwnerID: uuid.New(), State: State{Status: status}}
	store.put(d)
	return d
}

func TestSubmitThenApprove(t *testing.T) {
	store := newMemoryDocs()
	rec := &memoryRecorder{}
	engine := newDocEngine(store, rec)
	d := seedDoc(store, StatusDraft)
	author := stubActor{id: uuid.New()}

	submitted, err := engine.Submit(context.Background(), d.ID, author)
	require.NoError(t, err)
	require.Equal(t, StatusInReview, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.Equal(t, author.id, *submitted.SubmittedByID)
	require.Nil(t, submitted.ReviewedAt)

	rv := reviewer()
	approved, err := engine.Approve(context.Background(), d.ID, rv)
	require.NoError(t, err)
	require.Equal(t, StatusPublished, approved.Status)
	require.Equal(t, fixedNow, *approved.ReviewedAt)
	require.Equal(t, rv.id, *approved.ReviewedByID)
	require.Nil(t, approved.ReviewComment)
	require.NotNil(t, approved.PublishedAt)
	require.EqualValues(t, 2, store.get(d.ID).Version)

	require.Len(t, rec.events, 2)
	require.Equal(t, ActionSubmit, rec.events[0].Action)
	require.Equal(t, StatusDraft, rec.events[0].From)
	require.Equal(t, StatusPublished, rec.events[1].To)
}

func TestRejectThenResubmitClearsReview(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	d := seedDoc(store, StatusInReview)
	comment := "  needs more detail  "

	rejected, err := engine.Reject(context.Background(), d.ID, reviewer(), &comment)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "needs more detail", *rejected.ReviewComment)
	require.NotNil(t, rejected.ReviewedAt)

	_, err = engine.Approve(context.Background(), d.ID, reviewer())
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)

	resubmitted, err := engine.Submit(context.Background(), d.ID, stubActor{id: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, StatusInReview, resubmitted.Status)
	require.Nil(t, resubmitted.ReviewedAt)
	require.Nil(t, resubmitted.ReviewedByID)
	require.Nil(t, resubmitted.ReviewComment)
}

func TestRejectBlankCommentStoredAsNull(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	d := seedDoc(store, StatusInReview)
	blank := "   "

	rejected, err := engine.Reject(context.Background(), d.ID, reviewer(), &blank)
	require.NoError(t, err)
	require.Nil(t, rejected.ReviewComment)
}

func TestRejectCommentRequiredWhenConfigured(t *testing.T) {
	store := newMemoryDocs()
	engine := NewEngine[*doc](store, Config[*doc]{
		Kind:                 "doc",
		Permissions:          Permissions{Reject: "docs.review.reject"},
		RequireRejectComment: true,
	})
	d := seedDoc(store, StatusInReview)

	_, err := engine.Reject(context.Background(), d.ID, reviewer(), nil)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, StatusInReview, store.get(d.ID).Status)
}

func TestArchiveDraftFailsWithoutMutation(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	d := seedDoc(store, StatusDraft)

	_, err := engine.Archive(context.Background(), d.ID, reviewer())
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
	require.Contains(t, err.Error(), "only published doc can be archived")

	stored := store.get(d.ID)
	require.Equal(t, StatusDraft, stored.Status)
	require.Nil(t, stored.ReviewedAt)
	require.EqualValues(t, 0, stored.Version)
}

func TestArchiveKeepsPublishTimestamp(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	published := fixedNow.Add(-48 * time.Hour)
	d := doc{ID: uuid.New(), PublishedAt: &published, State: State{Status: StatusPublished}}
	store.put(d)

	archived, err := engine.Archive(context.Background(), d.ID, reviewer())
	require.NoError(t, err)
	require.Equal(t, StatusArchived, archived.Status)
	require.Equal(t, published, *archived.PublishedAt)
	require.Equal(t, fixedNow, *archived.ReviewedAt)
}

func TestReviewerPermissionsEnforced(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	d := seedDoc(store, StatusInReview)
	nobody := stubActor{id: uuid.New()}

	_, err := engine.Approve(context.Background(), d.ID, nobody)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	_, err = engine.Reject(context.Background(), d.ID, nobody, nil)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	_, err = engine.Archive(context.Background(), d.ID, nobody)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Equal(t, StatusInReview, store.get(d.ID).Status)
}

func TestMissingRecordAndActor(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)

	_, err := engine.Submit(context.Background(), uuid.New(), stubActor{id: uuid.New()})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	d := seedDoc(store, StatusDraft)
	_, err = engine.Submit(context.Background(), d.ID, stubActor{})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestSubmitGateRunsBeforeStateCheck(t *testing.T) {
	store := newMemoryDocs()
	engine := NewEngine[*doc](store, Config[*doc]{
		Kind: "doc",
		SubmitGate: func(d *doc, actor Actor) error {
			if d.OwnerID != actor.ActorID() {
				return httpx.ErrForbidden
			}
			return nil
		},
	})
	d := seedDoc(store, StatusPublished)

	_, err := engine.Submit(context.Background(), d.ID, stubActor{id: uuid.New()})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = engine.Submit(context.Background(), d.ID, stubActor{id: d.OwnerID})
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestStaleVersionSurfacesConflict(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	d := seedDoc(store, StatusInReview)

	store.saveErr = httpx.ErrConflict
	_, err := engine.Approve(context.Background(), d.ID, reviewer())
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Equal(t, StatusInReview, store.get(d.ID).Status)
}

func TestConcurrentDecisionsOnlyOneWins(t *testing.T) {
	store := newMemoryDocs()
	engine := newDocEngine(store, nil)
	d := seedDoc(store, StatusInReview)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := engine.Approve(context.Background(), d.ID, reviewer())
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := engine.Reject(context.Background(), d.ID, reviewer(), nil)
		results <- err
	}()
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, httpx.ErrConflict) && !errors.Is(err, httpx.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.EqualValues(t, 1, store.get(d.ID).Version)
}

func TestRecorderFailureDoesNotFailTransition(t *testing.T) {
	store := newMemoryDocs()
	rec := &memoryRecorder{err: errors.New("history table missing")}
	engine := newDocEngine(store, rec)
	d := seedDoc(store, StatusDraft)

	_, err := engine.Submit(context.Background(), d.ID, stubActor{id: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, StatusInReview, store.get(d.ID).Status)
}

// Exhaustively walks short action sequences and checks that reviewer
// transitions only ever succeed from their single allowed source status.
func TestTransitionsAreMonotonic(t *testing.T) {
	type step int
	const (
		doSubmit step = iota
		doApprove
		doReject
		doArchive
	)
	steps := []step{doSubmit, doApprove, doReject, doArchive}
	const depth = 5

	var walk func(prefix []step)
	walk = func(prefix []step) {
		if len(prefix) == depth {
			store := newMemoryDocs()
			engine := newDocEngine(store, nil)
			d := seedDoc(store, StatusDraft)
			for _, s := range prefix {
				before := store.get(d.ID).Status
				var err error
				switch s {
				case doSubmit:
					_, err = engine.Submit(context.Background(), d.ID, stubActor{id: uuid.New()})
					if err == nil && before != StatusDraft && before != StatusRejected {
						t.Fatalf("submit succeeded from %s", before)
					}
				case doApprove:
					_, err = engine.Approve(context.Background(), d.ID, reviewer())
					if (err == nil) != (before == StatusInReview) {
						t.Fatalf("approve from %s: err=%v", before, err)
					}
				case doReject:
					_, err = engine.Reject(context.Background(), d.ID, reviewer(), nil)
					if (err == nil) != (before == StatusInReview) {
						t.Fatalf("reject from %s: err=%v", before, err)
					}
				case doArchive:
					_, err = engine.Archive(context.Background(), d.ID, reviewer())
					if (err == nil) != (before == StatusPublished) {
						t.Fatalf("archive from %s: err=%v", before, err)
					}
				}
				after := store.get(d.ID)
				if err != nil && after.Status != before {
					t.Fatalf("failed %v mutated status %s -> %s", s, before, after.Status)
				}
				if after.Status == StatusDraft && after.SubmittedAt != nil {
					t.Fatalf("draft carries submittedAt")
				}
				if after.Status == StatusInReview && after.SubmittedAt == nil {
					t.Fatalf("in_review without submittedAt")
				}
			}
			return
		}
		for _, s := range steps {
			walk(append(append([]step(nil), prefix...), s))
		}
	}
	walk(nil)
}

func TestTransitionMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	store := newMemoryDocs()
	engine := NewEngine[*doc](store, Config[*doc]{
		Kind:        "doc",
		Module:      "docs",
		Permissions: Permissions{Archive: "docs.archive"},
		Metrics:     metrics,
	})
	d := seedDoc(store, StatusDraft)

	_, err := engine.Archive(context.Background(), d.ID, reviewer())
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
	_, err = engine.Submit(context.Background(), d.ID, stubActor{id: uuid.New()})
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("docs", "ARCHIVE", "invalid_transition")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("docs", "SUBMIT", "ok")))
}

func TestInitialStatus(t *testing.T) {
	require.Equal(t, StatusDraft, InitialStatus(false, StatusPublished, true))
	require.Equal(t, StatusDraft, InitialStatus(false, "", false))
	require.Equal(t, StatusPublished, InitialStatus(true, "", false))
	require.Equal(t, StatusPublished, InitialStatus(true, StatusPublished, true))
	require.Equal(t, StatusDraft, InitialStatus(true, "", true))
	require.Equal(t, StatusDraft, InitialStatus(true, StatusInReview, true))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Published ")
	require.NoError(t, err)
	require.Equal(t, StatusPublished, s)

	s, err = ParseStatus("")
	require.NoError(t, err)
	require.Equal(t, Status(""), s)

	_, err = ParseStatus("live")
	require.ErrorIs(t, err, httpx.ErrValidation)
}
