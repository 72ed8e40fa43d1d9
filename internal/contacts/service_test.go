package contacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]Message
	failing bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[uuid.UUID]Message{}}
}

func (m *memoryRepo) Create(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return context.DeadlineExceeded
	}
	msg.CreatedAt = time.Now().UTC()
	msg.UpdatedAt = msg.CreatedAt
	m.rows[msg.ID] = *msg
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &msg, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.rows {
		if (msg.ArchivedAt != nil) != filter.Archived {
			continue
		}
		if filter.UnreadOnly && msg.IsRead {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *memoryRepo) UnreadCount(ctx context.Context) (int, error) {
	out, _, _ := m.List(ctx, ListFilter{UnreadOnly: true})
	return len(out), nil
}

func (m *memoryRepo) update(id uuid.UUID, fn func(*Message)) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	fn(&msg)
	m.rows[id] = msg
	return &msg, nil
}

func (m *memoryRepo) SetRead(ctx context.Context, id uuid.UUID, read bool) (*Message, error) {
	return m.update(id, func(msg *Message) { msg.IsRead = read })
}

func (m *memoryRepo) SetArchived(ctx context.Context, id uuid.UUID, at *time.Time) (*Message, error) {
	return m.update(id, func(msg *Message) { msg.ArchivedAt = at })
}

func (m *memoryRepo) MarkAllRead(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, msg := range m.rows {
		if !msg.IsRead {
			msg.IsRead = true
			m.rows[id] = msg
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) ArchiveRead(ctx context.Context, cutoff, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, msg := range m.rows {
		if msg.IsRead && msg.ArchivedAt == nil && msg.CreatedAt.Before(cutoff) {
			at := now
			msg.ArchivedAt = &at
			m.rows[id] = msg
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (k *memoryKeys) CheckAndInsert(ctx context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	k.keys[module+"/"+key] = true
	return nil
}

func (k *memoryKeys) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, Module+"/"+key)
	return nil
}

func sampleInput() CreateInput {
	return CreateInput{Name: " Ada ", Email: "Ada@Example.com", Message: "Tip about a story"}
}

func TestCreateRecordsOriginAndHonoursIdempotencyKey(t *testing.T) {
	repo, keys := newMemoryRepo(), &memoryKeys{keys: map[string]bool{}}
	svc := NewService(repo, keys, nil)
	ctx := context.Background()

	origin := Origin{IP: "203.0.113.9", UserAgent: strings.Repeat("x", 600), IdempotencyKey: "k-1"}
	m, err := svc.Create(ctx, sampleInput(), origin)
	require.NoError(t, err)
	require.Equal(t, "Ada", m.Name)
	require.Equal(t, "ada@example.com", m.Email)
	require.Equal(t, "203.0.113.9", *m.IPAddress)
	require.Len(t, *m.UserAgent, 500)
	require.False(t, m.IsRead)

	_, err = svc.Create(ctx, sampleInput(), origin)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
	require.Len(t, repo.rows, 1)

	repo.failing = true
	_, err = svc.Create(ctx, sampleInput(), Origin{IdempotencyKey: "k-2"})
	require.Error(t, err)
	require.False(t, keys.keys[Module+"/k-2"])

	repo.failing = false
	m, err = svc.Create(ctx, sampleInput(), Origin{})
	require.NoError(t, err)
	require.Nil(t, m.IPAddress)
	require.Nil(t, m.UserAgent)
}

func TestInboxLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, sampleInput(), Origin{})
	require.NoError(t, err)
	b, err := svc.Create(ctx, sampleInput(), Origin{})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count.Count)

	read, err := svc.MarkRead(ctx, a.ID, true)
	require.NoError(t, err)
	require.True(t, read.IsRead)

	unread, err := svc.List(ctx, ListFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)
	require.Equal(t, b.ID, unread.Items[0].ID)

	archived, err := svc.Archive(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, archived.ArchivedAt)
	inbox, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, inbox.Items, 1)
	archive, err := svc.List(ctx, ListFilter{Archived: true})
	require.NoError(t, err)
	require.Len(t, archive.Items, 1)

	restored, err := svc.Unarchive(ctx, b.ID)
	require.NoError(t, err)
	require.Nil(t, restored.ArchivedAt)

	all, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, all.Affected)

	require.NoError(t, svc.Remove(ctx, a.ID))
	require.ErrorIs(t, svc.Remove(ctx, a.ID), httpx.ErrNotFound)
	_, err = svc.MarkRead(ctx, a.ID, false)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestArchiveReadUsesCutoff(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return now }

	old := Message{ID: uuid.New(), IsRead: true, CreatedAt: now.AddDate(0, 0, -45)}
	fresh := Message{ID: uuid.New(), IsRead: true, CreatedAt: now.AddDate(0, 0, -5)}
	oldUnread := Message{ID: uuid.New(), CreatedAt: now.AddDate(0, 0, -90)}
	for _, m := range []Message{old, fresh, oldUnread} {
		repo.rows[m.ID] = m
	}

	out, err := svc.ArchiveRead(context.Background(), 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, out.Affected)
	require.Equal(t, now, *repo.rows[old.ID].ArchivedAt)

	out, err = svc.ArchiveRead(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, out.Affected)
	require.NotNil(t, repo.rows[fresh.ID].ArchivedAt)
	require.Nil(t, repo.rows[oldUnread.ID].ArchivedAt)
}

func TestContactRoutes(t *testing.T) {
	h := NewHandler(nil, NewService(newMemoryRepo(), nil, nil), rbac.Middleware{}, 0)
	r := chi.NewRouter()
	h.MountRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada","email":"ada@example.com","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "probe/1.0")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"userAgent":"probe/1.0"`)
	require.Contains(t, rr.Body.String(), `"ipAddress":"192.0.2.1"`)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada","email":"not-an-email","message":"hello"}`))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/unread-count", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/unread-count", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermContactsView}}))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"count":1}`, rr.Body.String())

	req = httptest.NewRequest(http.MethodPatch, "/read-all", nil)
	req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermContactsView}}))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}
