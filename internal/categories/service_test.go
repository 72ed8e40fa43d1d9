package categories

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
	"github.com/newsdesk/newsdesk/internal/workflow"
)

type memoryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Category
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[uuid.UUID]Category)}
}

func (m *memoryRepo) Load(ctx context.Context, id uuid.UUID) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &c, nil
}

func (m *memoryRepo) Create(ctx context.Context, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Slug == c.Slug {
			return httpx.ErrDuplicate
		}
	}
	c.Version = 1
	c.CreatedAt = time.Now()
	m.rows[c.ID] = *c
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, c *Category, expectedVersion int64) error {
	return m.save(c, expectedVersion)
}

func (m *memoryRepo) SaveTransition(ctx context.Context, c *Category, expectedVersion int64) error {
	return m.save(c, expectedVersion)
}

func (m *memoryRepo) save(c *Category, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[c.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	if current.Version != expectedVersion {
		return httpx.ErrConflict
	}
	next := *c
	next.Version = expectedVersion + 1
	m.rows[c.ID] = next
	return nil
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

func (m *memoryRepo) sorted(keep func(Category) bool) []Category {
	var out []Category
	for _, c := range m.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Category, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(c Category) bool { return filter.Status == "" || c.Status == filter.Status })
	return out, len(out), nil
}

func (m *memoryRepo) ListPublished(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(c Category) bool { return c.Status == workflow.StatusPublished }), nil
}

func (m *memoryRepo) Reorder(ctx context.Context, items []Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if _, ok := m.rows[it.ID]; !ok {
			return httpx.ErrNotFound
		}
	}
	for _, it := range items {
		c := m.rows[it.ID]
		c.SortOrder = it.SortOrder
		c.Version++
		m.rows[it.ID] = c
	}
	return nil
}

func (m *memoryRepo) NextSortOrder(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	for _, c := range m.rows {
		if c.SortOrder >= next {
			next = c.SortOrder + 1
		}
	}
	return next, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	admin   = &rbac.Principal{UserID: uuid.New(), Roles: []string{rbac.RoleAdmin}}
	author  = &rbac.Principal{UserID: uuid.New(), Roles: []string{rbac.RoleAuthor}, Permissions: []string{rbac.PermCategoriesCreate, rbac.PermCategoriesSubmit}}
	editors = &rbac.Principal{UserID: uuid.New(), Roles: []string{rbac.RoleJournalist}, Permissions: []string{rbac.PermCategoriesReviewApprove, rbac.PermCategoriesReviewReject}}
)

func TestRejectThenApproveIsInvalid(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, author, CreateCategoryInput{Name: "Science"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, author, c.ID)
	require.NoError(t, err)

	comment := "  needs more detail  "
	c, err = svc.Reject(ctx, editors, c.ID, &comment)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, c.Status)
	require.Equal(t, "needs more detail", *c.ReviewComment)

	_, err = svc.Approve(ctx, editors, c.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)

	stored, err := repo.Load(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, stored.Status)
}

func TestResubmitClearsReview(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, author, CreateCategoryInput{Name: "Health"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, author, c.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, editors, c.ID, nil)
	require.NoError(t, err)

	c, err = svc.Submit(ctx, author, c.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInReview, c.Status)
	require.Nil(t, c.ReviewedAt)
	require.Nil(t, c.ReviewedByID)
	require.Nil(t, c.ReviewComment)
}

func TestCreateDerivesSlugAndOrder(t *testing.T) {
	audit := &memoryAudit{}
	svc := NewService(newMemoryRepo(), nil, audit, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, admin, CreateCategoryInput{Name: "Économie & Finance"})
	require.NoError(t, err)
	require.Equal(t, "economie-finance", first.Slug)
	require.Equal(t, 0, first.SortOrder)
	require.Equal(t, workflow.StatusPublished, first.Status)

	second, err := svc.Create(ctx, admin, CreateCategoryInput{Name: "Sports"})
	require.NoError(t, err)
	require.Equal(t, 1, second.SortOrder)

	_, err = svc.Create(ctx, admin, CreateCategoryInput{Name: "Sports!"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	_, err = svc.Create(ctx, admin, CreateCategoryInput{Name: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)

	require.Len(t, audit.logs, 2)
	require.Equal(t, admin.UserID, audit.logs[0].ActorID)
}

func TestListPublicAndReorder(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, admin, CreateCategoryInput{Name: "Alpha"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, admin, CreateCategoryInput{Name: "Beta"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, author, CreateCategoryInput{Name: "Gamma"})
	require.NoError(t, err)

	items, err := svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, a.ID, items[0].ID)

	require.NoError(t, svc.Reorder(ctx, admin, ReorderInput{Items: []Position{
		{ID: a.ID, SortOrder: 5},
		{ID: b.ID, SortOrder: 1},
	}}))
	items, err = svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Equal(t, b.ID, items[0].ID)

	err = svc.Reorder(ctx, admin, ReorderInput{Items: []Position{{ID: a.ID}, {ID: a.ID, SortOrder: 2}}})
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.Reorder(ctx, admin, ReorderInput{Items: []Position{{ID: uuid.New()}}})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateDetectsStaleVersion(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, admin, CreateCategoryInput{Name: "Tech"})
	require.NoError(t, err)

	name := "Technology"
	updated, err := svc.Update(ctx, admin, c.ID, UpdateCategoryInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)

	stale := *c
	stale.Name = "Stale"
	require.ErrorIs(t, repo.Update(ctx, &stale, c.Version), httpx.ErrConflict)
}

func TestReorderBumpsVersion(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, admin, CreateCategoryInput{Name: "Culture"})
	require.NoError(t, err)
	stale, err := repo.Load(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Reorder(ctx, admin, ReorderInput{Items: []Position{{ID: c.ID, SortOrder: 3}}}))

	stored, err := repo.Load(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.SortOrder)
	require.Equal(t, stale.Version+1, stored.Version)

	stale.Name = "Stale culture"
	require.ErrorIs(t, repo.Update(ctx, stale, stale.Version), httpx.ErrConflict)
}

func TestHandlerGuardsCategoryRoutes(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)
	c, err := svc.Create(context.Background(), author, CreateCategoryInput{Name: "Routed"})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)

	do := func(method, path, body string, p *rbac.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if p != nil {
			req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), p))
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}
	base := "/" + c.ID.String()
	reorder := `{"items":[{"id":"` + c.ID.String() + `","sortOrder":1}]}`
	sorter := &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermCategoriesReorder}}

	require.Equal(t, http.StatusOK, do(http.MethodGet, "/public", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/", "", nil).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodGet, base, "", author).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPatch, base, `{"name":"X"}`, author).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodDelete, base, "", author).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPut, "/order", reorder, author).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPost, base+"/archive", "", editors).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, base+"/submit", "", author).Code)
	require.Equal(t, http.StatusNoContent, do(http.MethodPut, "/order", reorder, sorter).Code)
}
