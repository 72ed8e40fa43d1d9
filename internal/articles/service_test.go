package articles

import (
	"context"
	"fmt"
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
	mu         sync.Mutex
	rows       map[uuid.UUID]Article
	categories map[uuid.UUID]bool
	contacts   map[uuid.UUID]Contact
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		rows:       make(map[uuid.UUID]Article),
		categories: make(map[uuid.UUID]bool),
		contacts:   make(map[uuid.UUID]Contact),
	}
}

func (m *memoryRepo) Load(ctx context.Context, id uuid.UUID) (*Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &a, nil
}

func (m *memoryRepo) Create(ctx context.Context, a *Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Version = 1
	m.rows[a.ID] = *a
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, a *Article, expectedVersion int64) error {
	return m.save(a, expectedVersion)
}

func (m *memoryRepo) SaveTransition(ctx context.Context, a *Article, expectedVersion int64) error {
	return m.save(a, expectedVersion)
}

func (m *memoryRepo) save(a *Article, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[a.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	if current.Version != expectedVersion {
		return httpx.ErrConflict
	}
	next := *a
	next.Version = expectedVersion + 1
	m.rows[a.ID] = next
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Article, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Article
	for _, a := range m.rows {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.AuthorID != nil && a.AuthorID != *filter.AuthorID {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *memoryRepo) FindPublishedBySlug(ctx context.Context, slug string) (*Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Slug == slug && a.Status == workflow.StatusPublished {
			return &a, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (m *memoryRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.rows[id]
	a.Views++
	m.rows[id] = a
	return nil
}

func (m *memoryRepo) CountByStatus(ctx context.Context, status workflow.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.rows {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.categories[id], nil
}

func (m *memoryRepo) AuthorContact(ctx context.Context, id uuid.UUID) (Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return Contact{}, httpx.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Authors(ctx context.Context, id uuid.UUID) ([]Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	out := []Author{m.author(a.AuthorID, true)}
	var co []Author
	for _, uid := range a.CoAuthorIDs {
		co = append(co, m.author(uid, false))
	}
	sort.Slice(co, func(i, j int) bool { return co[i].Name < co[j].Name })
	return append(out, co...), nil
}

func (m *memoryRepo) author(id uuid.UUID, main bool) Author {
	c := m.contacts[id]
	return Author{UserID: id, Name: c.Name, Email: c.Email, IsMain: main}
}

func (m *memoryRepo) SetAuthors(ctx context.Context, id uuid.UUID, mainID uuid.UUID, coAuthorIDs []uuid.UUID, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, uid := range append([]uuid.UUID{mainID}, coAuthorIDs...) {
		if _, ok := m.contacts[uid]; !ok {
			return fmt.Errorf("%w: user %s", httpx.ErrNotFound, uid)
		}
	}
	return m.mutate(id, expectedVersion, func(a *Article) {
		a.AuthorID = mainID
		a.CoAuthorIDs = append([]uuid.UUID{}, coAuthorIDs...)
	})
}

func (m *memoryRepo) SetMainAuthor(ctx context.Context, id uuid.UUID, userID uuid.UUID, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[userID]; !ok {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
	}
	return m.mutate(id, expectedVersion, func(a *Article) {
		var co []uuid.UUID
		for _, uid := range a.CoAuthorIDs {
			if uid != userID {
				co = append(co, uid)
			}
		}
		if a.AuthorID != userID {
			co = append(co, a.AuthorID)
		}
		a.AuthorID = userID
		a.CoAuthorIDs = co
	})
}

func (m *memoryRepo) mutate(id uuid.UUID, expectedVersion int64, fn func(*Article)) error {
	a, ok := m.rows[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if a.Version != expectedVersion {
		return httpx.ErrConflict
	}
	fn(&a)
	a.Version++
	m.rows[id] = a
	return nil
}

type outbox struct {
	mu   sync.Mutex
	sent []shared.MailMessage
}

func (o *outbox) Send(ctx context.Context, msg shared.MailMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestService(repo *memoryRepo, mail *outbox) *Service {
	opts := Options{Clock: func() time.Time { return fixedNow }}
	if mail != nil {
		opts.Mailer = mail
	}
	return NewService(repo, opts)
}

func authorPrincipal() *rbac.Principal {
	return &rbac.Principal{
		UserID: uuid.New(),
		Roles:  []string{rbac.RoleAuthor},
		Permissions: []string{
			rbac.PermArticlesCreate, rbac.PermArticlesUpdate, rbac.PermArticlesSubmit,
		},
	}
}

func editorPrincipal() *rbac.Principal {
	return &rbac.Principal{
		UserID: uuid.New(),
		Roles:  []string{rbac.RoleEditorInChief},
		Permissions: []string{
			rbac.PermArticlesReviewApprove, rbac.PermArticlesReviewReject, rbac.PermArticlesArchive,
		},
	}
}

func TestCreateHonoursStatusOnlyForPrivileged(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()
	in := CreateArticleInput{Title: "Election night", Content: "Body", Status: workflow.StatusPublished}

	a, err := svc.Create(ctx, authorPrincipal(), in)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDraft, a.Status)
	require.Nil(t, a.PublishedAt)

	a, err = svc.Create(ctx, editorPrincipal(), in)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPublished, a.Status)
	require.NotNil(t, a.PublishedAt)
	require.Equal(t, fixedNow, *a.PublishedAt)

	a, err = svc.Create(ctx, editorPrincipal(), CreateArticleInput{Title: "Quiet draft", Content: "Body"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDraft, a.Status)
	require.Equal(t, "quiet-draft-1714555800000", a.Slug)
}

func TestCreateRequiresKnownCategory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	missing := uuid.New()

	_, err := svc.Create(context.Background(), authorPrincipal(), CreateArticleInput{Title: "T", Content: "C", CategoryID: &missing})
	require.ErrorIs(t, err, httpx.ErrValidation)

	repo.categories[missing] = true
	a, err := svc.Create(context.Background(), authorPrincipal(), CreateArticleInput{Title: "T", Content: "C", CategoryID: &missing, Tags: []string{" Go ", "go", ""}})
	require.NoError(t, err)
	require.Equal(t, []string{"go"}, a.Tags)
}

func TestSubmitEnforcesOwnership(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()
	owner := authorPrincipal()
	other := authorPrincipal()

	a, err := svc.Create(ctx, owner, CreateArticleInput{Title: "Mine", Content: "Body"})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, other, a.ID)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	a, err = svc.Submit(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInReview, a.Status)

	_, err = svc.Update(ctx, owner, a.ID, UpdateArticleInput{})
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.NotErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestApproveRejectArchiveFlow(t *testing.T) {
	repo := newMemoryRepo()
	mail := &outbox{}
	svc := newTestService(repo, mail)
	ctx := context.Background()
	owner := authorPrincipal()
	repo.contacts[owner.UserID] = Contact{Email: "author@example.com", Name: "Author"}
	editor := editorPrincipal()

	a, err := svc.Create(ctx, owner, CreateArticleInput{Title: "Feature", Content: "Body"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, owner, a.ID)
	require.NoError(t, err)

	comment := "cite your sources"
	a, err = svc.Reject(ctx, editor, a.ID, &comment)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, a.Status)
	require.Nil(t, a.PublishedAt)

	title := "Feature, revised"
	_, err = svc.Update(ctx, owner, a.ID, UpdateArticleInput{Title: &title})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, owner, a.ID)
	require.NoError(t, err)

	a, err = svc.Approve(ctx, editor, a.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPublished, a.Status)
	require.Equal(t, fixedNow, *a.PublishedAt)
	require.Equal(t, editor.UserID, *a.ReviewedByID)

	a, err = svc.Archive(ctx, editor, a.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusArchived, a.Status)
	require.NotNil(t, a.PublishedAt)

	_, err = svc.Submit(ctx, owner, a.ID)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)

	require.Len(t, mail.sent, 2)
	require.Equal(t, "author@example.com", mail.sent[0].To)
	require.Contains(t, mail.sent[0].Body, "cite your sources")
	require.Equal(t, "Your article was published", mail.sent[1].Subject)
}

func TestGetBySlugCountsViewsOfPublishedOnly(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()

	published, err := svc.Create(ctx, editorPrincipal(), CreateArticleInput{Title: "Live", Content: "Body", Status: workflow.StatusPublished})
	require.NoError(t, err)
	draft, err := svc.Create(ctx, authorPrincipal(), CreateArticleInput{Title: "Hidden", Content: "Body"})
	require.NoError(t, err)

	got, err := svc.GetBySlug(ctx, published.Slug)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Views)
	got, err = svc.GetBySlug(ctx, " "+published.Slug+" ")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Views)

	_, err = svc.GetBySlug(ctx, draft.Slug)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestReviewQueueAndCount(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()
	owner := authorPrincipal()

	for i := 0; i < 3; i++ {
		a, err := svc.Create(ctx, owner, CreateArticleInput{Title: "Queued", Content: "Body"})
		require.NoError(t, err)
		if i < 2 {
			_, err = svc.Submit(ctx, owner, a.ID)
			require.NoError(t, err)
		}
	}
	n, err := svc.InReviewCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	page, err := svc.ReviewQueue(ctx, shared.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
}

func TestPrivilegedMayEditOthersPublishedArticle(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()
	editor := editorPrincipal()

	a, err := svc.Create(ctx, editor, CreateArticleInput{Title: "Desk", Content: "Body", Status: workflow.StatusPublished})
	require.NoError(t, err)

	body := "Corrected body"
	a, err = svc.Update(ctx, editorPrincipal(), a.ID, UpdateArticleInput{Content: &body})
	require.NoError(t, err)
	require.Equal(t, "Corrected body", a.Content)
	require.Equal(t, workflow.StatusPublished, a.Status)

	require.ErrorIs(t, svc.Delete(ctx, authorPrincipal(), a.ID), httpx.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, editor, a.ID))
}

func TestUpdateRejectsNonOwner(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	owner := authorPrincipal()

	a, err := svc.Create(ctx, owner, CreateArticleInput{Title: "Mine", Content: "Body"})
	require.NoError(t, err)

	title := "Hijacked"
	_, err = svc.Update(ctx, authorPrincipal(), a.ID, UpdateArticleInput{Title: &title})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	stored, err := repo.Load(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Mine", stored.Title)
	require.Equal(t, int64(1), stored.Version)
}

func TestCoAuthorsShareOwnership(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	owner := authorPrincipal()
	co := authorPrincipal()
	stranger := authorPrincipal()
	repo.contacts[owner.UserID] = Contact{Email: "owner@example.com", Name: "Ada"}
	repo.contacts[co.UserID] = Contact{Email: "co@example.com", Name: "Bo"}

	a, err := svc.Create(ctx, owner, CreateArticleInput{Title: "Joint", Content: "Body"})
	require.NoError(t, err)

	_, err = svc.SetAuthors(ctx, stranger, a.ID, SetAuthorsInput{AuthorIDs: []uuid.UUID{stranger.UserID}})
	require.ErrorIs(t, err, httpx.ErrForbidden)
	_, err = svc.SetAuthors(ctx, owner, a.ID, SetAuthorsInput{AuthorIDs: []uuid.UUID{co.UserID}})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.SetAuthors(ctx, owner, a.ID, SetAuthorsInput{AuthorIDs: []uuid.UUID{owner.UserID, uuid.New()}})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	a, err = svc.SetAuthors(ctx, owner, a.ID, SetAuthorsInput{AuthorIDs: []uuid.UUID{owner.UserID, co.UserID, owner.UserID}})
	require.NoError(t, err)
	require.Equal(t, owner.UserID, a.AuthorID)
	require.Equal(t, []uuid.UUID{co.UserID}, a.CoAuthorIDs)

	title := "Joint, edited"
	_, err = svc.Update(ctx, co, a.ID, UpdateArticleInput{Title: &title})
	require.NoError(t, err)
	_, err = svc.Update(ctx, stranger, a.ID, UpdateArticleInput{Title: &title})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	authors, err := svc.Authors(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	require.True(t, authors[0].IsMain)
	require.Equal(t, "owner@example.com", authors[0].Email)

	a, err = svc.SetMainAuthor(ctx, co, a.ID, co.UserID)
	require.NoError(t, err)
	require.Equal(t, co.UserID, a.AuthorID)
	require.Equal(t, []uuid.UUID{owner.UserID}, a.CoAuthorIDs)

	a, err = svc.Submit(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInReview, a.Status)

	_, err = svc.Authors(ctx, uuid.New())
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

type cancelAwareRepo struct {
	*memoryRepo
}

func (r cancelAwareRepo) FindPublishedBySlug(ctx context.Context, slug string) (*Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.memoryRepo.FindPublishedBySlug(ctx, slug)
}

func TestGetBySlugLookupIgnoresCallerCancellation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(cancelAwareRepo{repo}, Options{Clock: func() time.Time { return fixedNow }})

	a, err := svc.Create(context.Background(), editorPrincipal(), CreateArticleInput{Title: "Breaking", Content: "Body", Status: workflow.StatusPublished})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := svc.GetBySlug(ctx, a.Slug)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
}

func TestHandlerGuardsArticleRoutes(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	owner := authorPrincipal()
	a, err := svc.Create(context.Background(), owner, CreateArticleInput{Title: "Routed", Content: "Body"})
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
	base := "/" + a.ID.String()
	reader := &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermArticlesView}}

	require.Equal(t, http.StatusUnauthorized, do(http.MethodPatch, base, `{"title":"x"}`, nil).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPatch, base, `{"title":"x"}`, reader).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodDelete, base, "", owner).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPost, base+"/authors", `{"authorIds":["`+owner.UserID.String()+`"]}`, reader).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPost, base+"/approve", "", owner).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodGet, "/review", "", owner).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodGet, base, "", owner).Code)
	require.Equal(t, http.StatusOK, do(http.MethodGet, base+"/authors", "", reader).Code)

	// Route permission granted, ownership still enforced by the service.
	require.Equal(t, http.StatusForbidden, do(http.MethodPatch, base, `{"title":"x"}`, authorPrincipal()).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPatch, base, `{"title":"Renamed"}`, owner).Code)
}
