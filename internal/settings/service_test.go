package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

type memoryRepo struct {
	mu     sync.Mutex
	stored *Settings
	loads  int
}

func (m *memoryRepo) Load(ctx context.Context) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.stored == nil {
		return nil, httpx.ErrNotFound
	}
	cp := *m.stored
	return &cp, nil
}

func (m *memoryRepo) Save(ctx context.Context, s *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	cp := *s
	m.stored = &cp
	return nil
}

func ptr[T any](v T) *T { return &v }

func admin() *rbac.Principal {
	return &rbac.Principal{UserID: uuid.New(), Roles: []string{rbac.RoleAdmin}}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, Defaults().Masked(), got)
	require.Equal(t, 587, got.Email.SMTPPort)
	require.Equal(t, []string{}, got.Security.IPWhitelist)
	require.Nil(t, repo.stored)
}

func TestUpdateEmailKeepsPasswordAndMasksIt(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	out, err := svc.UpdateEmail(ctx, admin(), UpdateEmailInput{SMTPHost: ptr("smtp.example.com"), SMTPPassword: ptr("s3cret")})
	require.NoError(t, err)
	require.Nil(t, out.SMTPPassword)
	require.Equal(t, "s3cret", *repo.stored.Email.SMTPPassword)

	out, err = svc.UpdateEmail(ctx, admin(), UpdateEmailInput{SMTPPort: ptr(465), SMTPPassword: ptr("")})
	require.NoError(t, err)
	require.Equal(t, 465, out.SMTPPort)
	require.Equal(t, "smtp.example.com", out.SMTPHost)
	require.Equal(t, "s3cret", *repo.stored.Email.SMTPPassword)

	all, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, all.Email.SMTPPassword)

	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, "s3cret", *cur.Email.SMTPPassword)
}

func TestUpdateSectionsMergeAndServeFromCache(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	sys, err := svc.UpdateSystem(ctx, admin(), UpdateSystemInput{SiteName: ptr("Daily"), MaintenanceMode: ptr(true)})
	require.NoError(t, err)
	require.Equal(t, "Daily", sys.SiteName)
	require.True(t, sys.MaintenanceMode)
	require.Equal(t, 20, sys.ArticlesPerPage)

	sec, err := svc.UpdateSecurity(ctx, admin(), UpdateSecurityInput{MaxLoginAttempts: ptr(3), IPWhitelist: []string{"10.0.0.0/8"}})
	require.NoError(t, err)
	require.Equal(t, 3, sec.MaxLoginAttempts)
	require.Equal(t, 8, sec.PasswordMinLength)

	loads := repo.loads
	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Daily", got.System.SiteName)
	require.Equal(t, []string{"10.0.0.0/8"}, got.Security.IPWhitelist)
	require.Equal(t, loads, repo.loads)
}

func TestHandlerGuardsAndValidatesSettings(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, NewService(&memoryRepo{}, nil, nil), rbac.Middleware{}).MountRoutes(r)

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

	viewer := &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermSettingsView}}
	editor := &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermSettingsUpdate}}

	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/", "", nil).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodGet, "/", "", editor).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodPatch, "/system", `{"siteName":"x"}`, viewer).Code)

	require.Equal(t, http.StatusBadRequest, do(http.MethodPatch, "/system", `{"articlesPerPage":500}`, editor).Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodPatch, "/email", `{"senderEmail":"nope"}`, editor).Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodPatch, "/security", `{"ipWhitelist":["10.0.0.1","10.0.0.1"]}`, editor).Code)

	rr := do(http.MethodPatch, "/email", `{"smtpPassword":"pw","smtpPort":2525}`, editor)
	require.Equal(t, http.StatusOK, rr.Code)
	var email map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &email))
	require.Nil(t, email["smtpPassword"])
	require.EqualValues(t, 2525, email["smtpPort"])

	rr = do(http.MethodGet, "/", "", viewer)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, rr.Body.String(), `"pw"`)
}
