package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

func serveWith(mw func(http.Handler) http.Handler, p *Principal) *httptest.ResponseRecorder {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if p != nil {
		req = req.WithContext(ContextWithPrincipal(req.Context(), p))
	}
	rr := httptest.NewRecorder()
	mw(ok).ServeHTTP(rr, req)
	return rr
}

func principal(perms ...string) *Principal {
	return &Principal{UserID: uuid.New(), Email: "p@example.com", Permissions: perms}
}

func TestRequireAllIsConjunctive(t *testing.T) {
	guard := Middleware{}.RequireAll("a", "b")

	rr := serveWith(guard, principal("a"))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = serveWith(guard, principal("a", "b", "c"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAnyIsDisjunctive(t *testing.T) {
	guard := Middleware{}.RequireAny("a", "b")

	require.Equal(t, http.StatusOK, serveWith(guard, principal("b")).Code)
	require.Equal(t, http.StatusForbidden, serveWith(guard, principal("c")).Code)
}

func TestGuardWithoutPrincipalIsUnauthenticated(t *testing.T) {
	rr := serveWith(Middleware{}.RequireAll(PermArticlesCreate), nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, httpx.TypeUnauthorized, problem.Type)
}

func TestGuardForbiddenProblemType(t *testing.T) {
	rr := serveWith(Middleware{}.RequireAll(PermArticlesCreate), principal(PermArticlesView))
	require.Equal(t, http.StatusForbidden, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, httpx.TypeForbidden, problem.Type)
	require.Contains(t, problem.Detail, PermArticlesCreate)
}

func TestGuardWithoutRequirementsIsOpen(t *testing.T) {
	require.Equal(t, http.StatusOK, serveWith(Middleware{}.RequireAll(), nil).Code)
	require.Equal(t, http.StatusOK, serveWith(Middleware{}.RequireAll(" ", ""), nil).Code)
}

func TestGuardMatchesCaseInsensitively(t *testing.T) {
	rr := serveWith(Middleware{}.RequireAll("Articles.Create"), principal("articles.create"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthenticated(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveWith(Middleware{}.Authenticated(), nil).Code)
	require.Equal(t, http.StatusOK, serveWith(Middleware{}.Authenticated(), principal()).Code)
}

func TestPrincipalPrivilege(t *testing.T) {
	editor := &Principal{UserID: uuid.New(), Roles: []string{RoleEditorInChief}}
	author := &Principal{UserID: uuid.New(), Roles: []string{RoleAuthor}}
	var anonymous *Principal

	require.True(t, editor.IsPrivileged())
	require.False(t, author.IsPrivileged())
	require.False(t, anonymous.IsPrivileged())
	require.False(t, anonymous.HasPermission(PermArticlesView))
	require.Equal(t, uuid.Nil, anonymous.ActorID())
}
