package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/observability"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/jobs"
)

type whoami struct{}

func (whoami) MountRoutes(r chi.Router) {
	r.With(rbac.Middleware{}.Authenticated()).Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rbac.PrincipalFromContext(r.Context()).Email))
	})
}

func fakeAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer ok" {
			r = r.WithContext(rbac.ContextWithPrincipal(r.Context(), &rbac.Principal{Email: "desk@example.com"}))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(cfg *Config) http.Handler {
	return NewRouter(RouterParams{
		Config:       cfg,
		Metrics:      observability.NewMetrics(),
		Authenticate: fakeAuthenticate,
		AuthHandler:  whoami{},
		JobHandler:   jobs.NewHandler(nil, nil),
	})
}

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterServesInfrastructureEndpoints(t *testing.T) {
	h := newTestRouter(&Config{RateLimitPerMinute: 100})

	rr := serve(h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = serve(h, http.MethodGet, "/jobs/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `newsdesk_http_requests_total{code="200",route="/healthz"} 1`)

	rr = serve(h, http.MethodGet, "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestRouterAuthenticatesBeforeHandlers(t *testing.T) {
	h := newTestRouter(&Config{RateLimitPerMinute: 100})

	rr := serve(h, http.MethodGet, "/auth", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(h, http.MethodGet, "/auth", map[string]string{"Authorization": "Bearer ok"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "desk@example.com", rr.Body.String())
}

func TestRouterRateLimitsPerIP(t *testing.T) {
	h := newTestRouter(&Config{RateLimitPerMinute: 2})

	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", nil).Code)
	rr := serve(h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
