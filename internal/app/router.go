package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/newsdesk/newsdesk/internal/observability"
	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// RouteMounter is implemented by every feature handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are skipped.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Metrics      *observability.Metrics
	Authenticate func(http.Handler) http.Handler

	AuthHandler       RouteMounter
	RBACHandler       RouteMounter
	ArticlesHandler   RouteMounter
	CategoriesHandler RouteMounter
	AdsHandler        RouteMounter
	UsersHandler      RouteMounter
	CommentsHandler   RouteMounter
	LikesHandler      RouteMounter
	MediaHandler      RouteMounter
	NewsletterHandler RouteMounter
	ContactsHandler   RouteMounter
	JobHandler        RouteMounter
	AuthorsHandler    RouteMounter
	SettingsHandler   RouteMounter
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:       params.Logger,
		Config:       params.Config,
		Metrics:      params.Metrics,
		Authenticate: params.Authenticate,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	mounts := []struct {
		prefix  string
		handler RouteMounter
	}{
		{"/auth", params.AuthHandler},
		{"/rbac", params.RBACHandler},
		{"/articles", params.ArticlesHandler},
		{"/categories", params.CategoriesHandler},
		{"/ads", params.AdsHandler},
		{"/users", params.UsersHandler},
		{"/comments", params.CommentsHandler},
		{"/likes", params.LikesHandler},
		{"/media", params.MediaHandler},
		{"/newsletter", params.NewsletterHandler},
		{"/contacts", params.ContactsHandler},
		{"/jobs", params.JobHandler},
		{"/authors", params.AuthorsHandler},
		{"/settings", params.SettingsHandler},
	}
	for _, m := range mounts {
		if m.handler == nil {
			continue
		}
		r.Route(m.prefix, m.handler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
