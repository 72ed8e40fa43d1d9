package authors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Handler serves the authors directory.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAll(rbac.PermAuthorsStatsView)).Get("/stats/summary", h.stats)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAuthorsView))
		r.Get("/", h.list)
		r.Get("/search", h.search)
		r.Get("/{id}", h.get)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.List(r.Context(), ListFilter{
		Role:          q.Get("role"),
		AccountStatus: q.Get("status"),
		Search:        q.Get("q"),
		Page:          shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list authors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, "search authors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, "author stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get author", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
