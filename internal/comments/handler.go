package comments

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Handler serves comment endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	binder       *httpx.Binder
	rbac         rbac.Middleware
	guestPerHour int
}

// NewHandler builds Handler instance. guestPerHour caps anonymous posts per IP.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, guestPerHour int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if guestPerHour <= 0 {
		guestPerHour = 20
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac, guestPerHour: guestPerHour}
}

// MountRoutes registers comment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/article/{articleID}", h.listPublic)
	r.With(httprate.LimitByIP(h.guestPerHour, time.Hour)).Post("/article/{articleID}/guest", h.addPublic)
	r.With(h.rbac.RequireAll(rbac.PermCommentsCreate)).Post("/article/{articleID}", h.add)
	r.With(h.rbac.Authenticated()).Delete("/{id}", h.remove)
	r.With(h.rbac.RequireAll(rbac.PermCommentsView)).Get("/", h.list)
	r.With(h.rbac.RequireAll(rbac.PermCommentsModerate)).Patch("/{id}", h.moderate)
}

func (h *Handler) listPublic(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListPublic(r.Context(), articleID, shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "list article comments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AddInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Add(r.Context(), rbac.PrincipalFromContext(r.Context()), articleID, in)
	if err != nil {
		h.fail(w, "add comment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) addPublic(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in GuestInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.AddPublic(r.Context(), articleID, in)
	if err != nil {
		h.fail(w, "add guest comment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: r.URL.Query().Get("status"), Page: shared.PageFromRequest(r)}
	if raw := r.URL.Query().Get("article"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.ArticleID = &id
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list comments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ModerateInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Moderate(r.Context(), id, in)
	if err != nil {
		h.fail(w, "moderate comment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, "remove comment", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
