package media

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Handler serves media endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac}
}

// MountRoutes registers media routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/article/{articleID}", h.list)
	r.With(h.rbac.RequireAll(rbac.PermMediaUpload)).Post("/article/{articleID}", h.add)
	r.With(h.rbac.RequireAll(rbac.PermMediaReorder)).Put("/article/{articleID}/order", h.move)
	r.With(h.rbac.RequireAll(rbac.PermMediaDelete)).Delete("/{id}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), articleID)
	if err != nil {
		h.fail(w, "list media", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
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
	it, err := h.service.Add(r.Context(), articleID, in)
	if err != nil {
		h.fail(w, "add media", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, it)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in MoveInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Move(r.Context(), articleID, in)
	if err != nil {
		h.fail(w, "move media", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		h.fail(w, "remove media", err)
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
