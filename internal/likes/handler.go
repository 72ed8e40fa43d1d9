package likes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Handler serves like endpoints.
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

// MountRoutes registers like routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/article/{articleID}", h.status)
	r.With(h.rbac.RequireAll(rbac.PermLikesToggle)).Post("/article/{articleID}", h.toggle)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Status(r.Context(), rbac.PrincipalFromContext(r.Context()), articleID)
	if err != nil {
		h.fail(w, "like status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLParamUUID(r, "articleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Toggle(r.Context(), rbac.PrincipalFromContext(r.Context()), articleID)
	if err != nil {
		h.fail(w, "toggle like", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
