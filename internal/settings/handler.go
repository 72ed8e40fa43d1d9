package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Handler serves /settings.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAll(rbac.PermSettingsView)).Get("/", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSettingsUpdate))
		r.Patch("/system", h.updateSystem)
		r.Patch("/email", h.updateEmail)
		r.Patch("/security", h.updateSecurity)
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Get(r.Context())
	if err != nil {
		h.fail(w, "get settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) updateSystem(w http.ResponseWriter, r *http.Request) {
	var in UpdateSystemInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.UpdateSystem(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "update system settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) updateEmail(w http.ResponseWriter, r *http.Request) {
	var in UpdateEmailInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.UpdateEmail(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "update email settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) updateSecurity(w http.ResponseWriter, r *http.Request) {
	var in UpdateSecurityInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.UpdateSecurity(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "update security settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
