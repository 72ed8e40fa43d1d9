package auth

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	binder         *httpx.Binder
	rbac           rbac.Middleware
	loginPerMinute int
}

// NewHandler constructs a Handler instance. loginPerMinute caps credential
// attempts per client address; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, loginPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		binder:         httpx.NewBinder(),
		rbac:           rbac,
		loginPerMinute: loginPerMinute,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.loginPerMinute > 0 {
			r.Use(httprate.LimitByIP(h.loginPerMinute, time.Minute))
		}
		r.Post("/login", h.login)
		r.Post("/register", h.register)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/reset-password", h.resetPassword)
	})
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticated())
		r.Get("/me", h.me)
		r.Post("/change-password", h.changePassword)
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pair, err := h.service.Login(r.Context(), in, clientIP(r))
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var in RefreshInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pair, err := h.service.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var in RefreshInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Logout(r.Context(), in.RefreshToken); err != nil {
		h.fail(w, "logout", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	profile, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	profile, access, err := h.service.Me(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": profile, "access": access})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in ChangePasswordInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p := rbac.PrincipalFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), p.UserID, in); err != nil {
		h.fail(w, "change password", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ForgotPassword(r.Context(), in.Email); err != nil {
		h.fail(w, "forgot password", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetPasswordInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), in); err != nil {
		h.fail(w, "reset password", err)
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

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
