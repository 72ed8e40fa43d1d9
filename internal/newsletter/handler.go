package newsletter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// Handler serves newsletter endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	binder      *httpx.Binder
	rbac        rbac.Middleware
	subsPerHour int
}

// NewHandler builds Handler instance. subsPerHour caps public subscribe
// requests per client IP; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, subsPerHour int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac, subsPerHour: subsPerHour}
}

type message struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type unsubscribeInput struct {
	Token string `json:"token" validate:"required_without=Email"`
	Email string `json:"email" validate:"omitempty,email"`
}

// MountRoutes registers newsletter routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.subsPerHour > 0 {
			r.Use(httprate.LimitByIP(h.subsPerHour, time.Hour))
		}
		r.Post("/subscribe", h.subscribe)
	})
	r.Get("/verify", h.verify)
	r.Post("/unsubscribe", h.unsubscribe)

	r.With(h.rbac.RequireAll(rbac.PermNewsletterView)).Get("/admin", h.adminList)
	r.With(h.rbac.RequireAll(rbac.PermNewsletterUpdate)).Patch("/admin/{id}", h.adminUpdate)
	r.With(h.rbac.RequireAll(rbac.PermNewsletterDelete)).Delete("/admin/{id}", h.adminRemove)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var in SubscribeInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.service.Subscribe(r.Context(), in); err != nil {
		h.fail(w, "subscribe", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, message{OK: true, Message: "Check your inbox to confirm the subscription."})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Verify(r.Context(), r.URL.Query().Get("token")); err != nil {
		h.fail(w, "verify subscription", err)
		return
	}
	httpx.JSON(w, http.StatusOK, message{OK: true, Message: "Subscription confirmed."})
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	in := unsubscribeInput{Token: r.URL.Query().Get("token")}
	if in.Token == "" {
		if err := h.binder.Bind(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	var err error
	if in.Token != "" {
		err = h.service.Unsubscribe(r.Context(), in.Token)
	} else {
		err = h.service.UnsubscribeByEmail(r.Context(), in.Email)
	}
	if err != nil {
		h.fail(w, "unsubscribe", err)
		return
	}
	httpx.JSON(w, http.StatusOK, message{OK: true, Message: "You have been unsubscribed."})
}

func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.AdminList(r.Context(), ListFilter{
		Query:  q.Get("q"),
		Status: q.Get("status"),
		Page:   shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list subscriptions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) adminUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AdminUpdateInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sub, err := h.service.AdminUpdate(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update subscription", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}

func (h *Handler) adminRemove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AdminRemove(r.Context(), id); err != nil {
		h.fail(w, "remove subscription", err)
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
