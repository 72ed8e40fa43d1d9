package contacts

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// IdempotencyHeader carries the optional client request key.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves contact endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	binder      *httpx.Binder
	rbac        rbac.Middleware
	sendPerHour int
}

// NewHandler builds Handler instance. sendPerHour caps public submissions
// per client IP; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, sendPerHour int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac, sendPerHour: sendPerHour}
}

// MountRoutes registers contact routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.sendPerHour > 0 {
			r.Use(httprate.LimitByIP(h.sendPerHour, time.Hour))
		}
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermContactsView))
		r.Get("/", h.list)
		r.Get("/unread-count", h.unreadCount)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermContactsMarkRead))
		r.Patch("/read-all", h.markAllRead)
		r.Put("/{id}/read", h.markRead)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermContactsArchive))
		r.Post("/archive-read", h.archiveRead)
		r.Post("/{id}/archive", h.archive)
		r.Post("/{id}/unarchive", h.unarchive)
	})
	r.With(h.rbac.RequireAll(rbac.PermContactsDelete)).Delete("/{id}", h.remove)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Create(r.Context(), in, Origin{
		IP:             clientIP(r),
		UserAgent:      r.UserAgent(),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, "create contact", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context(), ListFilter{
		UnreadOnly: httpx.QueryBool(r, "unread"),
		Archived:   httpx.QueryBool(r, "archived"),
		Page:       shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list contacts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.UnreadCount(r.Context())
	if err != nil {
		h.fail(w, "count unread contacts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get contact", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReadInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.MarkRead(r.Context(), id, *in.Read)
	if err != nil {
		h.fail(w, "mark contact read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.MarkAllRead(r.Context())
	if err != nil {
		h.fail(w, "mark all contacts read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) archiveRead(w http.ResponseWriter, r *http.Request) {
	days := httpx.QueryInt(r, "days", 0)
	out, err := h.service.ArchiveRead(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.fail(w, "archive read contacts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.toggleArchive(w, r, "archive contact", h.service.Archive)
}

func (h *Handler) unarchive(w http.ResponseWriter, r *http.Request) {
	h.toggleArchive(w, r, "unarchive contact", h.service.Unarchive)
}

func (h *Handler) toggleArchive(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id uuid.UUID) (*Message, error)) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := fn(r.Context(), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		h.fail(w, "remove contact", err)
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
