package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Handler manages user management endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Get("/{id}/history", h.history)
	})
	r.With(h.rbac.RequireAll(rbac.PermUsersReviewView)).Get("/review", h.reviewQueue)
	r.With(h.rbac.RequireAll(rbac.PermUsersCreate)).Post("/", h.createUser)
	r.With(h.rbac.RequireAll(rbac.PermUsersUpdate)).Patch("/{id}", h.updateUser)
	r.With(h.rbac.RequireAll(rbac.PermUsersActivate)).Put("/{id}/active", h.setActive)
	r.With(h.rbac.RequireAll(rbac.PermUsersDelete)).Delete("/{id}", h.deleteUser)
	r.With(h.rbac.RequireAll(rbac.PermUsersSubmit)).Post("/{id}/submit", h.submit)
	r.With(h.rbac.RequireAll(rbac.PermUsersReviewApprove)).Post("/{id}/approve", h.approve)
	r.With(h.rbac.RequireAll(rbac.PermUsersReviewReject)).Post("/{id}/reject", h.reject)
	r.With(h.rbac.RequireAll(rbac.PermUsersArchive)).Post("/{id}/archive", h.archive)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := workflow.ParseStatus(q.Get("status"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Status: status, Search: q.Get("q"), Page: shared.PageFromRequest(r)}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		filter.Active = &active
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) reviewQueue(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ReviewQueue(r.Context(), shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "user review queue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "user history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in UpdateUserInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in SetActiveInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.SetActive(r.Context(), rbac.PrincipalFromContext(r.Context()), id, *in.Active)
	if err != nil {
		h.fail(w, "set user active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit user", h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve user", h.service.Approve)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "archive user", h.service.Archive)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in workflow.RejectInput
	if err := h.binder.BindOptional(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Reject(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in.Comment)
	if err != nil {
		h.fail(w, "reject user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, *rbac.Principal, uuid.UUID) (*User, error)) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	u, err := fn(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
