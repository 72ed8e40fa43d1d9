package categories

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Handler serves category endpoints.
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

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/public", h.listPublic)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermCategoriesView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
	})
	r.With(h.rbac.RequireAll(rbac.PermCategoriesReviewView)).Get("/review", h.reviewQueue)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesReorder)).Put("/order", h.reorder)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesUpdate)).Patch("/{id}", h.update)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesDelete)).Delete("/{id}", h.delete)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesSubmit)).Post("/{id}/submit", h.submit)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesReviewApprove)).Post("/{id}/approve", h.approve)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesReviewReject)).Post("/{id}/reject", h.reject)
	r.With(h.rbac.RequireAll(rbac.PermCategoriesArchive)).Post("/{id}/archive", h.archive)
}

func (h *Handler) listPublic(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListPublic(r.Context())
	if err != nil {
		h.fail(w, "list public categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status, err := workflow.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.List(r.Context(), ListFilter{
		Status: status,
		Search: r.URL.Query().Get("q"),
		Page:   shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) reviewQueue(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ReviewQueue(r.Context(), shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "category review queue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "category history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateCategoryInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in UpdateCategoryInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, "update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	var in ReorderInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Reorder(r.Context(), rbac.PrincipalFromContext(r.Context()), in); err != nil {
		h.fail(w, "reorder categories", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete category", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit category", h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve category", h.service.Approve)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "archive category", h.service.Archive)
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
	c, err := h.service.Reject(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in.Comment)
	if err != nil {
		h.fail(w, "reject category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, *rbac.Principal, uuid.UUID) (*Category, error)) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	c, err := fn(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
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
