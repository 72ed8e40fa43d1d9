package articles

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
	"github.com/newsdesk/newsdesk/internal/workflow"
)

// Handler serves article endpoints.
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

// MountRoutes registers article routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/published", h.listPublished)
	r.Get("/archived", h.listArchived)
	r.Get("/slug/{slug}", h.getBySlug)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermArticlesView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
		r.Get("/{id}/authors", h.authors)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermArticlesReviewView))
		r.Get("/review", h.reviewQueue)
		r.Get("/review/count", h.reviewCount)
	})
	r.With(h.rbac.RequireAll(rbac.PermArticlesCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(rbac.PermArticlesUpdate)).Patch("/{id}", h.update)
	r.With(h.rbac.RequireAll(rbac.PermArticlesDelete)).Delete("/{id}", h.delete)
	r.With(h.rbac.RequireAll(rbac.PermArticlesUpdate)).Post("/{id}/authors", h.setAuthors)
	r.With(h.rbac.RequireAll(rbac.PermArticlesUpdate)).Patch("/{id}/main-author", h.setMainAuthor)
	r.With(h.rbac.RequireAll(rbac.PermArticlesSubmit)).Post("/{id}/submit", h.submit)
	r.With(h.rbac.RequireAll(rbac.PermArticlesReviewApprove)).Post("/{id}/approve", h.approve)
	r.With(h.rbac.RequireAll(rbac.PermArticlesReviewReject)).Post("/{id}/reject", h.reject)
	r.With(h.rbac.RequireAll(rbac.PermArticlesArchive)).Post("/{id}/archive", h.archive)
}

func filterFromRequest(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	status, err := workflow.ParseStatus(q.Get("status"))
	if err != nil {
		return ListFilter{}, err
	}
	filter := ListFilter{
		Status: status,
		Tag:    q.Get("tag"),
		Search: q.Get("q"),
		Sort:   ParseSort(q.Get("sort")),
		Page:   shared.PageFromRequest(r),
	}
	for name, dst := range map[string]**uuid.UUID{"category": &filter.CategoryID, "author": &filter.AuthorID} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: invalid %s", httpx.ErrValidation, name)
		}
		*dst = &id
	}
	return filter, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list articles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listPublished(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListPublished(r.Context(), filter)
	if err != nil {
		h.fail(w, "list published articles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listArchived(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListArchived(r.Context(), shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "list archived articles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getBySlug(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, "get article by slug", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) reviewQueue(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ReviewQueue(r.Context(), shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "article review queue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) reviewCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.InReviewCount(r.Context())
	if err != nil {
		h.fail(w, "count articles in review", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get article", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "article history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateArticleInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create article", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in UpdateArticleInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, "update article", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete article", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) authors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	authors, err := h.service.Authors(r.Context(), id)
	if err != nil {
		h.fail(w, "article authors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, authors)
}

func (h *Handler) setAuthors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in SetAuthorsInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.SetAuthors(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, "set article authors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) setMainAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in SetMainAuthorInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.SetMainAuthor(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in.UserID)
	if err != nil {
		h.fail(w, "set main author", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit article", h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve article", h.service.Approve)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "archive article", h.service.Archive)
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
	a, err := h.service.Reject(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in.Comment)
	if err != nil {
		h.fail(w, "reject article", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, *rbac.Principal, uuid.UUID) (*Article, error)) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	a, err := fn(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
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
