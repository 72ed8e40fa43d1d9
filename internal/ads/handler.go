package ads

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

// Handler serves ad endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	rbac    rbac.Middleware

	placements *PlacementHandler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac}
}

// MountRoutes registers ad routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.placements != nil {
		r.Route("/placements", h.placements.MountRoutes)
	}
	r.Get("/active", h.listActive)
	r.Post("/{id}/click", h.click)
	r.Post("/{id}/impression", h.impression)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAdsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
	})
	r.With(h.rbac.RequireAll(rbac.PermAdsReviewView)).Get("/review", h.reviewQueue)
	r.With(h.rbac.RequireAll(rbac.PermAdsCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(rbac.PermAdsUpdate)).Patch("/{id}", h.update)
	r.With(h.rbac.RequireAll(rbac.PermAdsDelete)).Delete("/{id}", h.delete)
	r.With(h.rbac.RequireAll(rbac.PermAdsSubmit)).Post("/{id}/submit", h.submit)
	r.With(h.rbac.RequireAll(rbac.PermAdsReviewApprove)).Post("/{id}/approve", h.approve)
	r.With(h.rbac.RequireAll(rbac.PermAdsReviewReject)).Post("/{id}/reject", h.reject)
	r.With(h.rbac.RequireAll(rbac.PermAdsArchive)).Post("/{id}/archive", h.archive)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListActive(r.Context(), AdType(r.URL.Query().Get("type")))
	if err != nil {
		h.fail(w, "list active ads", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) click(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.service.RecordClick)
}

func (h *Handler) impression(w http.ResponseWriter, r *http.Request) {
	h.count(w, r, h.service.RecordImpression)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status, err := workflow.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.List(r.Context(), ListFilter{
		Status: status,
		Type:   AdType(r.URL.Query().Get("type")),
		Search: r.URL.Query().Get("q"),
		Page:   shared.PageFromRequest(r),
	})
	if err != nil {
		h.fail(w, "list ads", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) reviewQueue(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ReviewQueue(r.Context(), shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "ad review queue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	ad, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get ad", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ad)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "ad history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateAdInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ad, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create ad", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ad)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in UpdateAdInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ad, err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, "update ad", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ad)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete ad", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit ad", h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve ad", h.service.Approve)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "archive ad", h.service.Archive)
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
	ad, err := h.service.Reject(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in.Comment)
	if err != nil {
		h.fail(w, "reject ad", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ad)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, *rbac.Principal, uuid.UUID) (*Ad, error)) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	ad, err := fn(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ad)
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.fail(w, "record ad engagement", err)
		return
	}
	httpx.NoContent(w)
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
