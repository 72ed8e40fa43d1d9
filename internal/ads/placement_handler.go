package ads

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// PlacementHandler serves ad placement endpoints under /ads/placements.
type PlacementHandler struct {
	logger  *slog.Logger
	service *PlacementService
	binder  *httpx.Binder
	rbac    rbac.Middleware
}

// NewPlacementHandler builds a PlacementHandler.
func NewPlacementHandler(logger *slog.Logger, service *PlacementService, rbac rbac.Middleware) *PlacementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlacementHandler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac}
}

// WithPlacements mounts placement routes below the ad routes.
func (h *Handler) WithPlacements(p *PlacementHandler) *Handler {
	h.placements = p
	return h
}

// MountRoutes registers placement routes.
func (h *PlacementHandler) MountRoutes(r chi.Router) {
	r.Get("/active", h.listActive)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAdPlacementsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.With(h.rbac.RequireAll(rbac.PermAdPlacementsCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(rbac.PermAdPlacementsUpdate)).Patch("/{id}", h.update)
	r.With(h.rbac.RequireAll(rbac.PermAdPlacementsDelete)).Delete("/{id}", h.delete)
}

func (h *PlacementHandler) listActive(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListActive(r.Context())
	if err != nil {
		h.fail(w, "list active placements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *PlacementHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list placements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *PlacementHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get placement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *PlacementHandler) create(w http.ResponseWriter, r *http.Request) {
	var in CreatePlacementInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "create placement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *PlacementHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdatePlacementInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		h.fail(w, "update placement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *PlacementHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete placement", err)
		return
	}
	httpx.NoContent(w)
}

func (h *PlacementHandler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
