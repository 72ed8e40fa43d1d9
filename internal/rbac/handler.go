package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Handler exposes RBAC administration over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	binder  *httpx.Binder
	rbac    Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, binder: httpx.NewBinder(), rbac: rbac}
}

// MountRoutes registers RBAC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(PermRolesView))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{id}", h.getRole)
		r.Get("/roles/{id}/permissions", h.getRolePermissions)
	})
	r.With(h.rbac.RequireAll(PermRolesCreate)).Post("/roles", h.createRole)
	r.With(h.rbac.RequireAll(PermRolesUpdate)).Patch("/roles/{id}", h.updateRole)
	r.With(h.rbac.RequireAll(PermRolesDelete)).Delete("/roles/{id}", h.deleteRole)
	r.With(h.rbac.RequireAll(PermPermissionsView)).Get("/permissions", h.listPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(PermPermissionsAssign))
		r.Put("/roles/{id}/permissions", h.assignRolePermissions)
		r.Post("/roles/{id}/permissions", h.addRolePermissions)
		r.Delete("/roles/{id}/permissions/{key}", h.removeRolePermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(PermUsersAssignRoles))
		r.Get("/users/{id}/roles", h.getUserRoles)
		r.Get("/users/{id}/effective", h.effective)
		r.Put("/users/{id}/roles", h.assignUserRoles)
		r.Post("/users/{id}/roles", h.addUserRoles)
		r.Delete("/users/{id}/roles/{key}", h.removeUserRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in CreateRoleInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateRoleInput
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.GetRolePermissions(r.Context(), id)
	if err != nil {
		h.fail(w, "get role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) assignRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, in, ok := h.bindPermissionKeys(w, r)
	if !ok {
		return
	}
	out, err := h.service.AssignRolePermissions(r.Context(), id, in.PermissionKeys)
	if err != nil {
		h.fail(w, "assign role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) addRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, in, ok := h.bindPermissionKeys(w, r)
	if !ok {
		return
	}
	out, err := h.service.AddRolePermissions(r.Context(), id, in.PermissionKeys)
	if err != nil {
		h.fail(w, "add role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) removeRolePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRolePermission(r.Context(), id, chi.URLParam(r, "key")); err != nil {
		h.fail(w, "remove role permission", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.GetUserRoles(r.Context(), id)
	if err != nil {
		h.fail(w, "get user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, "resolve user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) assignUserRoles(w http.ResponseWriter, r *http.Request) {
	id, in, ok := h.bindRoleKeys(w, r)
	if !ok {
		return
	}
	out, err := h.service.AssignUserRoles(r.Context(), id, in.RoleKeys)
	if err != nil {
		h.fail(w, "assign user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) addUserRoles(w http.ResponseWriter, r *http.Request) {
	id, in, ok := h.bindRoleKeys(w, r)
	if !ok {
		return
	}
	out, err := h.service.AddUserRoles(r.Context(), id, in.RoleKeys)
	if err != nil {
		h.fail(w, "add user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) removeUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveUserRole(r.Context(), id, chi.URLParam(r, "key")); err != nil {
		h.fail(w, "remove user role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) bindPermissionKeys(w http.ResponseWriter, r *http.Request) (id uuid.UUID, in PermissionKeysInput, ok bool) {
	uid, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return id, in, false
	}
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return id, in, false
	}
	return uid, in, true
}

func (h *Handler) bindRoleKeys(w http.ResponseWriter, r *http.Request) (id uuid.UUID, in RoleKeysInput, ok bool) {
	uid, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return id, in, false
	}
	if err := h.binder.Bind(r, &in); err != nil {
		httpx.RespondError(w, err)
		return id, in, false
	}
	return uid, in, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
