package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a named bundle of permissions.
type Role struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID    uuid.UUID `json:"id"`
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Group string    `json:"group"`
}

// RolePermissions lists the grants of one role.
type RolePermissions struct {
	RoleID      uuid.UUID    `json:"roleId"`
	RoleKey     string       `json:"roleKey"`
	Permissions []Permission `json:"permissions"`
}

// UserRoles lists the roles held by one user.
type UserRoles struct {
	UserID uuid.UUID `json:"userId"`
	Roles  []Role    `json:"roles"`
}

// Resolution is the effective access of a user at resolve time.
type Resolution struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// RoleAssignment reports the outcome of a role permission change.
type RoleAssignment struct {
	OK     bool      `json:"ok"`
	RoleID uuid.UUID `json:"roleId"`
	Count  int       `json:"count"`
}

// UserAssignment reports the outcome of a user role change.
type UserAssignment struct {
	OK     bool      `json:"ok"`
	UserID uuid.UUID `json:"userId"`
	Count  int       `json:"count"`
}

// CreateRoleInput carries role creation fields.
type CreateRoleInput struct {
	Key  string `json:"key" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=128"`
}

// UpdateRoleInput carries role rename fields.
type UpdateRoleInput struct {
	Name string `json:"name" validate:"required,max=128"`
}

// PermissionKeysInput carries a permission key set.
type PermissionKeysInput struct {
	PermissionKeys []string `json:"permissionKeys" validate:"required"`
}

// RoleKeysInput carries a role key set.
type RoleKeysInput struct {
	RoleKeys []string `json:"roleKeys" validate:"required"`
}
