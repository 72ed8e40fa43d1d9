package rbac

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Principal is the authenticated actor as captured in the access token. Roles
// and permissions are a snapshot taken at login or refresh.
type Principal struct {
	UserID      uuid.UUID `json:"userId"`
	Email       string    `json:"email"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
}

// ActorID returns the principal user id.
func (p *Principal) ActorID() uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.UserID
}

// HasPermission reports whether key is in the snapshot.
func (p *Principal) HasPermission(key string) bool {
	if p == nil {
		return false
	}
	return containsFold(p.Permissions, key)
}

// HasRole reports whether key is one of the principal roles.
func (p *Principal) HasRole(key string) bool {
	if p == nil {
		return false
	}
	return containsFold(p.Roles, key)
}

// IsPrivileged reports whether the principal may bypass review on creation.
func (p *Principal) IsPrivileged() bool {
	for _, role := range PrivilegedRoles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

func containsFold(values []string, key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	for _, v := range values {
		if strings.ToLower(v) == key {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
