package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. Decisions are
// taken from the principal snapshot in the request context; the store is never
// consulted.
type Middleware struct {
	Logger *slog.Logger
}

// Authenticated rejects anonymous requests.
func (m Middleware) Authenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFromContext(r.Context()) == nil {
				httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll ensures the current user holds every listed permission. An
// empty list leaves the route open.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(normalizePermissions(perms), hasAllPermissions)
}

// RequireAny ensures the current user holds at least one listed permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(normalizePermissions(perms), hasAnyPermission)
}

func (m Middleware) require(required []string, check func(granted, required []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p := PrincipalFromContext(r.Context())
			if p == nil {
				httpx.RespondError(w, fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized))
				return
			}
			if check(p.Permissions, required) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac denied",
					slog.String("user_id", p.UserID.String()),
					slog.String("path", r.URL.Path),
					slog.Any("required", required))
			}
			httpx.RespondError(w, fmt.Errorf("%w: requires %s", httpx.ErrForbidden, strings.Join(required, ", ")))
		})
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

func grantedSet(granted []string) map[string]struct{} {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}

func hasAnyPermission(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := grantedSet(granted)
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAllPermissions(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := grantedSet(granted)
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
