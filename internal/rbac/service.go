package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
)

const (
	permissionCacheSize = 512
	permissionCacheTTL  = 10 * time.Minute
)

var roleKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// AuditRecorder persists administrative changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates RBAC administration and permission resolution.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger
	perms  *lru.LRU[string, Permission]
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: logger,
		perms:  lru.NewLRU[string, Permission](permissionCacheSize, nil, permissionCacheTTL),
	}
}

// Resolve returns the distinct role and permission keys of a user. It always
// reads the store; callers snapshot the result into tokens.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (Resolution, error) {
	roles, err := s.repo.UserRoles(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve roles: %w", err)
	}
	res := Resolution{Roles: []string{}, Permissions: []string{}}
	if len(roles) == 0 {
		return res, nil
	}
	seen := make(map[string]struct{}, len(roles))
	ids := make([]uuid.UUID, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		res.Roles = append(res.Roles, r.Key)
		ids = append(ids, r.ID)
	}
	keys, err := s.repo.PermissionKeysForRoles(ctx, ids)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve permissions: %w", err)
	}
	res.Permissions = append(res.Permissions, dedupe(keys)...)
	sort.Strings(res.Roles)
	sort.Strings(res.Permissions)
	return res, nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(in.Key))
	name := strings.TrimSpace(in.Name)
	if !roleKeyPattern.MatchString(key) {
		return Role{}, fmt.Errorf("%w: role key must be lower snake case", httpx.ErrValidation)
	}
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	role, err := s.repo.CreateRole(ctx, key, name)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "rbac.role.create", "role", role.ID, map[string]any{"key": key})
	return role, nil
}

// UpdateRole renames a role.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, in UpdateRoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	role, err := s.repo.UpdateRole(ctx, id, name)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "rbac.role.update", "role", id, map[string]any{"name": name})
	return role, nil
}

// DeleteRole removes a role that no user holds.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "rbac.role.delete", "role", id, nil)
	return nil
}

// ListPermissions returns the stored permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		s.perms.Add(p.Key, p)
	}
	return perms, nil
}

// EnsurePermission upserts a catalog entry.
func (s *Service) EnsurePermission(ctx context.Context, entry CatalogEntry) (Permission, error) {
	key := strings.ToLower(strings.TrimSpace(entry.Key))
	if key == "" {
		return Permission{}, fmt.Errorf("%w: permission key required", httpx.ErrValidation)
	}
	p, err := s.repo.UpsertPermission(ctx, Permission{Key: key, Label: strings.TrimSpace(entry.Label), Group: strings.TrimSpace(entry.Group)})
	if err != nil {
		return Permission{}, err
	}
	s.perms.Add(p.Key, p)
	return p, nil
}

// GetRolePermissions lists the grants of a role.
func (s *Service) GetRolePermissions(ctx context.Context, roleID uuid.UUID) (RolePermissions, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return RolePermissions{}, err
	}
	perms, err := s.repo.RolePermissions(ctx, roleID)
	if err != nil {
		return RolePermissions{}, err
	}
	if perms == nil {
		perms = []Permission{}
	}
	return RolePermissions{RoleID: role.ID, RoleKey: role.Key, Permissions: perms}, nil
}

// AssignRolePermissions replaces every grant of a role with the known keys
// among keys. Unknown keys are dropped.
func (s *Service) AssignRolePermissions(ctx context.Context, roleID uuid.UUID, keys []string) (RoleAssignment, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return RoleAssignment{}, err
	}
	perms, err := s.permissionsByKeys(ctx, normalizeKeys(keys))
	if err != nil {
		return RoleAssignment{}, err
	}
	ids := permissionIDs(perms)
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, ids); err != nil {
		return RoleAssignment{}, err
	}
	s.record(ctx, "rbac.role.permissions.replace", "role", roleID, map[string]any{"permissions": permissionKeys(perms)})
	return RoleAssignment{OK: true, RoleID: roleID, Count: len(ids)}, nil
}

// AddRolePermissions grants the known keys without touching other grants.
func (s *Service) AddRolePermissions(ctx context.Context, roleID uuid.UUID, keys []string) (RoleAssignment, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return RoleAssignment{}, err
	}
	perms, err := s.permissionsByKeys(ctx, normalizeKeys(keys))
	if err != nil {
		return RoleAssignment{}, err
	}
	added, err := s.repo.AddRolePermissions(ctx, roleID, permissionIDs(perms))
	if err != nil {
		return RoleAssignment{}, err
	}
	s.record(ctx, "rbac.role.permissions.add", "role", roleID, map[string]any{"permissions": permissionKeys(perms)})
	return RoleAssignment{OK: true, RoleID: roleID, Count: added}, nil
}

// RemoveRolePermission revokes a single grant.
func (s *Service) RemoveRolePermission(ctx context.Context, roleID uuid.UUID, key string) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	perms, err := s.permissionsByKeys(ctx, normalizeKeys([]string{key}))
	if err != nil {
		return err
	}
	if len(perms) == 0 {
		return fmt.Errorf("permission %q: %w", key, httpx.ErrNotFound)
	}
	if err := s.repo.RemoveRolePermission(ctx, roleID, perms[0].ID); err != nil {
		return err
	}
	s.record(ctx, "rbac.role.permissions.remove", "role", roleID, map[string]any{"permission": perms[0].Key})
	return nil
}

// GetUserRoles lists the roles held by a user.
func (s *Service) GetUserRoles(ctx context.Context, userID uuid.UUID) (UserRoles, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return UserRoles{}, err
	}
	roles, err := s.repo.UserRoles(ctx, userID)
	if err != nil {
		return UserRoles{}, err
	}
	if roles == nil {
		roles = []Role{}
	}
	return UserRoles{UserID: userID, Roles: roles}, nil
}

// AssignUserRoles replaces every role of a user with the known keys among keys.
// An empty key set leaves the user without roles.
func (s *Service) AssignUserRoles(ctx context.Context, userID uuid.UUID, keys []string) (UserAssignment, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return UserAssignment{}, err
	}
	roles, err := s.repo.RolesByKeys(ctx, normalizeKeys(keys))
	if err != nil {
		return UserAssignment{}, err
	}
	ids := roleIDs(roles)
	if err := s.repo.ReplaceUserRoles(ctx, userID, ids); err != nil {
		return UserAssignment{}, err
	}
	s.record(ctx, "rbac.user.roles.replace", "user", userID, map[string]any{"roles": roleKeys(roles)})
	return UserAssignment{OK: true, UserID: userID, Count: len(ids)}, nil
}

// AddUserRoles assigns the known role keys without touching other roles.
func (s *Service) AddUserRoles(ctx context.Context, userID uuid.UUID, keys []string) (UserAssignment, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return UserAssignment{}, err
	}
	roles, err := s.repo.RolesByKeys(ctx, normalizeKeys(keys))
	if err != nil {
		return UserAssignment{}, err
	}
	added, err := s.repo.AddUserRoles(ctx, userID, roleIDs(roles))
	if err != nil {
		return UserAssignment{}, err
	}
	s.record(ctx, "rbac.user.roles.add", "user", userID, map[string]any{"roles": roleKeys(roles)})
	return UserAssignment{OK: true, UserID: userID, Count: added}, nil
}

// RemoveUserRole unassigns a single role.
func (s *Service) RemoveUserRole(ctx context.Context, userID uuid.UUID, key string) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	roles, err := s.repo.RolesByKeys(ctx, normalizeKeys([]string{key}))
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return fmt.Errorf("role %q: %w", key, httpx.ErrNotFound)
	}
	if err := s.repo.RemoveUserRole(ctx, userID, roles[0].ID); err != nil {
		return err
	}
	s.record(ctx, "rbac.user.roles.remove", "user", userID, map[string]any{"role": roles[0].Key})
	return nil
}

func (s *Service) ensureUser(ctx context.Context, userID uuid.UUID) error {
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s: %w", userID, httpx.ErrNotFound)
	}
	return nil
}

// permissionsByKeys serves catalog rows from the cache and loads the misses.
func (s *Service) permissionsByKeys(ctx context.Context, keys []string) ([]Permission, error) {
	out := make([]Permission, 0, len(keys))
	var missing []string
	for _, k := range keys {
		if p, ok := s.perms.Get(k); ok {
			out = append(out, p)
			continue
		}
		missing = append(missing, k)
	}
	if len(missing) > 0 {
		loaded, err := s.repo.PermissionsByKeys(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			s.perms.Add(p.Key, p)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Service) record(ctx context.Context, action, entity string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  PrincipalFromContext(ctx).ActorID(),
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("rbac audit", slog.String("action", action), slog.Any("error", err))
	}
}

// normalizeKeys trims, lower-cases, drops blanks and removes duplicates,
// preserving first-seen order.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func permissionIDs(perms []Permission) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	return ids
}

func permissionKeys(perms []Permission) []string {
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	return keys
}

func roleIDs(roles []Role) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids
}

func roleKeys(roles []Role) []string {
	keys := make([]string, 0, len(roles))
	for _, r := range roles {
		keys = append(keys, r.Key)
	}
	return keys
}
