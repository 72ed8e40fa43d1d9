package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/shared"
)

type link struct {
	owner uuid.UUID
	ref   uuid.UUID
}

type memoryRepo struct {
	mu          sync.Mutex
	roles       map[uuid.UUID]Role
	perms       map[uuid.UUID]Permission
	users       map[uuid.UUID]bool
	rolePerms   map[link]struct{}
	userRoles   map[link]struct{}
	permLookups int
}

var _ Repository = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:     map[uuid.UUID]Role{},
		perms:     map[uuid.UUID]Permission{},
		users:     map[uuid.UUID]bool{},
		rolePerms: map[link]struct{}{},
		userRoles: map[link]struct{}{},
	}
}

func (m *memoryRepo) seedRole(key string, permKeys ...string) Role {
	role, _ := m.CreateRole(context.Background(), key, key)
	for _, k := range permKeys {
		p := m.ensurePerm(k)
		m.rolePerms[link{role.ID, p.ID}] = struct{}{}
	}
	return role
}

func (m *memoryRepo) ensurePerm(key string) Permission {
	for _, p := range m.perms {
		if p.Key == key {
			return p
		}
	}
	p := Permission{ID: uuid.New(), Key: key, Label: key, Group: "test"}
	m.perms[p.ID] = p
	return p
}

func (m *memoryRepo) seedUser(roles ...Role) uuid.UUID {
	id := uuid.New()
	m.users[id] = true
	for _, r := range roles {
		m.userRoles[link{id, r.ID}] = struct{}{}
	}
	return id
}

func (m *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryRepo) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("role %s: %w", id, httpx.ErrNotFound)
	}
	return r, nil
}

func (m *memoryRepo) CreateRole(ctx context.Context, key, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Key == key {
			return Role{}, fmt.Errorf("%w: roles_key_key", httpx.ErrDuplicate)
		}
	}
	r := Role{ID: uuid.New(), Key: key, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.roles[r.ID] = r
	return r, nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, id uuid.UUID, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	r.Name = name
	m.roles[id] = r
	return r, nil
}

func (m *memoryRepo) DeleteRole(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return httpx.ErrNotFound
	}
	for l := range m.userRoles {
		if l.ref == id {
			return fmt.Errorf("%w: role is still assigned to users", httpx.ErrConflict)
		}
	}
	for l := range m.rolePerms {
		if l.owner == id {
			delete(m.rolePerms, l)
		}
	}
	delete(m.roles, id)
	return nil
}

func (m *memoryRepo) RolesByKeys(ctx context.Context, keys []string) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Role
	for _, r := range m.roles {
		for _, k := range keys {
			if r.Key == k {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) PermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permLookups++
	var out []Permission
	for _, p := range m.perms {
		for _, k := range keys {
			if p.Key == k {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.ensurePerm(p.Key)
	stored.Label, stored.Group = p.Label, p.Group
	m.perms[stored.ID] = stored
	return stored, nil
}

func (m *memoryRepo) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Permission
	for l := range m.rolePerms {
		if l.owner == roleID {
			out = append(out, m.perms[l.ref])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryRepo) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaceLinks(m.rolePerms, roleID, ids)
	return nil
}

func (m *memoryRepo) AddRolePermissions(ctx context.Context, roleID uuid.UUID, ids []uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return addLinks(m.rolePerms, roleID, ids), nil
}

func (m *memoryRepo) RemoveRolePermission(ctx context.Context, roleID, permID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rolePerms, link{roleID, permID})
	return nil
}

func (m *memoryRepo) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *memoryRepo) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Role
	for l := range m.userRoles {
		if l.owner == userID {
			out = append(out, m.roles[l.ref])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryRepo) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaceLinks(m.userRoles, userID, ids)
	return nil
}

func (m *memoryRepo) AddUserRoles(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return addLinks(m.userRoles, userID, ids), nil
}

func (m *memoryRepo) RemoveUserRole(ctx context.Context, userID, roleID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userRoles, link{userID, roleID})
	return nil
}

func (m *memoryRepo) PermissionKeysForRoles(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for l := range m.rolePerms {
		for _, id := range roleIDs {
			if l.owner == id {
				out = append(out, m.perms[l.ref].Key)
			}
		}
	}
	return out, nil
}

func replaceLinks(set map[link]struct{}, owner uuid.UUID, refs []uuid.UUID) {
	for l := range set {
		if l.owner == owner {
			delete(set, l)
		}
	}
	addLinks(set, owner, refs)
}

func addLinks(set map[link]struct{}, owner uuid.UUID, refs []uuid.UUID) int {
	added := 0
	for _, ref := range refs {
		l := link{owner, ref}
		if _, ok := set[l]; ok {
			continue
		}
		set[l] = struct{}{}
		added++
	}
	return added
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

func TestResolveOnlyIncludesHeldRoles(t *testing.T) {
	repo := newMemoryRepo()
	author := repo.seedRole(RoleAuthor, PermArticlesCreate, PermArticlesUpdate)
	repo.seedRole(RoleEditorInChief, PermArticlesReviewApprove, PermArticlesArchive, PermArticlesCreate)
	user := repo.seedUser(author)

	svc := NewService(repo, nil, nil)
	res, err := svc.Resolve(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, []string{RoleAuthor}, res.Roles)
	require.Equal(t, []string{PermArticlesCreate, PermArticlesUpdate}, res.Permissions)
}

func TestResolveDeduplicatesAcrossRoles(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seedRole(RoleAuthor, PermArticlesCreate, PermCommentsCreate)
	b := repo.seedRole(RoleUser, PermCommentsCreate, PermLikesToggle)
	user := repo.seedUser(a, b)

	res, err := NewService(repo, nil, nil).Resolve(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, []string{RoleAuthor, RoleUser}, res.Roles)
	require.Equal(t, []string{PermArticlesCreate, PermCommentsCreate, PermLikesToggle}, res.Permissions)
}

func TestResolveWithoutRolesReturnsEmptySets(t *testing.T) {
	repo := newMemoryRepo()
	user := repo.seedUser()

	res, err := NewService(repo, nil, nil).Resolve(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, res.Roles)
	require.NotNil(t, res.Permissions)
	require.Empty(t, res.Roles)
	require.Empty(t, res.Permissions)
}

func TestAssignUserRolesToEmptyRemovesAll(t *testing.T) {
	repo := newMemoryRepo()
	author := repo.seedRole(RoleAuthor, PermArticlesCreate)
	journalist := repo.seedRole(RoleJournalist, PermArticlesView)
	user := repo.seedUser(author, journalist)
	svc := NewService(repo, nil, nil)

	out, err := svc.AssignUserRoles(context.Background(), user, []string{})
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Zero(t, out.Count)

	roles, err := svc.GetUserRoles(context.Background(), user)
	require.NoError(t, err)
	require.Empty(t, roles.Roles)

	res, err := svc.Resolve(context.Background(), user)
	require.NoError(t, err)
	require.Empty(t, res.Permissions)
}

func TestAssignUserRolesReplacesAndNormalizes(t *testing.T) {
	repo := newMemoryRepo()
	author := repo.seedRole(RoleAuthor)
	repo.seedRole(RoleJournalist)
	user := repo.seedUser(author)
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil)

	out, err := svc.AssignUserRoles(context.Background(), user, []string{" journalist ", "", "JOURNALIST", "ghost"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)

	roles, err := svc.GetUserRoles(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, roles.Roles, 1)
	require.Equal(t, RoleJournalist, roles.Roles[0].Key)
	require.Len(t, audit.entries, 1)
	require.Equal(t, "rbac.user.roles.replace", audit.entries[0].Action)
}

func TestAssignUserRolesUnknownUser(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.AssignUserRoles(context.Background(), uuid.New(), []string{RoleAuthor})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAssignRolePermissionsReplaceAll(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.seedRole(RoleJournalist, PermArticlesView, PermArticlesDelete)
	repo.ensurePerm(PermArticlesCreate)
	repo.ensurePerm(PermArticlesUpdate)
	svc := NewService(repo, nil, nil)

	out, err := svc.AssignRolePermissions(context.Background(), role.ID, []string{PermArticlesCreate, PermArticlesUpdate, "does.not.exist", "  "})
	require.NoError(t, err)
	require.Equal(t, RoleAssignment{OK: true, RoleID: role.ID, Count: 2}, out)

	got, err := svc.GetRolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	keys := make([]string, 0, len(got.Permissions))
	for _, p := range got.Permissions {
		keys = append(keys, p.Key)
	}
	require.Equal(t, []string{PermArticlesCreate, PermArticlesUpdate}, keys)
}

func TestAssignRolePermissionsUnknownRole(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.AssignRolePermissions(context.Background(), uuid.New(), []string{PermArticlesView})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAddAndRemoveRolePermission(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.seedRole(RoleAuthor, PermArticlesView)
	repo.ensurePerm(PermArticlesCreate)
	svc := NewService(repo, nil, nil)

	out, err := svc.AddRolePermissions(context.Background(), role.ID, []string{PermArticlesView, PermArticlesCreate})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)

	require.NoError(t, svc.RemoveRolePermission(context.Background(), role.ID, PermArticlesView))
	got, err := svc.GetRolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	require.Len(t, got.Permissions, 1)
	require.Equal(t, PermArticlesCreate, got.Permissions[0].Key)

	err = svc.RemoveRolePermission(context.Background(), role.ID, "missing.key")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestPermissionLookupsAreCached(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.seedRole(RoleAuthor)
	repo.ensurePerm(PermArticlesCreate)
	svc := NewService(repo, nil, nil)

	_, err := svc.AssignRolePermissions(context.Background(), role.ID, []string{PermArticlesCreate})
	require.NoError(t, err)
	_, err = svc.AssignRolePermissions(context.Background(), role.ID, []string{PermArticlesCreate})
	require.NoError(t, err)
	require.Equal(t, 1, repo.permLookups)
}

func TestDeleteRoleInUseConflicts(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.seedRole(RoleAuthor)
	repo.seedUser(role)
	svc := NewService(repo, nil, nil)

	err := svc.DeleteRole(context.Background(), role.ID)
	require.ErrorIs(t, err, httpx.ErrConflict)

	spare := repo.seedRole("spare")
	require.NoError(t, svc.DeleteRole(context.Background(), spare.ID))
	_, err = svc.GetRole(context.Background(), spare.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateRoleValidatesKey(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Key: "Bad Key", Name: "Bad"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	role, err := svc.CreateRole(context.Background(), CreateRoleInput{Key: " Moderator ", Name: "Moderator"})
	require.NoError(t, err)
	require.Equal(t, "moderator", role.Key)

	_, err = svc.CreateRole(context.Background(), CreateRoleInput{Key: "moderator", Name: "Again"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestAuditRecordsActorFromContext(t *testing.T) {
	repo := newMemoryRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil)
	actor := &Principal{UserID: uuid.New()}
	ctx := ContextWithPrincipal(context.Background(), actor)

	role, err := svc.CreateRole(ctx, CreateRoleInput{Key: "moderator", Name: "Moderator"})
	require.NoError(t, err)
	require.Len(t, audit.entries, 1)
	require.Equal(t, actor.UserID, audit.entries[0].ActorID)
	require.Equal(t, role.ID.String(), audit.entries[0].EntityID)
}

func TestCatalogKeysAreUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, k := range CatalogKeys() {
		_, dup := seen[k]
		require.False(t, dup, "duplicate key %s", k)
		seen[k] = struct{}{}
	}
	require.Contains(t, seen, PermArticlesSubmit)
	require.Contains(t, seen, PermAdsReviewApprove)
}
