package ads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

type memoryPlacements struct {
	mu    sync.Mutex
	items map[uuid.UUID]Placement
	seq   time.Time
}

func newMemoryPlacements() *memoryPlacements {
	return &memoryPlacements{items: make(map[uuid.UUID]Placement), seq: time.Now()}
}

func (m *memoryPlacements) List(ctx context.Context, enabledOnly bool) ([]Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Placement
	for _, p := range m.items {
		if enabledOnly && !p.Enabled {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryPlacements) Get(ctx context.Context, id uuid.UUID) (*Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &p, nil
}

func (m *memoryPlacements) Create(ctx context.Context, p *Placement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.keyTaken(p); err != nil {
		return err
	}
	m.seq = m.seq.Add(time.Second)
	p.CreatedAt = m.seq
	p.UpdatedAt = m.seq
	m.items[p.ID] = *p
	return nil
}

func (m *memoryPlacements) Update(ctx context.Context, p *Placement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ID]; !ok {
		return httpx.ErrNotFound
	}
	if err := m.keyTaken(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	m.items[p.ID] = *p
	return nil
}

func (m *memoryPlacements) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryPlacements) keyTaken(p *Placement) error {
	for id, other := range m.items {
		if id != p.ID && strings.EqualFold(other.Key, p.Key) {
			return httpx.ErrDuplicate
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func placementAdmin() *rbac.Principal {
	return &rbac.Principal{UserID: uuid.New(), Roles: []string{rbac.RoleAdmin}}
}

func TestCreatePlacementDefaultsAndProviderRules(t *testing.T) {
	svc := NewPlacementService(newMemoryPlacements(), nil, nil)
	ctx := context.Background()

	manual, err := svc.Create(ctx, placementAdmin(), CreatePlacementInput{
		Key:             " home-top ",
		Name:            "Home top",
		Provider:        ProviderManual,
		AdSenseClientID: ptr("ca-pub-1"),
		GAMSizes:        [][2]int{{300, 250}},
	})
	require.NoError(t, err)
	require.Equal(t, "home-top", manual.Key)
	require.Equal(t, AdTypeBanner, manual.Format)
	require.True(t, manual.Enabled)
	require.Nil(t, manual.AdSenseClientID)
	require.Nil(t, manual.GAMSizes)

	adsense, err := svc.Create(ctx, placementAdmin(), CreatePlacementInput{
		Key:             "sidebar",
		Name:            "Sidebar",
		Provider:        ProviderAdSense,
		Format:          AdTypeSidebar,
		AdSenseClientID: ptr("ca-pub-1"),
		AdSenseSlotID:   ptr("123"),
		GAMNetworkCode:  ptr("999"),
	})
	require.NoError(t, err)
	require.Equal(t, "auto", *adsense.AdSenseFormat)
	require.True(t, adsense.AdSenseResponsive)
	require.Nil(t, adsense.GAMNetworkCode)

	_, err = svc.Create(ctx, placementAdmin(), CreatePlacementInput{Key: "missing-slot", Name: "x", Provider: ProviderAdSense, AdSenseClientID: ptr("ca-pub-1"), AdSenseSlotID: ptr("  ")})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, placementAdmin(), CreatePlacementInput{Key: "bad-gam", Name: "x", Provider: ProviderGAM, GAMNetworkCode: ptr("1"), GAMAdUnitPath: ptr("/1/home"), GAMSizes: [][2]int{{0, 90}}})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, placementAdmin(), CreatePlacementInput{Key: "sidebar", Name: "Again", Provider: ProviderManual})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdatePlacementSwitchesProvider(t *testing.T) {
	svc := NewPlacementService(newMemoryPlacements(), nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, placementAdmin(), CreatePlacementInput{
		Key: "article-inline", Name: "Inline", Provider: ProviderAdSense,
		AdSenseClientID: ptr("ca-pub-1"), AdSenseSlotID: ptr("42"),
	})
	require.NoError(t, err)

	gam := ProviderGAM
	_, err = svc.Update(ctx, placementAdmin(), p.ID, UpdatePlacementInput{Provider: &gam})
	require.ErrorIs(t, err, httpx.ErrValidation)

	updated, err := svc.Update(ctx, placementAdmin(), p.ID, UpdatePlacementInput{
		Provider:       &gam,
		GAMNetworkCode: ptr("1234"),
		GAMAdUnitPath:  ptr("/1234/inline"),
		GAMSizes:       [][2]int{{728, 90}, {320, 50}},
	})
	require.NoError(t, err)
	require.Equal(t, ProviderGAM, updated.Provider)
	require.Nil(t, updated.AdSenseClientID)
	require.Nil(t, updated.AdSenseFormat)
	require.Len(t, updated.GAMSizes, 2)

	stored, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "/1234/inline", *stored.GAMAdUnitPath)
}

func TestListActivePlacementsNewestFirst(t *testing.T) {
	svc := NewPlacementService(newMemoryPlacements(), nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, placementAdmin(), CreatePlacementInput{Key: "a", Name: "A", Provider: ProviderManual})
	require.NoError(t, err)
	_, err = svc.Create(ctx, placementAdmin(), CreatePlacementInput{Key: "b", Name: "B", Provider: ProviderManual, Enabled: ptr(false)})
	require.NoError(t, err)
	third, err := svc.Create(ctx, placementAdmin(), CreatePlacementInput{Key: "c", Name: "C", Provider: ProviderManual})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, third.ID, all[0].ID)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, third.ID, active[0].ID)
	require.Equal(t, first.ID, active[1].ID)

	require.NoError(t, svc.Delete(ctx, placementAdmin(), first.ID))
	require.ErrorIs(t, svc.Delete(ctx, placementAdmin(), first.ID), httpx.ErrNotFound)
}

func TestPlacementRoutesMountUnderAds(t *testing.T) {
	svc, _, _ := newTestService()
	placements := NewPlacementService(newMemoryPlacements(), nil, nil)
	_, err := placements.Create(context.Background(), placementAdmin(), CreatePlacementInput{Key: "footer", Name: "Footer", Provider: ProviderManual})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(nil, svc, rbac.Middleware{}).
		WithPlacements(NewPlacementHandler(nil, placements, rbac.Middleware{})).
		MountRoutes(r)

	do := func(method, path string, p *rbac.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if p != nil {
			req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), p))
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, do(http.MethodGet, "/placements/active", nil).Code)
	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/placements", nil).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodGet, "/placements", journalist()).Code)
	viewer := &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermAdPlacementsView}}
	require.Equal(t, http.StatusOK, do(http.MethodGet, "/placements", viewer).Code)
	require.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/placements/"+uuid.NewString(), viewer).Code)
	manager := &rbac.Principal{UserID: uuid.New(), Permissions: []string{rbac.PermAdPlacementsDelete}}
	require.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/placements/"+uuid.NewString(), manager).Code)
}
