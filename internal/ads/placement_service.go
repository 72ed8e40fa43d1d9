package ads

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/newsdesk/newsdesk/internal/rbac"
	"github.com/newsdesk/newsdesk/internal/shared"
)

// PlacementModule tags audit entries for placements.
const PlacementModule = "ad_placements"

// PlacementService manages ad placements. Placements are configuration and
// do not go through review.
type PlacementService struct {
	repo   PlacementRepository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewPlacementService constructs the placement service. audit may be nil.
func NewPlacementService(repo PlacementRepository, audit AuditPort, logger *slog.Logger) *PlacementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlacementService{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns every placement, newest first.
func (s *PlacementService) List(ctx context.Context) ([]Placement, error) {
	return s.list(ctx, false)
}

// ListActive returns enabled placements for the public site.
func (s *PlacementService) ListActive(ctx context.Context) ([]Placement, error) {
	return s.list(ctx, true)
}

func (s *PlacementService) list(ctx context.Context, enabledOnly bool) ([]Placement, error) {
	items, err := s.repo.List(ctx, enabledOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Placement{}
	}
	return items, nil
}

// Get returns one placement.
func (s *PlacementService) Get(ctx context.Context, id uuid.UUID) (*Placement, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a placement. Enabled defaults to true and AdSense
// placements default to the responsive auto format.
func (s *PlacementService) Create(ctx context.Context, actor *rbac.Principal, in CreatePlacementInput) (*Placement, error) {
	p := &Placement{
		ID:                uuid.New(),
		Key:               in.Key,
		Name:              in.Name,
		Provider:          in.Provider,
		Format:            in.Format,
		Enabled:           true,
		AdSenseClientID:   in.AdSenseClientID,
		AdSenseSlotID:     in.AdSenseSlotID,
		AdSenseFormat:     in.AdSenseFormat,
		AdSenseResponsive: true,
		GAMNetworkCode:    in.GAMNetworkCode,
		GAMAdUnitPath:     in.GAMAdUnitPath,
		GAMSizes:          in.GAMSizes,
	}
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}
	if in.AdSenseResponsive != nil {
		p.AdSenseResponsive = *in.AdSenseResponsive
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "ads.placements.create", p.ID, map[string]any{"key": p.Key, "provider": p.Provider})
	return p, nil
}

// Update patches a placement and re-checks the provider configuration.
func (s *PlacementService) Update(ctx context.Context, actor *rbac.Principal, id uuid.UUID, in UpdatePlacementInput) (*Placement, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Key != nil {
		p.Key = *in.Key
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Provider != nil {
		p.Provider = *in.Provider
	}
	if in.Format != nil {
		p.Format = *in.Format
	}
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}
	if in.AdSenseClientID != nil {
		p.AdSenseClientID = in.AdSenseClientID
	}
	if in.AdSenseSlotID != nil {
		p.AdSenseSlotID = in.AdSenseSlotID
	}
	if in.AdSenseFormat != nil {
		p.AdSenseFormat = in.AdSenseFormat
	}
	if in.AdSenseResponsive != nil {
		p.AdSenseResponsive = *in.AdSenseResponsive
	}
	if in.GAMNetworkCode != nil {
		p.GAMNetworkCode = in.GAMNetworkCode
	}
	if in.GAMAdUnitPath != nil {
		p.GAMAdUnitPath = in.GAMAdUnitPath
	}
	if in.GAMSizes != nil {
		p.GAMSizes = in.GAMSizes
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "ads.placements.update", p.ID, map[string]any{"key": p.Key, "provider": p.Provider})
	return p, nil
}

// Delete removes a placement.
func (s *PlacementService) Delete(ctx context.Context, actor *rbac.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "ads.placements.delete", id, nil)
	return nil
}

func (s *PlacementService) record(ctx context.Context, actor *rbac.Principal, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ActorID(),
		Action:   action,
		Entity:   PlacementModule,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit placement mutation", slog.String("action", action), slog.Any("error", err))
	}
}
