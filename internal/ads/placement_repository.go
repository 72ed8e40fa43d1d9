package ads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// PlacementRepository persists ad placements.
type PlacementRepository interface {
	List(ctx context.Context, enabledOnly bool) ([]Placement, error)
	Get(ctx context.Context, id uuid.UUID) (*Placement, error)
	Create(ctx context.Context, p *Placement) error
	Update(ctx context.Context, p *Placement) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PGPlacementRepository implements PlacementRepository using PostgreSQL.
// gam_sizes is a jsonb column.
type PGPlacementRepository struct {
	pool *pgxpool.Pool
}

// NewPlacementRepository constructs a PostgreSQL placement repository.
func NewPlacementRepository(pool *pgxpool.Pool) *PGPlacementRepository {
	return &PGPlacementRepository{pool: pool}
}

var _ PlacementRepository = (*PGPlacementRepository)(nil)

const placementColumns = `id, key, name, provider, format, enabled,
adsense_client_id, adsense_slot_id, adsense_format, adsense_responsive,
gam_network_code, gam_ad_unit_path, gam_sizes, created_at, updated_at`

func scanPlacement(row pgx.Row) (*Placement, error) {
	var p Placement
	if err := row.Scan(&p.ID, &p.Key, &p.Name, &p.Provider, &p.Format, &p.Enabled,
		&p.AdSenseClientID, &p.AdSenseSlotID, &p.AdSenseFormat, &p.AdSenseResponsive,
		&p.GAMNetworkCode, &p.GAMAdUnitPath, &p.GAMSizes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, httpx.TranslatePgError(err)
	}
	return &p, nil
}

// List returns placements newest first, optionally only enabled ones.
func (r *PGPlacementRepository) List(ctx context.Context, enabledOnly bool) ([]Placement, error) {
	query := `SELECT ` + placementColumns + ` FROM ad_placements`
	if enabledOnly {
		query += ` WHERE enabled`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Placement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Get fetches one placement.
func (r *PGPlacementRepository) Get(ctx context.Context, id uuid.UUID) (*Placement, error) {
	p, err := scanPlacement(r.pool.QueryRow(ctx, `SELECT `+placementColumns+` FROM ad_placements WHERE id=$1`, id))
	if err != nil {
		return nil, fmt.Errorf("placement %s: %w", id, err)
	}
	return p, nil
}

// Create inserts a placement. A taken key yields ErrDuplicate.
func (r *PGPlacementRepository) Create(ctx context.Context, p *Placement) error {
	created, err := scanPlacement(r.pool.QueryRow(ctx, `INSERT INTO ad_placements
(id, key, name, provider, format, enabled, adsense_client_id, adsense_slot_id, adsense_format, adsense_responsive,
gam_network_code, gam_ad_unit_path, gam_sizes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
RETURNING `+placementColumns,
		p.ID, p.Key, p.Name, string(p.Provider), string(p.Format), p.Enabled,
		p.AdSenseClientID, p.AdSenseSlotID, p.AdSenseFormat, p.AdSenseResponsive,
		p.GAMNetworkCode, p.GAMAdUnitPath, p.GAMSizes))
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

// Update rewrites every column of a placement.
func (r *PGPlacementRepository) Update(ctx context.Context, p *Placement) error {
	updated, err := scanPlacement(r.pool.QueryRow(ctx, `UPDATE ad_placements SET key=$2, name=$3, provider=$4, format=$5,
enabled=$6, adsense_client_id=$7, adsense_slot_id=$8, adsense_format=$9, adsense_responsive=$10,
gam_network_code=$11, gam_ad_unit_path=$12, gam_sizes=$13, updated_at=NOW()
WHERE id=$1
RETURNING `+placementColumns,
		p.ID, p.Key, p.Name, string(p.Provider), string(p.Format), p.Enabled,
		p.AdSenseClientID, p.AdSenseSlotID, p.AdSenseFormat, p.AdSenseResponsive,
		p.GAMNetworkCode, p.GAMAdUnitPath, p.GAMSizes))
	if err != nil {
		return fmt.Errorf("placement %s: %w", p.ID, err)
	}
	*p = *updated
	return nil
}

// Delete removes a placement.
func (r *PGPlacementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ad_placements WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("placement %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}
