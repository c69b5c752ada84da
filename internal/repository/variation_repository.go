package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/pricing"
)

// VariationRepo persists price variations.  All kinds share one table; the
// kind-specific rate fields live in a JSON column decoded into the
// matching pricing.Rates shape on read.  The repo satisfies
// pricing.CatalogReader, so the resolver reads variations through it in a
// single snapshot query.
type VariationRepo struct {
	db *sql.DB
}

// NewVariationRepo returns a new VariationRepo bound to the given database.
func NewVariationRepo(db *sql.DB) *VariationRepo { return &VariationRepo{db: db} }

const variationCols = `id, organization_id, service_id, kind, season_name, start_date, end_date,
	currency, status, rates, created_at, updated_at`

// Create inserts a new variation, populating the generated ID and
// timestamps.  The parent service must exist within the organization.
func (r *VariationRepo) Create(ctx context.Context, org model.OrgContext, v *pricing.Variation) error {
	if err := r.checkService(ctx, org, v.ServiceID); err != nil {
		return err
	}
	raw, err := pricing.EncodeRates(v.Rates)
	if err != nil {
		return err
	}
	const q = `INSERT INTO price_variations
	           (organization_id, service_id, kind, season_name, start_date, end_date, currency, status, rates)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		org.OrgID, v.ServiceID, string(v.Rates.Kind()), v.Season.Name,
		v.Season.Start.UTC(), v.Season.End.UTC(), v.Currency, string(v.Status), raw)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	v.OrgID = org.OrgID
	loaded, err := r.GetByID(ctx, org, v.ID)
	if err != nil {
		return err
	}
	*v = *loaded
	return nil
}

// GetByID returns one variation within the organization, or ErrNotFound.
func (r *VariationRepo) GetByID(ctx context.Context, org model.OrgContext, id uint64) (*pricing.Variation, error) {
	const q = `SELECT ` + variationCols + ` FROM price_variations WHERE id = ? AND organization_id = ?`
	row := r.db.QueryRowContext(ctx, q, id, org.OrgID)
	v, err := scanVariation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// VariationsByService returns every variation recorded for a service,
// active and archived, ordered by season start.  One snapshot query; the
// resolver filters by status and date in memory so the read is consistent.
func (r *VariationRepo) VariationsByService(ctx context.Context, org model.OrgContext, serviceID uint64) ([]pricing.Variation, error) {
	const q = `SELECT ` + variationCols + `
	           FROM price_variations
	           WHERE service_id = ? AND organization_id = ?
	           ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, q, serviceID, org.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variations := make([]pricing.Variation, 0)
	for rows.Next() {
		v, err := scanVariation(rows.Scan)
		if err != nil {
			return nil, err
		}
		variations = append(variations, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return variations, nil
}

// Update rewrites a variation's season, currency, status and rates.
func (r *VariationRepo) Update(ctx context.Context, org model.OrgContext, v *pricing.Variation) error {
	raw, err := pricing.EncodeRates(v.Rates)
	if err != nil {
		return err
	}
	const q = `UPDATE price_variations
	           SET season_name = ?, start_date = ?, end_date = ?, currency = ?, status = ?, rates = ?, updated_at = ?
	           WHERE id = ? AND organization_id = ?`
	result, err := r.db.ExecContext(ctx, q,
		v.Season.Name, v.Season.Start.UTC(), v.Season.End.UTC(), v.Currency,
		string(v.Status), raw, time.Now().UTC(), v.ID, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, org, v.ID); err != nil {
			return err
		}
	}
	return nil
}

// Archive takes a variation out of resolution while keeping it for
// history.  Archiving twice is a no-op.
func (r *VariationRepo) Archive(ctx context.Context, org model.OrgContext, id uint64) error {
	const q = `UPDATE price_variations SET status = ?, updated_at = ?
	           WHERE id = ? AND organization_id = ?`
	result, err := r.db.ExecContext(ctx, q, string(pricing.StatusArchived), time.Now().UTC(), id, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, org, id); err != nil {
			return err
		}
	}
	return nil
}

// checkService verifies the parent service exists in the organization.
func (r *VariationRepo) checkService(ctx context.Context, org model.OrgContext, serviceID uint64) error {
	var id uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM services WHERE id = ? AND organization_id = ?`, serviceID, org.OrgID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// scanVariation maps one price_variations row, decoding the rates JSON
// into the concrete shape for the row's kind.
func scanVariation(scan func(dest ...any) error) (*pricing.Variation, error) {
	var v pricing.Variation
	var kind, status string
	var raw []byte
	if err := scan(
		&v.ID, &v.OrgID, &v.ServiceID, &kind, &v.Season.Name,
		&v.Season.Start, &v.Season.End, &v.Currency, &status, &raw,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.Status = pricing.Status(status)
	rates, err := pricing.DecodeRates(pricing.Kind(kind), raw)
	if err != nil {
		return nil, err
	}
	v.Rates = rates
	return &v, nil
}
