package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

// ServiceRepo provides CRUD operations for catalog services (hotels,
// tours, vehicles, guides, meals, additional services).  Every query is
// scoped by the caller's organization; a service belonging to another
// organization behaves exactly like a missing one.  All timestamp fields
// are stored in UTC.
type ServiceRepo struct {
	db *sql.DB
}

// NewServiceRepo returns a new ServiceRepo bound to the given database.
func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

// DB exposes the underlying pool so handlers can open transactions that
// span multiple repositories.
func (r *ServiceRepo) DB() *sql.DB { return r.db }

// Create inserts a new service and populates the generated ID and
// timestamps on the provided record.
func (r *ServiceRepo) Create(ctx context.Context, org model.OrgContext, s *model.Service) error {
	const q = `INSERT INTO services (organization_id, kind, name, city, active, base_price, currency)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	var base any
	if s.BasePrice != nil {
		base = *s.BasePrice
	}
	result, err := r.db.ExecContext(ctx, q, org.OrgID, s.Kind, s.Name, s.City, s.Active, base, s.Currency)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.OrgID = org.OrgID
	return r.scanByID(ctx, org, s.ID, s)
}

// GetByID returns one service within the caller's organization, or
// ErrNotFound.
func (r *ServiceRepo) GetByID(ctx context.Context, org model.OrgContext, id uint64) (*model.Service, error) {
	var s model.Service
	if err := r.scanByID(ctx, org, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ServiceRepo) scanByID(ctx context.Context, org model.OrgContext, id uint64, s *model.Service) error {
	const q = `SELECT id, organization_id, kind, name, city, active, base_price, currency, created_at, updated_at
	           FROM services WHERE id = ? AND organization_id = ?`
	var base sql.NullString
	err := r.db.QueryRowContext(ctx, q, id, org.OrgID).Scan(
		&s.ID, &s.OrgID, &s.Kind, &s.Name, &s.City, &s.Active, &base, &s.Currency,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.BasePrice = nil
	if base.Valid {
		m, perr := money.FromString(base.String, s.Currency)
		if perr != nil {
			return perr
		}
		s.BasePrice = &m
	}
	return nil
}

// List returns the organization's services, optionally filtered by kind
// and/or restricted to active ones.  Results are ordered by city then name
// for deterministic catalog listings.
func (r *ServiceRepo) List(ctx context.Context, org model.OrgContext, kind string, activeOnly bool) ([]model.Service, error) {
	q := `SELECT id, organization_id, kind, name, city, active, base_price, currency, created_at, updated_at
	      FROM services WHERE organization_id = ?`
	args := []any{org.OrgID}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY city, name`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]model.Service, 0)
	for rows.Next() {
		var s model.Service
		var base sql.NullString
		if err := rows.Scan(
			&s.ID, &s.OrgID, &s.Kind, &s.Name, &s.City, &s.Active, &base, &s.Currency,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if base.Valid {
			m, perr := money.FromString(base.String, s.Currency)
			if perr != nil {
				return nil, perr
			}
			s.BasePrice = &m
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

// Update changes a service's mutable attributes (name, city, base price,
// active flag).  The identity fields (kind, organization) stay fixed.
func (r *ServiceRepo) Update(ctx context.Context, org model.OrgContext, s *model.Service) error {
	const q = `UPDATE services SET name = ?, city = ?, active = ?, base_price = ?, currency = ?, updated_at = ?
	           WHERE id = ? AND organization_id = ?`
	var base any
	if s.BasePrice != nil {
		base = *s.BasePrice
	}
	result, err := r.db.ExecContext(ctx, q, s.Name, s.City, s.Active, base, s.Currency,
		time.Now().UTC(), s.ID, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// distinguish "missing" from "identical values written back"
		var exists uint64
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM services WHERE id = ? AND organization_id = ?`, s.ID, org.OrgID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// SetActive archives or reactivates a service.
func (r *ServiceRepo) SetActive(ctx context.Context, org model.OrgContext, id uint64, active bool) error {
	const q = `UPDATE services SET active = ?, updated_at = ? WHERE id = ? AND organization_id = ?`
	result, err := r.db.ExecContext(ctx, q, active, time.Now().UTC(), id, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists uint64
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM services WHERE id = ? AND organization_id = ?`, id, org.OrgID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}
