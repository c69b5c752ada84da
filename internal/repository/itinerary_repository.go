package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
	"github.com/ekurt/tour-operator-core/internal/quote"
)

// ItineraryRepo persists itineraries with their days and items.  Writes
// always happen inside one transaction covering the item rows and the
// derived totals, so a reader never observes an itinerary whose stored
// totals disagree with its items.
type ItineraryRepo struct {
	db *sql.DB
}

// NewItineraryRepo returns a new ItineraryRepo bound to the given database.
func NewItineraryRepo(db *sql.DB) *ItineraryRepo { return &ItineraryRepo{db: db} }

// DB exposes the underlying pool for handler-level transactions.
func (r *ItineraryRepo) DB() *sql.DB { return r.db }

// Create inserts an itinerary with all days and items in one transaction
// and populates the generated IDs.  Totals are taken from the provided
// value; callers run the assembler first so they are consistent.
func (r *ItineraryRepo) Create(ctx context.Context, org model.OrgContext, it *quote.Itinerary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO itineraries
	           (organization_id, request_id, customer_name, adults, children, currency, status, total_price, price_per_person)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var reqID any
	if it.RequestID != nil {
		reqID = *it.RequestID
	}
	result, err := tx.ExecContext(ctx, q,
		org.OrgID, reqID, it.CustomerName, it.Adults, it.Children, it.Currency,
		string(it.Status), it.GrandTotal, it.PerPerson)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	it.OrgID = org.OrgID

	if err := insertDaysTx(ctx, tx, it); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads a full itinerary (days and items included) within the
// organization, or ErrNotFound.
func (r *ItineraryRepo) GetByID(ctx context.Context, org model.OrgContext, id uint64) (*quote.Itinerary, error) {
	const q = `SELECT id, organization_id, request_id, customer_name, adults, children, currency, status,
	                  total_price, price_per_person, created_at, updated_at
	           FROM itineraries WHERE id = ? AND organization_id = ?`
	var it quote.Itinerary
	var reqID sql.NullInt64
	var status string
	var total, perPerson money.Money
	err := r.db.QueryRowContext(ctx, q, id, org.OrgID).Scan(
		&it.ID, &it.OrgID, &reqID, &it.CustomerName, &it.Adults, &it.Children, &it.Currency, &status,
		&total, &perPerson, &it.CreatedAt, &it.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.Status = quote.ItineraryStatus(status)
	it.GrandTotal = total.WithCurrency(it.Currency)
	it.PerPerson = perPerson.WithCurrency(it.Currency)
	if reqID.Valid {
		rid := uint64(reqID.Int64)
		it.RequestID = &rid
	}

	if err := r.loadDays(ctx, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ItineraryRepo) loadDays(ctx context.Context, it *quote.Itinerary) error {
	const dayQ = `SELECT id, day_number, title, day_total FROM itinerary_days
	              WHERE itinerary_id = ? ORDER BY day_number`
	rows, err := r.db.QueryContext(ctx, dayQ, it.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	it.Days = make([]quote.Day, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d quote.Day
		var total money.Money
		if err := rows.Scan(&d.ID, &d.Number, &d.Title, &total); err != nil {
			return err
		}
		d.Total = total.WithCurrency(it.Currency)
		d.Items = []quote.Item{}
		index[d.ID] = len(it.Days)
		it.Days = append(it.Days, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(it.Days) == 0 {
		return nil
	}

	// fetch items for all days in a single query
	ids := make([]any, 0, len(it.Days))
	placeholders := make([]string, 0, len(it.Days))
	for _, d := range it.Days {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	itemQ := `SELECT id, day_id, item_type, name, unit_price, quantity, total_price
	          FROM itinerary_items
	          WHERE day_id IN (` + strings.Join(placeholders, ",") + `)
	          ORDER BY day_id, position, id`
	irows, err := r.db.QueryContext(ctx, itemQ, ids...)
	if err != nil {
		return err
	}
	defer irows.Close()
	for irows.Next() {
		var item quote.Item
		var dayID uint64
		var unit, total money.Money
		if err := irows.Scan(&item.ID, &dayID, &item.Type, &item.Name, &unit, &item.Quantity, &total); err != nil {
			return err
		}
		item.UnitPrice = unit.WithCurrency(it.Currency)
		item.Total = total.WithCurrency(it.Currency)
		idx, ok := index[dayID]
		if !ok {
			continue
		}
		it.Days[idx].Items = append(it.Days[idx].Items, item)
	}
	return irows.Err()
}

// Save rewrites an edited itinerary's days, items and derived totals in
// one transaction.  The whole item set is replaced; items are addressed by
// position, so regenerated row IDs are fine.  A half-applied edit can
// never become visible.
func (r *ItineraryRepo) Save(ctx context.Context, org model.OrgContext, it *quote.Itinerary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE itineraries
	           SET customer_name = ?, adults = ?, children = ?, total_price = ?, price_per_person = ?, updated_at = ?
	           WHERE id = ? AND organization_id = ? AND status = 'draft'`
	result, err := tx.ExecContext(ctx, q,
		it.CustomerName, it.Adults, it.Children, it.GrandTotal, it.PerPerson,
		time.Now().UTC(), it.ID, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// either missing or already confirmed; tell them apart
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM itineraries WHERE id = ? AND organization_id = ?`, it.ID, org.OrgID).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status != string(quote.StatusDraft) {
			return ErrConflict
		}
		// identical values written back; keep going so days/items refresh
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM itinerary_items WHERE day_id IN (SELECT id FROM itinerary_days WHERE itinerary_id = ?)`, it.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM itinerary_days WHERE itinerary_id = ?`, it.ID); err != nil {
		return err
	}
	if err := insertDaysTx(ctx, tx, it); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// insertDaysTx writes an itinerary's day rows and bulk-inserts each day's
// items, populating generated IDs.
func insertDaysTx(ctx context.Context, tx *sql.Tx, it *quote.Itinerary) error {
	for d := range it.Days {
		day := &it.Days[d]
		result, err := tx.ExecContext(ctx,
			`INSERT INTO itinerary_days (itinerary_id, day_number, title, day_total) VALUES (?, ?, ?, ?)`,
			it.ID, day.Number, day.Title, day.Total)
		if err != nil {
			return err
		}
		dayID, err := result.LastInsertId()
		if err != nil {
			return err
		}
		day.ID = uint64(dayID)

		if len(day.Items) == 0 {
			continue
		}
		q := `INSERT INTO itinerary_items (day_id, position, item_type, name, unit_price, quantity, total_price) VALUES `
		args := make([]any, 0, len(day.Items)*7)
		for i, item := range day.Items {
			if i > 0 {
				q += ","
			}
			q += "(?, ?, ?, ?, ?, ?, ?)"
			args = append(args, day.ID, i, item.Type, item.Name, item.UnitPrice, item.Quantity, item.Total)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// Confirm marks an itinerary read-only once its booking is confirmed.
func (r *ItineraryRepo) Confirm(ctx context.Context, org model.OrgContext, id uint64) error {
	const q = `UPDATE itineraries SET status = 'confirmed', updated_at = ?
	           WHERE id = ? AND organization_id = ? AND status = 'draft'`
	result, err := r.db.ExecContext(ctx, q, time.Now().UTC(), id, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status string
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM itineraries WHERE id = ? AND organization_id = ?`, id, org.OrgID).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// ItinerarySummary is the listing shape: header fields and stored totals
// without the day/item detail.
type ItinerarySummary struct {
	ID           uint64      `json:"id"`
	CustomerName string      `json:"customer_name"`
	Adults       int         `json:"adults"`
	Children     int         `json:"children"`
	Currency     string      `json:"currency"`
	Status       string      `json:"status"`
	GrandTotal   money.Money `json:"total_price"`
	PerPerson    money.Money `json:"price_per_person"`
	CreatedAt    time.Time   `json:"created_at"`
}

// List returns itinerary summaries for the organization, newest first.
func (r *ItineraryRepo) List(ctx context.Context, org model.OrgContext) ([]ItinerarySummary, error) {
	const q = `SELECT id, customer_name, adults, children, currency, status, total_price, price_per_person, created_at
	           FROM itineraries WHERE organization_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, org.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ItinerarySummary, 0)
	for rows.Next() {
		var s ItinerarySummary
		var total, perPerson money.Money
		if err := rows.Scan(&s.ID, &s.CustomerName, &s.Adults, &s.Children, &s.Currency, &s.Status,
			&total, &perPerson, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.GrandTotal = total.WithCurrency(s.Currency)
		s.PerPerson = perPerson.WithCurrency(s.Currency)
		out = append(out, s)
	}
	return out, rows.Err()
}

// SumConfirmedTotals sums the grand totals of confirmed itineraries
// created inside [from, to], grouped by currency.  Used by the financial
// summary report.
func (r *ItineraryRepo) SumConfirmedTotals(ctx context.Context, org model.OrgContext, from, to time.Time) (map[string]money.Money, error) {
	const q = `SELECT currency, COALESCE(SUM(total_price), 0)
	           FROM itineraries
	           WHERE organization_id = ? AND status = 'confirmed' AND created_at >= ? AND created_at < ?
	           GROUP BY currency`
	rows, err := r.db.QueryContext(ctx, q, org.OrgID, from.UTC(), to.UTC().Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]money.Money)
	for rows.Next() {
		var cur string
		var m money.Money
		if err := rows.Scan(&cur, &m); err != nil {
			return nil, err
		}
		totals[cur] = m.WithCurrency(cur)
	}
	return totals, rows.Err()
}
