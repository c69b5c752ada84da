package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

// InvoiceRepo persists invoices, their line items and their payments.
// Payment writes lock the invoice row (SELECT ... FOR UPDATE) before
// summing prior payments, so concurrent payments on the same invoice
// serialize and the overpayment check stays race-free.
type InvoiceRepo struct {
	db *sql.DB
}

// NewInvoiceRepo returns a new InvoiceRepo bound to the given database.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// DB exposes the underlying pool for handler-level transactions.
func (r *InvoiceRepo) DB() *sql.DB { return r.db }

const invoiceCols = `id, organization_id, kind, booking_id, invoice_number, customer_name, currency,
	total_amount, invoice_date, due_date, phase, notes, created_at, updated_at`

// Create inserts an invoice with its line items in one transaction.
// Returns ErrConflict when the invoice number is already taken inside the
// organization.
func (r *InvoiceRepo) Create(ctx context.Context, org model.OrgContext, inv *model.Invoice, items []model.InvoiceItem) (*model.Invoice, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM invoices WHERE organization_id = ? AND invoice_number = ?`,
		org.OrgID, inv.Number).Scan(&exists)
	if err == nil {
		return nil, ErrConflict
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	const q = `INSERT INTO invoices
	           (organization_id, kind, booking_id, invoice_number, customer_name, currency,
	            total_amount, invoice_date, due_date, phase, notes)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var bookingID any
	if inv.BookingID != nil {
		bookingID = *inv.BookingID
	}
	result, err := tx.ExecContext(ctx, q,
		org.OrgID, string(inv.Kind), bookingID, inv.Number, inv.CustomerName, inv.Currency,
		inv.TotalAmount, inv.InvoiceDate.UTC(), inv.DueDate.UTC(), string(inv.Phase), inv.Notes)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	inv.ID = uint64(id)

	for i := range items {
		item := &items[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO invoice_items (invoice_id, description, unit_price, quantity, total_price) VALUES (?, ?, ?, ?, ?)`,
			inv.ID, item.Description, item.UnitPrice, item.Quantity, item.Total)
		if err != nil {
			return nil, err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		item.ID = uint64(itemID)
		item.InvoiceID = inv.ID
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, org, inv.ID)
}

// GetByID fetches one invoice within the organization, or ErrNotFound.
// Items and payments are loaded separately.
func (r *InvoiceRepo) GetByID(ctx context.Context, org model.OrgContext, id uint64) (*model.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = ? AND organization_id = ?`, id, org.OrgID)
	return scanInvoice(row.Scan)
}

func scanInvoice(scan func(...any) error) (*model.Invoice, error) {
	var inv model.Invoice
	var kind, phase string
	var bookingID sql.NullInt64
	var total money.Money
	err := scan(
		&inv.ID, &inv.OrgID, &kind, &bookingID, &inv.Number, &inv.CustomerName, &inv.Currency,
		&total, &inv.InvoiceDate, &inv.DueDate, &phase, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Kind = model.InvoiceKind(kind)
	inv.Phase = model.InvoicePhase(phase)
	inv.TotalAmount = total.WithCurrency(inv.Currency)
	if bookingID.Valid {
		b := uint64(bookingID.Int64)
		inv.BookingID = &b
	}
	return &inv, nil
}

// ListItems returns an invoice's billed lines in insertion order.
func (r *InvoiceRepo) ListItems(ctx context.Context, invoiceID uint64, currency string) ([]model.InvoiceItem, error) {
	const q = `SELECT id, invoice_id, description, unit_price, quantity, total_price
	           FROM invoice_items WHERE invoice_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.InvoiceItem, 0)
	for rows.Next() {
		var item model.InvoiceItem
		var unit, total money.Money
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &unit, &item.Quantity, &total); err != nil {
			return nil, err
		}
		item.UnitPrice = unit.WithCurrency(currency)
		item.Total = total.WithCurrency(currency)
		out = append(out, item)
	}
	return out, rows.Err()
}

// List returns the organization's invoices of one kind, newest first, each
// paired with its refund-aware payment sum so callers can derive statuses
// without per-invoice queries.  Kind "" lists both kinds.
func (r *InvoiceRepo) List(ctx context.Context, org model.OrgContext, kind model.InvoiceKind) ([]model.Invoice, []money.Money, error) {
	q := `SELECT i.id, i.organization_id, i.kind, i.booking_id, i.invoice_number, i.customer_name, i.currency,
	             i.total_amount, i.invoice_date, i.due_date, i.phase, i.notes, i.created_at, i.updated_at,
	             COALESCE(SUM(p.amount), 0)
	      FROM invoices i
	      LEFT JOIN payments p ON p.invoice_id = i.id
	      WHERE i.organization_id = ?`
	args := []any{org.OrgID}
	if kind != "" {
		q += ` AND i.kind = ?`
		args = append(args, string(kind))
	}
	q += ` GROUP BY i.id ORDER BY i.invoice_date DESC, i.id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	invoices := make([]model.Invoice, 0)
	paid := make([]money.Money, 0)
	for rows.Next() {
		var inv model.Invoice
		var kindCol, phase string
		var bookingID sql.NullInt64
		var total, paidSum money.Money
		if err := rows.Scan(
			&inv.ID, &inv.OrgID, &kindCol, &bookingID, &inv.Number, &inv.CustomerName, &inv.Currency,
			&total, &inv.InvoiceDate, &inv.DueDate, &phase, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
			&paidSum); err != nil {
			return nil, nil, err
		}
		inv.Kind = model.InvoiceKind(kindCol)
		inv.Phase = model.InvoicePhase(phase)
		inv.TotalAmount = total.WithCurrency(inv.Currency)
		if bookingID.Valid {
			b := uint64(bookingID.Int64)
			inv.BookingID = &b
		}
		invoices = append(invoices, inv)
		paid = append(paid, paidSum.WithCurrency(inv.Currency))
	}
	return invoices, paid, rows.Err()
}

// MarkSent moves a draft invoice to the sent phase.  Only draft can be
// sent; any other phase returns ErrConflict.
func (r *InvoiceRepo) MarkSent(ctx context.Context, org model.OrgContext, id uint64) error {
	return r.transition(ctx, org, id, model.PhaseDraft, model.PhaseSent)
}

// Cancel moves a draft or sent invoice to cancelled.  Cancelled is
// terminal, so cancelling twice returns ErrConflict.
func (r *InvoiceRepo) Cancel(ctx context.Context, org model.OrgContext, id uint64) error {
	const q = `UPDATE invoices SET phase = 'cancelled', updated_at = ?
	           WHERE id = ? AND organization_id = ? AND phase IN ('draft', 'sent')`
	result, err := r.db.ExecContext(ctx, q, time.Now().UTC(), id, org.OrgID)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, org, id, result)
}

func (r *InvoiceRepo) transition(ctx context.Context, org model.OrgContext, id uint64, from, to model.InvoicePhase) error {
	const q = `UPDATE invoices SET phase = ?, updated_at = ?
	           WHERE id = ? AND organization_id = ? AND phase = ?`
	result, err := r.db.ExecContext(ctx, q, string(to), time.Now().UTC(), id, org.OrgID, string(from))
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, org, id, result)
}

func (r *InvoiceRepo) checkTransition(ctx context.Context, org model.OrgContext, id uint64, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var phase string
	err = r.db.QueryRowContext(ctx,
		`SELECT phase FROM invoices WHERE id = ? AND organization_id = ?`, id, org.OrgID).Scan(&phase)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

// LockInvoiceTx takes the per-invoice write lock and returns the locked
// row.  Every payment write starts here so the validate-then-insert pair
// cannot interleave with another writer.
func (r *InvoiceRepo) LockInvoiceTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, id uint64) (*model.Invoice, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = ? AND organization_id = ? FOR UPDATE`, id, org.OrgID)
	return scanInvoice(row.Scan)
}

// SumPaymentsTx is the refund-aware payment sum, read under the invoice
// lock.
func (r *InvoiceRepo) SumPaymentsTx(ctx context.Context, tx *sql.Tx, invoiceID uint64, currency string) (money.Money, error) {
	var sum money.Money
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ?`, invoiceID).Scan(&sum)
	if err != nil {
		return money.Money{}, err
	}
	return sum.WithCurrency(currency), nil
}

// InsertPaymentTx appends a validated payment and fills the generated ID.
// Must run after LockInvoiceTx.
func (r *InvoiceRepo) InsertPaymentTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, p *model.Payment) error {
	const q = `INSERT INTO payments (organization_id, invoice_id, amount, payment_method, reference_number, payment_date)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, org.OrgID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.Date.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.OrgID = org.OrgID
	return nil
}

// DeletePaymentTx removes a payment as an explicit correction.  Must run
// after LockInvoiceTx; the derived figures recompute themselves on the
// next read.
func (r *InvoiceRepo) DeletePaymentTx(ctx context.Context, tx *sql.Tx, org model.OrgContext, invoiceID, paymentID uint64) error {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM payments WHERE id = ? AND invoice_id = ? AND organization_id = ?`,
		paymentID, invoiceID, org.OrgID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPayments returns an invoice's payments in (payment_date, id) order.
func (r *InvoiceRepo) ListPayments(ctx context.Context, org model.OrgContext, invoiceID uint64, currency string) ([]model.Payment, error) {
	const q = `SELECT id, organization_id, invoice_id, amount, payment_method, reference_number, payment_date, created_at
	           FROM payments WHERE invoice_id = ? AND organization_id = ?
	           ORDER BY payment_date, id`
	rows, err := r.db.QueryContext(ctx, q, invoiceID, org.OrgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Payment, 0)
	for rows.Next() {
		var p model.Payment
		var amount money.Money
		if err := rows.Scan(&p.ID, &p.OrgID, &p.InvoiceID, &amount, &p.Method, &p.Reference, &p.Date, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = amount.WithCurrency(currency)
		out = append(out, p)
	}
	return out, rows.Err()
}

// KindTotals aggregates one invoice kind over a date window for the
// financial summary.  Cancelled invoices are excluded.
type KindTotals struct {
	Count    int         `json:"count"`
	Invoiced money.Money `json:"invoiced"`
	Paid     money.Money `json:"paid"`
}

// SumByKind totals invoiced and paid amounts per currency for one invoice
// kind over [from, to] by invoice date.
func (r *InvoiceRepo) SumByKind(ctx context.Context, org model.OrgContext, kind model.InvoiceKind, from, to time.Time) (map[string]KindTotals, error) {
	// payments summed per invoice in a subquery so the join cannot
	// multiply invoice totals
	const q = `SELECT i.currency, COUNT(*), COALESCE(SUM(i.total_amount), 0),
	                  COALESCE(SUM((SELECT COALESCE(SUM(p.amount), 0) FROM payments p WHERE p.invoice_id = i.id)), 0)
	           FROM invoices i
	           WHERE i.organization_id = ? AND i.kind = ? AND i.phase <> 'cancelled'
	             AND i.invoice_date >= ? AND i.invoice_date < ?
	           GROUP BY i.currency`
	rows, err := r.db.QueryContext(ctx, q, org.OrgID, string(kind), from.UTC(), to.UTC().Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]KindTotals)
	for rows.Next() {
		var cur string
		var t KindTotals
		var invoiced, paid money.Money
		if err := rows.Scan(&cur, &t.Count, &invoiced, &paid); err != nil {
			return nil, err
		}
		t.Invoiced = invoiced.WithCurrency(cur)
		t.Paid = paid.WithCurrency(cur)
		out[cur] = t
	}
	return out, rows.Err()
}
