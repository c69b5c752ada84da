package model

import (
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// InvoiceKind separates customer-facing invoices (revenue) from supplier
// invoices (cost); financial reports net the two.
type InvoiceKind string

const (
	InvoiceCustomer InvoiceKind = "customer"
	InvoiceSupplier InvoiceKind = "supplier"
)

// InvoicePhase is the explicitly stored lifecycle position of an invoice.
// Only draft, sent and cancelled are persisted; paid, partially_paid and
// overdue are derived from payments and the due date at read time so the
// stored state can never drift from the payment records.
type InvoicePhase string

const (
	PhaseDraft     InvoicePhase = "draft"
	PhaseSent      InvoicePhase = "sent"
	PhaseCancelled InvoicePhase = "cancelled"
)

// Invoice bills one booking or customer for a total amount.  AmountPaid and
// BalanceDue are always recomputed from the payment records, never stored
// independently.
//
// Fields:
//
//	ID            – primary key identifier.
//	OrgID         – owning organization.
//	Kind          – customer (revenue) or supplier (cost).
//	BookingID     – optional booking reference.
//	Number        – human-facing invoice number, unique per organization.
//	CustomerName  – billed party display name.
//	Currency      – ISO currency code of all amounts.
//	TotalAmount   – invoiced total, must be positive.
//	InvoiceDate   – issue date.
//	DueDate       – payment deadline; overdue is evaluated against it at read time.
//	Phase         – stored lifecycle position (draft, sent, cancelled).
//	Notes         – free text.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Invoice struct {
	ID           uint64       // invoices.id
	OrgID        uint64       // invoices.organization_id
	Kind         InvoiceKind  // invoices.kind
	BookingID    *uint64      // invoices.booking_id (nullable)
	Number       string       // invoices.invoice_number
	CustomerName string       // invoices.customer_name
	Currency     string       // invoices.currency
	TotalAmount  money.Money  // invoices.total_amount
	InvoiceDate  time.Time    // invoices.invoice_date
	DueDate      time.Time    // invoices.due_date
	Phase        InvoicePhase // invoices.phase
	Notes        string       // invoices.notes
	CreatedAt    time.Time    // invoices.created_at
	UpdatedAt    time.Time    // invoices.updated_at
}

// InvoiceItem is one billed line on an invoice.
type InvoiceItem struct {
	ID          uint64      // invoice_items.id
	InvoiceID   uint64      // invoice_items.invoice_id
	Description string      // invoice_items.description
	UnitPrice   money.Money // invoice_items.unit_price
	Quantity    int         // invoice_items.quantity
	Total       money.Money // invoice_items.total_price
}

// Payment is one amount received (or refunded, when negative) against an
// invoice.  Payments are append-only; deleting one is an explicit
// correcting action that recomputes the invoice's derived figures.
//
// Fields:
//
//	ID        – primary key identifier.
//	OrgID     – owning organization.
//	InvoiceID – invoice the payment settles.
//	Amount    – signed amount; refunds are negative.
//	Method    – bank_transfer, card, cash, ...
//	Reference – external payment reference.
//	Date      – value date of the payment.
//	CreatedAt – insertion timestamp.
type Payment struct {
	ID        uint64      // payments.id
	OrgID     uint64      // payments.organization_id
	InvoiceID uint64      // payments.invoice_id
	Amount    money.Money // payments.amount (signed)
	Method    string      // payments.payment_method
	Reference string      // payments.reference_number
	Date      time.Time   // payments.payment_date
	CreatedAt time.Time   // payments.created_at
}
