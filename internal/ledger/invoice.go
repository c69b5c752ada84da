package ledger

import (
	"errors"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

// InvoiceStatus is the derived, user-facing invoice state.  paid,
// partially_paid and overdue are never stored; they are evaluated from the
// payment records and the due date on every read so they cannot drift.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusSent          InvoiceStatus = "sent"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusPaid          InvoiceStatus = "paid"
	StatusOverdue       InvoiceStatus = "overdue"
	StatusCancelled     InvoiceStatus = "cancelled"
)

// ErrOverpayment means the payment would drive balance_due negative.
// Recording it is rejected; the caller receives the remaining balance and
// can resubmit a corrected amount.
var ErrOverpayment = errors.New("payment exceeds balance due")

// ErrRefundExceedsPaid means a refund would push amount_paid below zero.
var ErrRefundExceedsPaid = errors.New("refund exceeds amount paid")

// ErrInvoiceCancelled means the invoice is cancelled; cancelled is terminal
// and accepts no payments or transitions.
var ErrInvoiceCancelled = errors.New("invoice is cancelled")

// AmountPaid sums the payments recorded against an invoice.  Refunds are
// stored as negative amounts and subtract from the sum.
func AmountPaid(payments []model.Payment) money.Money {
	var total money.Money
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// BalanceDue is total_amount minus amount_paid.
func BalanceDue(total, paid money.Money) money.Money {
	return total.Sub(paid)
}

// DeriveStatus evaluates the user-facing status of an invoice from its
// stored phase, its payments and today's date.  Overdue is evaluated at
// read time against the due date, so two reads on either side of the due
// date's midnight may disagree; that is expected.
//
// Rules, first match wins:
//
//	cancelled                                  -> cancelled
//	balance_due <= 0                           -> paid
//	0 < amount_paid < total                    -> partially_paid
//	balance_due > 0 and today past due date    -> overdue (only once sent)
//	otherwise                                  -> sent or draft per phase
func DeriveStatus(inv model.Invoice, payments []model.Payment, today time.Time) InvoiceStatus {
	if inv.Phase == model.PhaseCancelled {
		return StatusCancelled
	}
	paid := AmountPaid(payments)
	due := BalanceDue(inv.TotalAmount, paid)

	if !due.IsPositive() {
		return StatusPaid
	}
	if paid.IsPositive() && paid.LessThan(inv.TotalAmount) {
		return StatusPartiallyPaid
	}
	if inv.Phase == model.PhaseSent && dayAfter(today, inv.DueDate) {
		return StatusOverdue
	}
	if inv.Phase == model.PhaseSent {
		return StatusSent
	}
	return StatusDraft
}

func dayAfter(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).After(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC))
}

// ValidatePayment checks a payment before it is recorded, inside the same
// transaction that holds the invoice lock.  paidSoFar is the current
// refund-aware sum of payments.  Positive amounts may not exceed the
// remaining balance; negative amounts (refunds) may not exceed what was
// actually paid.  Zero amounts are caught earlier by request validation.
func ValidatePayment(inv model.Invoice, paidSoFar, amount money.Money) error {
	if inv.Phase == model.PhaseCancelled {
		return ErrInvoiceCancelled
	}
	after := paidSoFar.Add(amount)
	if amount.IsPositive() && after.GreaterThan(inv.TotalAmount) {
		return ErrOverpayment
	}
	if amount.IsNegative() && after.IsNegative() {
		return ErrRefundExceedsPaid
	}
	return nil
}
