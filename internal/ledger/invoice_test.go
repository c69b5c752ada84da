package ledger

import (
	"testing"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

func pay(amount string) model.Payment {
	return model.Payment{Amount: eur(amount)}
}

func inv(total string, phase model.InvoicePhase, due string) model.Invoice {
	d, _ := time.Parse("2006-01-02", due)
	return model.Invoice{TotalAmount: eur(total), Phase: phase, DueDate: d}
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestAmountPaidWithRefunds(t *testing.T) {
	got := AmountPaid([]model.Payment{pay("300"), pay("-100"), pay("50")})
	if got.Amount().String() != "250" {
		t.Errorf("AmountPaid = %s, want 250", got.Amount())
	}
}

func TestBalanceDue(t *testing.T) {
	got := BalanceDue(eur("1000"), eur("400"))
	if got.Amount().String() != "600" {
		t.Errorf("BalanceDue = %s, want 600", got.Amount())
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		invoice  model.Invoice
		payments []model.Payment
		today    string
		want     InvoiceStatus
	}{
		{"fresh draft", inv("1000", model.PhaseDraft, "2026-02-01"), nil, "2026-01-01", StatusDraft},
		{"sent unpaid", inv("1000", model.PhaseSent, "2026-02-01"), nil, "2026-01-01", StatusSent},
		{"partial", inv("1000", model.PhaseSent, "2026-02-01"), []model.Payment{pay("400")}, "2026-01-01", StatusPartiallyPaid},
		{"paid exactly", inv("1000", model.PhaseSent, "2026-02-01"), []model.Payment{pay("1000")}, "2026-01-01", StatusPaid},
		{"overdue unpaid", inv("1000", model.PhaseSent, "2026-02-01"), nil, "2026-02-02", StatusOverdue},
		{"due date itself is not overdue", inv("1000", model.PhaseSent, "2026-02-01"), nil, "2026-02-01", StatusSent},
		{"partial takes precedence over overdue", inv("1000", model.PhaseSent, "2026-02-01"), []model.Payment{pay("400")}, "2026-03-01", StatusPartiallyPaid},
		{"cancelled is terminal", inv("1000", model.PhaseCancelled, "2026-02-01"), []model.Payment{pay("1000")}, "2026-01-01", StatusCancelled},
		{"paid stays paid past due date", inv("1000", model.PhaseSent, "2026-02-01"), []model.Payment{pay("1000")}, "2026-03-01", StatusPaid},
		{"refund can reopen partial", inv("1000", model.PhaseSent, "2026-02-01"), []model.Payment{pay("1000"), pay("-300")}, "2026-01-01", StatusPartiallyPaid},
	}
	for _, c := range cases {
		if got := DeriveStatus(c.invoice, c.payments, day(c.today)); got != c.want {
			t.Errorf("%s: DeriveStatus = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestValidatePaymentOverpayment(t *testing.T) {
	invoice := inv("1000", model.PhaseSent, "2026-02-01")

	// fills the balance exactly: fine
	if err := ValidatePayment(invoice, eur("400"), eur("600")); err != nil {
		t.Errorf("exact settlement rejected: %v", err)
	}
	// one cent over: rejected, never silently clamped
	if err := ValidatePayment(invoice, eur("400"), eur("600.01")); err != ErrOverpayment {
		t.Errorf("err = %v, want ErrOverpayment", err)
	}
	// paying a paid invoice again: rejected
	if err := ValidatePayment(invoice, eur("1000"), eur("0.01")); err != ErrOverpayment {
		t.Errorf("err = %v, want ErrOverpayment", err)
	}
}

func TestValidatePaymentRefunds(t *testing.T) {
	invoice := inv("1000", model.PhaseSent, "2026-02-01")

	if err := ValidatePayment(invoice, eur("400"), eur("-400")); err != nil {
		t.Errorf("full refund rejected: %v", err)
	}
	if err := ValidatePayment(invoice, eur("400"), eur("-400.01")); err != ErrRefundExceedsPaid {
		t.Errorf("err = %v, want ErrRefundExceedsPaid", err)
	}
}

func TestValidatePaymentCancelledInvoice(t *testing.T) {
	invoice := inv("1000", model.PhaseCancelled, "2026-02-01")
	if err := ValidatePayment(invoice, money.Zero("EUR"), eur("100")); err != ErrInvoiceCancelled {
		t.Errorf("err = %v, want ErrInvoiceCancelled", err)
	}
}
