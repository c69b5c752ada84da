package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ekurt/tour-operator-core/internal/ledger"
	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
	"github.com/ekurt/tour-operator-core/internal/queue"
	"github.com/ekurt/tour-operator-core/internal/repository"
	queuepublisher "github.com/ekurt/tour-operator-core/internal/service"
)

// InvoiceHandler exposes invoices and their payment ledger.  Invoice
// status is derived on every read from the stored phase, the payment
// records and the due date; only draft, sent and cancelled are ever
// persisted.  Payment writes lock the invoice row so the overpayment
// check cannot race.
type InvoiceHandler struct {
	InvoiceRepo *repository.InvoiceRepo
}

// NewInvoiceHandler constructs an InvoiceHandler.  The repository must be
// non-nil.
func NewInvoiceHandler(invoiceRepo *repository.InvoiceRepo) *InvoiceHandler {
	if invoiceRepo == nil {
		panic("nil repository passed to NewInvoiceHandler")
	}
	return &InvoiceHandler{InvoiceRepo: invoiceRepo}
}

type invoiceItemBody struct {
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// CreateInvoice handles POST /v1/invoices.  With line items the total is
// derived from them; without items total_amount must be given.  The total
// must be positive.  Returns 409 when the invoice number is taken.
func (h *InvoiceHandler) CreateInvoice(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Kind         string            `json:"kind"`
		BookingID    *uint64           `json:"booking_id"`
		Number       string            `json:"invoice_number"`
		CustomerName string            `json:"customer_name"`
		Currency     string            `json:"currency"`
		TotalAmount  string            `json:"total_amount"`
		InvoiceDate  string            `json:"invoice_date"`
		DueDate      string            `json:"due_date"`
		Notes        string            `json:"notes"`
		Items        []invoiceItemBody `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	kind := model.InvoiceKind(body.Kind)
	if kind == "" {
		kind = model.InvoiceCustomer
	}
	if kind != model.InvoiceCustomer && kind != model.InvoiceSupplier {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be customer or supplier"})
	}
	if body.Number == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice_number is required"})
	}
	if body.CustomerName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name is required"})
	}
	if body.Currency == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency is required"})
	}
	invoiceDate, ok := parseDate(body.InvoiceDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice_date must be YYYY-MM-DD"})
	}
	dueDate, ok := parseDate(body.DueDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "due_date must be YYYY-MM-DD"})
	}
	if dueDate.Before(invoiceDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "due_date is before invoice_date"})
	}

	items := make([]model.InvoiceItem, 0, len(body.Items))
	total := money.Zero(body.Currency)
	for _, item := range body.Items {
		if item.Description == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item description is required"})
		}
		if item.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "item quantity must be positive"})
		}
		unit, err := money.FromString(item.UnitPrice, body.Currency)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item unit_price"})
		}
		lineTotal := unit.MulInt(item.Quantity)
		total = total.Add(lineTotal)
		items = append(items, model.InvoiceItem{
			Description: item.Description,
			UnitPrice:   unit,
			Quantity:    item.Quantity,
			Total:       lineTotal,
		})
	}
	if len(items) == 0 {
		if body.TotalAmount == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_amount or items are required"})
		}
		total, err = money.FromString(body.TotalAmount, body.Currency)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid total_amount"})
		}
	}
	if !total.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_amount must be positive"})
	}

	inv := &model.Invoice{
		Kind:         kind,
		BookingID:    body.BookingID,
		Number:       body.Number,
		CustomerName: body.CustomerName,
		Currency:     body.Currency,
		TotalAmount:  total,
		InvoiceDate:  invoiceDate,
		DueDate:      dueDate,
		Phase:        model.PhaseDraft,
		Notes:        body.Notes,
	}
	created, err := h.InvoiceRepo.Create(c.Request().Context(), org, inv, items)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "invoice number already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create invoice"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": invoiceJSON(created, nil)})
}

// ListInvoices handles GET /v1/invoices.  Optional kind query parameter
// filters customer or supplier invoices.  Each row carries its derived
// status and refund-aware amount_paid.
func (h *InvoiceHandler) ListInvoices(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	kind := model.InvoiceKind(c.QueryParam("kind"))
	if kind != "" && kind != model.InvoiceCustomer && kind != model.InvoiceSupplier {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be customer or supplier"})
	}
	invoices, paidSums, err := h.InvoiceRepo.List(c.Request().Context(), org, kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load invoices"})
	}
	now := time.Now().UTC()
	items := make([]echo.Map, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		paid := paidSums[i]
		m := invoiceJSON(inv, nil)
		m["status"] = string(deriveStatusFromSum(inv, paid, now))
		m["amount_paid"] = paid
		m["balance_due"] = ledger.BalanceDue(inv.TotalAmount, paid)
		items = append(items, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetInvoice handles GET /v1/invoices/:id with items, payments and all
// derived figures.
func (h *InvoiceHandler) GetInvoice(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	ctx := c.Request().Context()
	inv, err := h.InvoiceRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load invoice"})
	}
	items, err := h.InvoiceRepo.ListItems(ctx, inv.ID, inv.Currency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load items"})
	}
	payments, err := h.InvoiceRepo.ListPayments(ctx, org, inv.ID, inv.Currency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
	}
	paid := ledger.AmountPaid(payments)
	m := invoiceJSON(inv, items)
	m["status"] = string(ledger.DeriveStatus(*inv, payments, time.Now().UTC()))
	m["amount_paid"] = paid.WithCurrency(inv.Currency)
	m["balance_due"] = ledger.BalanceDue(inv.TotalAmount, paid.WithCurrency(inv.Currency))
	m["payments"] = paymentsJSON(payments)
	return c.JSON(http.StatusOK, echo.Map{"item": m})
}

// SendInvoice handles POST /v1/invoices/:id/send.  Only a draft can be
// sent; 409 otherwise.
func (h *InvoiceHandler) SendInvoice(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	if err := h.InvoiceRepo.MarkSent(c.Request().Context(), org, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "only draft invoices can be sent"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send invoice"})
	}
	return c.JSON(http.StatusOK, echo.Map{"phase": string(model.PhaseSent)})
}

// CancelInvoice handles POST /v1/invoices/:id/cancel.  Cancelled is
// terminal: the invoice accepts no further payments or transitions.
func (h *InvoiceHandler) CancelInvoice(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	if err := h.InvoiceRepo.Cancel(c.Request().Context(), org, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "invoice is already cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel invoice"})
	}
	return c.JSON(http.StatusOK, echo.Map{"phase": string(model.PhaseCancelled)})
}

// RecordPayment handles POST /v1/invoices/:id/payments.  A negative
// amount records a refund.  The invoice row is locked, prior payments are
// summed and the amount validated inside the same transaction, so a
// concurrent payment cannot slip past the overpayment check.
func (h *InvoiceHandler) RecordPayment(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	var body struct {
		Amount    string `json:"amount"`
		Method    string `json:"payment_method"`
		Reference string `json:"reference_number"`
		Date      string `json:"payment_date"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	date, ok := parseDate(body.Date)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_date must be YYYY-MM-DD"})
	}

	ctx := c.Request().Context()
	tx, err := h.InvoiceRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	inv, err := h.InvoiceRepo.LockInvoiceTx(ctx, tx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock invoice"})
	}
	amount, err := money.FromString(body.Amount, inv.Currency)
	if err != nil || amount.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a non-zero decimal"})
	}
	paidSoFar, err := h.InvoiceRepo.SumPaymentsTx(ctx, tx, inv.ID, inv.Currency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sum payments"})
	}
	if err := ledger.ValidatePayment(*inv, paidSoFar, amount); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvoiceCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "invoice is cancelled"})
		case errors.Is(err, ledger.ErrOverpayment):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error":       "payment exceeds balance due",
				"balance_due": ledger.BalanceDue(inv.TotalAmount, paidSoFar),
			})
		case errors.Is(err, ledger.ErrRefundExceedsPaid):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error":       "refund exceeds amount paid",
				"amount_paid": paidSoFar,
			})
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}
	payment := &model.Payment{
		InvoiceID: inv.ID,
		Amount:    amount,
		Method:    body.Method,
		Reference: body.Reference,
		Date:      date,
	}
	if err := h.InvoiceRepo.InsertPaymentTx(ctx, tx, org, payment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record payment"})
	}
	committedAt := time.Now().UTC()
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	paid := paidSoFar.Add(amount)
	due := ledger.BalanceDue(inv.TotalAmount, paid)
	status := deriveStatusFromSum(inv, paid, committedAt)

	_ = queuepublisher.PublishPaymentRecorded(ctx, queue.PaymentRecordedEvent{
		PaymentID:     payment.ID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		OrgID:         org.OrgID,
		Amount:        amount.Amount().String(),
		Currency:      inv.Currency,
		Method:        body.Method,
		BalanceDue:    due.Amount().String(),
		Status:        string(status),
		RecordedAt:    committedAt.Format(time.RFC3339),
	})
	if status == ledger.StatusPaid {
		_ = queuepublisher.PublishInvoicePaid(ctx, queue.InvoicePaidEvent{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			OrgID:         org.OrgID,
			CustomerName:  inv.CustomerName,
			Total:         inv.TotalAmount.Amount().String(),
			Currency:      inv.Currency,
			PaidAt:        committedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment_id":  payment.ID,
		"amount":      amount,
		"amount_paid": paid,
		"balance_due": due,
		"status":      string(status),
	})
}

// ListPayments handles GET /v1/invoices/:id/payments.
func (h *InvoiceHandler) ListPayments(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	ctx := c.Request().Context()
	inv, err := h.InvoiceRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load invoice"})
	}
	payments, err := h.InvoiceRepo.ListPayments(ctx, org, inv.ID, inv.Currency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
	}
	paid := ledger.AmountPaid(payments).WithCurrency(inv.Currency)
	return c.JSON(http.StatusOK, echo.Map{
		"items":       paymentsJSON(payments),
		"amount_paid": paid,
		"balance_due": ledger.BalanceDue(inv.TotalAmount, paid),
	})
}

// DeletePayment handles DELETE /v1/invoices/:id/payments/:pid, the
// correcting removal of a mis-entered payment.  Runs under the invoice
// lock like any other payment write.
func (h *InvoiceHandler) DeletePayment(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	paymentID, ok := pathID(c, "pid")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}
	ctx := c.Request().Context()
	tx, err := h.InvoiceRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := h.InvoiceRepo.LockInvoiceTx(ctx, tx, org, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock invoice"})
	}
	if err := h.InvoiceRepo.DeletePaymentTx(ctx, tx, org, id, paymentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete payment"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}

// InvoiceStats handles GET /v1/invoices/stats?from=&to=.  Per-currency
// count, invoiced and paid totals for each invoice kind over the window,
// defaulting to the current month.  Cancelled invoices are excluded.
func (h *InvoiceHandler) InvoiceStats(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	if s := c.QueryParam("from"); s != "" {
		f, ok := parseDate(s)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be YYYY-MM-DD"})
		}
		from = f
	}
	if s := c.QueryParam("to"); s != "" {
		t, ok := parseDate(s)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be YYYY-MM-DD"})
		}
		to = t
	}
	if to.Before(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to is before from"})
	}

	ctx := c.Request().Context()
	customer, err := h.InvoiceRepo.SumByKind(ctx, org, model.InvoiceCustomer, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load customer invoices"})
	}
	supplier, err := h.InvoiceRepo.SumByKind(ctx, org, model.InvoiceSupplier, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load supplier invoices"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
		"customer": customer,
		"supplier": supplier,
	})
}

// deriveStatusFromSum derives the invoice status when only the payment sum
// is at hand, not the individual payments.  Equivalent to
// ledger.DeriveStatus because only the sum matters to the rules.
func deriveStatusFromSum(inv *model.Invoice, paid money.Money, now time.Time) ledger.InvoiceStatus {
	synthetic := []model.Payment{}
	if !paid.IsZero() {
		synthetic = append(synthetic, model.Payment{Amount: paid})
	}
	return ledger.DeriveStatus(*inv, synthetic, now)
}

func invoiceJSON(inv *model.Invoice, items []model.InvoiceItem) echo.Map {
	m := echo.Map{
		"id":             inv.ID,
		"kind":           string(inv.Kind),
		"invoice_number": inv.Number,
		"customer_name":  inv.CustomerName,
		"currency":       inv.Currency,
		"total_amount":   inv.TotalAmount,
		"invoice_date":   inv.InvoiceDate.Format("2006-01-02"),
		"due_date":       inv.DueDate.Format("2006-01-02"),
		"phase":          string(inv.Phase),
		"notes":          inv.Notes,
		"created_at":     inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.BookingID != nil {
		m["booking_id"] = *inv.BookingID
	}
	if items != nil {
		lines := make([]echo.Map, 0, len(items))
		for _, item := range items {
			lines = append(lines, echo.Map{
				"id":          item.ID,
				"description": item.Description,
				"unit_price":  item.UnitPrice,
				"quantity":    item.Quantity,
				"total_price": item.Total,
			})
		}
		m["items"] = lines
	}
	return m
}

func paymentsJSON(payments []model.Payment) []echo.Map {
	out := make([]echo.Map, 0, len(payments))
	for _, p := range payments {
		out = append(out, echo.Map{
			"id":               p.ID,
			"amount":           p.Amount,
			"payment_method":   p.Method,
			"reference_number": p.Reference,
			"payment_date":     p.Date.Format("2006-01-02"),
			"created_at":       p.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
