package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/repository"
)

// ReportHandler exposes the financial summary: customer revenue versus
// supplier cost over a date window, netted into a gross profit per
// currency.  Amounts in different currencies are never folded together.
type ReportHandler struct {
	InvoiceRepo   *repository.InvoiceRepo
	ItineraryRepo *repository.ItineraryRepo
}

// NewReportHandler constructs a ReportHandler.  Dependencies must be
// non-nil.
func NewReportHandler(invoiceRepo *repository.InvoiceRepo, itineraryRepo *repository.ItineraryRepo) *ReportHandler {
	if invoiceRepo == nil || itineraryRepo == nil {
		panic("nil repository passed to NewReportHandler")
	}
	return &ReportHandler{InvoiceRepo: invoiceRepo, ItineraryRepo: itineraryRepo}
}

// FinancialSummary handles GET /v1/reports/financial-summary?from=&to=.
// Both bounds are inclusive YYYY-MM-DD business dates; the default window
// is the current month.  Cancelled invoices are excluded on both sides.
func (h *ReportHandler) FinancialSummary(c echo.Context) error {
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
	revenue, err := h.InvoiceRepo.SumByKind(ctx, org, model.InvoiceCustomer, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load customer invoices"})
	}
	cost, err := h.InvoiceRepo.SumByKind(ctx, org, model.InvoiceSupplier, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load supplier invoices"})
	}
	confirmed, err := h.ItineraryRepo.SumConfirmedTotals(ctx, org, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load itineraries"})
	}

	currencies := make(map[string]bool)
	for cur := range revenue {
		currencies[cur] = true
	}
	for cur := range cost {
		currencies[cur] = true
	}
	for cur := range confirmed {
		currencies[cur] = true
	}

	byCurrency := make(map[string]echo.Map, len(currencies))
	for cur := range currencies {
		rev := revenue[cur]
		cst := cost[cur]
		revInvoiced := rev.Invoiced.WithCurrency(cur)
		cstInvoiced := cst.Invoiced.WithCurrency(cur)
		byCurrency[cur] = echo.Map{
			"customer_invoices":    rev.Count,
			"revenue_invoiced":     revInvoiced,
			"revenue_collected":    rev.Paid.WithCurrency(cur),
			"supplier_invoices":    cst.Count,
			"cost_invoiced":        cstInvoiced,
			"cost_paid":            cst.Paid.WithCurrency(cur),
			"gross_profit":         revInvoiced.Sub(cstInvoiced),
			"confirmed_quotes":     confirmed[cur],
			"outstanding_revenue":  revInvoiced.Sub(rev.Paid.WithCurrency(cur)),
			"outstanding_payables": cstInvoiced.Sub(cst.Paid.WithCurrency(cur)),
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
		"by_currency": byCurrency,
	})
}
