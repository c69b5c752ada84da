package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ekurt/tour-operator-core/internal/money"
	"github.com/ekurt/tour-operator-core/internal/quote"
	"github.com/ekurt/tour-operator-core/internal/repository"
)

// QuoteHandler exposes itinerary building and editing.  Every edit loads
// the itinerary, applies the change through the assembler so all derived
// totals are re-derived, and persists the result in one transaction; a
// concurrent reader never sees an itinerary whose totals lag its items.
type QuoteHandler struct {
	ItineraryRepo *repository.ItineraryRepo
}

// NewQuoteHandler constructs a QuoteHandler.  The repository must be
// non-nil.
func NewQuoteHandler(itineraryRepo *repository.ItineraryRepo) *QuoteHandler {
	if itineraryRepo == nil {
		panic("nil repository passed to NewQuoteHandler")
	}
	return &QuoteHandler{ItineraryRepo: itineraryRepo}
}

type itineraryItemBody struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	UnitPrice string `json:"price_per_unit"`
	Quantity  int    `json:"quantity"`
}

type itineraryDayBody struct {
	Title string              `json:"title"`
	Items []itineraryItemBody `json:"items"`
}

// CreateItinerary handles POST /v1/itineraries.  The request carries the
// customer header, the party split and the day/item structure; all totals
// are derived server-side before the insert.
func (h *QuoteHandler) CreateItinerary(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		RequestID    *uint64            `json:"request_id"`
		CustomerName string             `json:"customer_name"`
		Adults       int                `json:"adults"`
		Children     int                `json:"children"`
		Currency     string             `json:"currency"`
		Days         []itineraryDayBody `json:"days"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CustomerName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name is required"})
	}
	if body.Currency == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency is required"})
	}
	if body.Adults < 0 || body.Children < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "party sizes cannot be negative"})
	}

	it := &quote.Itinerary{
		RequestID:    body.RequestID,
		CustomerName: body.CustomerName,
		Adults:       body.Adults,
		Children:     body.Children,
		Currency:     body.Currency,
		Status:       quote.StatusDraft,
		Days:         make([]quote.Day, 0, len(body.Days)),
	}
	for i, d := range body.Days {
		day := quote.Day{Number: i + 1, Title: d.Title, Items: make([]quote.Item, 0, len(d.Items))}
		for _, item := range d.Items {
			parsed, errMsg := parseItem(item, body.Currency)
			if errMsg != "" {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
			}
			day.Items = append(day.Items, parsed)
		}
		it.Days = append(it.Days, day)
	}
	quote.NewAssembler(it) // derives item, day and grand totals

	if err := h.ItineraryRepo.Create(c.Request().Context(), org, it); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create itinerary"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": it})
}

// ListItineraries handles GET /v1/itineraries.
func (h *QuoteHandler) ListItineraries(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.ItineraryRepo.List(c.Request().Context(), org)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load itineraries"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetItinerary handles GET /v1/itineraries/:id with full day and item
// detail.
func (h *QuoteHandler) GetItinerary(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid itinerary id"})
	}
	it, err := h.ItineraryRepo.GetByID(c.Request().Context(), org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "itinerary not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load itinerary"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": it})
}

// AddItem handles POST /v1/itineraries/:id/days/:day/items.  Day is the
// 1-based day number.
func (h *QuoteHandler) AddItem(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid itinerary id"})
	}
	dayIdx, ok := dayIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day number"})
	}
	var body itineraryItemBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	it, err := h.ItineraryRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "itinerary not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load itinerary"})
	}
	item, errMsg := parseItem(body, it.Currency)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}
	asm := quote.NewAssembler(it)
	if err := asm.AddItem(dayIdx, item); err != nil {
		return quoteEditError(c, err)
	}
	if err := h.ItineraryRepo.Save(ctx, org, it); err != nil {
		return quoteSaveError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": it})
}

// UpdateItem handles PATCH /v1/itineraries/:id/days/:day/items/:pos.  The
// body carries one or more of price_per_unit, quantity and name; each is
// applied through the assembler so totals are re-derived before
// persisting.
func (h *QuoteHandler) UpdateItem(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid itinerary id"})
	}
	dayIdx, ok := dayIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day number"})
	}
	itemIdx, ok := itemIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item position"})
	}
	var body struct {
		UnitPrice *string `json:"price_per_unit"`
		Quantity  *int    `json:"quantity"`
		Name      *string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.UnitPrice == nil && body.Quantity == nil && body.Name == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	ctx := c.Request().Context()
	it, err := h.ItineraryRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "itinerary not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load itinerary"})
	}
	asm := quote.NewAssembler(it)
	if body.UnitPrice != nil {
		p, err := money.FromString(*body.UnitPrice, it.Currency)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid price_per_unit"})
		}
		if err := asm.SetItemField(dayIdx, itemIdx, quote.FieldUnitPrice, p); err != nil {
			return quoteEditError(c, err)
		}
	}
	if body.Quantity != nil {
		if err := asm.SetItemField(dayIdx, itemIdx, quote.FieldQuantity, *body.Quantity); err != nil {
			return quoteEditError(c, err)
		}
	}
	if body.Name != nil {
		if err := asm.SetItemField(dayIdx, itemIdx, quote.FieldName, *body.Name); err != nil {
			return quoteEditError(c, err)
		}
	}
	if err := h.ItineraryRepo.Save(ctx, org, it); err != nil {
		return quoteSaveError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": it})
}

// RemoveItem handles DELETE /v1/itineraries/:id/days/:day/items/:pos.
func (h *QuoteHandler) RemoveItem(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid itinerary id"})
	}
	dayIdx, ok := dayIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day number"})
	}
	itemIdx, ok := itemIndex(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item position"})
	}
	ctx := c.Request().Context()
	it, err := h.ItineraryRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "itinerary not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load itinerary"})
	}
	asm := quote.NewAssembler(it)
	if err := asm.RemoveItem(dayIdx, itemIdx); err != nil {
		return quoteEditError(c, err)
	}
	if err := h.ItineraryRepo.Save(ctx, org, it); err != nil {
		return quoteSaveError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": it})
}

// ConfirmItinerary handles POST /v1/itineraries/:id/confirm, freezing the
// quote.  Confirmed itineraries reject every further edit with 409.
func (h *QuoteHandler) ConfirmItinerary(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid itinerary id"})
	}
	if err := h.ItineraryRepo.Confirm(c.Request().Context(), org, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "itinerary not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "itinerary is already confirmed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm itinerary"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(quote.StatusConfirmed)})
}

func parseItem(body itineraryItemBody, currency string) (quote.Item, string) {
	if body.Name == "" {
		return quote.Item{}, "item name is required"
	}
	if body.Quantity < 0 {
		return quote.Item{}, "quantity cannot be negative"
	}
	price, err := money.FromString(body.UnitPrice, currency)
	if err != nil {
		return quote.Item{}, "invalid price_per_unit"
	}
	return quote.Item{
		Type:      body.Type,
		Name:      body.Name,
		UnitPrice: price,
		Quantity:  body.Quantity,
	}, ""
}

// dayIndex converts the 1-based :day path parameter into a slice index.
func dayIndex(c echo.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("day"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// itemIndex parses the 0-based :pos path parameter.
func itemIndex(c echo.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("pos"))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func quoteEditError(c echo.Context, err error) error {
	if errors.Is(err, quote.ErrReadOnly) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "itinerary is confirmed and read-only"})
	}
	if errors.Is(err, quote.ErrNoSuchItem) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no such day or item"})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

func quoteSaveError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "itinerary is confirmed and read-only"})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "itinerary not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save itinerary"})
}
