package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
	"github.com/ekurt/tour-operator-core/internal/pricing"
	"github.com/ekurt/tour-operator-core/internal/repository"
)

// CatalogHandler groups the repositories backing the service catalog and
// the price resolution endpoint.  All methods assume JWT authentication
// has already been performed by middleware and scope every access by the
// organization from the token.
type CatalogHandler struct {
	ServiceRepo   *repository.ServiceRepo
	VariationRepo *repository.VariationRepo
	Resolver      *pricing.Resolver
}

// NewCatalogHandler constructs a CatalogHandler.  All dependencies must be
// non-nil.
func NewCatalogHandler(serviceRepo *repository.ServiceRepo, variationRepo *repository.VariationRepo, resolver *pricing.Resolver) *CatalogHandler {
	if serviceRepo == nil || variationRepo == nil || resolver == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{ServiceRepo: serviceRepo, VariationRepo: variationRepo, Resolver: resolver}
}

type serviceBody struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	City      string `json:"city"`
	BasePrice string `json:"base_price"`
	Currency  string `json:"currency"`
}

// CreateService handles POST /v1/services.  It registers a sellable
// service; kind must be one of the known categories.  Returns 201 with the
// stored service.
func (h *CatalogHandler) CreateService(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body serviceBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if !pricing.ValidKind(pricing.Kind(body.Kind)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown service kind"})
	}
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	s := &model.Service{
		Kind:     body.Kind,
		Name:     body.Name,
		City:     body.City,
		Active:   true,
		Currency: body.Currency,
	}
	if body.BasePrice != "" {
		if body.Currency == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency is required with base_price"})
		}
		p, err := money.FromString(body.BasePrice, body.Currency)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid base_price"})
		}
		s.BasePrice = &p
	}
	if err := h.ServiceRepo.Create(c.Request().Context(), org, s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create service"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": serviceJSON(s)})
}

// ListServices handles GET /v1/services.  Optional query parameters: kind
// filters by category, active=true hides deactivated services.
func (h *CatalogHandler) ListServices(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	kind := c.QueryParam("kind")
	if kind != "" && !pricing.ValidKind(pricing.Kind(kind)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown service kind"})
	}
	activeOnly := c.QueryParam("active") == "true"
	services, err := h.ServiceRepo.List(c.Request().Context(), org, kind, activeOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load services"})
	}
	items := make([]echo.Map, 0, len(services))
	for i := range services {
		items = append(items, serviceJSON(&services[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetService handles GET /v1/services/:id.
func (h *CatalogHandler) GetService(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}
	s, err := h.ServiceRepo.GetByID(c.Request().Context(), org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load service"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": serviceJSON(s)})
}

// UpdateService handles PUT /v1/services/:id.  Kind is immutable; name,
// city, base price and currency can change.
func (h *CatalogHandler) UpdateService(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}
	ctx := c.Request().Context()
	s, err := h.ServiceRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load service"})
	}
	var body serviceBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Kind != "" && body.Kind != s.Kind {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service kind cannot change"})
	}
	if body.Name != "" {
		s.Name = body.Name
	}
	if body.City != "" {
		s.City = body.City
	}
	if body.Currency != "" {
		s.Currency = body.Currency
	}
	if body.BasePrice != "" {
		p, err := money.FromString(body.BasePrice, s.Currency)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid base_price"})
		}
		s.BasePrice = &p
	}
	if err := h.ServiceRepo.Update(ctx, org, s); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": serviceJSON(s)})
}

// SetServiceActive handles PATCH /v1/services/:id/active with body
// {"active": bool}.  Deactivated services keep their variations but drop
// out of listings and resolution.
func (h *CatalogHandler) SetServiceActive(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil || body.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active is required"})
	}
	if err := h.ServiceRepo.SetActive(c.Request().Context(), org, id, *body.Active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service"})
	}
	return c.JSON(http.StatusOK, echo.Map{"active": *body.Active})
}

type variationBody struct {
	SeasonName string          `json:"season_name"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	Currency   string          `json:"currency"`
	Rates      json.RawMessage `json:"rates"`
}

// CreateVariation handles POST /v1/services/:id/variations.  The rates
// object is decoded against the service's kind.  Overlapping active
// seasons are allowed and reported back as a warning; resolution handles
// them deterministically at read time.
func (h *CatalogHandler) CreateVariation(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	serviceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}
	ctx := c.Request().Context()
	svc, err := h.ServiceRepo.GetByID(ctx, org, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load service"})
	}
	var body variationBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	season, rates, errMsg := parseVariationBody(pricing.Kind(svc.Kind), body)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}

	v := &pricing.Variation{
		ServiceID: serviceID,
		Season:    season,
		Currency:  body.Currency,
		Status:    pricing.StatusActive,
		Rates:     rates,
	}
	existing, err := h.VariationRepo.VariationsByService(ctx, org, serviceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load variations"})
	}
	if err := h.VariationRepo.Create(ctx, org, v); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create variation"})
	}
	resp := echo.Map{"item": variationJSON(v)}
	if overlaps := overlapWarnings(existing, season, 0); len(overlaps) > 0 {
		resp["warnings"] = overlaps
	}
	return c.JSON(http.StatusCreated, resp)
}

// ListVariations handles GET /v1/services/:id/variations, returning all
// variations of the service including archived ones, in season order.
func (h *CatalogHandler) ListVariations(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	serviceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}
	ctx := c.Request().Context()
	if _, err := h.ServiceRepo.GetByID(ctx, org, serviceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load service"})
	}
	variations, err := h.VariationRepo.VariationsByService(ctx, org, serviceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load variations"})
	}
	items := make([]echo.Map, 0, len(variations))
	for i := range variations {
		items = append(items, variationJSON(&variations[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// UpdateVariation handles PUT /v1/variations/:id.  The rate shape stays
// bound to the service's kind; season, currency and rates can change.
// Updating bumps updated_at, which also promotes the variation in the
// overlap tie-break.
func (h *CatalogHandler) UpdateVariation(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid variation id"})
	}
	ctx := c.Request().Context()
	v, err := h.VariationRepo.GetByID(ctx, org, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "variation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load variation"})
	}
	var body variationBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	season, rates, errMsg := parseVariationBody(v.Rates.Kind(), body)
	if errMsg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": errMsg})
	}
	v.Season = season
	v.Currency = body.Currency
	v.Rates = rates

	existing, err := h.VariationRepo.VariationsByService(ctx, org, v.ServiceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load variations"})
	}
	if err := h.VariationRepo.Update(ctx, org, v); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "variation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update variation"})
	}
	resp := echo.Map{"item": variationJSON(v)}
	if overlaps := overlapWarnings(existing, season, v.ID); len(overlaps) > 0 {
		resp["warnings"] = overlaps
	}
	return c.JSON(http.StatusOK, resp)
}

// ArchiveVariation handles POST /v1/variations/:id/archive.  Archived
// variations stay readable for history but never resolve.
func (h *CatalogHandler) ArchiveVariation(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid variation id"})
	}
	if err := h.VariationRepo.Archive(c.Request().Context(), org, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "variation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to archive variation"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": string(pricing.StatusArchived)})
}

// ResolvePrice handles POST /v1/prices/resolve.  It returns the seasonal
// unit price for a service, travel date, party size and mode.  When no
// active variation covers the date the service's base price is offered as
// a fallback when one exists; otherwise 404.
func (h *CatalogHandler) ResolvePrice(c echo.Context) error {
	org, err := getOrgContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ServiceID uint64 `json:"service_id"`
		Date      string `json:"date"`
		PartySize int    `json:"party_size"`
		Mode      string `json:"mode"`
	}
	if err := c.Bind(&body); err != nil || body.ServiceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service_id is required"})
	}
	date, ok := parseDate(body.Date)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	if body.PartySize <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "party_size must be positive"})
	}
	ctx := c.Request().Context()
	svc, err := h.ServiceRepo.GetByID(ctx, org, body.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load service"})
	}

	price, v, err := h.Resolver.Resolve(ctx, org, body.ServiceID, date, body.PartySize, pricing.Mode(body.Mode))
	if err == nil {
		return c.JSON(http.StatusOK, echo.Map{
			"source":       "season",
			"price":        price,
			"season_name":  v.Season.Name,
			"variation_id": v.ID,
		})
	}
	if errors.Is(err, pricing.ErrUnknownMode) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "mode must be SIC or PVT"})
	}
	if !errors.Is(err, pricing.ErrNoApplicablePrice) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve price"})
	}
	if svc.BasePrice != nil {
		return c.JSON(http.StatusOK, echo.Map{
			"source": "base_price",
			"price":  *svc.BasePrice,
		})
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "no applicable price for date"})
}

func parseVariationBody(kind pricing.Kind, body variationBody) (pricing.Season, pricing.Rates, string) {
	start, ok := parseDate(body.StartDate)
	if !ok {
		return pricing.Season{}, nil, "start_date must be YYYY-MM-DD"
	}
	end, ok := parseDate(body.EndDate)
	if !ok {
		return pricing.Season{}, nil, "end_date must be YYYY-MM-DD"
	}
	if end.Before(start) {
		return pricing.Season{}, nil, "end_date is before start_date"
	}
	if body.SeasonName == "" {
		return pricing.Season{}, nil, "season_name is required"
	}
	if body.Currency == "" {
		return pricing.Season{}, nil, "currency is required"
	}
	if len(body.Rates) == 0 {
		return pricing.Season{}, nil, "rates is required"
	}
	rates, err := pricing.DecodeRates(kind, body.Rates)
	if err != nil {
		return pricing.Season{}, nil, "invalid rates for service kind"
	}
	return pricing.Season{Name: body.SeasonName, Start: start, End: end}, rates, ""
}

func overlapWarnings(existing []pricing.Variation, season pricing.Season, excludeID uint64) []echo.Map {
	overlaps := pricing.Overlapping(existing, season, excludeID)
	if len(overlaps) == 0 {
		return nil
	}
	out := make([]echo.Map, 0, len(overlaps))
	for _, o := range overlaps {
		out = append(out, echo.Map{
			"variation_id": o.ID,
			"season_name":  o.Season.Name,
			"start_date":   o.Season.Start.Format("2006-01-02"),
			"end_date":     o.Season.End.Format("2006-01-02"),
		})
	}
	return out
}

func serviceJSON(s *model.Service) echo.Map {
	m := echo.Map{
		"id":         s.ID,
		"kind":       s.Kind,
		"name":       s.Name,
		"city":       s.City,
		"active":     s.Active,
		"currency":   s.Currency,
		"created_at": s.CreatedAt.Format(time.RFC3339),
		"updated_at": s.UpdatedAt.Format(time.RFC3339),
	}
	if s.BasePrice != nil {
		m["base_price"] = *s.BasePrice
	}
	return m
}

func variationJSON(v *pricing.Variation) echo.Map {
	return echo.Map{
		"id":          v.ID,
		"service_id":  v.ServiceID,
		"season_name": v.Season.Name,
		"start_date":  v.Season.Start.Format("2006-01-02"),
		"end_date":    v.Season.End.Format("2006-01-02"),
		"currency":    v.Currency,
		"status":      string(v.Status),
		"kind":        string(v.Rates.Kind()),
		"rates":       v.Rates,
		"created_at":  v.CreatedAt.Format(time.RFC3339),
		"updated_at":  v.UpdatedAt.Format(time.RFC3339),
	}
}
