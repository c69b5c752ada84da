// Package quote maintains day-by-day itineraries and keeps their derived
// totals consistent through every edit.
package quote

import (
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// ItineraryStatus gates editing: a confirmed itinerary is read-only.
type ItineraryStatus string

const (
	StatusDraft     ItineraryStatus = "draft"
	StatusConfirmed ItineraryStatus = "confirmed"
)

// Item is one priced line inside a day: a hotel night, a tour seat, a
// vehicle day...  Total is always UnitPrice x Quantity, re-derived on every
// mutation and never trusted from storage without recomputation.
type Item struct {
	ID        uint64      `json:"id"`
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"price_per_unit"`
	Quantity  int         `json:"quantity"`
	Total     money.Money `json:"total_price"`
}

// Day groups the items of one travel day in presentation order.
type Day struct {
	ID     uint64      `json:"id"`
	Number int         `json:"day_number"`
	Title  string      `json:"title"`
	Items  []Item      `json:"items"`
	Total  money.Money `json:"day_total"`
}

// Itinerary is the full quoted trip for one customer request.  GrandTotal
// and PerPerson are derived figures; they are persisted for fast listing
// but recomputed before every write.
type Itinerary struct {
	ID           uint64          `json:"id"`
	OrgID        uint64          `json:"-"`
	RequestID    *uint64         `json:"request_id,omitempty"`
	CustomerName string          `json:"customer_name"`
	Adults       int             `json:"adults"`
	Children     int             `json:"children"`
	Currency     string          `json:"currency"`
	Status       ItineraryStatus `json:"status"`
	Days         []Day           `json:"days"`
	GrandTotal   money.Money     `json:"total_price"`
	PerPerson    money.Money     `json:"price_per_person"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Travelers returns the total party size.
func (it *Itinerary) Travelers() int { return it.Adults + it.Children }
