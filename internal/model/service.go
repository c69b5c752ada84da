package model

import (
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// Service identifies one sellable service in the catalog: a hotel, tour,
// vehicle, guide, restaurant meal or additional service.  Its identity is
// immutable; name, city and the active flag are mutable attributes.
//
// Fields:
//
//	ID         – primary key identifier.
//	OrgID      – owning organization.
//	Kind       – service category (hotel, tour, vehicle, guide, meal, additional).
//	Name       – display name, e.g. "Sultanahmet Palace Hotel".
//	City       – city the service operates in.
//	Active     – inactive services are hidden from resolution and listings.
//	BasePrice  – optional default price, a lower-priority fallback the
//	             caller may use when no seasonal variation applies.
//	Currency   – currency of BasePrice.
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Service struct {
	ID        uint64       // services.id
	OrgID     uint64       // services.organization_id
	Kind      string       // services.kind
	Name      string       // services.name
	City      string       // services.city
	Active    bool         // services.active
	BasePrice *money.Money // services.base_price (nullable)
	Currency  string       // services.currency
	CreatedAt time.Time    // services.created_at
	UpdatedAt time.Time    // services.updated_at
}
