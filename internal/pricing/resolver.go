package pricing

import (
	"context"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

// CatalogReader is the slice of the price catalog the resolver needs: the
// variations recorded for one service, in a single snapshot read.
type CatalogReader interface {
	VariationsByService(ctx context.Context, org model.OrgContext, serviceID uint64) ([]Variation, error)
}

// Resolver selects the single applicable variation for a service, travel
// date and party size.  It holds no state beyond the catalog handle and is
// safe for concurrent use.
type Resolver struct {
	catalog CatalogReader
}

// NewResolver returns a Resolver bound to the given catalog.
func NewResolver(catalog CatalogReader) *Resolver {
	if catalog == nil {
		panic("nil catalog passed to NewResolver")
	}
	return &Resolver{catalog: catalog}
}

// Resolve returns the unit price for the service on the travel date, along
// with the variation that produced it.  When no active variation covers the
// date it returns ErrNoApplicablePrice; falling back to a service's base
// price is the caller's decision.
func (r *Resolver) Resolve(ctx context.Context, org model.OrgContext, serviceID uint64, date time.Time, partySize int, mode Mode) (money.Money, *Variation, error) {
	variations, err := r.catalog.VariationsByService(ctx, org, serviceID)
	if err != nil {
		return money.Money{}, nil, err
	}
	v := Pick(variations, date)
	if v == nil {
		return money.Money{}, nil, ErrNoApplicablePrice
	}
	price, err := v.PriceFor(date, partySize, mode)
	if err != nil {
		return money.Money{}, nil, err
	}
	return price, v, nil
}

// Pick applies the resolution rule to a set of variations: keep active
// records whose season contains the date, and when windows overlap let the
// most recently updated record win, with the higher ID as the final
// tie-break.  Overlapping seasons are tolerated in the catalog, so the rule
// must be total and deterministic.
func Pick(variations []Variation, date time.Time) *Variation {
	var best *Variation
	for i := range variations {
		v := &variations[i]
		if !v.applicable(date) {
			continue
		}
		if best == nil || newer(v, best) {
			best = v
		}
	}
	return best
}

func newer(a, b *Variation) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}
