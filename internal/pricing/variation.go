package pricing

import (
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// Status marks whether a variation participates in resolution.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Variation is one dated, currency-tagged price record for a service.
// The rate shape differs per service kind and lives behind the Rates
// interface.
//
// Fields:
//
//	ID        – primary key identifier.
//	OrgID     – owning organization; every read is scoped by it.
//	ServiceID – service this variation prices.
//	Season    – inclusive validity window.
//	Currency  – ISO code all rate amounts are denominated in.
//	Status    – active variations resolve; archived ones are kept for history.
//	Rates     – kind-specific price fields.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp; the resolution tie-break key.
type Variation struct {
	ID        uint64
	OrgID     uint64
	ServiceID uint64
	Season    Season
	Currency  string
	Status    Status
	Rates     Rates
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceFor resolves the unit price this variation yields for a date, party
// size and mode.  The returned amount carries the variation's currency.
func (v *Variation) PriceFor(date time.Time, partySize int, mode Mode) (money.Money, error) {
	p, err := v.Rates.PriceFor(date, partySize, mode)
	if err != nil {
		return money.Money{}, err
	}
	return p.WithCurrency(v.Currency), nil
}

// applicable reports whether the variation can price the given date.
func (v *Variation) applicable(date time.Time) bool {
	return v.Status == StatusActive && v.Season.Contains(date)
}

// Overlapping returns the variations whose season shares at least one day
// with the given window, skipping the variation identified by excludeID.
// The catalog write path reports these back to the caller as a warning;
// overlap is resolved deterministically at read time, not rejected at write
// time.
func Overlapping(variations []Variation, season Season, excludeID uint64) []Variation {
	var out []Variation
	for _, v := range variations {
		if v.ID == excludeID || v.Status != StatusActive {
			continue
		}
		if v.Season.Overlaps(season) {
			out = append(out, v)
		}
	}
	return out
}
