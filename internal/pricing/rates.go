package pricing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// Mode selects how a tour is delivered: shared seat-in-coach or private.
type Mode string

const (
	ModeSIC Mode = "SIC" // shared, seat-in-coach
	ModePVT Mode = "PVT" // private
)

// Kind identifies the sellable service category a variation prices.
type Kind string

const (
	KindHotel      Kind = "hotel"
	KindTour       Kind = "tour"
	KindVehicle    Kind = "vehicle"
	KindGuide      Kind = "guide"
	KindMeal       Kind = "meal"
	KindAdditional Kind = "additional"
)

// ValidKind reports whether k names a known service category.
func ValidKind(k Kind) bool {
	switch k {
	case KindHotel, KindTour, KindVehicle, KindGuide, KindMeal, KindAdditional:
		return true
	}
	return false
}

// ErrNoApplicablePrice is returned when no active variation covers the
// requested date, or a bracket table has no usable entry.  Callers decide
// whether to fall back to a service's base price; the resolver never does.
var ErrNoApplicablePrice = errors.New("no applicable price")

// ErrUnknownMode is returned for a mode other than SIC or PVT on
// bracket-priced services.
var ErrUnknownMode = errors.New("unknown service mode")

// Rates is the per-kind price shape of a variation.  Each service category
// carries different fields (a hotel prices rooms per night, a tour prices
// pax brackets), so the shapes are separate types behind this interface
// rather than one record full of nullable columns.
type Rates interface {
	// PriceFor yields the unit price for one traveler-facing line item on
	// the given date and party size.  Date is already known to be inside
	// the variation's season when called through a Variation.
	PriceFor(date time.Time, partySize int, mode Mode) (money.Money, error)

	// Kind names the category this shape belongs to.
	Kind() Kind
}

// Bracket ties a discrete party-size breakpoint to a per-person price.
type Bracket struct {
	Pax   int         `json:"pax"`
	Price money.Money `json:"price"`
}

// BracketTable holds the pax breakpoints (2/4/6/8/10 ...) for one delivery
// mode, kept sorted by ascending breakpoint.
type BracketTable []Bracket

// PriceForPax selects the smallest breakpoint that seats at least partySize
// travelers.  A party larger than every breakpoint prices at the largest
// one (fallback-to-max).  An empty table yields ErrNoApplicablePrice.
func (t BracketTable) PriceForPax(partySize int) (money.Money, error) {
	if len(t) == 0 {
		return money.Money{}, ErrNoApplicablePrice
	}
	sorted := make(BracketTable, len(t))
	copy(sorted, t)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pax < sorted[j].Pax })
	for _, b := range sorted {
		if b.Pax >= partySize {
			return b.Price, nil
		}
	}
	return sorted[len(sorted)-1].Price, nil
}

// HotelRates prices a hotel stay per person per night.  DoubleRoom is the
// base double-occupancy rate; the remaining fields are supplements and
// child rates used by quote building, all on the variation's base meal plan.
type HotelRates struct {
	DoubleRoom       money.Money `json:"double_room"`
	SingleSupplement money.Money `json:"single_supplement"`
	TripleRoom       money.Money `json:"triple_room"`
	ChildUnder6      money.Money `json:"child_0_6"`
	Child6To12       money.Money `json:"child_6_12"`
	BaseMealPlan     string      `json:"base_meal_plan"` // BB, HB, FB, AI
	HBSupplement     money.Money `json:"hb_supplement"`
	FBSupplement     money.Money `json:"fb_supplement"`
	AISupplement     money.Money `json:"ai_supplement"`
}

func (r HotelRates) Kind() Kind { return KindHotel }

// PriceFor returns the per-person double-room rate for one night.  Party
// size and mode do not change a hotel's nightly rate.
func (r HotelRates) PriceFor(_ time.Time, _ int, _ Mode) (money.Money, error) {
	return r.DoubleRoom, nil
}

// TourRates prices a tour per person from pax-bracket tables, one table per
// delivery mode.
type TourRates struct {
	SIC BracketTable `json:"sic"`
	PVT BracketTable `json:"pvt"`
}

func (r TourRates) Kind() Kind { return KindTour }

func (r TourRates) PriceFor(_ time.Time, partySize int, mode Mode) (money.Money, error) {
	switch mode {
	case ModeSIC, "":
		return r.SIC.PriceForPax(partySize)
	case ModePVT:
		return r.PVT.PriceForPax(partySize)
	default:
		return money.Money{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// VehicleRates prices a vehicle with driver as a flat group rate per day.
type VehicleRates struct {
	PerDay money.Money `json:"price_per_day"`
}

func (r VehicleRates) Kind() Kind { return KindVehicle }

func (r VehicleRates) PriceFor(_ time.Time, _ int, _ Mode) (money.Money, error) {
	return r.PerDay, nil
}

// GuideRates prices a licensed guide as a flat group rate per day.
type GuideRates struct {
	PerDay money.Money `json:"price_per_day"`
}

func (r GuideRates) Kind() Kind { return KindGuide }

func (r GuideRates) PriceFor(_ time.Time, _ int, _ Mode) (money.Money, error) {
	return r.PerDay, nil
}

// MealRates prices a restaurant meal per person.
type MealRates struct {
	PerPerson money.Money `json:"price_per_person"`
	MealType  string      `json:"meal_type"` // lunch, dinner
}

func (r MealRates) Kind() Kind { return KindMeal }

func (r MealRates) PriceFor(_ time.Time, _ int, _ Mode) (money.Money, error) {
	return r.PerPerson, nil
}

// AdditionalRates prices an extra service (entrance fee, SIM card, ...)
// either per person or as one flat group amount.
type AdditionalRates struct {
	Price     money.Money `json:"price"`
	PerPerson bool        `json:"per_person"`
}

func (r AdditionalRates) Kind() Kind { return KindAdditional }

func (r AdditionalRates) PriceFor(_ time.Time, _ int, _ Mode) (money.Money, error) {
	return r.Price, nil
}
