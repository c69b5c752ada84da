package pricing

import (
	"encoding/json"
	"fmt"
)

// EncodeRates serializes a rate shape for the price_variations.rates JSON
// column.  Amounts are stored as fixed-point strings; the currency lives in
// its own column and is re-attached when the variation prices a request.
func EncodeRates(r Rates) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("pricing: nil rates")
	}
	return json.Marshal(r)
}

// DecodeRates deserializes the rates column into the concrete shape for the
// variation's kind.
func DecodeRates(kind Kind, raw []byte) (Rates, error) {
	switch kind {
	case KindHotel:
		var r HotelRates
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("pricing: decode hotel rates: %w", err)
		}
		return r, nil
	case KindTour:
		var r TourRates
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("pricing: decode tour rates: %w", err)
		}
		return r, nil
	case KindVehicle:
		var r VehicleRates
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("pricing: decode vehicle rates: %w", err)
		}
		return r, nil
	case KindGuide:
		var r GuideRates
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("pricing: decode guide rates: %w", err)
		}
		return r, nil
	case KindMeal:
		var r MealRates
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("pricing: decode meal rates: %w", err)
		}
		return r, nil
	case KindAdditional:
		var r AdditionalRates
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("pricing: decode additional rates: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("pricing: unknown kind %q", kind)
	}
}
