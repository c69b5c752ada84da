package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ekurt/tour-operator-core/internal/model"
	"github.com/ekurt/tour-operator-core/internal/money"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func season(name, start, end string) Season {
	return Season{Name: name, Start: date(start), End: date(end)}
}

func TestSeasonContains(t *testing.T) {
	s := season("Winter 2025-26", "2025-11-01", "2026-03-14")
	cases := []struct {
		day  string
		want bool
	}{
		{"2025-10-31", false},
		{"2025-11-01", true}, // start inclusive
		{"2025-12-25", true},
		{"2026-03-14", true}, // end inclusive
		{"2026-03-15", false},
	}
	for _, c := range cases {
		if got := s.Contains(date(c.day)); got != c.want {
			t.Errorf("Contains(%s) = %v, want %v", c.day, got, c.want)
		}
	}
}

func TestSeasonOverlaps(t *testing.T) {
	a := season("A", "2025-11-01", "2026-03-14")
	if !a.Overlaps(season("B", "2026-03-14", "2026-06-01")) {
		t.Error("windows sharing one day should overlap")
	}
	if a.Overlaps(season("C", "2026-03-15", "2026-06-01")) {
		t.Error("adjacent windows should not overlap")
	}
}

func TestBracketSelection(t *testing.T) {
	table := BracketTable{
		{Pax: 2, Price: money.MustParse("100", "EUR")},
		{Pax: 4, Price: money.MustParse("90", "EUR")},
		{Pax: 6, Price: money.MustParse("80", "EUR")},
		{Pax: 8, Price: money.MustParse("75", "EUR")},
		{Pax: 10, Price: money.MustParse("70", "EUR")},
	}
	cases := []struct {
		pax  int
		want string
	}{
		{1, "100"},
		{2, "100"},
		{4, "90"}, // exact breakpoint
		{5, "80"}, // smallest breakpoint >= 5
		{10, "70"},
		{12, "70"}, // beyond the largest breakpoint -> max bracket
	}
	for _, c := range cases {
		got, err := table.PriceForPax(c.pax)
		if err != nil {
			t.Fatalf("PriceForPax(%d): %v", c.pax, err)
		}
		if got.Amount().String() != c.want {
			t.Errorf("PriceForPax(%d) = %s, want %s", c.pax, got.Amount(), c.want)
		}
	}
}

func TestEmptyBracketTable(t *testing.T) {
	if _, err := (BracketTable{}).PriceForPax(2); err != ErrNoApplicablePrice {
		t.Errorf("err = %v, want ErrNoApplicablePrice", err)
	}
}

func hotelVariation(id uint64, s Season, price string, status Status, updated time.Time) Variation {
	return Variation{
		ID:        id,
		ServiceID: 1,
		Season:    s,
		Currency:  "EUR",
		Status:    status,
		Rates:     HotelRates{DoubleRoom: money.MustParse(price, "")},
		UpdatedAt: updated,
	}
}

func TestPickDateContainment(t *testing.T) {
	winter := hotelVariation(1, season("Winter 2025-26", "2025-11-01", "2026-03-14"), "80", StatusActive, date("2025-09-01"))

	// party of 2 on Christmas resolves to the 80 EUR winter rate
	v := Pick([]Variation{winter}, date("2025-12-25"))
	if v == nil {
		t.Fatal("expected winter variation to apply")
	}
	p, err := v.PriceFor(date("2025-12-25"), 2, "")
	if err != nil {
		t.Fatalf("PriceFor: %v", err)
	}
	if p.Amount().String() != "80" || p.Currency() != "EUR" {
		t.Errorf("price = %s %s, want 80 EUR", p.Amount(), p.Currency())
	}

	// a date outside every window yields nothing
	if Pick([]Variation{winter}, date("2026-04-01")) != nil {
		t.Error("2026-04-01 is outside the window and must not resolve")
	}
}

func TestPickSkipsArchived(t *testing.T) {
	archived := hotelVariation(1, season("Winter", "2025-11-01", "2026-03-14"), "80", StatusArchived, date("2025-09-01"))
	if Pick([]Variation{archived}, date("2025-12-25")) != nil {
		t.Error("archived variations must not resolve")
	}
}

func TestPickTieBreakMostRecentlyUpdated(t *testing.T) {
	older := hotelVariation(1, season("Winter", "2025-11-01", "2026-03-14"), "80", StatusActive, date("2025-09-01"))
	newer := hotelVariation(2, season("Repriced winter", "2025-12-01", "2026-01-31"), "95", StatusActive, date("2025-11-20"))

	v := Pick([]Variation{older, newer}, date("2025-12-25"))
	if v == nil || v.ID != 2 {
		t.Fatalf("Pick = %+v, want the more recently updated variation", v)
	}

	// identical timestamps fall back to the higher id
	newer.UpdatedAt = older.UpdatedAt
	v = Pick([]Variation{older, newer}, date("2025-12-25"))
	if v == nil || v.ID != 2 {
		t.Errorf("Pick = %+v, want id 2 on equal timestamps", v)
	}
}

func TestTourModeTables(t *testing.T) {
	rates := TourRates{
		SIC: BracketTable{{Pax: 2, Price: money.MustParse("60", "")}},
		PVT: BracketTable{{Pax: 2, Price: money.MustParse("150", "")}},
	}
	sic, err := rates.PriceFor(time.Time{}, 2, ModeSIC)
	if err != nil || sic.Amount().String() != "60" {
		t.Errorf("SIC = %s, %v", sic.Amount(), err)
	}
	pvt, err := rates.PriceFor(time.Time{}, 2, ModePVT)
	if err != nil || pvt.Amount().String() != "150" {
		t.Errorf("PVT = %s, %v", pvt.Amount(), err)
	}
	if _, err := rates.PriceFor(time.Time{}, 2, "CHARTER"); err == nil {
		t.Error("unknown mode must fail")
	}
}

func TestOverlappingReportsActiveOnly(t *testing.T) {
	existing := []Variation{
		hotelVariation(1, season("Winter", "2025-11-01", "2026-03-14"), "80", StatusActive, date("2025-09-01")),
		hotelVariation(2, season("Old winter", "2025-11-01", "2026-03-14"), "70", StatusArchived, date("2024-09-01")),
	}
	got := Overlapping(existing, season("Christmas peak", "2025-12-20", "2026-01-05"), 0)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Overlapping = %+v, want only the active winter window", got)
	}
	// editing a variation must not report itself
	got = Overlapping(existing, season("Winter", "2025-11-01", "2026-03-14"), 1)
	if len(got) != 0 {
		t.Errorf("Overlapping excluding self = %+v, want none", got)
	}
}

func TestRatesCodecRoundTrip(t *testing.T) {
	var in Rates = TourRates{
		SIC: BracketTable{{Pax: 2, Price: money.MustParse("100", "")}, {Pax: 4, Price: money.MustParse("90", "")}},
		PVT: BracketTable{{Pax: 2, Price: money.MustParse("220", "")}},
	}
	raw, err := EncodeRates(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeRates(KindTour, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, err := out.PriceFor(time.Time{}, 3, ModeSIC)
	if err != nil {
		t.Fatalf("PriceFor: %v", err)
	}
	if p.Amount().String() != "90" {
		t.Errorf("decoded bracket price = %s, want 90", p.Amount())
	}
}

type stubCatalog struct {
	variations []Variation
	err        error
}

func (s stubCatalog) VariationsByService(_ context.Context, _ model.OrgContext, _ uint64) ([]Variation, error) {
	return s.variations, s.err
}

func TestResolverResolve(t *testing.T) {
	r := NewResolver(stubCatalog{variations: []Variation{
		hotelVariation(1, season("Winter 2025-26", "2025-11-01", "2026-03-14"), "80", StatusActive, date("2025-09-01")),
	}})
	price, v, err := r.Resolve(context.Background(), model.OrgContext{OrgID: 1}, 1, date("2025-12-25"), 2, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v == nil || v.ID != 1 {
		t.Fatalf("resolved variation = %v, want id 1", v)
	}
	if price.Amount().String() != "80" || price.Currency() != "EUR" {
		t.Errorf("price = %s %s, want 80 EUR", price.Amount(), price.Currency())
	}

	if _, _, err := r.Resolve(context.Background(), model.OrgContext{OrgID: 1}, 1, date("2026-04-01"), 2, ""); !errors.Is(err, ErrNoApplicablePrice) {
		t.Errorf("off-season resolve error = %v, want ErrNoApplicablePrice", err)
	}
}

func TestResolverPropagatesCatalogError(t *testing.T) {
	boom := errors.New("catalog unavailable")
	r := NewResolver(stubCatalog{err: boom})
	if _, _, err := r.Resolve(context.Background(), model.OrgContext{}, 1, date("2025-12-25"), 2, ""); !errors.Is(err, boom) {
		t.Errorf("error = %v, want catalog error", err)
	}
}
