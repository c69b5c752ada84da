package quote

import (
	"testing"

	"github.com/ekurt/tour-operator-core/internal/money"
)

func testItinerary() *Itinerary {
	return &Itinerary{
		Adults:   2,
		Children: 1,
		Currency: "EUR",
		Status:   StatusDraft,
		Days: []Day{
			{
				Number: 1,
				Items: []Item{
					{Type: "hotel", Name: "Old town hotel", UnitPrice: money.MustParse("80", "EUR"), Quantity: 3},
					{Type: "tour", Name: "City walking tour", UnitPrice: money.MustParse("45", "EUR"), Quantity: 3},
				},
			},
			{
				Number: 2,
				Items: []Item{
					{Type: "vehicle", Name: "Airport transfer", UnitPrice: money.MustParse("60", "EUR"), Quantity: 1},
				},
			},
		},
	}
}

func TestRecalculateDerivesAllTotals(t *testing.T) {
	a := NewAssembler(testItinerary())
	it := a.Itinerary()

	if got := it.Days[0].Items[0].Total.Amount().String(); got != "240" {
		t.Errorf("item total = %s, want 240", got)
	}
	if got := it.Days[0].Total.Amount().String(); got != "375" {
		t.Errorf("day 1 total = %s, want 375", got)
	}
	if got := it.GrandTotal.Amount().String(); got != "435" {
		t.Errorf("grand total = %s, want 435", got)
	}
	// 435 / 3 travelers = 145
	if got := it.PerPerson.Amount().String(); got != "145" {
		t.Errorf("per person = %s, want 145", got)
	}
}

func TestAggregationIdentity(t *testing.T) {
	a := NewAssembler(testItinerary())
	it := a.Itinerary()

	sum := money.Zero("EUR")
	for _, d := range it.Days {
		for _, i := range d.Items {
			sum = sum.Add(i.UnitPrice.MulInt(i.Quantity))
		}
	}
	if !sum.Equal(it.GrandTotal) {
		t.Errorf("grand total %s != item sum %s", it.GrandTotal.Amount(), sum.Amount())
	}
}

func TestRecalculateIdempotent(t *testing.T) {
	a := NewAssembler(testItinerary())
	first := a.Itinerary().GrandTotal
	firstPP := a.Itinerary().PerPerson
	a.Recalculate()
	if !a.Itinerary().GrandTotal.Equal(first) || !a.Itinerary().PerPerson.Equal(firstPP) {
		t.Error("recalculate must not drift without edits")
	}
}

func TestSetItemFieldRecomputesImmediately(t *testing.T) {
	a := NewAssembler(testItinerary())

	if err := a.SetItemField(0, 0, FieldQuantity, 5); err != nil {
		t.Fatalf("SetItemField: %v", err)
	}
	it := a.Itinerary()
	if got := it.Days[0].Items[0].Total.Amount().String(); got != "400" {
		t.Errorf("item total after quantity edit = %s, want 400", got)
	}
	if got := it.GrandTotal.Amount().String(); got != "595" {
		t.Errorf("grand total after edit = %s, want 595", got)
	}

	if err := a.SetItemField(0, 0, FieldUnitPrice, money.MustParse("100", "EUR")); err != nil {
		t.Fatalf("SetItemField: %v", err)
	}
	if got := it.GrandTotal.Amount().String(); got != "695" {
		t.Errorf("grand total after price edit = %s, want 695", got)
	}
}

func TestSetItemFieldRejectsBadInput(t *testing.T) {
	a := NewAssembler(testItinerary())
	if err := a.SetItemField(0, 0, FieldQuantity, -1); err == nil {
		t.Error("negative quantity must be rejected")
	}
	if err := a.SetItemField(0, 0, "colour", "red"); err == nil {
		t.Error("unknown field must be rejected")
	}
	if err := a.SetItemField(9, 0, FieldQuantity, 1); err != ErrNoSuchItem {
		t.Errorf("err = %v, want ErrNoSuchItem", err)
	}
}

func TestAddAndRemoveItem(t *testing.T) {
	a := NewAssembler(testItinerary())

	err := a.AddItem(1, Item{Type: "meal", Name: "Dinner", UnitPrice: money.MustParse("25", "EUR"), Quantity: 3})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if got := a.Itinerary().GrandTotal.Amount().String(); got != "510" {
		t.Errorf("grand total after add = %s, want 510", got)
	}

	if err := a.RemoveItem(0, 1); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if got := a.Itinerary().GrandTotal.Amount().String(); got != "375" {
		t.Errorf("grand total after remove = %s, want 375", got)
	}
	if err := a.RemoveItem(0, 9); err != ErrNoSuchItem {
		t.Errorf("err = %v, want ErrNoSuchItem", err)
	}
}

func TestZeroTravelersGuard(t *testing.T) {
	it := testItinerary()
	it.Adults, it.Children = 0, 0
	a := NewAssembler(it)
	if !a.Itinerary().PerPerson.IsZero() {
		t.Errorf("per person with 0 travelers = %s, want 0", a.Itinerary().PerPerson.Amount())
	}
	if a.Itinerary().GrandTotal.IsZero() {
		t.Error("grand total must still be computed")
	}
}

func TestConfirmedItineraryIsReadOnly(t *testing.T) {
	it := testItinerary()
	it.Status = StatusConfirmed
	a := NewAssembler(it)

	if err := a.SetItemField(0, 0, FieldQuantity, 9); err != ErrReadOnly {
		t.Errorf("SetItemField err = %v, want ErrReadOnly", err)
	}
	if err := a.AddItem(0, Item{}); err != ErrReadOnly {
		t.Errorf("AddItem err = %v, want ErrReadOnly", err)
	}
	if err := a.RemoveItem(0, 0); err != ErrReadOnly {
		t.Errorf("RemoveItem err = %v, want ErrReadOnly", err)
	}
}
