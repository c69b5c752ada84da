package quote

import (
	"errors"
	"fmt"

	"github.com/ekurt/tour-operator-core/internal/money"
)

// ErrReadOnly is returned when mutating a confirmed itinerary.
var ErrReadOnly = errors.New("itinerary is confirmed and read-only")

// ErrNoSuchItem is returned when a day or item index does not exist.
var ErrNoSuchItem = errors.New("no such day or item")

// Field names the item attributes the quote editor may change.
type Field string

const (
	FieldUnitPrice Field = "price_per_unit"
	FieldQuantity  Field = "quantity"
	FieldName      Field = "name"
)

// Assembler wraps an Itinerary and guarantees that every mutation leaves
// all derived totals consistent before it returns.  There is no deferred
// recomputation: a second consumer reading the itinerary right after a
// mutation observes fully re-derived figures.
type Assembler struct {
	it *Itinerary
}

// NewAssembler wraps an itinerary for editing.  The itinerary is
// recalculated immediately so stored totals are never trusted as-is.
func NewAssembler(it *Itinerary) *Assembler {
	a := &Assembler{it: it}
	a.Recalculate()
	return a
}

// Itinerary exposes the wrapped value.
func (a *Assembler) Itinerary() *Itinerary { return a.it }

// SetItemField updates one field of the item at (day, item) position and
// recomputes every derived total.  Unknown fields and bad value types are
// rejected before anything is touched.
func (a *Assembler) SetItemField(dayIdx, itemIdx int, field Field, value any) error {
	if a.it.Status == StatusConfirmed {
		return ErrReadOnly
	}
	item, err := a.item(dayIdx, itemIdx)
	if err != nil {
		return err
	}
	switch field {
	case FieldUnitPrice:
		p, ok := value.(money.Money)
		if !ok {
			return fmt.Errorf("price_per_unit requires a money amount, got %T", value)
		}
		item.UnitPrice = p.WithCurrency(a.it.Currency)
	case FieldQuantity:
		q, ok := value.(int)
		if !ok {
			return fmt.Errorf("quantity requires an integer, got %T", value)
		}
		if q < 0 {
			return fmt.Errorf("quantity cannot be negative")
		}
		item.Quantity = q
	case FieldName:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("name requires a string, got %T", value)
		}
		item.Name = s
	default:
		return fmt.Errorf("unknown item field %q", field)
	}
	a.Recalculate()
	return nil
}

// AddItem appends an item to the given day and recomputes totals.
func (a *Assembler) AddItem(dayIdx int, item Item) error {
	if a.it.Status == StatusConfirmed {
		return ErrReadOnly
	}
	if dayIdx < 0 || dayIdx >= len(a.it.Days) {
		return ErrNoSuchItem
	}
	if item.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	item.UnitPrice = item.UnitPrice.WithCurrency(a.it.Currency)
	a.it.Days[dayIdx].Items = append(a.it.Days[dayIdx].Items, item)
	a.Recalculate()
	return nil
}

// RemoveItem deletes the item at (day, item) position and recomputes
// totals.
func (a *Assembler) RemoveItem(dayIdx, itemIdx int) error {
	if a.it.Status == StatusConfirmed {
		return ErrReadOnly
	}
	if _, err := a.item(dayIdx, itemIdx); err != nil {
		return err
	}
	items := a.it.Days[dayIdx].Items
	a.it.Days[dayIdx].Items = append(items[:itemIdx], items[itemIdx+1:]...)
	a.Recalculate()
	return nil
}

// Recalculate re-derives every item total, day total, the grand total and
// the per-person price.  It is idempotent: calling it twice without
// intervening edits yields identical figures.
func (a *Assembler) Recalculate() {
	cur := a.it.Currency
	grand := money.Zero(cur)
	for d := range a.it.Days {
		dayTotal := money.Zero(cur)
		for i := range a.it.Days[d].Items {
			item := &a.it.Days[d].Items[i]
			item.Total = item.UnitPrice.WithCurrency(cur).MulInt(item.Quantity)
			dayTotal = dayTotal.Add(item.Total)
		}
		a.it.Days[d].Total = dayTotal
		grand = grand.Add(dayTotal)
	}
	a.it.GrandTotal = grand

	// Zero travelers is a transient editing state, not an error: report a
	// zero per-person price instead of dividing by zero.
	if n := a.it.Travelers(); n > 0 {
		a.it.PerPerson = grand.DivInt(n)
	} else {
		a.it.PerPerson = money.Zero(cur)
	}
}

func (a *Assembler) item(dayIdx, itemIdx int) (*Item, error) {
	if dayIdx < 0 || dayIdx >= len(a.it.Days) {
		return nil, ErrNoSuchItem
	}
	day := &a.it.Days[dayIdx]
	if itemIdx < 0 || itemIdx >= len(day.Items) {
		return nil, ErrNoSuchItem
	}
	return &day.Items[itemIdx], nil
}
