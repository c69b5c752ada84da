package money

import (
	"database/sql/driver"
	"encoding/json"
	"testing"
)

func TestAddSubKeepCurrency(t *testing.T) {
	a := MustParse("100.50", "EUR")
	b := MustParse("0.50", "EUR")

	got := a.Add(b)
	if got.Amount().String() != "101" || got.Currency() != "EUR" {
		t.Errorf("Add = %s %s, want 101 EUR", got.Amount(), got.Currency())
	}
	got = a.Sub(b)
	if got.Amount().String() != "100" {
		t.Errorf("Sub = %s, want 100", got.Amount())
	}
}

func TestWeakZeroAdoptsCurrency(t *testing.T) {
	var total Money
	total = total.Add(MustParse("10", "TRY"))
	if total.Currency() != "TRY" {
		t.Errorf("currency = %q, want TRY", total.Currency())
	}
}

func TestCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on EUR + USD")
		}
	}()
	_ = MustParse("1", "EUR").Add(MustParse("1", "USD"))
}

func TestMulIntExact(t *testing.T) {
	// 0.1 * 3 must be exactly 0.3, the case binary floats get wrong.
	got := MustParse("0.10", "EUR").MulInt(3)
	if got.Amount().String() != "0.3" {
		t.Errorf("MulInt = %s, want 0.3", got.Amount())
	}
}

func TestDivIntRoundsToMinorUnit(t *testing.T) {
	// 250 / 30 = 8.333... -> 8.33 per person
	got := MustParse("250", "EUR").DivInt(30)
	if got.Amount().String() != "8.33" {
		t.Errorf("DivInt = %s, want 8.33", got.Amount())
	}
	// half-up at the boundary: 0.125 / 1 stays, 1/8 = 0.125 -> 0.13
	got = MustParse("1", "EUR").DivInt(8)
	if got.Amount().String() != "0.13" {
		t.Errorf("DivInt = %s, want 0.13", got.Amount())
	}
}

func TestAggregationIdentity(t *testing.T) {
	// sum of unit*qty over many lines equals the grand total exactly
	var grand Money
	unit := MustParse("33.33", "EUR")
	for i := 0; i < 300; i++ {
		grand = grand.Add(unit.MulInt(3))
	}
	if grand.Amount().String() != "29997" {
		t.Errorf("grand total = %s, want 29997", grand.Amount())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m := MustParse("80", "EUR")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"amount":"80.00","currency":"EUR"}` {
		t.Errorf("marshal = %s", data)
	}
	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(m) {
		t.Errorf("round trip = %s %s", back.Amount(), back.Currency())
	}
}

func TestSQLValueAndScan(t *testing.T) {
	v, err := MustParse("1234.5", "EUR").Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != driver.Value("1234.50") {
		t.Errorf("value = %v, want 1234.50", v)
	}
	var m Money
	if err := m.Scan([]byte("1234.50")); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m = m.WithCurrency("EUR")
	if !m.Equal(MustParse("1234.50", "EUR")) {
		t.Errorf("scan = %s %s", m.Amount(), m.Currency())
	}
}

func TestSum(t *testing.T) {
	got := Sum([]Money{
		MustParse("500", "EUR"),
		MustParse("-200", "EUR"),
		MustParse("50", "EUR"),
	})
	if got.Amount().String() != "350" {
		t.Errorf("Sum = %s, want 350", got.Amount())
	}
}
