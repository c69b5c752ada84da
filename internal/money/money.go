// Package money provides a fixed-point, currency-tagged amount type used by
// all pricing and ledger arithmetic.  Amounts are backed by decimal values so
// that aggregation identities hold exactly; native floats never appear in
// any monetary computation.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is an immutable monetary amount in major units (e.g. 80.50 EUR).
// The zero value is a currency-weak zero: it adopts the currency of the
// other operand in Add/Sub, which lets callers fold over a slice starting
// from Money{}.
type Money struct {
	value decimal.Decimal
	cur   string
}

// New builds a Money from a decimal value and an ISO 4217 currency code.
func New(value decimal.Decimal, currency string) Money {
	return Money{value: value, cur: strings.ToUpper(currency)}
}

// FromString parses a decimal amount such as "80" or "199.90".
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", amount, err)
	}
	return New(d, currency), nil
}

// MustParse is FromString for test fixtures and constants; it panics on a
// malformed amount.
func MustParse(amount, currency string) Money {
	m, err := FromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money { return New(decimal.Zero, currency) }

// Currency returns the ISO currency code, which may be empty for the weak
// zero value.
func (m Money) Currency() string { return m.cur }

// Amount returns the underlying decimal value in major units.
func (m Money) Amount() decimal.Decimal { return m.value }

func (m Money) IsZero() bool     { return m.value.IsZero() }
func (m Money) IsPositive() bool { return m.value.IsPositive() }
func (m Money) IsNegative() bool { return m.value.IsNegative() }

func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) && sameCur(m, n) }
func (m Money) LessThan(n Money) bool           { return m.value.LessThan(n.value) }
func (m Money) LessThanOrEqual(n Money) bool    { return m.value.LessThanOrEqual(n.value) }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.value.GreaterThanOrEqual(n.value) }

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money { return Money{value: m.value.Neg(), cur: m.cur} }

// Abs returns the amount with a positive sign.
func (m Money) Abs() Money { return Money{value: m.value.Abs(), cur: m.cur} }

// Add returns m + n.  Mixing two distinct non-empty currencies is a
// programmer error and panics.
func (m Money) Add(n Money) Money {
	return Money{value: m.value.Add(n.value), cur: mergeCur(m, n)}
}

// Sub returns m - n under the same currency rules as Add.
func (m Money) Sub(n Money) Money {
	return Money{value: m.value.Sub(n.value), cur: mergeCur(m, n)}
}

// MulInt returns m multiplied by an integer quantity.  The result is exact.
func (m Money) MulInt(n int) Money {
	return Money{value: m.value.Mul(decimal.NewFromInt(int64(n))), cur: m.cur}
}

// DivInt divides the amount by an integer count, rounding half-up to the
// currency's minor unit.  Division by zero panics; callers that can see a
// zero count (per-person pricing with no travelers) must guard it.
func (m Money) DivInt(n int) Money {
	return Money{
		value: m.value.DivRound(decimal.NewFromInt(int64(n)), int32(m.fraction())),
		cur:   m.cur,
	}
}

// Round returns the amount rounded half-up to the currency's minor unit.
func (m Money) Round() Money {
	return Money{value: m.value.Round(int32(m.fraction())), cur: m.cur}
}

// String renders the amount with the currency's formatter, e.g. "€80.00".
func (m Money) String() string {
	cur := m.currency()
	minor := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// fraction is the number of minor-unit digits for the currency (2 for EUR).
// Unknown or empty currencies fall back to 2.
func (m Money) fraction() int {
	if m.cur == "" {
		return 2
	}
	return m.currency().Fraction
}

// currency resolves the full currency description.  Constructing a
// go-money value guarantees a non-nil currency even for unknown codes.
func (m Money) currency() gomoney.Currency {
	return *gomoney.New(0, m.cur).Currency()
}

func sameCur(a, b Money) bool {
	return a.cur == b.cur || a.cur == "" || b.cur == ""
}

// mergeCur makes the empty currency weak: the zero value adopts the other
// operand's currency, while two distinct real currencies panic.
func mergeCur(a, b Money) string {
	if a.cur == "" {
		return b.cur
	}
	if b.cur == "" {
		return a.cur
	}
	if a.cur != b.cur {
		panic("money: currency mismatch " + a.cur + " != " + b.cur)
	}
	return a.cur
}

// jsonMoney is the wire shape: {"amount":"80.00","currency":"EUR"}.
// Amounts travel as strings so clients never see binary floating point.
type jsonMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMoney{
		Amount:   m.value.Round(int32(m.fraction())).StringFixed(int32(m.fraction())),
		Currency: m.cur,
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var j jsonMoney
	if err := json.Unmarshal(data, &j); err != nil {
		// accept a bare decimal string or number as well
		var d decimal.Decimal
		if derr := json.Unmarshal(data, &d); derr != nil {
			return err
		}
		m.value = d
		return nil
	}
	parsed, err := FromString(j.Amount, j.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer.  Amounts persist as fixed-point strings;
// the currency lives in its own column and is re-attached on read.
func (m Money) Value() (driver.Value, error) {
	return m.value.Round(int32(m.fraction())).StringFixed(int32(m.fraction())), nil
}

// Scan implements sql.Scanner for DECIMAL columns.  The scanned value is
// currency-weak; callers attach the row's currency with WithCurrency.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Money{}
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("money: scan %q: %w", v, err)
		}
		m.value, m.cur = d, ""
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("money: scan %q: %w", v, err)
		}
		m.value, m.cur = d, ""
		return nil
	case int64:
		m.value, m.cur = decimal.NewFromInt(v), ""
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

// WithCurrency returns a copy of the amount tagged with the given currency.
func (m Money) WithCurrency(currency string) Money {
	return New(m.value, currency)
}

// Sum folds a slice of amounts starting from the weak zero.
func Sum(amounts []Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
