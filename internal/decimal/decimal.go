// Package decimal provides exact fixed-point arithmetic for money and
// quantities. Values are immutable; every operation returns a new Decimal.
package decimal

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Precision is the number of significant digits kept by arithmetic.
const Precision = 34

// Limits for values accepted from outside the process. Bounded values keep
// every product and margin price well inside Precision.
const (
	MaxIntegerDigits  = 15
	MaxFractionDigits = 6
)

var (
	ErrDivisionByZero = errors.New("decimal: division by zero")
	ErrInvalid        = errors.New("decimal: invalid value")
)

var arith = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(Precision)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// Decimal is an exact base-10 number. The zero value is 0.
type Decimal struct {
	v apd.Decimal
}

var Zero = Decimal{}

// New returns coeff × 10^exp.
func New(coeff int64, exp int32) Decimal {
	var d Decimal
	d.v.SetFinite(coeff, exp)
	return d
}

// FromInt returns i as a Decimal.
func FromInt(i int64) Decimal {
	return New(i, 0)
}

// Parse reads a plain or scientific decimal string. NaN and infinities are rejected.
func Parse(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, ErrInvalid
	}
	v, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if v.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	var d Decimal
	d.v.Set(v)
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) Add(x Decimal) Decimal {
	var out Decimal
	check(arith.Add(&out.v, &d.v, &x.v))
	return out
}

func (d Decimal) Sub(x Decimal) Decimal {
	var out Decimal
	check(arith.Sub(&out.v, &d.v, &x.v))
	return out
}

func (d Decimal) Mul(x Decimal) Decimal {
	var out Decimal
	check(arith.Mul(&out.v, &d.v, &x.v))
	return out
}

// Div divides to Precision significant digits.
func (d Decimal) Div(x Decimal) (Decimal, error) {
	if x.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	var out Decimal
	if _, err := arith.Quo(&out.v, &d.v, &x.v); err != nil {
		return Decimal{}, fmt.Errorf("decimal: divide: %w", err)
	}
	return out, nil
}

// Round rounds half-up to the given number of fractional digits. The working
// precision grows with the integer part, so large values never trap.
func (d Decimal) Round(places int32) Decimal {
	c := arith
	if need := d.v.NumDigits() + int64(d.v.Exponent) + int64(places) + 1; need > Precision {
		c = arith.WithPrecision(uint32(need))
	}
	var out Decimal
	check(c.Quantize(&out.v, &d.v, -places))
	return out
}

// Digits returns the number of significant digits before and after the
// decimal point, ignoring trailing zeros.
func (d Decimal) Digits() (integer, fraction int64) {
	var r apd.Decimal
	r.Reduce(&d.v)
	if r.IsZero() {
		return 0, 0
	}
	exp := int64(r.Exponent)
	integer = r.NumDigits() + exp
	if integer < 0 {
		integer = 0
	}
	if exp < 0 {
		fraction = -exp
	}
	return integer, fraction
}

// Bounded reports whether d fits MaxIntegerDigits and MaxFractionDigits.
func (d Decimal) Bounded() bool {
	integer, fraction := d.Digits()
	return integer <= MaxIntegerDigits && fraction <= MaxFractionDigits
}

func (d Decimal) Neg() Decimal {
	if d.IsZero() {
		return d
	}
	var out Decimal
	out.v.Neg(&d.v)
	return out
}

func (d Decimal) Cmp(x Decimal) int {
	return d.v.Cmp(&x.v)
}

func (d Decimal) Sign() int {
	return d.v.Sign()
}

func (d Decimal) IsZero() bool {
	return d.v.IsZero()
}

func (d Decimal) Equal(x Decimal) bool {
	return d.Cmp(x) == 0
}

func (d Decimal) LessThan(x Decimal) bool {
	return d.Cmp(x) < 0
}

func (d Decimal) GreaterThan(x Decimal) bool {
	return d.Cmp(x) > 0
}

// String renders the value without an exponent, keeping trailing zeros
// (0.10 stays "0.10").
func (d Decimal) String() string {
	return d.v.Text('f')
}

// StringFixed renders the value rounded to places fractional digits.
func (d Decimal) StringFixed(places int32) string {
	return d.Round(places).String()
}

// Sum adds all values exactly.
func Sum(values ...Decimal) Decimal {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func Max(a, b Decimal) Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func Min(a, b Decimal) Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*d = Zero
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (d *Decimal) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Zero
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case int64:
		*d = FromInt(v)
		return nil
	default:
		return fmt.Errorf("decimal: cannot scan %T", src)
	}
}

// Value implements driver.Valuer; NUMERIC columns accept the text form.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

func check(_ apd.Condition, err error) {
	if err != nil {
		// Traps only fire on overflow of a 34-digit context, which money and
		// quantity values never reach.
		panic(fmt.Sprintf("decimal: %v", err))
	}
}
