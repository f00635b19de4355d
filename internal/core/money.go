// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents; parsing and display go through
// shopspring/decimal so no float rounding leaks into stored values.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64 / 100)

// ParseAmount converts user input to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. A comma
// followed by exactly three digits reads as a thousands separator and is
// rejected, as are signs, exponents, zero and non-numeric text.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,5")   -> 1250
//	ParseAmount("1,000")  -> ErrAmbiguousAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 && len(s)-i-1 == 3 {
		return Money{}, ErrAmbiguousAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m, ok := fromDecimal(d)
	if !ok || m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// CoerceAmount reads an amount written by older clients, which stored numbers
// or numeric text. It never validates sign; ok is false for non-numeric input.
func CoerceAmount(v any) (Money, bool) {
	var d decimal.Decimal
	switch x := v.(type) {
	case Money:
		return x, true
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Money{}, false
		}
		d = decimal.NewFromFloat(x)
	case json.Number:
		var err error
		if d, err = decimal.NewFromString(x.String()); err != nil {
			return Money{}, false
		}
	case string:
		var err error
		if d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(x), ",", ".")); err != nil {
			return Money{}, false
		}
	default:
		return Money{}, false
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Money, bool) {
	d = d.Round(2)
	if d.Abs().GreaterThan(maxCents) {
		return Money{}, false
	}
	return Money{Cents: d.Shift(2).IntPart()}, true
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Float64 is for chart rendering and spreadsheet cells only; totals stay in cents.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

// MarshalJSON renders Money as a decimal string so clients never see floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON number or numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	v, ok := CoerceAmount(raw)
	if !ok {
		return ErrInvalidAmount
	}
	*m = v
	return nil
}
