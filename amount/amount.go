// Package amount implements the fixed-point monetary value used across the
// ledger. Amounts are signed 64-bit counts of 1/10000 currency units, which
// keeps arithmetic exact and cheap; decimals only appear at the text
// boundary.
package amount

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// FractionDigits is the number of fractional digits an Amount carries.
const FractionDigits = 4

// fraction is the scale factor: one currency unit in internal units.
const fraction int64 = 10_000

const (
	Zero Amount = 0
	One  Amount = Amount(fraction)
	// Max is the largest representable amount, 922337203685477.5807 units.
	Max Amount = Amount(math.MaxInt64)
	// Min mirrors Max so that magnitudes stay symmetric; -2^63 internal
	// units is never produced.
	Min Amount = -Max
)

var (
	// ErrInvalidAmount signals text that does not denote a representable
	// amount: bad syntax, exponent notation, embedded whitespace, a 5th
	// significant fractional digit, or an out-of-range magnitude.
	ErrInvalidAmount = errors.New("amount: invalid amount")
	// ErrOverflow signals that an arithmetic result would leave the
	// representable range.
	ErrOverflow = errors.New("amount: arithmetic overflow")
)

// Amount is a fixed-point monetary value. The zero value is zero units.
// Amounts order naturally, so plain comparison operators apply.
type Amount int64

var (
	scaleDec = decimal.NewFromInt(fraction)
	maxDec   = decimal.NewFromInt(int64(Max))
	minDec   = decimal.NewFromInt(int64(Min))
)

// Parse converts text to an Amount. Values with more than four significant
// fractional digits are rejected, never rounded. Sign is preserved; callers
// enforce positivity where the business rules demand it.
func Parse(text string) (Amount, error) {
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	for _, r := range text {
		// decimal.NewFromString accepts exponent notation; the input
		// grammar does not.
		if r == 'e' || r == 'E' {
			return 0, fmt.Errorf("%w: exponent notation %q", ErrInvalidAmount, text)
		}
		if unicode.IsSpace(r) {
			return 0, fmt.Errorf("%w: whitespace in %q", ErrInvalidAmount, text)
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	scaled := d.Mul(scaleDec)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q exceeds %d fractional digits", ErrInvalidAmount, text, FractionDigits)
	}
	if scaled.Cmp(maxDec) > 0 || scaled.Cmp(minDec) < 0 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, text)
	}
	return Amount(scaled.IntPart()), nil
}

// CheckedAdd returns a+b, or ErrOverflow if the sum would leave the
// representable range [Min, Max]. It never wraps, and never yields the
// asymmetric math.MinInt64.
func CheckedAdd(a, b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) || sum < Min {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, or ErrOverflow if the difference would leave the
// representable range [Min, Max]. It never wraps, and never yields the
// asymmetric math.MinInt64.
func CheckedSub(a, b Amount) (Amount, error) {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) || diff < Min {
		return 0, ErrOverflow
	}
	return diff, nil
}

// String renders the amount with up to four fractional digits, trailing
// zeros trimmed. Zero renders as "0".
func (a Amount) String() string {
	units := int64(a)
	if units == 0 {
		return "0"
	}
	var b strings.Builder
	if units < 0 {
		b.WriteByte('-')
		units = -units
	}
	b.WriteString(strconv.FormatInt(units/fraction, 10))
	if frac := units % fraction; frac != 0 {
		digits := strings.TrimRight(fmt.Sprintf("%0*d", FractionDigits, frac), "0")
		b.WriteByte('.')
		b.WriteString(digits)
	}
	return b.String()
}
