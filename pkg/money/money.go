package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
)

// Cents is an exact minor-unit amount. All financial arithmetic in the
// platform happens on this type; floating point is never used for money.
type Cents int64

// DefaultEpsilonCents is the tolerance used when comparing a client-declared
// amount against a server-derived one.
const DefaultEpsilonCents Cents = 1

// FromDecimal converts a major-unit decimal amount into cents, rounding
// half-up at the second decimal place.
func FromDecimal(amount decimal.Decimal) Cents {
	return Cents(amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart())
}

// ToDecimal renders a cent amount as a major-unit decimal.
func (c Cents) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(decimal.NewFromInt(100))
}

// String formats the amount as a major-unit string, e.g. "17.01".
func (c Cents) String() string {
	return c.ToDecimal().StringFixed(2)
}

// ParseAmount converts a major-unit string (e.g. "12.50") into cents.
func ParseAmount(value string) (Cents, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("amount %q has sub-cent precision", value)
	}
	return FromDecimal(d), nil
}

// WithinEpsilon reports whether two amounts differ by at most eps cents.
func WithinEpsilon(a, b, eps Cents) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= eps
}

// SplitByRate divides amount into a platform part computed as
// round(amount * ratePercent / 100) and the seller remainder. The two parts
// always sum back to amount exactly; any drift is a calculation error.
func SplitByRate(amount Cents, ratePercent decimal.Decimal) (platform Cents, remainder Cents, err error) {
	if amount < 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if ratePercent.IsNegative() || ratePercent.GreaterThan(decimal.NewFromInt(100)) {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "rate must be between 0 and 100")
	}
	part := decimal.NewFromInt(int64(amount)).
		Mul(ratePercent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	platform = Cents(part.IntPart())
	remainder = amount - platform
	if platform+remainder != amount {
		return 0, 0, pkgerrors.New(pkgerrors.CodeCalculation,
			fmt.Sprintf("rate split drift: %d + %d != %d", platform, remainder, amount))
	}
	return platform, remainder, nil
}

// PercentageOf returns round(base * percent / 100) in cents.
func PercentageOf(base Cents, percent decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(base)).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart())
}
