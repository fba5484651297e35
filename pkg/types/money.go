package types

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrAmountOverflow is returned when an amount no longer fits in int64 minor units.
var ErrAmountOverflow = errors.New("amount exceeds int64 minor units")

var (
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
	minMinorUnits = decimal.NewFromInt(math.MinInt64)
)

// Money pairs an integer minor-unit amount with its currency and a display string.
type Money struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Display     string `json:"display"`
}

// NewMoney builds a Money value from a minor-unit amount.
func NewMoney(cents int64, currency string) Money {
	return Money{
		AmountCents: cents,
		Currency:    currency,
		Display:     FormatMinorUnits(cents),
	}
}

// FormatMinorUnits renders an integer minor-unit amount with two decimal places.
func FormatMinorUnits(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

// MultiplyMinorUnits returns quantity * unit, or ErrAmountOverflow when the product leaves int64.
func MultiplyMinorUnits(unitCents int64, quantity int) (int64, error) {
	return fit(decimal.NewFromInt(unitCents).Mul(decimal.NewFromInt(int64(quantity))))
}

// AddMinorUnits returns a + b, or ErrAmountOverflow when the sum leaves int64.
func AddMinorUnits(a, b int64) (int64, error) {
	return fit(decimal.NewFromInt(a).Add(decimal.NewFromInt(b)))
}

func fit(d decimal.Decimal) (int64, error) {
	if d.GreaterThan(maxMinorUnits) || d.LessThan(minMinorUnits) {
		return 0, ErrAmountOverflow
	}
	return d.IntPart(), nil
}
