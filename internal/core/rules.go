package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundDown floors value to a multiple of step. Quantities are never rounded
// up: an order sized above the available budget would over-spend.
func RoundDown(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

// FloorToLot truncates qty to the constraint's step multiple. The caller is
// responsible for checking MinQty afterwards.
func FloorToLot(qty decimal.Decimal, lot LotConstraint) decimal.Decimal {
	return RoundDown(qty, lot.StepSize)
}

// RoundSignificant rounds value to the given number of significant digits,
// e.g. RoundSignificant(0.0385777, 4) = 0.03858.
func RoundSignificant(value decimal.Decimal, digits int32) decimal.Decimal {
	if value.IsZero() || digits <= 0 {
		return value
	}
	magnitude := int32(math.Floor(math.Log10(math.Abs(value.InexactFloat64()))))
	return value.Round(digits - 1 - magnitude)
}
