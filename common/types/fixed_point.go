package types

import (
	"github.com/shopspring/decimal"
)

// FixedPointScale is the number of decimal digits that a FixedPoint carries.
// Four digits is enough to represent every quantity the scheduler hands out
// (whole slots, halves, quarters, millicpu-style fractions) without drift.
const FixedPointScale int32 = 4

// Zero is the additive identity of FixedPoint.
var Zero = FixedPoint{}

// FixedPoint is an exact decimal quantity at a fixed scale of FixedPointScale
// digits. Unlike a float64, repeated add/subtract cycles over a FixedPoint
// return exactly to their starting value, which is what makes the resource
// books balance after arbitrarily many acquire/release round trips.
//
// The zero value is a valid FixedPoint equal to 0.
type FixedPoint struct {
	value decimal.Decimal
}

// NewFixedPoint converts a real-valued quantity to a FixedPoint, rounding to
// the nearest representable value. Small integers and common fractions such
// as 1/2 and 1/4 convert exactly.
func NewFixedPoint(quantity float64) FixedPoint {
	return FixedPoint{value: decimal.NewFromFloat(quantity).Round(FixedPointScale)}
}

// NewFixedPointFromInt converts an integer quantity to a FixedPoint. The
// conversion is always exact.
func NewFixedPointFromInt(quantity int64) FixedPoint {
	return FixedPoint{value: decimal.NewFromInt(quantity)}
}

// Add returns q + other.
func (q FixedPoint) Add(other FixedPoint) FixedPoint {
	return FixedPoint{value: q.value.Add(other.value)}
}

// Sub returns q − other.
func (q FixedPoint) Sub(other FixedPoint) FixedPoint {
	return FixedPoint{value: q.value.Sub(other.value)}
}

// Mul returns q × other, rounded back to FixedPointScale digits.
func (q FixedPoint) Mul(other FixedPoint) FixedPoint {
	return FixedPoint{value: q.value.Mul(other.value).Round(FixedPointScale)}
}

// Div returns q ÷ other, rounded to FixedPointScale digits.
func (q FixedPoint) Div(other FixedPoint) FixedPoint {
	return FixedPoint{value: q.value.DivRound(other.value, FixedPointScale)}
}

// Neg returns −q.
func (q FixedPoint) Neg() FixedPoint {
	return FixedPoint{value: q.value.Neg()}
}

// Equals returns true if the two quantities are exactly equal.
func (q FixedPoint) Equals(other FixedPoint) bool {
	return q.value.Equal(other.value)
}

// LessThan returns true if q < other.
func (q FixedPoint) LessThan(other FixedPoint) bool {
	return q.value.LessThan(other.value)
}

// LessThanOrEqual returns true if q ≤ other.
func (q FixedPoint) LessThanOrEqual(other FixedPoint) bool {
	return q.value.LessThanOrEqual(other.value)
}

// GreaterThan returns true if q > other.
func (q FixedPoint) GreaterThan(other FixedPoint) bool {
	return q.value.GreaterThan(other.value)
}

// GreaterThanOrEqual returns true if q ≥ other.
func (q FixedPoint) GreaterThanOrEqual(other FixedPoint) bool {
	return q.value.GreaterThanOrEqual(other.value)
}

// IsZero returns true if q == 0.
func (q FixedPoint) IsZero() bool {
	return q.value.IsZero()
}

// IsNegative returns true if q < 0.
func (q FixedPoint) IsNegative() bool {
	return q.value.IsNegative()
}

// IsPositive returns true if q > 0.
func (q FixedPoint) IsPositive() bool {
	return q.value.IsPositive()
}

// IsWhole returns true if q carries no fractional part. Constructing a slot
// ledger, which only accepts integral capacities, gates on this predicate.
func (q FixedPoint) IsWhole() bool {
	return q.value.IsInteger()
}

// IntPart returns the integer part of q, truncating toward zero.
func (q FixedPoint) IntPart() int64 {
	return q.value.IntPart()
}

// InexactFloat64 returns the nearest float64 to q. The conversion is lossy
// in general; use it only for rendering and interop, never for accounting.
func (q FixedPoint) InexactFloat64() float64 {
	return q.value.InexactFloat64()
}

// String returns the decimal rendering of q.
func (q FixedPoint) String() string {
	return q.value.String()
}
