// Package q15 provides fixed-point arithmetic on Q15 values: signed
// 16-bit integers representing the range [-1, 1) with 15 fractional
// bits. All control-loop math in this project runs on Q15 counts; the
// helpers here mirror the multiply, scale, and fractional-divide
// primitives of the DSP the algorithms were designed for.
package q15

import (
	"fmt"
	"math"
)

// Limits and frequently used constants, in Q15 counts.
const (
	Max = math.MaxInt16
	Min = math.MinInt16

	// NearUnity is Q15(0.999), the ceiling applied to the shaped
	// current reference.
	NearUnity = 32735

	// AlmostOne is Q15(0.9999), the pass-through gain used when a
	// correction factor cannot be formed.
	AlmostOne = 32764
)

// Mul returns the Q15 product of a and b: the 32-bit product shifted
// right by 15. No saturation is applied; only Min*Min overflows, and
// callers never form that product.
func Mul(a, b int16) int16 {
	return int16((int32(a) * int32(b)) >> 15)
}

// MulScale returns the 32-bit product of a and b arithmetic-shifted
// right by scale. Gains expressed as mantissa and shift use this to
// keep intermediate precision.
func MulScale(a, b int16, scale uint) int32 {
	return (int32(a) * int32(b)) >> scale
}

// Div returns the Q15 ratio num/den, computed as (num<<15)/den and
// saturated to the int16 range. A zero den panics; callers guard the
// denominator before dividing.
func Div(num, den int16) int16 {
	return Sat((int32(num) << 15) / int32(den))
}

// Sat clamps a 32-bit value to the int16 range.
func Sat(v int32) int16 {
	if v > Max {
		return Max
	}
	if v < Min {
		return Min
	}
	return int16(v)
}

// FromFloat converts x to Q15 counts, truncating toward zero. It
// panics unless x lies in [-1, 1). Intended for configuration values
// and test fixtures, not per-sample math.
func FromFloat(x float64) int16 {
	if x < -1 || x >= 1 {
		panic(fmt.Sprintf("q15.FromFloat(%v): argument outside [-1, 1)", x))
	}
	return int16(x * 32768)
}

// ToFloat converts Q15 counts to the float64 it represents.
func ToFloat(v int16) float64 {
	return float64(v) / 32768
}
