package math

import "math"

// Limits of the signed 16-bit coordinate space.
const (
	MinS16 = math.MinInt16
	MaxS16 = math.MaxInt16
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToS16 truncates f toward zero and clamps it into the int16 range.
func ToS16(f float64) int16 {
	if math.IsNaN(f) {
		return 0
	}
	if f <= MinS16 {
		return MinS16
	}
	if f >= MaxS16 {
		return MaxS16
	}
	return int16(math.Trunc(f))
}

// ToU8 truncates f toward zero and clamps it into [0, 255].
func ToU8(f float64) uint8 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(math.Trunc(f))
}

// Align rounds n up to the next multiple of a (a power of two).
func Align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}
