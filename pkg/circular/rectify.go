// Package circular unwraps series of periodic angles.
package circular

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// shifts is the number of whole-degree offsets tried by BestShift
const shifts = 360

// pmod returns a mod period in [0, period)
func pmod(a, period float64) float64 {
	m := math.Mod(a, period)
	if m < 0 {
		m += period
	}
	return m
}

// shift moves every angle by s, wraps it into [0, period) and moves it back
func shift(dst, angles []float64, s, period float64) []float64 {
	for i, a := range angles {
		dst[i] = pmod(a+s, period) - s
	}
	return dst
}

// BestShift returns the whole-degree offset s in [0, 360) whose wrapped
// series has the smallest peak-to-peak range. The smallest such s wins.
// It panics if period is not positive.
func BestShift(angles []float64, period float64) float64 {
	if period <= 0 {
		panic("circular: period must be positive")
	}
	if len(angles) == 0 {
		return 0
	}

	buf := make([]float64, len(angles))
	best := 0.0
	bestRange := math.Inf(1)
	for i := 0; i < shifts; i++ {
		s := float64(i)
		shift(buf, angles, s, period)
		if r := floats.Max(buf) - floats.Min(buf); r < bestRange {
			best, bestRange = s, r
		}
	}
	return best
}

// Rectify removes the wraparound from a series of angles that are only
// defined modulo period, choosing the representation with the smallest
// peak-to-peak range. Angles near 0 and near period end up adjacent, e.g.
// [179, 1, 2, 178] with period 180 becomes [-1, 1, 2, -2].
// The input is not modified.
func Rectify(angles []float64, period float64) []float64 {
	s := BestShift(angles, period)
	return shift(make([]float64, len(angles)), angles, s, period)
}

// Range returns the peak-to-peak spread of angles, 0 for an empty slice
func Range(angles []float64) float64 {
	if len(angles) == 0 {
		return 0
	}
	return floats.Max(angles) - floats.Min(angles)
}
