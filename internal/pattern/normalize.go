// Package pattern turns a measurement matrix into the run's artifacts: the
// raw CSV, a normalized polar plot per frequency point and an interactive
// HTML chart.
package pattern

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// MagnitudeDB returns 20*log10|v| for each value. A zero value is -Inf.
func MagnitudeDB(values []complex128) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = 20 * math.Log10(cmplx.Abs(v))
	}
	return out
}

// NormalizedDB returns the gain of each value in dB relative to the largest
// magnitude, so the peak is 0 dB.
func NormalizedDB(values []complex128) []float64 {
	db := MagnitudeDB(values)
	if len(db) == 0 {
		return db
	}
	peak := floats.Max(db)
	if math.IsInf(peak, -1) {
		return db
	}
	floats.AddConst(-peak, db)
	return db
}

// Clip raises every value below floor to floor.
func Clip(db []float64, floor float64) []float64 {
	out := make([]float64, len(db))
	for i, v := range db {
		if v < floor || math.IsNaN(v) {
			v = floor
		}
		out[i] = v
	}
	return out
}

// PatternAngles returns the n measurement angles in radians, evenly spaced
// over one revolution starting at zero.
func PatternAngles(n int) []float64 {
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	floats.Span(out, 0, 2*math.Pi*float64(n-1)/float64(n))
	return out
}
