package common

import (
	"math"
)

// MaxEpsilon is the smallest maximum that is still treated as a usable scale.
// Anything at or below it (silence, all-negative input) is degenerate.
const MaxEpsilon = 1e-12

// NormalizeByMax divides every entry by the slice maximum and returns a new
// slice. When the maximum is not a usable scale (<= MaxEpsilon, NaN or Inf)
// the result is the all-zero vector of the same length, never NaN.
func NormalizeByMax(data []float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 || !AllFinite(data) {
		return out
	}

	m := Max(data)
	if m <= MaxEpsilon || math.IsInf(m, 0) {
		return out
	}

	for i, v := range data {
		out[i] = v / m
	}
	return out
}

// ScaleRowsByGlobalMax divides every entry of the matrix by its global
// maximum, in place. It reports the maximum that was used; a degenerate
// maximum leaves the matrix untouched and returns 0.
func ScaleRowsByGlobalMax(rows [][]float64) float64 {
	m := math.Inf(-1)
	for _, row := range rows {
		for _, v := range row {
			if v > m {
				m = v
			}
		}
	}

	if m <= MaxEpsilon || math.IsInf(m, 0) || math.IsNaN(m) {
		return 0
	}

	for _, row := range rows {
		for i := range row {
			row[i] /= m
		}
	}
	return m
}
