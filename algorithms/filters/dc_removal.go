package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// See J. O. Smith, "Introduction to Digital Filters", DC Blocker.
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCRemoval creates a DC blocker with the default pole (0.995).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff derives the pole from a -3dB cutoff using
// R = 1 - 2*pi*fc/fs, clamped into (0, 1).
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	if sampleRate <= 0 || cutoffFreq <= 0 {
		return NewDCRemoval()
	}

	r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	switch {
	case r >= 1.0:
		r = 0.999
	case r <= 0.0:
		r = 0.9
	}

	return &DCRemoval{poleLocation: r}
}

// PoleLocation returns R.
func (dc *DCRemoval) PoleLocation() float64 {
	return dc.poleLocation
}

// Reset clears the filter state.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// Process filters a whole buffer into a new slice, starting from a clean
// state. The input is not modified.
func (dc *DCRemoval) Process(signal []float64) []float64 {
	dc.Reset()

	out := make([]float64, len(signal))
	for i, x := range signal {
		y := x - dc.x1 + dc.poleLocation*dc.y1
		dc.x1 = x
		dc.y1 = y
		out[i] = y
	}

	return out
}
