package temporal

import (
	"math"
)

// Energy computes frame-based energy features of a time-domain signal.
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// ShortTimeRMS returns the RMS of each frame. A signal shorter than one
// frame is treated as a single zero-padded frame.
func (e *Energy) ShortTimeRMS(signal []float64) []float64 {
	if len(signal) == 0 || e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	if len(signal) < e.frameSize {
		sumSquares := 0.0
		for _, v := range signal {
			sumSquares += v * v
		}
		return []float64{math.Sqrt(sumSquares / float64(e.frameSize))}
	}

	numFrames := (len(signal)-e.frameSize)/e.hopSize + 1
	energies := make([]float64, numFrames)

	for i := range numFrames {
		start := i * e.hopSize
		sumSquares := 0.0
		for _, v := range signal[start : start+e.frameSize] {
			sumSquares += v * v
		}
		energies[i] = math.Sqrt(sumSquares / float64(e.frameSize))
	}

	return energies
}

// Entropy returns the Shannon entropy of the energy distribution over
// frames, divided by log2(frames) so that it lies in [0, 1].
func (e *Energy) Entropy(energies []float64) float64 {
	if len(energies) < 2 {
		return 0.0
	}

	total := 0.0
	for _, energy := range energies {
		total += energy
	}
	if total == 0.0 {
		return 0.0
	}

	entropy := 0.0
	for _, energy := range energies {
		if energy > 0.0 {
			p := energy / total
			entropy -= p * math.Log2(p)
		}
	}

	return entropy / math.Log2(float64(len(energies)))
}
