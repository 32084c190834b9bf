package spectral

import (
	"math"
)

// MelScale converts between Hz and mel and builds triangular filter banks.
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// FilterBank returns numFilters triangular filters over fftSize/2+1 bins
// spanning [lowFreq, highFreq].
func (ms *MelScale) FilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)
	melStep := (highMel - lowMel) / float64(numFilters+1)

	binPoints := make([]int, numFilters+2)
	for i := range binPoints {
		hz := ms.MelToHz(lowMel + float64(i)*melStep)
		bin := int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		binPoints[i] = min(bin, fftSize/2)
	}

	numBins := fftSize/2 + 1
	bank := make([][]float64, numFilters)
	for m := 1; m <= numFilters; m++ {
		filter := make([]float64, numBins)
		left, center, right := binPoints[m-1], binPoints[m], binPoints[m+1]

		for k := left; k < center; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		// narrow filters at low resolution can collapse to a single bin
		if left == center && center == right {
			filter[center] = 1
		}

		bank[m-1] = filter
	}

	return bank
}

// Apply returns the filter-weighted sum of powerSpectrum per filter.
func (ms *MelScale) Apply(powerSpectrum []float64, bank [][]float64) []float64 {
	out := make([]float64, len(bank))
	for i, filter := range bank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		out[i] = sum
	}
	return out
}
