package spectral

import (
	"math"
)

// SpectralFlatness computes the Wiener entropy: geometric mean over
// arithmetic mean of the magnitude spectrum. Tonal content is near 0,
// white noise near 1.
type SpectralFlatness struct {
	minThreshold float64
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// Compute returns flatness in [0, 1]; silent spectra give 0.
func (sf *SpectralFlatness) Compute(magnitudeSpectrum []float64) float64 {
	if len(magnitudeSpectrum) == 0 {
		return 0.0
	}

	// bins below the floor count at the floor so that near-empty bins pull
	// the geometric mean down instead of being ignored
	logSum := 0.0
	arithmeticMean := 0.0
	for _, magnitude := range magnitudeSpectrum {
		arithmeticMean += magnitude
		logSum += math.Log(math.Max(magnitude, sf.minThreshold))
	}
	arithmeticMean /= float64(len(magnitudeSpectrum))

	if arithmeticMean <= sf.minThreshold {
		return 0.0
	}

	flatness := math.Exp(logSum/float64(len(magnitudeSpectrum))) / arithmeticMean
	return math.Min(flatness, 1.0)
}

// ComputeFrames processes multiple frames
func (sf *SpectralFlatness) ComputeFrames(spectrogram [][]float64) []float64 {
	values := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		values[t] = sf.Compute(spectrum)
	}
	return values
}
