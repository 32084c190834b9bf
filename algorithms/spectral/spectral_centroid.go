package spectral

// SpectralCentroid computes the magnitude-weighted mean frequency.
type SpectralCentroid struct {
	sampleRate int
	freqBins   []float64
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
	}
}

// Compute returns the centroid in Hz, or 0 for a silent spectrum.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) < 2 {
		return 0.0
	}

	if len(sc.freqBins) != len(spectrum) {
		sc.freqBins = binFrequencies(len(spectrum), sc.sampleRate)
	}

	numerator := 0.0
	denominator := 0.0
	for i, m := range spectrum {
		numerator += sc.freqBins[i] * m
		denominator += m
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// ComputeFrames processes multiple frames
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
	}
	return centroids
}

// binFrequencies returns the centre frequency of each of numBins bins of a
// one-sided spectrum.
func binFrequencies(numBins, sampleRate int) []float64 {
	freqs := make([]float64, numBins)
	if numBins < 2 {
		return freqs
	}
	for i := range numBins {
		freqs[i] = float64(i) * float64(sampleRate) / float64((numBins-1)*2)
	}
	return freqs
}
