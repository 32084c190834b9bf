// Package features turns a mono waveform into the fixed-length vector the
// classifier consumes: a time-domain descriptor followed by a
// frequency-domain descriptor, scaled by the vector's own maximum.
package features

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-verdict/algorithms/common"
	"github.com/RyanBlaney/sonido-verdict/algorithms/filters"
	"github.com/RyanBlaney/sonido-verdict/algorithms/spectral"
	"github.com/RyanBlaney/sonido-verdict/algorithms/temporal"
	"github.com/RyanBlaney/sonido-verdict/algorithms/windowing"
	"github.com/RyanBlaney/sonido-verdict/logging"
)

// timeScalars is the number of scalar time-domain features ahead of the
// RMS envelope.
const timeScalars = 8

// spectralScalars is the number of scalar spectral-shape features after
// the mel bands.
const spectralScalars = 3

// Extractor computes feature vectors. It is not safe for concurrent use.
type Extractor struct {
	config Config
	logger logging.Logger

	window  *windowing.Hann
	stft    *spectral.STFT
	melBank [][]float64
	mel     *spectral.MelScale

	energy       *temporal.Energy
	zeroCrossing *temporal.ZeroCrossingRate

	spectralCentroid *spectral.SpectralCentroid
	spectralRolloff  *spectral.SpectralRolloff
	spectralFlatness *spectral.SpectralFlatness
}

// NewExtractor creates a feature extractor
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config: %w", err)
	}

	mel := spectral.NewMelScale()
	nyquist := float64(cfg.SampleRate) / 2

	return &Extractor{
		config: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),

		window:  windowing.NewHann(cfg.WindowSize, false),
		stft:    spectral.NewSTFT(),
		mel:     mel,
		melBank: mel.FilterBank(cfg.MelBands, cfg.WindowSize, cfg.SampleRate, 0, nyquist),

		energy:       temporal.NewEnergy(cfg.WindowSize, cfg.HopSize),
		zeroCrossing: temporal.NewZeroCrossingRate(cfg.WindowSize, cfg.HopSize),

		spectralCentroid: spectral.NewSpectralCentroid(cfg.SampleRate),
		spectralRolloff:  spectral.NewSpectralRolloff(cfg.SampleRate),
		spectralFlatness: spectral.NewSpectralFlatness(),
	}, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.config
}

// Dimension is the length of every vector Extract returns.
func (e *Extractor) Dimension() int {
	return timeScalars + e.config.EnvelopeBins + e.config.MelBands + spectralScalars
}

// Extract returns the normalized feature vector of waveform. The waveform must
// be mono at the configured sampling rate. Every entry lies in [0, 1]; when
// the raw vector has no usable maximum the zero vector is returned.
func (e *Extractor) Extract(waveform []float64, sampleRate int) ([]float64, error) {
	if sampleRate != e.config.SampleRate {
		return nil, fmt.Errorf("sample rate %d does not match extractor rate %d", sampleRate, e.config.SampleRate)
	}

	signal := e.prepare(waveform)

	timeFeatures := e.TimeDomain(signal)
	freqFeatures, err := e.FrequencyDomain(signal)
	if err != nil {
		return nil, err
	}

	raw := make([]float64, 0, e.Dimension())
	raw = append(raw, timeFeatures...)
	raw = append(raw, freqFeatures...)

	if len(raw) != e.Dimension() {
		return nil, fmt.Errorf("feature length %d does not match dimension %d", len(raw), e.Dimension())
	}

	vector := common.NormalizeByMax(raw)

	e.logger.Debug("Extracted feature vector", logging.Fields{
		"samples":   len(waveform),
		"dimension": len(vector),
	})

	return vector, nil
}

// prepare removes DC, replaces non-finite samples and zero-pads to one window.
func (e *Extractor) prepare(waveform []float64) []float64 {
	signal := make([]float64, max(len(waveform), e.config.WindowSize))
	for i, v := range waveform {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		signal[i] = v
	}

	if e.config.DCCutoffHz > 0 {
		dc := filters.NewDCRemovalWithCutoff(e.config.SampleRate, e.config.DCCutoffHz)
		signal = dc.Process(signal)
	}

	return signal
}

// TimeDomain returns RMS energy statistics, zero crossing statistics, peak and
// mean magnitude, energy entropy and the RMS envelope resampled to
// EnvelopeBins points. All values are non-negative.
func (e *Extractor) TimeDomain(signal []float64) []float64 {
	rms := e.energy.ShortTimeRMS(signal)
	zcr := e.zeroCrossing.ComputeFrames(signal)

	out := make([]float64, 0, timeScalars+e.config.EnvelopeBins)
	out = append(out,
		common.Mean(rms),
		common.StandardDeviation(rms),
		common.Max(rms),
		common.Mean(zcr),
		common.StandardDeviation(zcr),
		common.PeakAbs(signal),
		common.MeanAbs(signal),
		e.energy.Entropy(rms),
	)
	out = append(out, common.ResampleLinear(rms, e.config.EnvelopeBins)...)

	return out
}

// FrequencyDomain returns the square root of the mel band power of the mean
// Hann-windowed magnitude spectrum, followed by mean centroid and rolloff
// (both relative to Nyquist) and mean spectral flatness.
func (e *Extractor) FrequencyDomain(signal []float64) ([]float64, error) {
	result, err := e.stft.Compute(signal, e.config.WindowSize, e.config.HopSize, e.config.SampleRate, e.window)
	if err != nil {
		return nil, fmt.Errorf("failed to compute spectrogram: %w", err)
	}

	mean := result.MeanSpectrum()
	power := make([]float64, len(mean))
	for i, m := range mean {
		power[i] = m * m
	}

	bands := e.mel.Apply(power, e.melBank)
	for i, p := range bands {
		bands[i] = math.Sqrt(p)
	}

	nyquist := float64(e.config.SampleRate) / 2
	centroid := common.Mean(e.spectralCentroid.ComputeFrames(result.Magnitude)) / nyquist
	rolloff := common.Mean(e.spectralRolloff.ComputeFrames(result.Magnitude, e.config.RolloffFraction)) / nyquist
	flatness := common.Mean(e.spectralFlatness.ComputeFrames(result.Magnitude))

	out := make([]float64, 0, e.config.MelBands+spectralScalars)
	out = append(out, bands...)
	out = append(out, centroid, rolloff, flatness)

	return out, nil
}
