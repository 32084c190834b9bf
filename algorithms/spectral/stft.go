package spectral

import (
	"fmt"
	"runtime"
	"sync"
)

// Window is applied to every frame before the FFT.
type Window interface {
	ApplyInPlace(frame []float64) error
}

// STFT computes magnitude spectrograms.
type STFT struct {
	fft *FFT
}

// STFTResult holds a Time x Frequency magnitude matrix.
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`
	TimeFrames     int         `json:"time_frames"`
	FreqBins       int         `json:"freq_bins"`
	SampleRate     int         `json:"sample_rate"`
	WindowSize     int         `json:"window_size"`
	HopSize        int         `json:"hop_size"`
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute splits signal into frames of windowSize every hopSize samples and
// returns their magnitude spectra. Signals shorter than one window are
// zero-padded to a single frame, so every non-empty input yields at least
// one frame.
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if len(signal) < windowSize {
		padded := make([]float64, windowSize)
		copy(padded, signal)
		signal = padded
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, 1)

	var wg sync.WaitGroup
	for range workerCount(numFrames) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frame := make([]float64, windowSize)
			for idx := range jobs {
				start := idx * hopSize
				copy(frame, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frame); err != nil {
						select {
						case errs <- err:
						default:
						}
						continue
					}
				}

				mags := s.fft.Magnitude(frame)
				magnitude[idx] = mags[:freqBins]
			}
		}()
	}

	for idx := range numFrames {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errs:
		return nil, fmt.Errorf("failed to window frame: %w", err)
	default:
	}

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
	}, nil
}

// MeanSpectrum averages the magnitude over all frames.
func (r *STFTResult) MeanSpectrum() []float64 {
	mean := make([]float64, r.FreqBins)
	if r.TimeFrames == 0 {
		return mean
	}
	for _, frame := range r.Magnitude {
		for f, m := range frame {
			mean[f] += m
		}
	}
	for f := range mean {
		mean[f] /= float64(r.TimeFrames)
	}
	return mean
}

// workerCount keeps small workloads on few goroutines.
func workerCount(numFrames int) int {
	numCPU := runtime.NumCPU()
	switch {
	case numFrames < 100:
		return max(1, min(numCPU/2, numFrames))
	case numFrames < 1000:
		return min(numCPU, 8)
	default:
		return numCPU
	}
}
