package transcode

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another.
func Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}

	out, err := resampling.ResampleMono(samples, float64(fromRate), float64(toRate), resampling.QualityHigh)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %d -> %d: %w", fromRate, toRate, err)
	}

	return out, nil
}
