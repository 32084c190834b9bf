package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-verdict/config"
)

// Config holds the feature pipeline parameters.
type Config struct {
	SampleRate      int     `json:"sample_rate"`
	WindowSize      int     `json:"window_size"`
	HopSize         int     `json:"hop_size"`
	MelBands        int     `json:"mel_bands"`
	EnvelopeBins    int     `json:"envelope_bins"`
	RolloffFraction float64 `json:"rolloff_fraction"`
	DCCutoffHz      float64 `json:"dc_cutoff_hz"` // 0 disables DC removal
}

// DefaultConfig returns the default feature configuration.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom builds the pipeline configuration from the service config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		SampleRate:      cfg.Audio.SampleRate,
		WindowSize:      cfg.Features.WindowSize,
		HopSize:         cfg.Features.HopSize,
		MelBands:        cfg.Features.MelBands,
		EnvelopeBins:    cfg.Features.EnvelopeBins,
		RolloffFraction: cfg.Features.Rolloff,
		DCCutoffHz:      cfg.Features.DCCutoffHz,
	}
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.WindowSize <= 0 || c.HopSize <= 0:
		return fmt.Errorf("window (%d) and hop (%d) must be positive", c.WindowSize, c.HopSize)
	case c.MelBands <= 0 || c.EnvelopeBins <= 0:
		return fmt.Errorf("mel bands (%d) and envelope bins (%d) must be positive", c.MelBands, c.EnvelopeBins)
	case c.RolloffFraction <= 0 || c.RolloffFraction > 1:
		return fmt.Errorf("rolloff fraction must be in (0, 1], got %v", c.RolloffFraction)
	}
	return nil
}
