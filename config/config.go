// Package config holds the service configuration: audio format, feature
// extraction, label set, training and prediction constants, and the
// transport endpoint. It is stored as YAML in the working directory and
// created with defaults the first time the service starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// DefaultConfigFile is the configuration filename inside the working directory.
const DefaultConfigFile = "config.yaml"

// Config is the complete service configuration.
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Features  FeatureConfig   `yaml:"features"`
	Labels    LabelConfig     `yaml:"labels"`
	Training  TrainingConfig  `yaml:"training"`
	Predict   PredictConfig   `yaml:"predict"`
	Transport TransportConfig `yaml:"transport"`
	LogLevel  string          `yaml:"log_level"`

	path string
}

// AudioConfig describes how clips are decoded.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	FFmpegPath string `yaml:"ffmpeg_path"` // fallback decoder, "" disables it
}

// FeatureConfig configures the feature pipeline. The feature vector length
// depends only on MelBands and EnvelopeBins.
type FeatureConfig struct {
	WindowSize   int     `yaml:"window_size"`
	HopSize      int     `yaml:"hop_size"`
	MelBands     int     `yaml:"mel_bands"`
	EnvelopeBins int     `yaml:"envelope_bins"`
	Rolloff      float64 `yaml:"rolloff"`
	DCCutoffHz   float64 `yaml:"dc_cutoff_hz"` // 0 disables DC removal
}

// LabelConfig is the ordered label set. A label's index is its position.
type LabelConfig struct {
	Names    []string `yaml:"names"`
	Target   string   `yaml:"target"`   // label that short-circuits prediction
	Fallback string   `yaml:"fallback"` // answer when no segment matches Target
}

// TrainingConfig holds defaults used when a train request omits values.
type TrainingConfig struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationRatio float64 `yaml:"validation_ratio"`
	Seed            uint64  `yaml:"seed"`
	LearningRate    float64 `yaml:"learning_rate"`
}

// PredictConfig controls segment iteration. The number of segments is
// int((2T-1)*N + 1), each N/(2TN) = 1/(2T) of the recording long.
type PredictConfig struct {
	T              float64 `yaml:"t"`
	N              int     `yaml:"n"`
	CacheArtifacts bool    `yaml:"cache_artifacts"`
}

// TransportConfig names the local endpoint.
type TransportConfig struct {
	Network    string `yaml:"network"` // "unixpacket" or "unix"
	Endpoint   string `yaml:"endpoint"`
	MaxMessage int    `yaml:"max_message"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			FFmpegPath: "ffmpeg",
		},
		Features: FeatureConfig{
			WindowSize:   512,
			HopSize:      256,
			MelBands:     40,
			EnvelopeBins: 32,
			Rolloff:      0.85,
			DCCutoffHz:   20,
		},
		Labels: LabelConfig{
			Names:    []string{"ok", "ng"},
			Target:   "ok",
			Fallback: "ng",
		},
		Training: TrainingConfig{
			Epochs:          50,
			BatchSize:       16,
			ValidationRatio: 0.2,
			Seed:            42,
			LearningRate:    0.001,
		},
		Predict: PredictConfig{
			T: 2,
			N: 4,
		},
		Transport: TransportConfig{
			Network:    "unixpacket",
			Endpoint:   filepath.Join(os.TempDir(), "sonido-verdict.sock"),
			MaxMessage: 64 * 1024,
		},
		LogLevel: "info",
	}
}

// Load reads the configuration at path. A missing file is created with the
// defaults. Fields absent from an existing file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create config directory: %w", err)
			}
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no file path")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path ("" for an in-memory config).
func (c *Config) Path() string {
	return c.path
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Features.WindowSize <= 0 || c.Features.HopSize <= 0 {
		errs = append(errs, errors.New("features.window_size and features.hop_size must be positive"))
	}
	if c.Features.MelBands <= 0 || c.Features.EnvelopeBins <= 0 {
		errs = append(errs, errors.New("features.mel_bands and features.envelope_bins must be positive"))
	}
	if c.Features.Rolloff <= 0 || c.Features.Rolloff > 1 {
		errs = append(errs, fmt.Errorf("features.rolloff must be in (0, 1], got %v", c.Features.Rolloff))
	}

	if len(c.Labels.Names) < 2 {
		errs = append(errs, errors.New("labels.names needs at least two labels"))
	}
	seen := make(map[string]bool, len(c.Labels.Names))
	for _, name := range c.Labels.Names {
		switch {
		case name == "":
			errs = append(errs, errors.New("labels.names contains an empty label"))
		case seen[name]:
			errs = append(errs, fmt.Errorf("labels.names contains %q twice", name))
		}
		seen[name] = true
	}
	if !seen[c.Labels.Target] {
		errs = append(errs, fmt.Errorf("labels.target %q is not in labels.names", c.Labels.Target))
	}

	if c.Training.ValidationRatio <= 0 || c.Training.ValidationRatio >= 1 {
		errs = append(errs, fmt.Errorf("training.validation_ratio must be in (0, 1), got %v", c.Training.ValidationRatio))
	}
	if c.Training.LearningRate <= 0 {
		errs = append(errs, errors.New("training.learning_rate must be positive"))
	}

	if c.Predict.T < 0.5 || c.Predict.N <= 0 {
		errs = append(errs, fmt.Errorf("predict.t must be >= 0.5 and predict.n positive, got t=%v n=%d", c.Predict.T, c.Predict.N))
	}

	switch c.Transport.Network {
	case "unixpacket", "unix":
	default:
		errs = append(errs, fmt.Errorf("transport.network must be unixpacket or unix, got %q", c.Transport.Network))
	}
	if c.Transport.Endpoint == "" {
		errs = append(errs, errors.New("transport.endpoint is required"))
	}
	if c.Transport.MaxMessage <= 0 {
		errs = append(errs, errors.New("transport.max_message must be positive"))
	}

	return errors.Join(errs...)
}
