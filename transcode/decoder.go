package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-verdict/logging"
)

// ErrUnsupportedFormat is returned when the native decoder cannot read a file
// and no ffmpeg fallback is configured.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded mono audio.
type AudioData struct {
	PCM        []float64     `json:"-"` // samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source"`
	Decoder    string        `json:"decoder"` // "wav" or "ffmpeg"
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	FFmpegPath       string        `json:"ffmpeg_path"` // "" disables the fallback
	Timeout          time.Duration `json:"timeout"`     // per ffmpeg invocation
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 16000,
		FFmpegPath:       "ffmpeg",
		Timeout:          30 * time.Second,
	}
}

// Decoder turns audio files into mono PCM at a fixed sampling rate. WAV files
// are read natively; anything the native reader rejects is handed to ffmpeg.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// SampleRate returns the rate every decoded clip is converted to.
func (d *Decoder) SampleRate() int {
	return d.config.TargetSampleRate
}

// DecodeFile decodes an audio file and returns mono PCM at the target rate.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	audio, nativeErr := decodeWAV(f)
	if nativeErr == nil {
		audio.Source = filename
		audio.Decoder = "wav"
		return d.conform(audio, logger)
	}

	if d.config.FFmpegPath == "" {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, filename, nativeErr)
	}

	logger.Debug("Native WAV decode failed, falling back to ffmpeg", logging.Fields{
		"reason": nativeErr.Error(),
	})

	audio, err = d.decodeFileWithFFmpeg(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	return audio, nil
}

// conform resamples natively decoded audio to the target rate.
func (d *Decoder) conform(audio *AudioData, logger logging.Logger) (*AudioData, error) {
	if audio.SampleRate == d.config.TargetSampleRate {
		return audio, nil
	}

	logger.Debug("Resampling decoded audio", logging.Fields{
		"input_sample_rate":  audio.SampleRate,
		"target_sample_rate": d.config.TargetSampleRate,
		"samples":            len(audio.PCM),
	})

	pcm, err := Resample(audio.PCM, audio.SampleRate, d.config.TargetSampleRate)
	if err != nil {
		return nil, err
	}

	audio.PCM = pcm
	audio.SampleRate = d.config.TargetSampleRate
	audio.Duration = samplesDuration(len(pcm), audio.SampleRate)
	return audio, nil
}

func samplesDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
