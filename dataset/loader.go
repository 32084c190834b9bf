package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/transcode"
)

// Decoder reads an audio file as mono PCM at a fixed rate.
type Decoder interface {
	DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error)
}

// FeatureExtractor turns a waveform into a fixed-length vector.
type FeatureExtractor interface {
	Extract(waveform []float64, sampleRate int) ([]float64, error)
	Dimension() int
}

// Loader builds datasets from label folders.
type Loader struct {
	decoder   Decoder
	extractor FeatureExtractor
	logger    logging.Logger
}

// NewLoader creates a dataset loader
func NewLoader(decoder Decoder, extractor FeatureExtractor) *Loader {
	return &Loader{
		decoder:   decoder,
		extractor: extractor,
		logger: logging.WithFields(logging.Fields{
			"component": "dataset_loader",
		}),
	}
}

// Load reads root/<label>/*.wav for every label in order and returns the
// feature matrix scaled by its global maximum. Row i has label index Y[i].
// A missing label folder, an unreadable clip or an empty result fails the
// whole load.
func (l *Loader) Load(ctx context.Context, root string, labels []string) (*Dataset, error) {
	logger := l.logger.WithFields(logging.Fields{
		"function": "Load",
		"root":     root,
	})

	start := time.Now()
	ds := &Dataset{}

	for idx, label := range labels {
		files, err := listClips(filepath.Join(root, label))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLabelFolder, label, err)
		}

		logger.Debug("Loading label folder", logging.Fields{
			"label": label,
			"clips": len(files),
		})

		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			vector, err := l.loadClip(ctx, file)
			if err != nil {
				return nil, err
			}

			ds.X = append(ds.X, vector)
			ds.Y = append(ds.Y, idx)
			ds.Files = append(ds.Files, file)
		}
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no .wav files under %s", ErrEmptyDataset, root)
	}

	scale := ds.ScaleByMax()

	logger.Info("Dataset loaded", logging.Fields{
		"rows":         ds.Len(),
		"dimension":    ds.Dimension(),
		"class_counts": ds.ClassCounts(len(labels)),
		"scale":        scale,
		"duration_ms":  time.Since(start).Milliseconds(),
	})

	return ds, nil
}

func (l *Loader) loadClip(ctx context.Context, file string) ([]float64, error) {
	audio, err := l.decoder.DecodeFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", file, err)
	}

	vector, err := l.extractor.Extract(audio.PCM, audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to extract features from %s: %w", file, err)
	}

	return vector, nil
}

// listClips returns the .wav files (any case) directly inside dir.
func listClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
