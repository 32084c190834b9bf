// Package predictor decides whether a recording matches the target label by
// classifying overlapping segments of it.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/RyanBlaney/sonido-verdict/config"
	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/nn"
	"github.com/RyanBlaney/sonido-verdict/transcode"
	"github.com/RyanBlaney/sonido-verdict/workspace"
)

// ErrArtifactMismatch is returned when the stored classifier does not fit the
// current feature pipeline or label set.
var ErrArtifactMismatch = errors.New("artifact does not match feature pipeline or labels")

// Model is a trained classifier.
type Model interface {
	Inputs() int
	Outputs() int
	Labels() []string
	PredictClass(x []float64) (int, error)
}

// ModelLoader reads a model from an artifact file.
type ModelLoader func(path string) (Model, error)

// LoadArtifact is the default ModelLoader.
func LoadArtifact(path string) (Model, error) {
	return nn.Load(path)
}

// Decoder reads an audio file as mono PCM at a fixed rate.
type Decoder interface {
	DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error)
}

// FeatureExtractor turns a waveform into a fixed-length vector.
type FeatureExtractor interface {
	Extract(waveform []float64, sampleRate int) ([]float64, error)
	Dimension() int
}

// Options holds prediction settings.
type Options struct {
	Labels         []string
	Target         string // label that ends the scan
	Fallback       string // answer when no segment is Target
	T              float64
	N              int
	CacheArtifacts bool
}

// OptionsFrom builds predictor options from the service config.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Labels:         cfg.Labels.Names,
		Target:         cfg.Labels.Target,
		Fallback:       cfg.Labels.Fallback,
		T:              cfg.Predict.T,
		N:              cfg.Predict.N,
		CacheArtifacts: cfg.Predict.CacheArtifacts,
	}
}

// Predictor classifies recordings segment by segment.
type Predictor struct {
	opts      Options
	decoder   Decoder
	extractor FeatureExtractor
	ws        *workspace.Workspace
	loadModel ModelLoader
	cache     *artifactCache
	logger    logging.Logger
}

// New creates a predictor. A nil loader uses LoadArtifact.
func New(opts Options, decoder Decoder, extractor FeatureExtractor, ws *workspace.Workspace, loader ModelLoader) *Predictor {
	if loader == nil {
		loader = LoadArtifact
	}
	if opts.Fallback == "" {
		opts.Fallback = "ng"
	}

	p := &Predictor{
		opts:      opts,
		decoder:   decoder,
		extractor: extractor,
		ws:        ws,
		loadModel: loader,
		logger: logging.WithFields(logging.Fields{
			"component": "predictor",
		}),
	}
	if opts.CacheArtifacts {
		p.cache = &artifactCache{}
	}
	return p
}

// InvalidateCache drops any cached model. Safe to call with caching off.
func (p *Predictor) InvalidateCache() {
	if p.cache != nil {
		p.cache.invalidate()
	}
}

// Predict classifies {root}/audio/{wavIndex}.wav and reports whether the
// answer equals target.
func (p *Predictor) Predict(ctx context.Context, wavIndex int, artifactPath, target string) (bool, error) {
	if wavIndex < 0 {
		return false, fmt.Errorf("invalid audio index %d", wavIndex)
	}

	label, err := p.PredictFile(ctx, p.ws.AudioPath(wavIndex), artifactPath)
	if err != nil {
		return false, err
	}
	return label == target, nil
}

// PredictFile returns the target label as soon as one segment of filePath is
// classified as it, or the fallback label when none is.
func (p *Predictor) PredictFile(ctx context.Context, filePath, artifactPath string) (string, error) {
	logger := p.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "PredictFile",
		"file":     filePath,
		"artifact": artifactPath,
	})

	model, err := p.model(artifactPath)
	if err != nil {
		return "", err
	}
	if model.Inputs() != p.extractor.Dimension() {
		return "", fmt.Errorf("%w: artifact expects %d features, pipeline produces %d",
			ErrArtifactMismatch, model.Inputs(), p.extractor.Dimension())
	}
	if model.Outputs() != len(p.opts.Labels) {
		return "", fmt.Errorf("%w: artifact has %d classes, %d labels configured",
			ErrArtifactMismatch, model.Outputs(), len(p.opts.Labels))
	}
	if !slices.Equal(model.Labels(), p.opts.Labels) {
		return "", fmt.Errorf("%w: artifact labels %v, configured %v",
			ErrArtifactMismatch, model.Labels(), p.opts.Labels)
	}

	audio, err := p.decoder.DecodeFile(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to load recording: %w", err)
	}

	spans := Segments(len(audio.PCM), p.opts.T, p.opts.N)
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		features, err := p.extractor.Extract(audio.PCM[span.Start:span.End], audio.SampleRate)
		if err != nil {
			return "", fmt.Errorf("failed to extract features for segment %d: %w", i, err)
		}

		class, err := model.PredictClass(features)
		if err != nil {
			return "", fmt.Errorf("failed to classify segment %d: %w", i, err)
		}
		if class < 0 || class >= len(p.opts.Labels) {
			return "", fmt.Errorf("%w: class index %d out of range", ErrArtifactMismatch, class)
		}

		label := p.opts.Labels[class]
		if label == p.opts.Target {
			logger.Debug("Segment matched target label", logging.Fields{
				"segment": i,
				"of":      len(spans),
				"label":   label,
			})
			return label, nil
		}
	}

	logger.Debug("No segment matched target label", logging.Fields{
		"segments": len(spans),
		"label":    p.opts.Fallback,
	})
	return p.opts.Fallback, nil
}

func (p *Predictor) model(artifactPath string) (Model, error) {
	if p.cache == nil {
		m, err := p.loadModel(artifactPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier: %w", err)
		}
		return m, nil
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	if m, ok := p.cache.get(artifactPath, info); ok {
		return m, nil
	}

	m, err := p.loadModel(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	p.cache.put(artifactPath, info, m)
	return m, nil
}
