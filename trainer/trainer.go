// Package trainer runs the load, split, fit, evaluate and persist cycle that
// produces the classifier artifact.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-verdict/config"
	"github.com/RyanBlaney/sonido-verdict/dataset"
	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/nn"
	"github.com/RyanBlaney/sonido-verdict/report"
	"github.com/RyanBlaney/sonido-verdict/runstore"
	"github.com/RyanBlaney/sonido-verdict/workspace"
)

// ErrTooFewSamples is returned when the dataset cannot be split into a
// training and a validation partition.
var ErrTooFewSamples = errors.New("dataset needs at least two clips")

// DatasetLoader builds a labeled feature matrix from a dataset root.
type DatasetLoader interface {
	Load(ctx context.Context, root string, labels []string) (*dataset.Dataset, error)
}

// RunRecorder stores completed runs.
type RunRecorder interface {
	Put(ctx context.Context, r *runstore.Run) error
}

// Options holds training settings.
type Options struct {
	Labels           []string
	DefaultEpochs    int
	DefaultBatchSize int
	ValidationRatio  float64
	Seed             uint64
	Network          nn.Config
}

// OptionsFrom builds trainer options from the service config.
func OptionsFrom(cfg *config.Config) Options {
	network := nn.DefaultConfig()
	network.LearningRate = cfg.Training.LearningRate
	network.Seed = cfg.Training.Seed

	return Options{
		Labels:           cfg.Labels.Names,
		DefaultEpochs:    cfg.Training.Epochs,
		DefaultBatchSize: cfg.Training.BatchSize,
		ValidationRatio:  cfg.Training.ValidationRatio,
		Seed:             cfg.Training.Seed,
		Network:          network,
	}
}

// Result is the outcome of a successful training call.
type Result struct {
	RunID     string
	Accuracy  float64 // on the validation partition
	Loss      float64
	Epochs    int
	BatchSize int
	TrainSize int
	ValSize   int
	History   *nn.History
}

// Trainer trains and persists the classifier.
type Trainer struct {
	opts    Options
	loader  DatasetLoader
	ws      *workspace.Workspace
	runs    RunRecorder
	onSaved []func(artifactPath string)
	logger  logging.Logger
}

// New creates a trainer. runs may be nil.
func New(opts Options, loader DatasetLoader, ws *workspace.Workspace, runs RunRecorder) *Trainer {
	return &Trainer{
		opts:   opts,
		loader: loader,
		ws:     ws,
		runs:   runs,
		logger: logging.WithFields(logging.Fields{
			"component": "trainer",
		}),
	}
}

// OnArtifactSaved registers fn to run after every successful artifact write.
func (t *Trainer) OnArtifactSaved(fn func(artifactPath string)) {
	t.onSaved = append(t.onSaved, fn)
}

// Train loads datasetRoot, fits a fresh classifier and replaces the artifact.
// Non-positive epochs or batchSize fall back to the configured defaults. If
// anything fails before the save, the previous artifact is left untouched.
func (t *Trainer) Train(ctx context.Context, datasetRoot string, epochs, batchSize int) (*Result, error) {
	if epochs <= 0 {
		epochs = t.opts.DefaultEpochs
	}
	if batchSize <= 0 {
		batchSize = t.opts.DefaultBatchSize
	}

	runID := runstore.NewID()
	logger := t.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":     "Train",
		"run_id":       runID,
		"dataset_root": datasetRoot,
		"epochs":       epochs,
		"batch_size":   batchSize,
	})

	started := time.Now()
	logger.Info("Starting training run")

	ds, err := t.loader.Load(ctx, datasetRoot, t.opts.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	if ds.Len() < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrTooFewSamples, ds.Len())
	}

	// second pass over an already scaled matrix; a no-op
	ds.ScaleByMax()

	train, validation := ds.Split(t.opts.ValidationRatio, t.opts.Seed)

	classifier, err := nn.NewClassifier(ds.Dimension(), t.opts.Labels, t.opts.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	history, err := classifier.Fit(ctx, train.X, train.Y, validation.X, validation.Y, nn.FitOptions{
		Epochs:    epochs,
		BatchSize: batchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	if err := report.WriteHistory(t.ws.HistoryImagePath, history); err != nil {
		logger.Error(err, "Failed to render training history")
	}

	loss, accuracy, err := classifier.Evaluate(validation.X, validation.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate classifier: %w", err)
	}

	if err := classifier.Save(t.ws.ArtifactPath); err != nil {
		return nil, fmt.Errorf("failed to save classifier: %w", err)
	}
	for _, fn := range t.onSaved {
		fn(t.ws.ArtifactPath)
	}

	result := &Result{
		RunID:     runID,
		Accuracy:  accuracy,
		Loss:      loss,
		Epochs:    epochs,
		BatchSize: batchSize,
		TrainSize: train.Len(),
		ValSize:   validation.Len(),
		History:   history,
	}

	t.record(ctx, logger, datasetRoot, started, result)

	logger.Info("Training run complete", logging.Fields{
		"accuracy":    accuracy,
		"loss":        loss,
		"train_size":  train.Len(),
		"val_size":    validation.Len(),
		"duration_ms": time.Since(started).Milliseconds(),
	})

	return result, nil
}

func (t *Trainer) record(ctx context.Context, logger logging.Logger, datasetRoot string, started time.Time, result *Result) {
	if t.runs == nil {
		return
	}

	run := &runstore.Run{
		ID:          result.RunID,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		DatasetRoot: datasetRoot,
		Labels:      t.opts.Labels,
		Epochs:      result.Epochs,
		BatchSize:   result.BatchSize,
		TrainSize:   result.TrainSize,
		ValSize:     result.ValSize,
		Accuracy:    result.Accuracy,
		Loss:        result.Loss,
		History:     *result.History,
		Artifact:    t.ws.ArtifactPath,
	}
	if err := t.runs.Put(ctx, run); err != nil {
		logger.Error(err, "Failed to record training run")
	}
}
