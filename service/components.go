package service

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-verdict/config"
	"github.com/RyanBlaney/sonido-verdict/dataset"
	"github.com/RyanBlaney/sonido-verdict/features"
	"github.com/RyanBlaney/sonido-verdict/predictor"
	"github.com/RyanBlaney/sonido-verdict/trainer"
	"github.com/RyanBlaney/sonido-verdict/transcode"
	"github.com/RyanBlaney/sonido-verdict/transport"
	"github.com/RyanBlaney/sonido-verdict/workspace"
)

// Components is the wired pipeline behind the dispatcher.
type Components struct {
	Config    *config.Config
	Workspace *workspace.Workspace
	Decoder   *transcode.Decoder
	Extractor *features.Extractor
	Loader    *dataset.Loader
	Trainer   *trainer.Trainer
	Predictor *predictor.Predictor
}

// NewComponents builds decoder, feature extractor, dataset loader, trainer
// and predictor from cfg. runs may be nil. A successful training run drops
// the predictor's artifact cache.
func NewComponents(cfg *config.Config, ws *workspace.Workspace, runs trainer.RunRecorder) (*Components, error) {
	decoder := transcode.NewDecoder(&transcode.DecoderConfig{
		TargetSampleRate: cfg.Audio.SampleRate,
		FFmpegPath:       cfg.Audio.FFmpegPath,
		Timeout:          30 * time.Second,
	})

	extractor, err := features.NewExtractor(features.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	loader := dataset.NewLoader(decoder, extractor)
	tr := trainer.New(trainer.OptionsFrom(cfg), loader, ws, runs)
	pr := predictor.New(predictor.OptionsFrom(cfg), decoder, extractor, ws, nil)
	tr.OnArtifactSaved(func(string) { pr.InvalidateCache() })

	return &Components{
		Config:    cfg,
		Workspace: ws,
		Decoder:   decoder,
		Extractor: extractor,
		Loader:    loader,
		Trainer:   tr,
		Predictor: pr,
	}, nil
}

// Service returns a dispatcher serving these components.
func (c *Components) Service() *Service {
	return New(c.Workspace, transport.ConfigFrom(c.Config), c.Trainer, c.Predictor, c.Config.Labels.Target)
}
