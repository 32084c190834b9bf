package nn

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-verdict/logging"
)

// History holds per-epoch training metrics.
type History struct {
	Accuracy    []float64 `json:"accuracy" msgpack:"accuracy"`
	Loss        []float64 `json:"loss" msgpack:"loss"`
	ValAccuracy []float64 `json:"val_accuracy" msgpack:"val_accuracy"`
	ValLoss     []float64 `json:"val_loss" msgpack:"val_loss"`
}

// Epochs returns the number of recorded epochs.
func (h *History) Epochs() int {
	return len(h.Loss)
}

// FitOptions controls a training run.
type FitOptions struct {
	Epochs    int
	BatchSize int

	// OnEpoch, when set, is called after every epoch with its index.
	OnEpoch func(epoch int, h *History)
}

// Fit trains on (x, y) for opts.Epochs passes of shuffled mini-batches and
// evaluates (valX, valY) after every epoch. Training metrics are averaged
// over the epoch's batches in training mode.
func (c *Classifier) Fit(ctx context.Context, x [][]float64, y []int, valX [][]float64, valY []int, opts FitOptions) (*History, error) {
	logger := c.logger.WithFields(logging.Fields{
		"function":   "Fit",
		"samples":    len(x),
		"epochs":     opts.Epochs,
		"batch_size": opts.BatchSize,
	})

	if opts.Epochs <= 0 || opts.BatchSize <= 0 {
		return nil, fmt.Errorf("epochs (%d) and batch size (%d) must be positive", opts.Epochs, opts.BatchSize)
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("%w: empty training set", ErrShape)
	}
	if err := c.checkBatch(x, y); err != nil {
		return nil, err
	}
	if err := c.checkBatch(valX, valY); err != nil {
		return nil, fmt.Errorf("validation set: %w", err)
	}

	history := &History{}
	start := time.Now()

	for epoch := range opts.Epochs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loss, acc := c.trainEpoch(x, y, opts.BatchSize)
		history.Loss = append(history.Loss, loss)
		history.Accuracy = append(history.Accuracy, acc)

		if len(valX) > 0 {
			valLoss, valAcc, err := c.Evaluate(valX, valY)
			if err != nil {
				return nil, err
			}
			history.ValLoss = append(history.ValLoss, valLoss)
			history.ValAccuracy = append(history.ValAccuracy, valAcc)
		}

		logger.Debug("Epoch finished", logging.Fields{
			"epoch":    epoch + 1,
			"loss":     loss,
			"accuracy": acc,
		})

		if opts.OnEpoch != nil {
			opts.OnEpoch(epoch, history)
		}
	}

	logger.Info("Training finished", logging.Fields{
		"final_loss":     history.Loss[len(history.Loss)-1],
		"final_accuracy": history.Accuracy[len(history.Accuracy)-1],
		"duration_ms":    time.Since(start).Milliseconds(),
	})

	return history, nil
}

func (c *Classifier) trainEpoch(x [][]float64, y []int, batchSize int) (loss, accuracy float64) {
	perm := c.rng.Perm(len(x))

	totalLoss := 0.0
	correct := 0

	for start := 0; start < len(perm); start += batchSize {
		idx := perm[start:min(start+batchSize, len(perm))]

		batchY := make([]int, len(idx))
		for i, j := range idx {
			batchY[i] = y[j]
		}

		probs := c.forward(c.matrix(x, idx), true)

		grad := mat.NewDense(len(idx), c.Outputs(), nil)
		batchLoss, batchCorrect := crossEntropy(probs, batchY, grad)

		c.backward(grad)
		c.optimizer.Step(c.dense)

		totalLoss += batchLoss * float64(len(idx))
		correct += batchCorrect
	}

	return totalLoss / float64(len(x)), float64(correct) / float64(len(x))
}
