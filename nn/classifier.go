// Package nn is a small feed-forward classifier: dense layers with ReLU and
// dropout, a softmax output, sparse categorical cross-entropy and Adam,
// implemented on gonum matrices.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-verdict/algorithms/common"
	"github.com/RyanBlaney/sonido-verdict/logging"
)

// ErrShape is returned when inputs or labels do not fit the network.
var ErrShape = errors.New("shape mismatch")

// probabilityFloor keeps log(p) finite in the loss.
const probabilityFloor = 1e-7

// Hidden describes one hidden block: Dense(Units, ReLU) then Dropout(Dropout).
type Hidden struct {
	Units   int     `json:"units"`
	Dropout float64 `json:"dropout"`
}

// Config holds architecture and optimizer settings.
type Config struct {
	Hidden       []Hidden `json:"hidden"`
	LearningRate float64  `json:"learning_rate"`
	Seed         uint64   `json:"seed"`
}

// DefaultConfig returns Dense(300) -> Dropout(0.5) -> Dense(100) ->
// Dropout(0.6) with Adam at 0.001.
func DefaultConfig() Config {
	return Config{
		Hidden: []Hidden{
			{Units: 300, Dropout: 0.5},
			{Units: 100, Dropout: 0.6},
		},
		LearningRate: 0.001,
		Seed:         42,
	}
}

// Classifier maps a feature vector to a probability per label.
type Classifier struct {
	inputs int
	labels []string

	layers    []layer
	dense     []*dense
	optimizer *Adam
	rng       *rand.Rand

	logger logging.Logger
}

// NewClassifier builds an untrained network with inputs features and one
// output per label.
func NewClassifier(inputs int, labels []string, cfg Config) (*Classifier, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("%w: input size must be positive, got %d", ErrShape, inputs)
	}
	if len(labels) < 2 {
		return nil, fmt.Errorf("%w: need at least two labels, got %d", ErrShape, len(labels))
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", cfg.LearningRate)
	}

	c := newClassifier(inputs, labels, cfg.Seed)
	c.optimizer = NewAdam(cfg.LearningRate)

	prev := inputs
	for _, h := range cfg.Hidden {
		if h.Units <= 0 || h.Dropout < 0 || h.Dropout >= 1 {
			return nil, fmt.Errorf("invalid hidden layer %+v", h)
		}
		c.addDense(newDense(prev, h.Units, ActivationReLU, c.rng))
		if h.Dropout > 0 {
			c.layers = append(c.layers, newDropout(h.Dropout, c.rng))
		}
		prev = h.Units
	}
	c.addDense(newDense(prev, len(labels), ActivationSoftmax, c.rng))

	return c, nil
}

func newClassifier(inputs int, labels []string, seed uint64) *Classifier {
	return &Classifier{
		inputs: inputs,
		labels: append([]string(nil), labels...),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger: logging.WithFields(logging.Fields{
			"component": "classifier",
		}),
	}
}

func (c *Classifier) addDense(d *dense) {
	c.layers = append(c.layers, d)
	c.dense = append(c.dense, d)
}

// Inputs returns the expected feature vector length.
func (c *Classifier) Inputs() int {
	return c.inputs
}

// Outputs returns the number of classes.
func (c *Classifier) Outputs() int {
	return len(c.labels)
}

// Labels returns the label names in output order.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c *Classifier) forward(x *mat.Dense, training bool) *mat.Dense {
	for _, l := range c.layers {
		x = l.forward(x, training)
	}
	return x
}

func (c *Classifier) backward(grad *mat.Dense) {
	for i := len(c.layers) - 1; i >= 0; i-- {
		grad = c.layers[i].backward(grad)
	}
}

// Predict returns the class probabilities for one feature vector.
func (c *Classifier) Predict(x []float64) ([]float64, error) {
	if len(x) != c.inputs {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShape, len(x), c.inputs)
	}

	in := mat.NewDense(1, c.inputs, append([]float64(nil), x...))
	out := c.forward(in, false)
	return append([]float64(nil), out.RawRowView(0)...), nil
}

// PredictClass returns the index of the most probable class.
func (c *Classifier) PredictClass(x []float64) (int, error) {
	probs, err := c.Predict(x)
	if err != nil {
		return -1, err
	}
	return common.ArgMax(probs), nil
}

// Evaluate returns mean cross-entropy loss and accuracy over (x, y).
func (c *Classifier) Evaluate(x [][]float64, y []int) (loss, accuracy float64, err error) {
	if err := c.checkBatch(x, y); err != nil {
		return 0, 0, err
	}
	if len(x) == 0 {
		return 0, 0, fmt.Errorf("%w: empty evaluation set", ErrShape)
	}

	probs := c.forward(c.matrix(x, nil), false)
	loss, correct := crossEntropy(probs, y, nil)
	return loss, float64(correct) / float64(len(y)), nil
}

func (c *Classifier) checkBatch(x [][]float64, y []int) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrShape, len(x), len(y))
	}
	for i, row := range x {
		if len(row) != c.inputs {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), c.inputs)
		}
		if y[i] < 0 || y[i] >= len(c.labels) {
			return fmt.Errorf("%w: row %d has label index %d, want [0,%d)", ErrShape, i, y[i], len(c.labels))
		}
	}
	return nil
}

// matrix copies the selected rows (all rows when idx is nil) into a matrix.
func (c *Classifier) matrix(x [][]float64, idx []int) *mat.Dense {
	n := len(x)
	if idx != nil {
		n = len(idx)
	}
	m := mat.NewDense(n, c.inputs, nil)
	for i := range n {
		src := i
		if idx != nil {
			src = idx[i]
		}
		copy(m.RawRowView(i), x[src])
	}
	return m
}

// crossEntropy returns the mean sparse categorical cross-entropy and the
// number of correct argmax predictions. When grad is non-nil it receives
// dL/d(logits) = (p - onehot(y)) / n.
func crossEntropy(probs *mat.Dense, y []int, grad *mat.Dense) (float64, int) {
	n := len(y)
	loss := 0.0
	correct := 0

	for i := range n {
		p := probs.RawRowView(i)
		loss -= math.Log(math.Max(p[y[i]], probabilityFloor))
		if common.ArgMax(p) == y[i] {
			correct++
		}

		if grad != nil {
			g := grad.RawRowView(i)
			for j := range p {
				g[j] = p[j] / float64(n)
			}
			g[y[i]] -= 1 / float64(n)
		}
	}

	return loss / float64(n), correct
}
