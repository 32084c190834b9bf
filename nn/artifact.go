package nn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// ErrArtifactFormat is returned when a stored classifier cannot be decoded.
var ErrArtifactFormat = errors.New("invalid classifier artifact")

// SnapshotVersion is the artifact format written by Save.
const SnapshotVersion = 1

// Snapshot is the serialized form of a Classifier. Dropout layers are kept
// so that a restored network has the same structure.
type Snapshot struct {
	Version   int             `msgpack:"version"`
	Inputs    int             `msgpack:"inputs"`
	Labels    []string        `msgpack:"labels"`
	Layers    []LayerSnapshot `msgpack:"layers"`
	CreatedAt time.Time       `msgpack:"created_at"`
}

// LayerSnapshot is one serialized layer.
type LayerSnapshot struct {
	Kind       string     `msgpack:"kind"` // "dense" or "dropout"
	Inputs     int        `msgpack:"inputs,omitempty"`
	Units      int        `msgpack:"units,omitempty"`
	Activation Activation `msgpack:"activation,omitempty"`
	Rate       float64    `msgpack:"rate,omitempty"`
	Weights    []float64  `msgpack:"weights,omitempty"` // row-major inputs x units
	Bias       []float64  `msgpack:"bias,omitempty"`
}

const (
	kindDense   = "dense"
	kindDropout = "dropout"
)

// Snapshot captures the current weights.
func (c *Classifier) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:   SnapshotVersion,
		Inputs:    c.inputs,
		Labels:    c.Labels(),
		CreatedAt: time.Now().UTC(),
	}

	for _, l := range c.layers {
		switch l := l.(type) {
		case *dense:
			inputs, units := l.dims()
			s.Layers = append(s.Layers, LayerSnapshot{
				Kind:       kindDense,
				Inputs:     inputs,
				Units:      units,
				Activation: l.activation,
				Weights:    append([]float64(nil), l.weights.RawMatrix().Data...),
				Bias:       append([]float64(nil), l.bias...),
			})
		case *dropout:
			s.Layers = append(s.Layers, LayerSnapshot{
				Kind: kindDropout,
				Rate: l.rate,
			})
		}
	}

	return s
}

// FromSnapshot rebuilds a classifier for inference. It checks that layer
// shapes chain from Inputs to len(Labels).
func FromSnapshot(s *Snapshot) (*Classifier, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrArtifactFormat, s.Version)
	}
	if s.Inputs <= 0 || len(s.Labels) < 2 {
		return nil, fmt.Errorf("%w: inputs=%d labels=%d", ErrArtifactFormat, s.Inputs, len(s.Labels))
	}

	c := newClassifier(s.Inputs, s.Labels, 0)
	c.optimizer = NewAdam(DefaultConfig().LearningRate)

	prev := s.Inputs
	for i, ls := range s.Layers {
		switch ls.Kind {
		case kindDense:
			if ls.Inputs != prev || ls.Units <= 0 {
				return nil, fmt.Errorf("%w: layer %d is %dx%d after %d units", ErrArtifactFormat, i, ls.Inputs, ls.Units, prev)
			}
			if len(ls.Weights) != ls.Inputs*ls.Units || len(ls.Bias) != ls.Units {
				return nil, fmt.Errorf("%w: layer %d has %d weights and %d biases", ErrArtifactFormat, i, len(ls.Weights), len(ls.Bias))
			}
			switch ls.Activation {
			case ActivationReLU, ActivationSoftmax, ActivationLinear:
			default:
				return nil, fmt.Errorf("%w: layer %d has unknown activation %q", ErrArtifactFormat, i, ls.Activation)
			}
			weights := mat.NewDense(ls.Inputs, ls.Units, append([]float64(nil), ls.Weights...))
			c.addDense(newDenseFrom(weights, append([]float64(nil), ls.Bias...), ls.Activation))
			prev = ls.Units
		case kindDropout:
			c.layers = append(c.layers, newDropout(ls.Rate, c.rng))
		default:
			return nil, fmt.Errorf("%w: layer %d has unknown kind %q", ErrArtifactFormat, i, ls.Kind)
		}
	}

	if len(c.dense) == 0 || prev != len(s.Labels) {
		return nil, fmt.Errorf("%w: network ends with %d outputs for %d labels", ErrArtifactFormat, prev, len(s.Labels))
	}
	if c.dense[len(c.dense)-1].activation != ActivationSoftmax {
		return nil, fmt.Errorf("%w: output layer is not softmax", ErrArtifactFormat)
	}

	return c, nil
}

// Marshal encodes the classifier with msgpack.
func (c *Classifier) Marshal() ([]byte, error) {
	return msgpack.Marshal(c.Snapshot())
}

// Unmarshal decodes a classifier encoded by Marshal.
func Unmarshal(data []byte) (*Classifier, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactFormat, err)
	}
	return FromSnapshot(&s)
}

// Save writes the classifier to path atomically: a reader sees either the
// previous file or the complete new one.
func (c *Classifier) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode classifier: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write artifact: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync artifact: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	return nil
}

// Load reads a classifier written by Save.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	c, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
