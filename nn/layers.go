package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Activation names the non-linearity of a dense layer.
type Activation string

const (
	ActivationReLU    Activation = "relu"
	ActivationSoftmax Activation = "softmax"
	ActivationLinear  Activation = "linear"
)

// layer is one stage of the network. forward caches what backward needs.
type layer interface {
	forward(x *mat.Dense, training bool) *mat.Dense
	backward(grad *mat.Dense) *mat.Dense
}

// dense is a fully connected layer y = act(xW + b).
type dense struct {
	weights    *mat.Dense // inputs x units
	bias       []float64
	activation Activation

	input  *mat.Dense
	output *mat.Dense

	gradW *mat.Dense
	gradB []float64

	// Adam moments
	mW, vW *mat.Dense
	mB, vB []float64
}

// newDense creates a layer with Glorot-uniform weights and zero bias.
func newDense(inputs, units int, activation Activation, rng *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(inputs+units))
	data := make([]float64, inputs*units)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return newDenseFrom(mat.NewDense(inputs, units, data), make([]float64, units), activation)
}

func newDenseFrom(weights *mat.Dense, bias []float64, activation Activation) *dense {
	inputs, units := weights.Dims()
	return &dense{
		weights:    weights,
		bias:       bias,
		activation: activation,
		gradW:      mat.NewDense(inputs, units, nil),
		gradB:      make([]float64, units),
		mW:         mat.NewDense(inputs, units, nil),
		vW:         mat.NewDense(inputs, units, nil),
		mB:         make([]float64, units),
		vB:         make([]float64, units),
	}
}

func (d *dense) dims() (inputs, units int) {
	return d.weights.Dims()
}

func (d *dense) forward(x *mat.Dense, training bool) *mat.Dense {
	rows, _ := x.Dims()
	_, units := d.dims()

	out := mat.NewDense(rows, units, nil)
	out.Mul(x, d.weights)

	for i := range rows {
		row := out.RawRowView(i)
		floats.Add(row, d.bias)
		activate(row, d.activation)
	}

	if training {
		d.input = x
		d.output = out
	}
	return out
}

// backward takes dL/d(output). For softmax layers the caller passes
// dL/d(logits) directly, as produced by the cross-entropy loss.
func (d *dense) backward(grad *mat.Dense) *mat.Dense {
	rows, units := grad.Dims()

	if d.activation == ActivationReLU {
		for i := range rows {
			g := grad.RawRowView(i)
			o := d.output.RawRowView(i)
			for j := range units {
				if o[j] <= 0 {
					g[j] = 0
				}
			}
		}
	}

	d.gradW.Mul(d.input.T(), grad)
	for j := range units {
		d.gradB[j] = 0
	}
	for i := range rows {
		floats.Add(d.gradB, grad.RawRowView(i))
	}

	inputs, _ := d.dims()
	dx := mat.NewDense(rows, inputs, nil)
	dx.Mul(grad, d.weights.T())
	return dx
}

func activate(row []float64, activation Activation) {
	switch activation {
	case ActivationReLU:
		for j, v := range row {
			if v < 0 {
				row[j] = 0
			}
		}
	case ActivationSoftmax:
		softmax(row)
	}
}

// softmax replaces row with its softmax, in place.
func softmax(row []float64) {
	m := floats.Max(row)
	sum := 0.0
	for j, v := range row {
		e := math.Exp(v - m)
		row[j] = e
		sum += e
	}
	floats.Scale(1/sum, row)
}

// dropout zeroes a fraction of activations during training and rescales the
// rest by 1/(1-rate). It is the identity at inference.
type dropout struct {
	rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

func newDropout(rate float64, rng *rand.Rand) *dropout {
	return &dropout{rate: rate, rng: rng}
}

func (d *dropout) forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.rate <= 0 {
		d.mask = nil
		return x
	}

	rows, cols := x.Dims()
	keep := 1 - d.rate
	mask := mat.NewDense(rows, cols, nil)
	for i := range rows {
		m := mask.RawRowView(i)
		for j := range cols {
			if d.rng.Float64() < keep {
				m[j] = 1 / keep
			}
		}
	}
	d.mask = mask

	out := mat.NewDense(rows, cols, nil)
	out.MulElem(x, mask)
	return out
}

func (d *dropout) backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	rows, _ := grad.Dims()
	for i := range rows {
		g := grad.RawRowView(i)
		for j, m := range d.mask.RawRowView(i) {
			g[j] *= m
		}
	}
	return grad
}
