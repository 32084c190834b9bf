package nn

import (
	"math"
)

// Adam is the Adam optimizer with bias-corrected step size.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
}

// NewAdam returns Adam with the usual defaults and the given learning rate.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

// Step applies one update to every dense layer from its accumulated gradients.
func (a *Adam) Step(layers []*dense) {
	a.step++
	t := float64(a.step)
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, l := range layers {
		a.update(l.weights.RawMatrix().Data, l.gradW.RawMatrix().Data, l.mW.RawMatrix().Data, l.vW.RawMatrix().Data, lr)
		a.update(l.bias, l.gradB, l.mB, l.vB, lr)
	}
}

func (a *Adam) update(params, grads, m, v []float64, lr float64) {
	for i, g := range grads {
		m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
		v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
		params[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
	}
}
