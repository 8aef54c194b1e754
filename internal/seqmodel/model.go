// Package seqmodel implements a small recurrent regressor: one Elman layer
// over the feature window, a ReLU dense layer and a sigmoid output unit.
// Output lives in (0,1) and is read as next-step normalized demand.
package seqmodel

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// InputSize is the width of one encoded time step
const InputSize = 3

var ErrShape = errors.New("model shape mismatch")

// Model holds all weights in row-major flat slices so it serializes as plain JSON.
type Model struct {
	InputSize  int `json:"input_size"`
	HiddenSize int `json:"hidden_size"`
	DenseSize  int `json:"dense_size"`

	Wx []float64 `json:"wx"` // hidden x input
	Wh []float64 `json:"wh"` // hidden x hidden
	Bh []float64 `json:"bh"`
	W1 []float64 `json:"w1"` // dense x hidden
	B1 []float64 `json:"b1"`
	W2 []float64 `json:"w2"` // dense
	B2 []float64 `json:"b2"` // single output bias
}

// New creates a model with Xavier-uniform weights drawn from rng
func New(hidden, dense int, rng *rand.Rand) *Model {
	m := &Model{
		InputSize:  InputSize,
		HiddenSize: hidden,
		DenseSize:  dense,
		Wx:         make([]float64, hidden*InputSize),
		Wh:         make([]float64, hidden*hidden),
		Bh:         make([]float64, hidden),
		W1:         make([]float64, dense*hidden),
		B1:         make([]float64, dense),
		W2:         make([]float64, dense),
		B2:         make([]float64, 1),
	}
	xavier(m.Wx, InputSize, hidden, rng)
	xavier(m.Wh, hidden, hidden, rng)
	xavier(m.W1, hidden, dense, rng)
	xavier(m.W2, dense, 1, rng)
	return m
}

func xavier(w []float64, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

// Check verifies slice lengths against the declared sizes
func (m *Model) Check() error {
	h, d, in := m.HiddenSize, m.DenseSize, m.InputSize
	if in != InputSize || h <= 0 || d <= 0 {
		return fmt.Errorf("%w: input=%d hidden=%d dense=%d", ErrShape, in, h, d)
	}
	want := []struct {
		name string
		got  int
		want int
	}{
		{"wx", len(m.Wx), h * in},
		{"wh", len(m.Wh), h * h},
		{"bh", len(m.Bh), h},
		{"w1", len(m.W1), d * h},
		{"b1", len(m.B1), d},
		{"w2", len(m.W2), d},
		{"b2", len(m.B2), 1},
	}
	for _, w := range want {
		if w.got != w.want {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrShape, w.name, w.got, w.want)
		}
	}
	return nil
}

// params lists every parameter slice in a fixed order
func (m *Model) params() [][]float64 {
	return [][]float64{m.Wx, m.Wh, m.Bh, m.W1, m.B1, m.W2, m.B2}
}

func (m *Model) zeroGrads() [][]float64 {
	ps := m.params()
	grads := make([][]float64, len(ps))
	for i, p := range ps {
		grads[i] = make([]float64, len(p))
	}
	return grads
}

// trace keeps the activations of one forward pass for backpropagation
type trace struct {
	xs [][InputSize]float64
	hs [][]float64 // hs[0] is the zero initial state
	z1 []float64
	d  []float64
	y  float64
}

func (m *Model) forward(window []domain.FeatureVector) *trace {
	H, D := m.HiddenSize, m.DenseSize
	tr := &trace{
		xs: make([][InputSize]float64, len(window)),
		hs: make([][]float64, len(window)+1),
		z1: make([]float64, D),
		d:  make([]float64, D),
	}
	tr.hs[0] = make([]float64, H)

	for t, fv := range window {
		x := fv.Values()
		tr.xs[t] = x
		prev := tr.hs[t]
		h := make([]float64, H)
		for k := 0; k < H; k++ {
			a := m.Bh[k]
			for i := 0; i < InputSize; i++ {
				a += m.Wx[k*InputSize+i] * x[i]
			}
			for j := 0; j < H; j++ {
				a += m.Wh[k*H+j] * prev[j]
			}
			h[k] = math.Tanh(a)
		}
		tr.hs[t+1] = h
	}

	last := tr.hs[len(window)]
	z2 := m.B2[0]
	for j := 0; j < D; j++ {
		z := m.B1[j]
		for k := 0; k < H; k++ {
			z += m.W1[j*H+k] * last[k]
		}
		tr.z1[j] = z
		tr.d[j] = math.Max(0, z)
		z2 += m.W2[j] * tr.d[j]
	}
	tr.y = sigmoid(z2)
	return tr
}

// backward accumulates dLoss/dParam into grads given dLoss/dy
func (m *Model) backward(tr *trace, dy float64, grads [][]float64) {
	H, D := m.HiddenSize, m.DenseSize
	gWx, gWh, gBh, gW1, gB1, gW2, gB2 := grads[0], grads[1], grads[2], grads[3], grads[4], grads[5], grads[6]

	dz2 := dy * tr.y * (1 - tr.y)
	gB2[0] += dz2

	T := len(tr.xs)
	last := tr.hs[T]
	dh := make([]float64, H)
	for j := 0; j < D; j++ {
		gW2[j] += dz2 * tr.d[j]
		if tr.z1[j] <= 0 {
			continue
		}
		dz1 := dz2 * m.W2[j]
		gB1[j] += dz1
		for k := 0; k < H; k++ {
			gW1[j*H+k] += dz1 * last[k]
			dh[k] += dz1 * m.W1[j*H+k]
		}
	}

	da := make([]float64, H)
	for t := T; t >= 1; t-- {
		h, prev, x := tr.hs[t], tr.hs[t-1], tr.xs[t-1]
		for k := 0; k < H; k++ {
			da[k] = dh[k] * (1 - h[k]*h[k])
			gBh[k] += da[k]
			for i := 0; i < InputSize; i++ {
				gWx[k*InputSize+i] += da[k] * x[i]
			}
			for j := 0; j < H; j++ {
				gWh[k*H+j] += da[k] * prev[j]
			}
		}
		for j := 0; j < H; j++ {
			var s float64
			for k := 0; k < H; k++ {
				s += da[k] * m.Wh[k*H+j]
			}
			dh[j] = s
		}
	}
}

// Predict returns the normalized next-step demand for a window
func (m *Model) Predict(window []domain.FeatureVector) float64 {
	if len(window) == 0 {
		return 0
	}
	return m.forward(window).y
}

// batchGradients returns the mean squared error over the batch and its gradients
func (m *Model) batchGradients(batch []domain.TrainingExample) ([][]float64, float64) {
	grads := m.zeroGrads()
	if len(batch) == 0 {
		return grads, 0
	}
	n := float64(len(batch))
	var loss float64
	for _, ex := range batch {
		tr := m.forward(ex.Sequence)
		diff := tr.y - ex.Target
		loss += diff * diff
		m.backward(tr, 2*diff/n, grads)
	}
	return grads, loss / n
}

// Loss is the mean squared error over examples
func (m *Model) Loss(examples []domain.TrainingExample) float64 {
	if len(examples) == 0 {
		return 0
	}
	var loss float64
	for _, ex := range examples {
		diff := m.Predict(ex.Sequence) - ex.Target
		loss += diff * diff
	}
	return loss / float64(len(examples))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
