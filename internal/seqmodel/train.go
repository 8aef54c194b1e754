package seqmodel

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/andresuchdata/stockcast/internal/domain"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
	maxGradNorm = 5.0
)

type TrainConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	HiddenSize      int
	DenseSize       int
	Seed            int64
}

// Report summarizes a finished training run
type Report struct {
	Epochs             int     `json:"epochs"`
	TrainExamples      int     `json:"train_examples"`
	ValidationExamples int     `json:"validation_examples"`
	TrainLoss          float64 `json:"train_loss"`
	ValidationLoss     float64 `json:"validation_loss"`
}

// Train fits a fresh model on the examples. The model is built entirely
// inside this call and never shared until it returns. Examples are shuffled
// once with the seeded generator; the tail fraction becomes the validation set.
func Train(ctx context.Context, examples []domain.TrainingExample, cfg TrainConfig) (*Model, Report, error) {
	if len(examples) == 0 {
		return nil, Report{}, domain.ErrInsufficientData
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 || cfg.HiddenSize <= 0 || cfg.DenseSize <= 0 || cfg.LearningRate <= 0 {
		return nil, Report{}, fmt.Errorf("invalid training config: %+v", cfg)
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15))

	data := make([]domain.TrainingExample, len(examples))
	copy(data, examples)
	rng.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })

	train, val := splitValidation(data, cfg.ValidationSplit)

	model := New(cfg.HiddenSize, cfg.DenseSize, rng)
	opt := newAdam(model, cfg.LearningRate)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, Report{}, err
		}
		rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		for start := 0; start < len(train); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(train))
			grads, _ := model.batchGradients(train[start:end])
			clipGradients(grads, maxGradNorm)
			opt.step(grads)
		}
	}

	report := Report{
		Epochs:             cfg.Epochs,
		TrainExamples:      len(train),
		ValidationExamples: len(val),
		TrainLoss:          model.Loss(train),
		ValidationLoss:     model.Loss(val),
	}
	return model, report, nil
}

func splitValidation(data []domain.TrainingExample, split float64) ([]domain.TrainingExample, []domain.TrainingExample) {
	if split <= 0 || len(data) < 2 {
		return data, nil
	}
	nVal := int(math.Round(float64(len(data)) * split))
	nVal = max(1, min(nVal, len(data)-1))
	cut := len(data) - nVal
	return data[:cut], data[cut:]
}

func clipGradients(grads [][]float64, limit float64) {
	var sq float64
	for _, g := range grads {
		for _, v := range g {
			sq += v * v
		}
	}
	norm := math.Sqrt(sq)
	if norm <= limit || norm == 0 {
		return
	}
	scale := limit / norm
	for _, g := range grads {
		for i := range g {
			g[i] *= scale
		}
	}
}

type adam struct {
	model *Model
	lr    float64
	t     int
	m     [][]float64
	v     [][]float64
}

func newAdam(model *Model, lr float64) *adam {
	return &adam{
		model: model,
		lr:    lr,
		m:     model.zeroGrads(),
		v:     model.zeroGrads(),
	}
}

func (a *adam) step(grads [][]float64) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))
	for p, param := range a.model.params() {
		g, m, v := grads[p], a.m[p], a.v[p]
		for i := range param {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g[i]
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g[i]*g[i]
			param[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}
}
