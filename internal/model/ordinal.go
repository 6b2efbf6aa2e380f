package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

var (
	// ErrInsufficientTrainingData is returned when a class is too thin to fit.
	ErrInsufficientTrainingData = errors.New("insufficient training data")
	// ErrNotTrained is returned when predicting with a nil model.
	ErrNotTrained = errors.New("model not trained")
	// ErrDimensionMismatch is returned for rows of the wrong width.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)

// probability floor inside the log-likelihood
const eps = 1e-12

// TrainConfig holds optimizer settings.
type TrainConfig struct {
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`
	L2           float64 `yaml:"l2"`
	MinPerClass  int     `yaml:"min_per_class"`
}

// DefaultTrainConfig returns settings that converge on a few thousand rows.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Iterations:   600,
		LearningRate: 0.5,
		L2:           1e-3,
		MinPerClass:  3,
	}
}

// Model is a proportional-odds ordinal logistic regression:
//
//	P(y <= k | x) = sigmoid(theta_k - w.z),  z = (x - mean) / std
//
// with strictly increasing cut points theta. It is immutable once trained.
type Model struct {
	classes int
	mean    []float64
	std     []float64
	weights []float64
	cuts    []float64
}

// Train fits a model on encoded rows x with ordinal labels y in [0, classes).
func Train(x features.Matrix, y []int, classes int, cfg TrainConfig) (*Model, error) {
	if classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", classes)
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrInsufficientTrainingData, len(x), len(y))
	}
	width := len(x[0])
	counts := make([]int, classes)
	for i, label := range y {
		if len(x[i]) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(x[i]), width)
		}
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d at row %d outside [0,%d)", label, i, classes)
		}
		counts[label]++
	}
	minPer := cfg.MinPerClass
	if minPer < 1 {
		minPer = 1
	}
	for k, c := range counts {
		if c < minPer {
			return nil, fmt.Errorf("%w: class %d has %d rows, need %d", ErrInsufficientTrainingData, k, c, minPer)
		}
	}

	m := &Model{
		classes: classes,
		mean:    make([]float64, width),
		std:     make([]float64, width),
		weights: make([]float64, width),
		cuts:    make([]float64, classes-1),
	}
	for j := 0; j < width; j++ {
		mean, std := stat.MeanStdDev(x.Column(j), nil)
		if math.IsNaN(std) || std < 1e-12 {
			std = 1
		}
		m.mean[j], m.std[j] = mean, std
	}
	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = m.standardize(row)
	}

	// Cut points start at the logits of the cumulative class shares, stored
	// as a base plus log gaps so they stay ordered under any update.
	base, gaps := 0.0, make([]float64, classes-2)
	cum := 0
	prev := 0.0
	for k := 0; k < classes-1; k++ {
		cum += counts[k]
		share := float64(cum) / float64(len(y))
		theta := math.Log(share / (1 - share))
		if k == 0 {
			base = theta
		} else {
			gaps[k-1] = math.Log(theta - prev)
		}
		prev = theta
	}
	m.setCuts(base, gaps)

	n := float64(len(y))
	gradW := make([]float64, width)
	gradCut := make([]float64, classes-1)
	gradGaps := make([]float64, len(gaps))
	for iter := 0; iter < cfg.Iterations; iter++ {
		for j := range gradW {
			gradW[j] = 0
		}
		for k := range gradCut {
			gradCut[k] = 0
		}

		for i, row := range z {
			dEta, dUpper, dLower := m.sampleGradient(row, y[i])
			floats.AddScaled(gradW, dEta, row)
			k := y[i]
			if k < classes-1 {
				gradCut[k] += dUpper
			}
			if k > 0 {
				gradCut[k-1] += dLower
			}
		}

		floats.Scale(1/n, gradW)
		floats.AddScaled(gradW, -cfg.L2, m.weights)
		floats.Scale(1/n, gradCut)

		// theta_j = base + sum_{m<j} exp(gap_m)
		gradBase := floats.Sum(gradCut)
		for g := range gaps {
			tail := 0.0
			for j := g + 1; j < len(gradCut); j++ {
				tail += gradCut[j]
			}
			gradGaps[g] = math.Exp(gaps[g]) * tail
		}

		floats.AddScaled(m.weights, cfg.LearningRate, gradW)
		base += cfg.LearningRate * gradBase
		floats.AddScaled(gaps, cfg.LearningRate, gradGaps)
		m.setCuts(base, gaps)
	}

	return m, nil
}

func (m *Model) setCuts(base float64, gaps []float64) {
	m.cuts[0] = base
	for k := 1; k < len(m.cuts); k++ {
		m.cuts[k] = m.cuts[k-1] + math.Exp(gaps[k-1])
	}
}

// sampleGradient returns d log p(y|z) with respect to the linear predictor
// and to the upper and lower cut points of class y.
func (m *Model) sampleGradient(z []float64, y int) (dEta, dUpper, dLower float64) {
	eta := floats.Dot(m.weights, z)
	upper, upperSlope := 1.0, 0.0
	if y < m.classes-1 {
		upper = sigmoid(m.cuts[y] - eta)
		upperSlope = upper * (1 - upper)
	}
	lower, lowerSlope := 0.0, 0.0
	if y > 0 {
		lower = sigmoid(m.cuts[y-1] - eta)
		lowerSlope = lower * (1 - lower)
	}
	p := math.Max(upper-lower, eps)
	return (lowerSlope - upperSlope) / p, upperSlope / p, -lowerSlope / p
}

func (m *Model) standardize(row []float64) []float64 {
	z := make([]float64, len(row))
	for j, v := range row {
		z[j] = (v - m.mean[j]) / m.std[j]
	}
	return z
}

// PredictProba returns the class distribution of one row. It sums to 1.
// Rows of the wrong width yield nil.
func (m *Model) PredictProba(row []float64) []float64 {
	if m == nil || len(row) != len(m.weights) {
		return nil
	}
	eta := floats.Dot(m.weights, m.standardize(row))
	probs := make([]float64, m.classes)
	prev := 0.0
	for k := 0; k < m.classes-1; k++ {
		c := sigmoid(m.cuts[k] - eta)
		probs[k] = math.Max(c-prev, 0)
		prev = c
	}
	probs[m.classes-1] = math.Max(1-prev, 0)
	return probs
}

// Predict returns the most likely class with its distribution.
func (m *Model) Predict(row []float64) (int, []float64, error) {
	if m == nil {
		return 0, nil, ErrNotTrained
	}
	if len(row) != len(m.weights) {
		return 0, nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(row), len(m.weights))
	}
	probs := m.PredictProba(row)
	return floats.MaxIdx(probs), probs, nil
}

// Prediction is one row of a batch.
type Prediction struct {
	Category      int
	Probabilities []float64
}

// PredictBatch scores each row on its own.
func (m *Model) PredictBatch(x features.Matrix) ([]Prediction, error) {
	out := make([]Prediction, len(x))
	for i, row := range x {
		c, p, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = Prediction{Category: c, Probabilities: p}
	}
	return out, nil
}

// LogLikelihood is the mean log-probability of the labels.
func (m *Model) LogLikelihood(x features.Matrix, y []int) float64 {
	total := 0.0
	for i, row := range x {
		p := m.PredictProba(row)
		total += math.Log(math.Max(p[y[i]], eps))
	}
	return total / float64(len(x))
}

// Classes is the number of ordinal categories.
func (m *Model) Classes() int { return m.classes }

// Weights returns the coefficients on standardized features.
func (m *Model) Weights() []float64 { return append([]float64(nil), m.weights...) }

// Cuts returns the ordered cut points.
func (m *Model) Cuts() []float64 { return append([]float64(nil), m.cuts...) }

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
