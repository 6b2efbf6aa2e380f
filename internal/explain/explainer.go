package explain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

// ErrAttributionUnavailable is returned when no perturbation differs from
// the instance, so there is nothing to fit a local surrogate on.
var ErrAttributionUnavailable = errors.New("attribution unavailable")

// Predictor is the black box being explained.
type Predictor interface {
	PredictProba(row []float64) []float64
}

// Options bound one explanation.
type Options struct {
	Samples     int     `yaml:"samples"`
	Seed        int64   `yaml:"seed"`
	KernelWidth float64 `yaml:"kernel_width"` // 0 means 0.75*sqrt(features)
	MaxFeatures int     `yaml:"max_features"` // 0 keeps every feature
	Ridge       float64 `yaml:"ridge"`
	// Category overrides the explained class; nil explains the top-1 class.
	Category *int `yaml:"-"`
}

// DefaultOptions mirrors the usual tabular LIME settings.
func DefaultOptions() Options {
	return Options{Samples: 5000, Seed: 42, MaxFeatures: 10, Ridge: 1}
}

// Attribution is a local linear approximation of the model around one
// instance. Weights are coefficients in bin-membership space and are only
// meaningful near that instance; they need not add up to any class margin.
type Attribution struct {
	Category        int                `json:"category"`
	Weights         map[string]float64 `json:"weights"`
	Conditions      map[string]string  `json:"conditions"`
	Intercept       float64            `json:"intercept"`
	Score           float64            `json:"score"`
	LocalPrediction float64            `json:"local_prediction"`
	Probability     float64            `json:"probability"`
	Samples         int                `json:"samples"`
}

// Contribution is one ranked attribution entry.
type Contribution struct {
	Feature   string  `json:"feature"`
	Weight    float64 `json:"weight"`
	Condition string  `json:"condition"`
}

// Ranked orders contributions by absolute weight, ties by name.
func (a *Attribution) Ranked() []Contribution {
	out := make([]Contribution, 0, len(a.Weights))
	for name, w := range a.Weights {
		out = append(out, Contribution{Feature: name, Weight: w, Condition: a.Conditions[name]})
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := math.Abs(out[i].Weight), math.Abs(out[j].Weight)
		if wi != wj {
			return wi > wj
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

// Explainer holds the reference distribution frozen at training time. It
// is read-only and safe for concurrent use.
type Explainer struct {
	bins   []featureBins
	render func(name string, v float64) string
}

// NewExplainer fits the discretizer over reference rows in schema order.
// render formats feature values for conditions; nil prints two decimals.
func NewExplainer(reference features.Matrix, render func(name string, v float64) string) (*Explainer, error) {
	if len(reference) == 0 {
		return nil, errors.New("explainer needs a non-empty reference set")
	}
	names := features.Names()
	if len(reference[0]) != len(names) {
		return nil, fmt.Errorf("reference rows have %d columns, want %d", len(reference[0]), len(names))
	}
	if render == nil {
		render = func(_ string, v float64) string { return fmt.Sprintf("%.2f", v) }
	}
	e := &Explainer{bins: make([]featureBins, len(names)), render: render}
	for j, name := range names {
		kind, _ := features.KindOf(name)
		e.bins[j] = fitBins(name, kind, reference.Column(j))
	}
	return e, nil
}

// Explain fits a weighted ridge surrogate to p's probability for the target
// category over perturbations of instance. The same Seed yields the same
// weights bit for bit.
func (e *Explainer) Explain(ctx context.Context, p Predictor, instance []float64, opts Options) (*Attribution, error) {
	d := len(e.bins)
	if len(instance) != d {
		return nil, fmt.Errorf("instance has %d columns, want %d", len(instance), d)
	}
	if opts.Samples < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrAttributionUnavailable, opts.Samples)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	home := make([]int, d)
	for j := range e.bins {
		home[j] = e.bins[j].bin(instance[j])
	}

	n := opts.Samples
	data := make([][]float64, n)
	binary := make([][]float64, n)
	data[0] = append([]float64(nil), instance...)
	binary[0] = ones(d)
	differs := false
	for i := 1; i < n; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		data[i] = make([]float64, d)
		binary[i] = make([]float64, d)
		for j := range e.bins {
			b, v := e.bins[j].draw(rng.Float64(), rng.Intn)
			data[i][j] = v
			if b == home[j] {
				binary[i][j] = 1
			} else {
				differs = true
			}
		}
	}
	if !differs {
		return nil, ErrAttributionUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := p.PredictProba(instance)
	if len(base) == 0 {
		return nil, errors.New("predictor returned no probabilities")
	}
	target := floats.MaxIdx(base)
	if opts.Category != nil {
		target = *opts.Category
		if target < 0 || target >= len(base) {
			return nil, fmt.Errorf("category %d outside [0,%d)", target, len(base))
		}
	}

	y := make([]float64, n)
	for i, row := range data {
		probs := p.PredictProba(row)
		if len(probs) != len(base) {
			return nil, fmt.Errorf("predictor returned %d probabilities for sample %d", len(probs), i)
		}
		y[i] = probs[target]
	}

	width := opts.KernelWidth
	if width <= 0 {
		width = 0.75 * math.Sqrt(float64(d))
	}
	weights := make([]float64, n)
	for i, z := range binary {
		dist2 := 0.0
		for _, v := range z {
			dist2 += (1 - v) * (1 - v)
		}
		weights[i] = math.Sqrt(math.Exp(-dist2 / (width * width)))
	}

	alpha := opts.Ridge
	if alpha <= 0 {
		alpha = 1
	}
	selected := make([]int, d)
	for j := range selected {
		selected[j] = j
	}
	fit, err := ridge(binary, y, weights, selected, alpha)
	if err != nil {
		return nil, err
	}
	if opts.MaxFeatures > 0 && opts.MaxFeatures < d {
		selected = topAbs(fit.coef, opts.MaxFeatures)
		if fit, err = ridge(binary, y, weights, selected, alpha); err != nil {
			return nil, err
		}
	}

	attr := &Attribution{
		Category:    target,
		Weights:     make(map[string]float64, len(selected)),
		Conditions:  make(map[string]string, len(selected)),
		Intercept:   fit.intercept,
		Score:       fit.score,
		Probability: base[target],
		Samples:     n,
	}
	attr.LocalPrediction = fit.intercept
	for k, j := range selected {
		name := e.bins[j].name
		attr.Weights[name] = fit.coef[k]
		attr.Conditions[name] = e.bins[j].describe(instance[j], e.render)
		attr.LocalPrediction += fit.coef[k]
	}
	return attr, nil
}

type ridgeFit struct {
	coef      []float64
	intercept float64
	score     float64
}

// ridge solves the weighted, centered ridge problem
// (Xc' W Xc + alpha I) b = Xc' W yc on the selected columns.
func ridge(x [][]float64, y, w []float64, cols []int, alpha float64) (ridgeFit, error) {
	n, k := len(x), len(cols)
	wsum := floats.Sum(w)
	if wsum <= 0 {
		return ridgeFit{}, ErrAttributionUnavailable
	}

	xmean := make([]float64, k)
	for i := 0; i < n; i++ {
		for c, j := range cols {
			xmean[c] += w[i] * x[i][j]
		}
	}
	floats.Scale(1/wsum, xmean)
	ymean := floats.Dot(w, y) / wsum

	xc := mat.NewDense(n, k, nil)
	yc := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for c, j := range cols {
			xc.Set(i, c, sw*(x[i][j]-xmean[c]))
		}
		yc.SetVec(i, sw*(y[i]-ymean))
	}

	gram := mat.NewSymDense(k, nil)
	gram.SymOuterK(1, xc.T())
	for c := 0; c < k; c++ {
		gram.SetSym(c, c, gram.At(c, c)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return ridgeFit{}, errors.New("surrogate system is not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return ridgeFit{}, fmt.Errorf("solve surrogate: %w", err)
	}

	fit := ridgeFit{coef: make([]float64, k), intercept: ymean}
	for c := 0; c < k; c++ {
		fit.coef[c] = beta.AtVec(c)
		fit.intercept -= fit.coef[c] * xmean[c]
	}

	var resid, total float64
	for i := 0; i < n; i++ {
		pred := fit.intercept
		for c, j := range cols {
			pred += fit.coef[c] * x[i][j]
		}
		resid += w[i] * (y[i] - pred) * (y[i] - pred)
		total += w[i] * (y[i] - ymean) * (y[i] - ymean)
	}
	switch {
	case total > 0:
		fit.score = 1 - resid/total
	case resid == 0:
		fit.score = 1
	}
	return fit, nil
}

// topAbs returns the column indexes of the k largest |coef|, ascending.
func topAbs(coef []float64, k int) []int {
	idx := make([]int, len(coef))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(coef[idx[a]]) > math.Abs(coef[idx[b]])
	})
	idx = idx[:k]
	sort.Ints(idx)
	return idx
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
