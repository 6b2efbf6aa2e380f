package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/explain"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/labeling"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/model"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

// TrainingSummary describes one training pass.
type TrainingSummary struct {
	Rows          int             `json:"rows"`
	Distribution  map[string]int  `json:"class_distribution"`
	Index         labeling.Params `json:"risk_index"`
	LogLikelihood float64         `json:"log_likelihood"`
	Accuracy      float64         `json:"training_accuracy"`
	Duration      time.Duration   `json:"duration_ns"`
}

// Pipeline is everything one training pass produced: encoder, labeler,
// model and explainer share the same frozen statistics. It is read-only
// once built and shared by every concurrent analysis.
type Pipeline struct {
	Version   string
	TrainedAt time.Time
	Labels    []string
	Summary   TrainingSummary

	encoder   *features.FittedEncoder
	labeler   *labeling.Labeler
	model     *model.Model
	explainer *explain.Explainer
}

// Train fits a pipeline on records. It either fully succeeds or returns an
// error and nothing.
func Train(ctx context.Context, records []types.ApplicationRecord, cfg Config) (*Pipeline, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	enc, err := features.Fit(records)
	if err != nil {
		return nil, fmt.Errorf("fit encoder: %w", err)
	}
	x, err := enc.EncodeAll(records)
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lab, indexes, err := labeling.Fit(x, cfg.Labeling)
	if err != nil {
		return nil, fmt.Errorf("fit risk labels: %w", err)
	}
	y := make([]int, len(indexes))
	for i, v := range indexes {
		y[i] = lab.Category(v)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := model.Train(x, y, lab.Classes(), cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	ex, err := explain.NewExplainer(x, enc.Describe)
	if err != nil {
		return nil, fmt.Errorf("fit explainer: %w", err)
	}

	p := &Pipeline{
		Version:   uuid.NewString(),
		TrainedAt: time.Now().UTC(),
		Labels:    append([]string(nil), cfg.Labels...),
		encoder:   enc,
		labeler:   lab,
		model:     m,
		explainer: ex,
	}

	dist := make(map[string]int, len(p.Labels))
	for _, l := range p.Labels {
		dist[l] = 0
	}
	correct := 0
	for i, row := range x {
		dist[p.Labels[y[i]]]++
		if c, _, err := m.Predict(row); err == nil && c == y[i] {
			correct++
		}
	}
	p.Summary = TrainingSummary{
		Rows:          len(records),
		Distribution:  dist,
		Index:         lab.Params(),
		LogLikelihood: m.LogLikelihood(x, y),
		Accuracy:      float64(correct) / float64(len(x)),
		Duration:      time.Since(start),
	}
	return p, nil
}

// Encode runs the frozen encoder.
func (p *Pipeline) Encode(r *types.ApplicationRecord) (features.EncodedFeatures, error) {
	return p.encoder.Encode(r)
}

// Predict returns the category index and distribution of an encoded row.
func (p *Pipeline) Predict(values []float64) (int, []float64, error) {
	return p.model.Predict(values)
}

// Attribute explains the model around values. A nil category explains the
// predicted one.
func (p *Pipeline) Attribute(ctx context.Context, values []float64, category *int, opts explain.Options) (*explain.Attribution, error) {
	opts.Category = category
	return p.explainer.Explain(ctx, p.model, values, opts)
}

// RiskIndex scores an encoded row with the training-time labeler.
func (p *Pipeline) RiskIndex(values []float64) (float64, int) {
	idx := p.labeler.Index(values)
	return idx, p.labeler.Category(idx)
}

// Describe renders a feature value for people.
func (p *Pipeline) Describe(name string, value float64) string {
	return p.encoder.Describe(name, value)
}

// Label names a category index.
func (p *Pipeline) Label(k int) string {
	if k < 0 || k >= len(p.Labels) {
		return fmt.Sprintf("category_%d", k)
	}
	return p.Labels[k]
}

// CategoryIndex resolves a label name.
func (p *Pipeline) CategoryIndex(label string) (int, bool) {
	for i, l := range p.Labels {
		if l == label {
			return i, true
		}
	}
	return 0, false
}

func (p *Pipeline) probabilityMap(probs []float64) map[string]float64 {
	out := make(map[string]float64, len(probs))
	for k, v := range probs {
		out[p.Label(k)] = v
	}
	return out
}
