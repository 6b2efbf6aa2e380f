package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/cache"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/explain"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/fivec"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/resilience"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

var (
	// ErrNotFitted is returned before the first successful training.
	ErrNotFitted = features.ErrNotFitted
	// ErrUnknownCategory is returned for a risk label the model does not use.
	ErrUnknownCategory = errors.New("unknown risk category")
)

// Analyzer serves analyses from the current pipeline. The pipeline pointer
// is the ready state: nil until a training pass fully succeeds, then
// swapped atomically on every retrain.
type Analyzer struct {
	cfg      Config
	store    RecordStore
	sink     ResultSink
	pipeline atomic.Pointer[Pipeline]
	results  *cache.Cache[*AnalysisResult]
	fallback *FallbackScorer
	breaker  *resilience.CircuitBreaker
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger

	// one training pass at a time
	trainMu sync.Mutex
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithMetrics records counters into m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger logs through l.
func WithLogger(l *monitoring.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithResultSink hands every new result to s.
func WithResultSink(s ResultSink) Option {
	return func(a *Analyzer) { a.sink = s }
}

// NewAnalyzer creates an analyzer with no model. Call Retrain or Install
// before analyzing.
func NewAnalyzer(cfg Config, store RecordStore, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	if store == nil {
		return nil, errors.New("record store is required")
	}
	a := &Analyzer{
		cfg:      cfg,
		store:    store,
		results:  cache.New[*AnalysisResult](),
		fallback: NewFallbackScorer(cfg.Fallback, cfg.Labels),
		metrics:  monitoring.NewMetrics(),
		logger:   monitoring.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	breakerCfg := cfg.Breaker
	breakerCfg.OnOpen = a.metrics.IncrementCircuitBreakerOpen
	a.breaker = resilience.NewCircuitBreaker(breakerCfg)
	return a, nil
}

// Retrain fits a new pipeline on records. On success it replaces the
// serving pipeline and drops every cached result; on failure the previous
// pipeline keeps serving.
func (a *Analyzer) Retrain(ctx context.Context, records []types.ApplicationRecord) (*Pipeline, error) {
	a.trainMu.Lock()
	defer a.trainMu.Unlock()

	start := time.Now()
	p, err := Train(ctx, records, a.cfg)
	a.metrics.RecordRetrain(err == nil)
	if err != nil {
		a.logger.TrainingLogger("", len(records), nil, time.Since(start), err)
		return nil, err
	}
	a.Install(p)
	a.logger.TrainingLogger(p.Version, p.Summary.Rows, p.Summary.Distribution, time.Since(start), nil)
	return p, nil
}

// Install swaps in a trained pipeline and resets cached results.
func (a *Analyzer) Install(p *Pipeline) {
	a.pipeline.Store(p)
	dropped := a.results.Reset()
	a.breaker.Reset()
	a.logger.CacheLogger("reset", "*", dropped)
}

// Pipeline returns the serving pipeline, nil before training.
func (a *Analyzer) Pipeline() *Pipeline {
	return a.pipeline.Load()
}

// Analyze returns the analysis for an application, computing it once per
// id. Concurrent first requests share one computation.
func (a *Analyzer) Analyze(ctx context.Context, id string) (*AnalysisResult, error) {
	if a.pipeline.Load() == nil {
		return nil, ErrNotFitted
	}

	start := time.Now()
	// Waiters share the computation, so it must outlive any one caller.
	detached := context.WithoutCancel(ctx)
	result, hit, err := a.results.GetOrCompute(id, func() (*AnalysisResult, error) {
		// Loaded after the cache pinned its generation: a pipeline swapped
		// in from here on resets the cache and this result is not stored.
		p := a.pipeline.Load()
		if p == nil {
			return nil, ErrNotFitted
		}
		return a.run(detached, p, id)
	})
	if err != nil {
		return nil, err
	}

	if hit {
		a.metrics.IncrementCacheHit()
	} else {
		a.metrics.IncrementCacheMiss()
	}
	a.logger.AnalysisLogger(id, string(result.Source), result.RiskCategory, result.Confidence, time.Since(start), hit)
	return result, nil
}

// run is one full pipeline pass for one application.
func (a *Analyzer) run(ctx context.Context, p *Pipeline, id string) (*AnalysisResult, error) {
	start := time.Now()
	a.metrics.IncrementPipelineRun()

	rec, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	enc, err := p.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encode application %s: %w", id, err)
	}

	result, stage, err := a.modelPath(ctx, p, id, enc)
	if err != nil {
		a.logger.FallbackLogger(id, string(stage), err)
		result = a.fallback.Score(id, HeadlineOf(enc), fmt.Sprintf("%s: %v", stage, err))
		result.ModelVersion = p.Version
	}
	result.UnseenCategories = enc.Unseen
	result.ImputedFields = enc.Imputed

	a.metrics.RecordAnalysis(string(result.Source), result.RiskCategory, time.Since(start))
	if a.sink != nil {
		if err := a.sink.SaveAnalysis(ctx, result); err != nil {
			a.logger.Warn("Analysis not persisted", "application_id", id, "error", err.Error())
		}
	}
	return result, nil
}

// modelPath predicts, attributes and aggregates. It reports the last stage
// reached; any error or panic sends the caller to the fallback scorer.
func (a *Analyzer) modelPath(ctx context.Context, p *Pipeline, id string, enc features.EncodedFeatures) (result *AnalysisResult, stage Stage, err error) {
	stage = StageEncoded
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	level, probs, err := p.Predict(enc.Values)
	if err != nil {
		return nil, stage, err
	}
	stage = StagePredicted

	attr, err := a.attribute(ctx, p, enc.Values, &level)
	if err != nil {
		return nil, stage, err
	}
	stage = StageAttributed

	score := fivec.Aggregate(attr.Weights, fivec.DefaultTaxonomy())
	stage = StageAggregated

	h := HeadlineOf(enc)
	label := p.Label(level)
	confidence := probs[level]
	improvements := append(Improvements(h), WeaknessAdvice(score, level)...)
	top := a.topFeatures(p, attr, enc.Values)

	result = &AnalysisResult{
		ApplicationID: id,
		Source:        SourceModel,
		Stage:         StageComplete,
		RiskCategory:  label,
		RiskLevel:     level,
		RiskScore:     1 - confidence,
		Confidence:    confidence,
		Probabilities: p.probabilityMap(probs),
		TopFeatures:   top,
		FiveC:         score,
		Improvements:  improvements,
		Summary:       modelSummary(label, confidence, h, score, top),
		ModelVersion:  p.Version,
		GeneratedAt:   time.Now().UTC(),
	}
	return result, StageComplete, nil
}

// attribute runs the explainer under the breaker and the attribution timeout.
func (a *Analyzer) attribute(ctx context.Context, p *Pipeline, values []float64, category *int) (*explain.Attribution, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.AttributionTimeout)
	defer cancel()

	var attr *explain.Attribution
	err := a.breaker.Call(func() error {
		var err error
		attr, err = p.Attribute(ctx, values, category, a.cfg.Explain)
		return err
	})
	if err != nil {
		a.metrics.IncrementAttributionFailure()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", explain.ErrAttributionUnavailable, a.cfg.AttributionTimeout)
		}
		return nil, err
	}
	return attr, nil
}

func (a *Analyzer) topFeatures(p *Pipeline, attr *explain.Attribution, values []float64) []FeatureImpact {
	tax := fivec.DefaultTaxonomy()
	ranked := attr.Ranked()
	if n := a.cfg.TopFeatures; n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]FeatureImpact, len(ranked))
	for i, c := range ranked {
		value := ""
		if j, ok := features.Index(c.Feature); ok {
			value = p.Describe(c.Feature, values[j])
		}
		out[i] = FeatureImpact{
			Feature:     c.Feature,
			Impact:      c.Weight,
			Value:       value,
			Description: c.Condition,
			FiveC:       tax[c.Feature],
		}
	}
	return out
}

func modelSummary(label string, confidence float64, h Headline, score fivec.Score, top []FeatureImpact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model classifies this application as '%s' with a confidence of %.2f. ", label, confidence)
	fmt.Fprintf(&b, "Monthly income is %s against a requested %s. ", peso(h.Income), peso(h.LoanAmount))
	if len(top) > 0 {
		fmt.Fprintf(&b, "The strongest local factor is %s. ", top[0].Description)
	}
	best, worst := score.Strongest()
	fmt.Fprintf(&b, "Across the five Cs, %s weighs most toward this category and %s most against it.", best, worst)
	return b.String()
}

// Explain attributes the model's output for an explicitly requested risk
// category. Results are not cached.
func (a *Analyzer) Explain(ctx context.Context, id, category string) (*Explanation, error) {
	p := a.pipeline.Load()
	if p == nil {
		return nil, ErrNotFitted
	}
	rec, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	enc, err := p.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encode application %s: %w", id, err)
	}

	level, probs, err := p.Predict(enc.Values)
	if err != nil {
		return nil, err
	}
	if category != "" {
		k, ok := p.CategoryIndex(category)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		level = k
	}

	attr, err := a.attribute(ctx, p, enc.Values, &level)
	if err != nil {
		return nil, err
	}
	return &Explanation{
		ApplicationID: id,
		RiskCategory:  p.Label(level),
		Probability:   probs[level],
		TopFeatures:   a.topFeatures(p, attr, enc.Values),
		FiveC:         fivec.Aggregate(attr.Weights, fivec.DefaultTaxonomy()),
		Attribution:   attr,
		ModelVersion:  p.Version,
	}, nil
}

// Categorize predicts a batch of records with the serving pipeline. Rows are
// scored independently and concurrently; output order matches input.
func (a *Analyzer) Categorize(ctx context.Context, records []types.ApplicationRecord) ([]Prediction, error) {
	p := a.pipeline.Load()
	if p == nil {
		return nil, ErrNotFitted
	}

	out := make([]Prediction, len(records))
	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.BatchWorkers > 0 {
		g.SetLimit(a.cfg.BatchWorkers)
	}
	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enc, err := p.Encode(&records[i])
			if err != nil {
				return fmt.Errorf("record %q: %w", records[i].ID, err)
			}
			level, probs, err := p.Predict(enc.Values)
			if err != nil {
				return fmt.Errorf("record %q: %w", records[i].ID, err)
			}
			out[i] = Prediction{
				ApplicationID:    records[i].ID,
				RiskCategory:     p.Label(level),
				RiskLevel:        level,
				Confidence:       probs[level],
				Probabilities:    p.probabilityMap(probs),
				UnseenCategories: enc.Unseen,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.metrics.AddBatchPredictions(len(out))
	return out, nil
}

// Invalidate drops the cached result of one application.
func (a *Analyzer) Invalidate(id string) bool {
	ok := a.results.Invalidate(id)
	a.logger.CacheLogger("invalidate", id, a.results.Size())
	return ok
}

// ResetAll drops every cached result and returns how many were dropped.
func (a *Analyzer) ResetAll() int {
	n := a.results.Reset()
	a.logger.CacheLogger("reset", "*", n)
	return n
}

// CacheStats reports the result cache.
func (a *Analyzer) CacheStats() cache.Stats {
	return a.results.Stats()
}

// Health describes the serving model.
func (a *Analyzer) Health() Health {
	h := Health{
		Labels:    append([]string(nil), a.cfg.Labels...),
		CacheSize: a.results.Size(),
		Breaker:   a.breaker.State().String(),
	}
	if p := a.pipeline.Load(); p != nil {
		trained := p.TrainedAt
		summary := p.Summary
		h.Ready = true
		h.ModelVersion = p.Version
		h.TrainedAt = &trained
		h.Training = &summary
	}
	return h
}

// Metrics exposes the analyzer's counters.
func (a *Analyzer) Metrics() *monitoring.Metrics {
	return a.metrics
}
