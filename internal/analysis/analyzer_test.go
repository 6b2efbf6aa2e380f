package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/fivec"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Explain.Samples = 400
	return cfg
}

type fixture struct {
	analyzer *Analyzer
	store    *MemoryStore
	records  []types.ApplicationRecord
	metrics  *monitoring.Metrics
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	records := dataset.Synthesize(400, 42)
	store := NewMemoryStore(records...)
	metrics := monitoring.NewMetrics()

	a, err := NewAnalyzer(cfg, store, append([]Option{WithMetrics(metrics)}, opts...)...)
	require.NoError(t, err)
	return &fixture{analyzer: a, store: store, records: records, metrics: metrics}
}

func newTrainedFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := newFixture(t, cfg, opts...)
	_, err := f.analyzer.Retrain(context.Background(), f.records)
	require.NoError(t, err)
	return f
}

type recordingSink struct {
	mu      sync.Mutex
	results []*AnalysisResult
}

func (s *recordingSink) SaveAnalysis(_ context.Context, r *AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

func TestNewAnalyzer_Validation(t *testing.T) {
	_, err := NewAnalyzer(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Labels = cfg.Labels[:3]
	_, err = NewAnalyzer(cfg, NewMemoryStore())
	assert.Error(t, err)
}

func TestAnalyze_NotFitted(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.analyzer.Analyze(context.Background(), f.records[0].ID)
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = f.analyzer.Categorize(context.Background(), f.records[:2])
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = f.analyzer.Explain(context.Background(), f.records[0].ID, "")
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.False(t, f.analyzer.Health().Ready)
}

func TestAnalyze_UnknownApplication(t *testing.T) {
	f := newTrainedFixture(t, testConfig())

	_, err := f.analyzer.Analyze(context.Background(), "APP-missing")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
	assert.Equal(t, 0, f.analyzer.CacheStats().Size)
}

func TestAnalyze_ModelPath(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	id := f.records[3].ID

	r, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, r.ApplicationID)
	assert.Equal(t, SourceModel, r.Source)
	assert.Equal(t, StageComplete, r.Stage)
	assert.Contains(t, DefaultLabels, r.RiskCategory)
	assert.Equal(t, DefaultLabels[r.RiskLevel], r.RiskCategory)
	assert.InDelta(t, 1-r.Confidence, r.RiskScore, 1e-12)
	assert.Equal(t, f.analyzer.Pipeline().Version, r.ModelVersion)

	total := 0.0
	for _, p := range r.Probabilities {
		total += p
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.Len(t, r.Probabilities, len(DefaultLabels))
	assert.Equal(t, r.Probabilities[r.RiskCategory], r.Confidence)

	assert.Len(t, r.FiveC.Scores, len(fivec.Categories()))
	assert.NotEmpty(t, r.TopFeatures)
	assert.LessOrEqual(t, len(r.TopFeatures), testConfig().TopFeatures)
	assert.NotEmpty(t, r.Improvements)
	assert.NotEmpty(t, r.Summary)
}

func TestAnalyze_IsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	f := newTrainedFixture(t, testConfig(), WithResultSink(sink))
	id := f.records[0].ID

	first, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	second, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.PipelineRuns))
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.CacheHits))
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.CacheMisses))
	assert.Len(t, sink.results, 1)
}

func TestAnalyze_ConcurrentRequestsShareOneRun(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	id := f.records[1].ID

	const callers = 16
	results := make([]*AnalysisResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.analyzer.Analyze(context.Background(), id)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.PipelineRuns))
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.CacheMisses))
	assert.EqualValues(t, callers-1, atomic.LoadInt64(&f.metrics.CacheHits))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestAnalyze_DeterministicAcrossResets(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	id := f.records[5].ID

	first, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.analyzer.ResetAll())

	second, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.RiskCategory, second.RiskCategory)
	assert.Equal(t, first.TopFeatures, second.TopFeatures)
	assert.Equal(t, first.FiveC, second.FiveC)
}

func TestAnalyze_AttributionTimeoutFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.AttributionTimeout = time.Nanosecond
	f := newTrainedFixture(t, cfg)
	id := f.records[2].ID

	r, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, r.Source)
	assert.Equal(t, StageFallbackComplete, r.Stage)
	assert.Contains(t, r.FallbackReason, string(StagePredicted))
	assert.Equal(t, f.analyzer.Pipeline().Version, r.ModelVersion)
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.AttributionFailures))
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.FallbackResults))

	// the fallback result is cached like any other
	again, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, r, again)
}

func TestAnalyze_OpenBreakerFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.AttributionTimeout = time.Nanosecond
	cfg.Breaker.FailureThreshold = 2
	cfg.Breaker.RecoveryTimeout = time.Hour
	f := newTrainedFixture(t, cfg)

	for _, r := range f.records[:4] {
		res, err := f.analyzer.Analyze(context.Background(), r.ID)
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, res.Source)
	}
	assert.Equal(t, "open", f.analyzer.Health().Breaker)
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.CircuitBreakerOpens))
}

// brokenPipeline copies the serving pipeline with one stage knocked out.
func brokenPipeline(t *testing.T, a *Analyzer, breakIt func(*Pipeline)) *Pipeline {
	t.Helper()
	p := *a.Pipeline()
	p.Version = "broken"
	breakIt(&p)
	return &p
}

func TestAnalyze_ModelFailuresFallBack(t *testing.T) {
	tests := []struct {
		name    string
		breakIt func(*Pipeline)
		stage   Stage
		reason  string
	}{
		{
			name:    "predict error",
			breakIt: func(p *Pipeline) { p.model = nil },
			stage:   StageEncoded,
			reason:  "model not trained",
		},
		{
			name:    "panic during attribution",
			breakIt: func(p *Pipeline) { p.explainer = nil },
			stage:   StagePredicted,
			reason:  "panic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrainedFixture(t, testConfig())
			f.analyzer.Install(brokenPipeline(t, f.analyzer, tt.breakIt))
			id := f.records[6].ID

			r, err := f.analyzer.Analyze(context.Background(), id)
			require.NoError(t, err)

			assert.Equal(t, SourceFallback, r.Source)
			assert.Equal(t, StageFallbackComplete, r.Stage)
			assert.True(t, strings.HasPrefix(r.FallbackReason, string(tt.stage)+":"), r.FallbackReason)
			assert.Contains(t, r.FallbackReason, tt.reason)
			assert.Contains(t, DefaultLabels, r.RiskCategory)
			assert.Equal(t, "broken", r.ModelVersion)
			assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.FallbackResults))

			again, err := f.analyzer.Analyze(context.Background(), id)
			require.NoError(t, err)
			assert.Same(t, r, again)
			assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.PipelineRuns))
		})
	}
}

// swappingStore installs another pipeline while the first lookup is in
// progress, i.e. after the analysis has started.
type swappingStore struct {
	*MemoryStore
	once    sync.Once
	onFirst func()
}

func (s *swappingStore) Get(ctx context.Context, id string) (*types.ApplicationRecord, error) {
	s.once.Do(s.onFirst)
	return s.MemoryStore.Get(ctx, id)
}

func TestAnalyze_RetrainDuringAnalysisIsNotCached(t *testing.T) {
	records := dataset.Synthesize(400, 42)
	old, err := Train(context.Background(), records, testConfig())
	require.NoError(t, err)
	replacement, err := Train(context.Background(), dataset.Synthesize(300, 9), testConfig())
	require.NoError(t, err)

	store := &swappingStore{MemoryStore: NewMemoryStore(records...)}
	a, err := NewAnalyzer(testConfig(), store)
	require.NoError(t, err)
	store.onFirst = func() { a.Install(replacement) }
	a.Install(old)

	id := records[0].ID
	first, err := a.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, old.Version, first.ModelVersion)
	assert.Equal(t, 0, a.CacheStats().Size, "a result from the replaced pipeline must not be cached")

	second, err := a.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, replacement.Version, second.ModelVersion)
	assert.NotSame(t, first, second)
}

func TestInvalidate(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	id := f.records[0].ID

	first, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, f.analyzer.Invalidate(id))
	assert.False(t, f.analyzer.Invalidate(id))

	second, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, atomic.LoadInt64(&f.metrics.PipelineRuns))
}

func TestRetrain_FailureKeepsServingPipeline(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	before := f.analyzer.Pipeline()

	_, err := f.analyzer.Retrain(context.Background(), f.records[:1])
	require.Error(t, err)
	assert.Same(t, before, f.analyzer.Pipeline())
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.metrics.RetrainFailures))

	_, err = f.analyzer.Analyze(context.Background(), f.records[0].ID)
	assert.NoError(t, err)
}

func TestRetrain_SwapsPipelineAndDropsCache(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	before := f.analyzer.Pipeline()
	_, err := f.analyzer.Analyze(context.Background(), f.records[0].ID)
	require.NoError(t, err)

	p, err := f.analyzer.Retrain(context.Background(), dataset.Synthesize(300, 9))
	require.NoError(t, err)

	assert.NotSame(t, before, p)
	assert.Same(t, p, f.analyzer.Pipeline())
	assert.Equal(t, 0, f.analyzer.CacheStats().Size)

	h := f.analyzer.Health()
	assert.True(t, h.Ready)
	assert.Equal(t, p.Version, h.ModelVersion)
	require.NotNil(t, h.Training)
	assert.Equal(t, 300, h.Training.Rows)
}

func TestRetrain_CancelledContext(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.analyzer.Retrain(ctx, f.records)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, f.analyzer.Pipeline())
}

func TestExplain(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	id := f.records[4].ID

	predicted, err := f.analyzer.Explain(context.Background(), id, "")
	require.NoError(t, err)
	r, err := f.analyzer.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, r.RiskCategory, predicted.RiskCategory)

	other := DefaultLabels[(r.RiskLevel+2)%len(DefaultLabels)]
	e, err := f.analyzer.Explain(context.Background(), id, other)
	require.NoError(t, err)
	assert.Equal(t, other, e.RiskCategory)
	assert.Equal(t, r.Probabilities[other], e.Probability)
	assert.NotEmpty(t, e.TopFeatures)

	_, err = f.analyzer.Explain(context.Background(), id, "Catastrophic")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = f.analyzer.Explain(context.Background(), "APP-missing", "")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestCategorize_PreservesOrder(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	batch := dataset.Synthesize(37, 11)

	preds, err := f.analyzer.Categorize(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, preds, len(batch))

	p := f.analyzer.Pipeline()
	for i, pred := range preds {
		assert.Equal(t, batch[i].ID, pred.ApplicationID)

		enc, err := p.Encode(&batch[i])
		require.NoError(t, err)
		level, _, err := p.Predict(enc.Values)
		require.NoError(t, err)
		assert.Equal(t, level, pred.RiskLevel)
		assert.Equal(t, p.Label(level), pred.RiskCategory)
	}
	assert.EqualValues(t, len(batch), atomic.LoadInt64(&f.metrics.BatchPredictions))
}

func TestCategorize_UnseenCategoriesAreReported(t *testing.T) {
	f := newTrainedFixture(t, testConfig())
	rec := f.records[0]
	rec.ID = "APP-new"
	rec.AddressCity = "Atlantis"

	preds, err := f.analyzer.Categorize(context.Background(), []types.ApplicationRecord{rec})
	require.NoError(t, err)
	assert.Contains(t, preds[0].UnseenCategories, "address_city")
}
