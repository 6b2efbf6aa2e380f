package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxLatencySamples = 1000

// Metrics holds service counters. All methods are safe for concurrent use.
type Metrics struct {
	RequestCount int64
	ErrorCount   int64
	CacheHits    int64
	CacheMisses  int64
	StartTime    time.Time

	// Analysis pipeline
	PipelineRuns        int64
	ModelResults        int64
	FallbackResults     int64
	AttributionFailures int64
	BatchPredictions    int64

	// Training
	RetrainSuccesses int64
	RetrainFailures  int64

	CircuitBreakerOpens int64
	RateLimitBlocks     int64
	RateLimitFallbacks  int64
	RateLimitErrors     int64

	latencies     []time.Duration
	latenciesMu   sync.RWMutex
	byStatus      map[int]int64
	statusMu      sync.RWMutex
	byCategory    map[string]int64
	categoryMu    sync.RWMutex
	responseTimes []time.Duration
	responseMu    sync.RWMutex
}

// NewMetrics creates a zeroed metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:     time.Now(),
		latencies:     make([]time.Duration, 0, maxLatencySamples),
		responseTimes: make([]time.Duration, 0, maxLatencySamples),
		byStatus:      make(map[int]int64),
		byCategory:    make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest()            { atomic.AddInt64(&m.RequestCount, 1) }
func (m *Metrics) IncrementError()              { atomic.AddInt64(&m.ErrorCount, 1) }
func (m *Metrics) IncrementCacheHit()           { atomic.AddInt64(&m.CacheHits, 1) }
func (m *Metrics) IncrementCacheMiss()          { atomic.AddInt64(&m.CacheMisses, 1) }
func (m *Metrics) IncrementPipelineRun()        { atomic.AddInt64(&m.PipelineRuns, 1) }
func (m *Metrics) IncrementAttributionFailure() { atomic.AddInt64(&m.AttributionFailures, 1) }
func (m *Metrics) IncrementCircuitBreakerOpen() { atomic.AddInt64(&m.CircuitBreakerOpens, 1) }
func (m *Metrics) IncrementRateLimitBlock()     { atomic.AddInt64(&m.RateLimitBlocks, 1) }
func (m *Metrics) IncrementRateLimitFallback()  { atomic.AddInt64(&m.RateLimitFallbacks, 1) }
func (m *Metrics) IncrementRateLimitError()     { atomic.AddInt64(&m.RateLimitErrors, 1) }

// AddBatchPredictions counts rows scored through the batch path.
func (m *Metrics) AddBatchPredictions(n int) {
	atomic.AddInt64(&m.BatchPredictions, int64(n))
}

// RecordRetrain counts a training attempt.
func (m *Metrics) RecordRetrain(success bool) {
	if success {
		atomic.AddInt64(&m.RetrainSuccesses, 1)
		return
	}
	atomic.AddInt64(&m.RetrainFailures, 1)
}

// RecordAnalysis counts a finished analysis by source and risk category and
// keeps its latency for percentiles.
func (m *Metrics) RecordAnalysis(source, category string, duration time.Duration) {
	if source == "fallback" {
		atomic.AddInt64(&m.FallbackResults, 1)
	} else {
		atomic.AddInt64(&m.ModelResults, 1)
	}

	m.categoryMu.Lock()
	m.byCategory[category]++
	m.categoryMu.Unlock()

	m.latenciesMu.Lock()
	m.latencies = appendBounded(m.latencies, duration)
	m.latenciesMu.Unlock()
}

// RecordResponseTime keeps an HTTP response time for percentiles.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.responseMu.Lock()
	m.responseTimes = appendBounded(m.responseTimes, duration)
	m.responseMu.Unlock()
}

// RecordRequestByStatus counts a response by HTTP status code.
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.byStatus[statusCode]++
}

func appendBounded(xs []time.Duration, d time.Duration) []time.Duration {
	xs = append(xs, d)
	if len(xs) > maxLatencySamples {
		xs = xs[1:]
	}
	return xs
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*p/100.0)]
}

// AnalysisLatency returns the p-th percentile of recent analysis latencies.
func (m *Metrics) AnalysisLatency(p float64) time.Duration {
	m.latenciesMu.RLock()
	defer m.latenciesMu.RUnlock()
	return percentile(m.latencies, p)
}

// ResponseTime returns the p-th percentile of recent HTTP response times.
func (m *Metrics) ResponseTime(p float64) time.Duration {
	m.responseMu.RLock()
	defer m.responseMu.RUnlock()
	return percentile(m.responseTimes, p)
}

// CategoryDistribution returns analyses per risk category.
func (m *Metrics) CategoryDistribution() map[string]int64 {
	m.categoryMu.RLock()
	defer m.categoryMu.RUnlock()

	out := make(map[string]int64, len(m.byCategory))
	for k, v := range m.byCategory {
		out[k] = v
	}
	return out
}

// StatusCodeDistribution returns responses per status code.
func (m *Metrics) StatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	out := make(map[int]int64, len(m.byStatus))
	for k, v := range m.byStatus {
		out[k] = v
	}
	return out
}

func ratePercent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// GetStats returns a snapshot for the health endpoint.
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errs := atomic.LoadInt64(&m.ErrorCount)
	hits := atomic.LoadInt64(&m.CacheHits)
	misses := atomic.LoadInt64(&m.CacheMisses)
	modelResults := atomic.LoadInt64(&m.ModelResults)
	fallbacks := atomic.LoadInt64(&m.FallbackResults)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errs,
		"error_rate_percent":     ratePercent(errs, requests),
		"cache_hits":             hits,
		"cache_misses":           misses,
		"cache_hit_rate_percent": ratePercent(hits, hits+misses),

		"pipeline_runs":          atomic.LoadInt64(&m.PipelineRuns),
		"model_results":          modelResults,
		"fallback_results":       fallbacks,
		"fallback_rate_percent":  ratePercent(fallbacks, modelResults+fallbacks),
		"attribution_failures":   atomic.LoadInt64(&m.AttributionFailures),
		"batch_predictions":      atomic.LoadInt64(&m.BatchPredictions),
		"risk_categories":        m.CategoryDistribution(),
		"p50_analysis_ms":        float64(m.AnalysisLatency(50)) / 1e6,
		"p95_analysis_ms":        float64(m.AnalysisLatency(95)) / 1e6,
		"retrain_successes":      atomic.LoadInt64(&m.RetrainSuccesses),
		"retrain_failures":       atomic.LoadInt64(&m.RetrainFailures),
		"circuit_breaker_opens":  atomic.LoadInt64(&m.CircuitBreakerOpens),
		"rate_limit_blocks":      atomic.LoadInt64(&m.RateLimitBlocks),
		"rate_limit_fallbacks":   atomic.LoadInt64(&m.RateLimitFallbacks),
		"rate_limit_errors":      atomic.LoadInt64(&m.RateLimitErrors),

		"p50_response_time_ms":     float64(m.ResponseTime(50)) / 1e6,
		"p99_response_time_ms":     float64(m.ResponseTime(99)) / 1e6,
		"status_code_distribution": m.StatusCodeDistribution(),
	}
}
