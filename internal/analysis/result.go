package analysis

import (
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/explain"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/fivec"
)

// Source tells which path produced a result.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Stage is how far an analysis got through the pipeline.
type Stage string

const (
	StageUninitialized    Stage = "uninitialized"
	StageEncoded          Stage = "encoded"
	StagePredicted        Stage = "predicted"
	StageAttributed       Stage = "attributed"
	StageAggregated       Stage = "aggregated"
	StageComplete         Stage = "complete"
	StageFallbackComplete Stage = "fallback_complete"
)

// FeatureImpact is one explained feature.
type FeatureImpact struct {
	Feature     string         `json:"feature"`
	Impact      float64        `json:"impact"`
	Value       string         `json:"value"`
	Description string         `json:"description"`
	FiveC       fivec.Category `json:"five_c,omitempty"`
}

// AnalysisResult is the outcome for one application. Both paths fill the
// same shape; Source tells them apart. Results are shared through the cache
// and must not be modified.
type AnalysisResult struct {
	ApplicationID    string             `json:"application_id"`
	Source           Source             `json:"source"`
	Stage            Stage              `json:"stage"`
	RiskCategory     string             `json:"risk_category"`
	RiskLevel        int                `json:"risk_level"`
	RiskScore        float64            `json:"risk_score"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	TopFeatures      []FeatureImpact    `json:"top_features"`
	FiveC            fivec.Score        `json:"five_c"`
	Improvements     []string           `json:"improvements"`
	Summary          string             `json:"summary"`
	ModelVersion     string             `json:"model_version,omitempty"`
	FallbackReason   string             `json:"fallback_reason,omitempty"`
	UnseenCategories []string           `json:"unseen_categories,omitempty"`
	ImputedFields    []string           `json:"imputed_fields,omitempty"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// Explanation is an uncached attribution for a requested category.
type Explanation struct {
	ApplicationID string               `json:"application_id"`
	RiskCategory  string               `json:"risk_category"`
	Probability   float64              `json:"probability"`
	TopFeatures   []FeatureImpact      `json:"top_features"`
	FiveC         fivec.Score          `json:"five_c"`
	Attribution   *explain.Attribution `json:"attribution"`
	ModelVersion  string               `json:"model_version"`
}

// Prediction is one row of a batch categorization.
type Prediction struct {
	ApplicationID    string             `json:"application_id"`
	RiskCategory     string             `json:"risk_category"`
	RiskLevel        int                `json:"risk_level"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	UnseenCategories []string           `json:"unseen_categories,omitempty"`
}

// Health describes the serving model.
type Health struct {
	Ready        bool             `json:"ready"`
	ModelVersion string           `json:"model_version,omitempty"`
	TrainedAt    *time.Time       `json:"trained_at,omitempty"`
	Labels       []string         `json:"labels"`
	Training     *TrainingSummary `json:"training,omitempty"`
	CacheSize    int              `json:"cache_size"`
	Breaker      string           `json:"explain_breaker"`
}
