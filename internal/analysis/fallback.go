package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/fivec"
)

var printer = message.NewPrinter(language.English)

func peso(v float64) string {
	return printer.Sprintf("PHP %.2f", v)
}

// Headline is the handful of fields the rule-based paths look at.
type Headline struct {
	Income          float64
	LoanAmount      float64
	CreditLimit     float64
	SuccessfulLoans float64
}

// HeadlineOf reads the headline fields from an encoded application, so
// missing values arrive already imputed.
func HeadlineOf(enc features.EncodedFeatures) Headline {
	return Headline{
		Income:          enc.Value(features.GrossMonthlyIncome),
		LoanAmount:      enc.Value(features.LoanAmountRequested),
		CreditLimit:     enc.Value(features.CreditLimit),
		SuccessfulLoans: enc.Value(features.BankSuccessfulLoans),
	}
}

// DebtToIncome is the requested amount in months of income.
func (h Headline) DebtToIncome() float64 {
	return h.LoanAmount / math.Max(h.Income, 1)
}

// FallbackScorer is the closed-form scorer used when the model path fails.
// It needs no training.
type FallbackScorer struct {
	thresholds []float64
	labels     []string
}

// NewFallbackScorer builds a scorer. len(thresholds) must be len(labels)-1.
func NewFallbackScorer(cfg FallbackConfig, labels []string) *FallbackScorer {
	return &FallbackScorer{
		thresholds: append([]float64(nil), cfg.Thresholds...),
		labels:     append([]string(nil), labels...),
	}
}

// Level maps a debt-to-income ratio to a category: one step worse for each
// threshold the ratio exceeds.
func (f *FallbackScorer) Level(ratio float64) int {
	level := 0
	for _, t := range f.thresholds {
		if ratio > t {
			level++
		}
	}
	return level
}

// Score builds a complete fallback result.
func (f *FallbackScorer) Score(applicationID string, h Headline, reason string) *AnalysisResult {
	ratio := h.DebtToIncome()
	level := f.Level(ratio)
	k := len(f.labels)

	probs := make(map[string]float64, k)
	total := 0.6 + 0.1*float64(k-1)
	for i, l := range f.labels {
		p := 0.1
		if i == level {
			p = 0.6
		}
		probs[l] = p / total
	}

	impacts := []FeatureImpact{
		{
			Feature:     features.GrossMonthlyIncome,
			Impact:      pick(h.Income < 30000, -0.15, 0.1),
			Value:       peso(h.Income),
			Description: "Monthly income: " + peso(h.Income),
			FiveC:       fivec.Capacity,
		},
		{
			Feature:     features.LoanAmountRequested,
			Impact:      pick(ratio > 3, -0.2, 0.05),
			Value:       peso(h.LoanAmount),
			Description: "Requested amount: " + peso(h.LoanAmount),
			FiveC:       fivec.Collateral,
		},
		{
			Feature:     features.CreditLimit,
			Impact:      pick(h.CreditLimit > 50000, 0.1, -0.05),
			Value:       peso(h.CreditLimit),
			Description: "Credit limit: " + peso(h.CreditLimit),
			FiveC:       fivec.Capital,
		},
	}

	score := fivec.Score{Scores: map[fivec.Category]float64{
		fivec.Character:  pick(h.SuccessfulLoans > 0, 0.05, -0.1),
		fivec.Capacity:   pick(ratio < 2, 0.1, -0.2),
		fivec.Capital:    pick(h.CreditLimit > 100000, 0.05, -0.1),
		fivec.Collateral: pick(ratio > 5, -0.1, 0.05),
		fivec.Conditions: 0.02,
	}}

	label := f.labels[level]
	outlook := "favorable"
	if ratio >= 3 {
		outlook = "challenging"
	}
	summary := fmt.Sprintf(
		"Rule-based assessment: %s risk profile with a debt-to-income ratio of %.1fx. "+
			"Monthly income of %s against a requested %s indicates %s repayment capacity.",
		strings.ToLower(label), ratio, peso(h.Income), peso(h.LoanAmount), outlook)

	return &AnalysisResult{
		ApplicationID:  applicationID,
		Source:         SourceFallback,
		Stage:          StageFallbackComplete,
		RiskCategory:   label,
		RiskLevel:      level,
		RiskScore:      (2*float64(level) + 1) / (2 * float64(k)),
		Confidence:     probs[label],
		Probabilities:  probs,
		TopFeatures:    impacts,
		FiveC:          score,
		Improvements:   Improvements(h),
		Summary:        summary,
		FallbackReason: reason,
		GeneratedAt:    time.Now().UTC(),
	}
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}
