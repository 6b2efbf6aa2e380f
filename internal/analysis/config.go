package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/explain"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/labeling"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/model"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/resilience"
)

// DefaultLabels is the five-level ordinal scale, best first.
var DefaultLabels = []string{"Secure", "Unstable", "Risky", "Critical", "Default"}

// Config drives training and analysis.
type Config struct {
	Labels   []string          `yaml:"labels"`
	Labeling labeling.Config   `yaml:"labeling"`
	Model    model.TrainConfig `yaml:"model"`
	Explain  explain.Options   `yaml:"explain"`
	Fallback FallbackConfig    `yaml:"fallback"`
	Breaker  resilience.Config `yaml:"breaker"`

	AttributionTimeout time.Duration `yaml:"attribution_timeout"`
	TopFeatures        int           `yaml:"top_features"`
	BatchWorkers       int           `yaml:"batch_workers"`
}

// FallbackConfig holds the debt-to-income cut points of the rule scorer,
// ascending, one fewer than the number of labels.
type FallbackConfig struct {
	Thresholds []float64 `yaml:"thresholds"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Labels:             append([]string(nil), DefaultLabels...),
		Labeling:           labeling.DefaultConfig(),
		Model:              model.DefaultTrainConfig(),
		Explain:            explain.DefaultOptions(),
		Fallback:           FallbackConfig{Thresholds: []float64{2, 3, 5, 10}},
		Breaker:            resilience.Config{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second, SuccessThreshold: 2},
		AttributionTimeout: 10 * time.Second,
		TopFeatures:        10,
		BatchWorkers:       8,
	}
}

// Validate checks that labels, bins and fallback thresholds agree.
func (c Config) Validate() error {
	if len(c.Labels) < 2 {
		return errors.New("at least two risk labels are required")
	}
	seen := make(map[string]bool, len(c.Labels))
	for _, l := range c.Labels {
		if l == "" || seen[l] {
			return fmt.Errorf("risk labels must be unique and non-empty: %q", c.Labels)
		}
		seen[l] = true
	}
	if err := c.Labeling.Validate(); err != nil {
		return fmt.Errorf("labeling: %w", err)
	}
	if got, want := c.Labeling.Classes(), len(c.Labels); got != want {
		return fmt.Errorf("bin_sigmas give %d categories but %d labels are configured", got, want)
	}
	if got, want := len(c.Fallback.Thresholds), len(c.Labels)-1; got != want {
		return fmt.Errorf("fallback needs %d thresholds, got %d", want, got)
	}
	if !sort.Float64sAreSorted(c.Fallback.Thresholds) {
		return errors.New("fallback thresholds must be ascending")
	}
	if c.Explain.Samples < 2 {
		return fmt.Errorf("explain samples must be at least 2, got %d", c.Explain.Samples)
	}
	if c.AttributionTimeout <= 0 {
		return errors.New("attribution_timeout must be positive")
	}
	return nil
}
