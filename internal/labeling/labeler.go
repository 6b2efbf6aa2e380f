package labeling

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

// ErrDegenerateDistribution is returned when the training risk indexes have
// (almost) no spread, so bin edges would collapse onto each other.
var ErrDegenerateDistribution = errors.New("degenerate risk index distribution")

const minStd = 1e-9

// Weights of the normalized inputs in the goodness score. They sum to 1.
var Weights = map[string]float64{
	features.CreditLimit:              0.1,
	features.GrossMonthlyIncome:       0.2,
	features.BankLoansTaken:           0.3,
	features.BankSuccessfulLoans:      0.2,
	features.WalletAvgMonthlyDeposits: 0.1,
	features.DataUsagePattern:         0.1,
}

var weighted = []string{
	features.CreditLimit,
	features.GrossMonthlyIncome,
	features.BankLoansTaken,
	features.BankSuccessfulLoans,
	features.WalletAvgMonthlyDeposits,
	features.DataUsagePattern,
}

// Config controls label construction.
type Config struct {
	// BinSigmas are the inner bin edges as offsets from the mean in standard
	// deviations, ascending. len(BinSigmas)+1 categories are produced.
	BinSigmas []float64 `yaml:"bin_sigmas"`
	// Boost is the alternative-data boost for applicants with little
	// conventional lending exposure.
	Boost float64 `yaml:"boost"`
	// BoostQuantile picks the loans-taken threshold below which Boost applies.
	BoostQuantile float64 `yaml:"boost_quantile"`
}

// DefaultConfig gives the bell-curve five-level scale.
func DefaultConfig() Config {
	return Config{
		BinSigmas:     []float64{-1.5, -0.5, 0.5, 1.5},
		Boost:         0.15,
		BoostQuantile: 0.25,
	}
}

// Classes is the number of categories the config produces.
func (c Config) Classes() int {
	return len(c.BinSigmas) + 1
}

// Validate checks the sigma offsets are usable as bin edges.
func (c Config) Validate() error {
	if len(c.BinSigmas) == 0 {
		return errors.New("bin_sigmas must not be empty")
	}
	if !sort.Float64sAreSorted(c.BinSigmas) {
		return errors.New("bin_sigmas must be ascending")
	}
	for i := 1; i < len(c.BinSigmas); i++ {
		if c.BinSigmas[i] == c.BinSigmas[i-1] {
			return errors.New("bin_sigmas must be strictly ascending")
		}
	}
	if c.BoostQuantile < 0 || c.BoostQuantile > 1 {
		return fmt.Errorf("boost_quantile %v outside [0,1]", c.BoostQuantile)
	}
	return nil
}

// Params are the statistics frozen at fit time.
type Params struct {
	Mean           float64            `json:"mean"`
	Std            float64            `json:"std"`
	Min            float64            `json:"min"`
	Max            float64            `json:"max"`
	Edges          []float64          `json:"edges"`
	BoostThreshold float64            `json:"boost_threshold"`
	Lower          map[string]float64 `json:"lower"`
	Upper          map[string]float64 `json:"upper"`
}

// Labeler turns encoded rows into a risk index and an ordinal category.
// Everything it uses was estimated once on the training corpus.
type Labeler struct {
	cfg     Config
	columns map[string]int
	params  Params
}

// Fit estimates normalization bounds, the boost threshold and the bin
// parameters from the training matrix and returns the training indexes.
func Fit(m features.Matrix, cfg Config) (*Labeler, []float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if len(m) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 rows, got %d", ErrDegenerateDistribution, len(m))
	}

	l := &Labeler{
		cfg:     cfg,
		columns: make(map[string]int, len(weighted)),
		params: Params{
			Lower: make(map[string]float64, len(weighted)),
			Upper: make(map[string]float64, len(weighted)),
		},
	}
	for _, name := range weighted {
		j, ok := features.Index(name)
		if !ok {
			return nil, nil, fmt.Errorf("weighted feature %q not in schema", name)
		}
		l.columns[name] = j
		col := m.Column(j)
		lo, hi := col[0], col[0]
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		l.params.Lower[name] = lo
		l.params.Upper[name] = hi
	}

	loans := m.Column(l.columns[features.BankLoansTaken])
	sort.Float64s(loans)
	l.params.BoostThreshold = stat.Quantile(cfg.BoostQuantile, stat.Empirical, loans, nil)

	indexes := make([]float64, len(m))
	for i, row := range m {
		indexes[i] = l.Index(row)
	}

	mean, std := stat.MeanStdDev(indexes, nil)
	if math.IsNaN(std) || std < minStd {
		return nil, nil, fmt.Errorf("%w: std %.3g over %d rows", ErrDegenerateDistribution, std, len(m))
	}
	l.params.Mean = mean
	l.params.Std = std
	l.params.Min, l.params.Max = indexes[0], indexes[0]
	for _, v := range indexes {
		l.params.Min = math.Min(l.params.Min, v)
		l.params.Max = math.Max(l.params.Max, v)
	}
	l.params.Edges = make([]float64, len(cfg.BinSigmas))
	for i, s := range cfg.BinSigmas {
		l.params.Edges[i] = mean + s*std
	}

	return l, indexes, nil
}

// normalized maps a raw value onto [0,1] with the frozen bounds.
func (l *Labeler) normalized(name string, v float64) float64 {
	lo, hi := l.params.Lower[name], l.params.Upper[name]
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

// Index computes the risk index of one encoded row. 0 is the safest
// profile, 1 the riskiest.
func (l *Labeler) Index(row []float64) float64 {
	value := func(name string) float64 {
		return l.normalized(name, row[l.columns[name]])
	}

	boost := 0.0
	if row[l.columns[features.BankLoansTaken]] <= l.params.BoostThreshold {
		boost = l.cfg.Boost
	}

	goodness := value(features.CreditLimit)*(Weights[features.CreditLimit]-boost/2) +
		value(features.GrossMonthlyIncome)*Weights[features.GrossMonthlyIncome] +
		value(features.BankLoansTaken)*(Weights[features.BankLoansTaken]-boost) +
		value(features.BankSuccessfulLoans)*Weights[features.BankSuccessfulLoans] +
		value(features.WalletAvgMonthlyDeposits)*(Weights[features.WalletAvgMonthlyDeposits]+boost) +
		value(features.DataUsagePattern)*(Weights[features.DataUsagePattern]+boost/2)

	return clamp(1-goodness, 0, 1)
}

// Category bins an index with the frozen edges. Intervals are closed on the
// left, so an index equal to an edge belongs to the worse category.
func (l *Labeler) Category(index float64) int {
	c := 0
	for _, edge := range l.params.Edges {
		if index >= edge {
			c++
		}
	}
	return c
}

// Label computes index and category for every row.
func (l *Labeler) Label(m features.Matrix) ([]float64, []int) {
	indexes := make([]float64, len(m))
	categories := make([]int, len(m))
	for i, row := range m {
		indexes[i] = l.Index(row)
		categories[i] = l.Category(indexes[i])
	}
	return indexes, categories
}

// Classes is the number of ordinal categories.
func (l *Labeler) Classes() int {
	return l.cfg.Classes()
}

// Params returns a copy of the frozen statistics.
func (l *Labeler) Params() Params {
	p := l.params
	p.Edges = append([]float64(nil), l.params.Edges...)
	return p
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
