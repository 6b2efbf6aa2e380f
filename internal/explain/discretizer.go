package explain

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

// featureBins is the empirical distribution of one reference column.
// Numeric columns are cut at their quartiles; categorical columns get one
// bin per observed code.
type featureBins struct {
	name        string
	categorical bool
	edges       []float64   // numeric only, ascending and unique
	codes       []float64   // categorical only, ascending
	pools       [][]float64 // observed values per bin
	cumulative  []float64   // cumulative bin frequency, last element 1
}

func fitBins(name string, kind features.Kind, column []float64) featureBins {
	sorted := append([]float64(nil), column...)
	sort.Float64s(sorted)

	fb := featureBins{name: name, categorical: kind == features.Categorical}
	if fb.categorical {
		for i, v := range sorted {
			if i == 0 || v != sorted[i-1] {
				fb.codes = append(fb.codes, v)
			}
		}
	} else {
		for _, q := range []float64{0.25, 0.5, 0.75} {
			e := stat.Quantile(q, stat.Empirical, sorted, nil)
			if len(fb.edges) == 0 || e > fb.edges[len(fb.edges)-1] {
				fb.edges = append(fb.edges, e)
			}
		}
	}

	fb.pools = make([][]float64, fb.count())
	for _, v := range column {
		b := fb.bin(v)
		fb.pools[b] = append(fb.pools[b], v)
	}
	fb.cumulative = make([]float64, len(fb.pools))
	running := 0
	for b, pool := range fb.pools {
		running += len(pool)
		fb.cumulative[b] = float64(running) / float64(len(column))
	}
	return fb
}

func (fb *featureBins) count() int {
	if fb.categorical {
		return len(fb.codes)
	}
	return len(fb.edges) + 1
}

// bin locates v. Numeric bins are closed on the right: v <= edges[0] is bin 0.
func (fb *featureBins) bin(v float64) int {
	if fb.categorical {
		i := sort.SearchFloat64s(fb.codes, v)
		if i < len(fb.codes) && fb.codes[i] == v {
			return i
		}
		// Codes never seen in the reference set share no bin with any sample.
		return -1
	}
	return sort.SearchFloat64s(fb.edges, v)
}

// draw picks a bin by its reference frequency, then a value from its pool.
func (fb *featureBins) draw(u1 float64, pick func(n int) int) (int, float64) {
	b := sort.SearchFloat64s(fb.cumulative, u1)
	if b >= len(fb.cumulative) {
		b = len(fb.cumulative) - 1
	}
	for len(fb.pools[b]) == 0 {
		b++
	}
	pool := fb.pools[b]
	return b, pool[pick(len(pool))]
}

// describe renders the condition the instance satisfies, e.g.
// "1000.00 < credit_limit <= 5000.00" or "civil_status = Single".
func (fb *featureBins) describe(v float64, render func(name string, v float64) string) string {
	if fb.categorical {
		return fmt.Sprintf("%s = %s", fb.name, render(fb.name, v))
	}
	b := fb.bin(v)
	switch {
	case b == 0:
		return fmt.Sprintf("%s <= %s", fb.name, render(fb.name, fb.edges[0]))
	case b >= len(fb.edges):
		return fmt.Sprintf("%s > %s", fb.name, render(fb.name, fb.edges[len(fb.edges)-1]))
	default:
		return fmt.Sprintf("%s < %s <= %s", render(fb.name, fb.edges[b-1]), fb.name, render(fb.name, fb.edges[b]))
	}
}
