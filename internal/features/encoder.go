package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

var (
	// ErrNotFitted is returned when encoding with an encoder that was never fitted.
	ErrNotFitted = errors.New("encoder not fitted")
	// ErrEmptyCorpus is returned by Fit when there is nothing to learn from.
	ErrEmptyCorpus = errors.New("training corpus is empty")
)

// Matrix holds encoded rows in schema column order.
type Matrix [][]float64

// Column copies out one column.
func (m Matrix) Column(j int) []float64 {
	col := make([]float64, len(m))
	for i, row := range m {
		col[i] = row[j]
	}
	return col
}

// EncodedFeatures is the numeric form of one application.
type EncodedFeatures struct {
	Values []float64
	// Unseen lists categorical fields whose value was not in the training
	// corpus and was replaced by the field's fallback category.
	Unseen []string
	// Imputed lists numeric fields that were absent and took the training median.
	Imputed []string
}

// Value returns the encoded value of a named feature.
func (e EncodedFeatures) Value(name string) float64 {
	i, ok := Index(name)
	if !ok || i >= len(e.Values) {
		return 0
	}
	return e.Values[i]
}

// FittedEncoder carries the frozen per-field state learned from a training
// corpus: a category codec and numeric medians. It never refits.
type FittedEncoder struct {
	codec   *CategoryCodec
	medians map[string]float64
}

// Fit learns category tables and imputation medians from records.
func Fit(records []types.ApplicationRecord) (*FittedEncoder, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}

	observed := make(map[string][]string)
	present := make(map[string][]float64)
	for i := range records {
		r := &records[i]
		for _, f := range schema {
			switch f.Kind {
			case Categorical:
				v := f.category(r)
				if v == "" {
					v = MissingToken
				}
				observed[f.Name] = append(observed[f.Name], v)
			case Numeric:
				if p := f.number(r); p != nil && !math.IsNaN(*p) {
					present[f.Name] = append(present[f.Name], *p)
				}
			}
		}
	}

	medians := make(map[string]float64)
	for _, f := range schema {
		if f.Kind == Numeric {
			medians[f.Name] = median(present[f.Name])
		}
	}

	return &FittedEncoder{codec: fitCodec(observed), medians: medians}, nil
}

// Encode turns one record into a feature vector using the frozen state.
func (e *FittedEncoder) Encode(r *types.ApplicationRecord) (EncodedFeatures, error) {
	if e == nil || e.codec == nil {
		return EncodedFeatures{}, ErrNotFitted
	}
	if r == nil {
		return EncodedFeatures{}, errors.New("nil application record")
	}

	out := EncodedFeatures{Values: make([]float64, len(schema))}
	for i, f := range schema {
		switch f.Kind {
		case Categorical:
			code, seen, err := e.codec.Encode(f.Name, f.category(r))
			if err != nil {
				return EncodedFeatures{}, fmt.Errorf("encode %s: %w", f.Name, err)
			}
			if !seen {
				out.Unseen = append(out.Unseen, f.Name)
			}
			out.Values[i] = float64(code)
		case Numeric:
			p := f.number(r)
			if p == nil || math.IsNaN(*p) {
				out.Values[i] = e.medians[f.Name]
				out.Imputed = append(out.Imputed, f.Name)
				continue
			}
			out.Values[i] = *p
		}
	}
	return out, nil
}

// EncodeAll encodes a batch. Rows are independent of each other.
func (e *FittedEncoder) EncodeAll(records []types.ApplicationRecord) (Matrix, error) {
	if e == nil || e.codec == nil {
		return nil, ErrNotFitted
	}
	m := make(Matrix, len(records))
	for i := range records {
		enc, err := e.Encode(&records[i])
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", records[i].ID, err)
		}
		m[i] = enc.Values
	}
	return m, nil
}

// Codec exposes the fitted category tables.
func (e *FittedEncoder) Codec() *CategoryCodec {
	return e.codec
}

// FeatureNames lists the columns this encoder produces.
func (e *FittedEncoder) FeatureNames() []string {
	return Names()
}

// Medians returns a copy of the frozen imputation values.
func (e *FittedEncoder) Medians() map[string]float64 {
	out := make(map[string]float64, len(e.medians))
	for k, v := range e.medians {
		out[k] = v
	}
	return out
}

// Median returns the frozen imputation value of a numeric field.
func (e *FittedEncoder) Median(name string) (float64, bool) {
	v, ok := e.medians[name]
	return v, ok
}

// Describe renders an encoded value for people: categorical codes are
// decoded, numbers are printed with two decimals.
func (e *FittedEncoder) Describe(name string, value float64) string {
	if kind, ok := KindOf(name); ok && kind == Categorical && e != nil && e.codec != nil {
		if s, ok := e.codec.Decode(name, int(math.Round(value))); ok {
			return s
		}
	}
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return 0.5 * (cp[mid-1] + cp[mid])
}
