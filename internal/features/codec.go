package features

import (
	"fmt"
	"sort"
)

// MissingToken stands in for an absent categorical value.
const MissingToken = "(missing)"

type categoryTable struct {
	codes    map[string]int
	values   []string
	fallback int
}

// CategoryCodec maps categorical strings to integer codes per field. It is
// fitted once and is read-only afterwards.
type CategoryCodec struct {
	tables map[string]*categoryTable
}

// fitCodec builds one table per categorical field. Codes follow the sorted
// order of the observed strings; the fallback code is the most frequent
// category, ties going to the lower code.
func fitCodec(observed map[string][]string) *CategoryCodec {
	c := &CategoryCodec{tables: make(map[string]*categoryTable, len(observed))}
	for field, values := range observed {
		counts := make(map[string]int)
		for _, v := range values {
			counts[v]++
		}

		distinct := make([]string, 0, len(counts))
		for v := range counts {
			distinct = append(distinct, v)
		}
		sort.Strings(distinct)

		t := &categoryTable{codes: make(map[string]int, len(distinct)), values: distinct}
		best := -1
		for i, v := range distinct {
			t.codes[v] = i
			if counts[v] > best {
				best = counts[v]
				t.fallback = i
			}
		}
		c.tables[field] = t
	}
	return c
}

// Encode returns the code for value. seen is false when value was not part
// of the training corpus and the fallback code was used instead.
func (c *CategoryCodec) Encode(field, value string) (code int, seen bool, err error) {
	t, ok := c.tables[field]
	if !ok {
		return 0, false, fmt.Errorf("no category table for field %q", field)
	}
	if value == "" {
		value = MissingToken
	}
	if code, ok := t.codes[value]; ok {
		return code, true, nil
	}
	return t.fallback, false, nil
}

// Decode maps a code back to its category string.
func (c *CategoryCodec) Decode(field string, code int) (string, bool) {
	t, ok := c.tables[field]
	if !ok || code < 0 || code >= len(t.values) {
		return "", false
	}
	return t.values[code], true
}

// Categories lists the fitted categories of a field in code order.
func (c *CategoryCodec) Categories(field string) []string {
	t, ok := c.tables[field]
	if !ok {
		return nil
	}
	return append([]string(nil), t.values...)
}

// Fallback returns the category unseen values resolve to.
func (c *CategoryCodec) Fallback(field string) (string, bool) {
	t, ok := c.tables[field]
	if !ok || len(t.values) == 0 {
		return "", false
	}
	return t.values[t.fallback], true
}
