// Package frame holds the in-memory columnar tables passed between pipeline stages.
package frame

import "github.com/rotisserie/eris"

// Column is a nullable column of one of the concrete kinds in this package.
type Column interface {
	Len() int
	IsNull(i int) bool

	// take builds a new column from the rows at idx. A negative position yields null.
	take(idx []int) Column
}

// Strings is a nullable string column.
type Strings struct {
	Values []string
	Valid  []bool
}

// NewStrings returns an all-null string column of length n.
func NewStrings(n int) *Strings {
	return &Strings{Values: make([]string, n), Valid: make([]bool, n)}
}

// StringsOf builds a column from raw values, treating empty strings as null.
func StringsOf(values []string) *Strings {
	c := NewStrings(len(values))
	for i, v := range values {
		if v != "" {
			c.Set(i, v)
		}
	}
	return c
}

func (c *Strings) Len() int          { return len(c.Values) }
func (c *Strings) IsNull(i int) bool { return !c.Valid[i] }

// Set stores v at row i and marks it valid.
func (c *Strings) Set(i int, v string) {
	c.Values[i] = v
	c.Valid[i] = true
}

// Get returns the value at row i and whether it is non-null.
func (c *Strings) Get(i int) (string, bool) {
	return c.Values[i], c.Valid[i]
}

func (c *Strings) take(idx []int) Column {
	out := NewStrings(len(idx))
	for i, p := range idx {
		if p >= 0 && c.Valid[p] {
			out.Set(i, c.Values[p])
		}
	}
	return out
}

// Ints is a nullable int64 column.
type Ints struct {
	Values []int64
	Valid  []bool
}

// NewInts returns an all-null integer column of length n.
func NewInts(n int) *Ints {
	return &Ints{Values: make([]int64, n), Valid: make([]bool, n)}
}

func (c *Ints) Len() int          { return len(c.Values) }
func (c *Ints) IsNull(i int) bool { return !c.Valid[i] }

func (c *Ints) Set(i int, v int64) {
	c.Values[i] = v
	c.Valid[i] = true
}

func (c *Ints) Get(i int) (int64, bool) {
	return c.Values[i], c.Valid[i]
}

func (c *Ints) take(idx []int) Column {
	out := NewInts(len(idx))
	for i, p := range idx {
		if p >= 0 && c.Valid[p] {
			out.Set(i, c.Values[p])
		}
	}
	return out
}

// Floats is a nullable float64 column.
type Floats struct {
	Values []float64
	Valid  []bool
}

// NewFloats returns an all-null float column of length n.
func NewFloats(n int) *Floats {
	return &Floats{Values: make([]float64, n), Valid: make([]bool, n)}
}

func (c *Floats) Len() int          { return len(c.Values) }
func (c *Floats) IsNull(i int) bool { return !c.Valid[i] }

func (c *Floats) Set(i int, v float64) {
	c.Values[i] = v
	c.Valid[i] = true
}

func (c *Floats) Get(i int) (float64, bool) {
	return c.Values[i], c.Valid[i]
}

func (c *Floats) take(idx []int) Column {
	out := NewFloats(len(idx))
	for i, p := range idx {
		if p >= 0 && c.Valid[p] {
			out.Set(i, c.Values[p])
		}
	}
	return out
}

// Categorical is an ordered categorical column. Categories fixes the sort
// order of the labels; Codes holds the category position per row, -1 for null.
type Categorical struct {
	Categories []string
	Codes      []int32

	pos map[string]int32
}

// NewCategorical returns an all-null categorical column of length n.
// Categories must be unique.
func NewCategorical(categories []string, n int) (*Categorical, error) {
	pos := make(map[string]int32, len(categories))
	for i, c := range categories {
		if _, dup := pos[c]; dup {
			return nil, eris.Errorf("frame: duplicate category %q", c)
		}
		pos[c] = int32(i)
	}
	codes := make([]int32, n)
	for i := range codes {
		codes[i] = -1
	}
	cats := make([]string, len(categories))
	copy(cats, categories)
	return &Categorical{Categories: cats, Codes: codes, pos: pos}, nil
}

func (c *Categorical) Len() int          { return len(c.Codes) }
func (c *Categorical) IsNull(i int) bool { return c.Codes[i] < 0 }

// Set stores label at row i. It reports false, leaving the row null, when
// label is not one of the categories.
func (c *Categorical) Set(i int, label string) bool {
	p, ok := c.pos[label]
	if !ok {
		c.Codes[i] = -1
		return false
	}
	c.Codes[i] = p
	return true
}

// Label returns the label at row i and whether it is non-null.
func (c *Categorical) Label(i int) (string, bool) {
	if c.Codes[i] < 0 {
		return "", false
	}
	return c.Categories[c.Codes[i]], true
}

func (c *Categorical) take(idx []int) Column {
	out := &Categorical{Categories: c.Categories, Codes: make([]int32, len(idx)), pos: c.pos}
	for i, p := range idx {
		if p < 0 {
			out.Codes[i] = -1
			continue
		}
		out.Codes[i] = c.Codes[p]
	}
	return out
}
