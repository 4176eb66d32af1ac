// Package codebook parses the survey data dictionary into (variable, code) → label entries.
package codebook

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/obsprep/internal/sheet"
)

// Data-dictionary headers.
const (
	ColFieldName   = "FIELD NAME"
	ColDescription = "DESCRIPTION"
	ColCodeValues  = "CODE VALUES"
)

// freeValueMarker flags a numeric field without enumerated codes.
const freeValueMarker = "Actual Value"

// Entry is one code of one variable.
type Entry struct {
	Variable string
	Code     string
	Label    string
	Row      int // sheet row the entry came from
}

type key struct {
	variable string
	code     string
}

// Codebook maps (variable, code) to a label. Entries keep data-dictionary
// row order within each variable; that order is the category order.
type Codebook struct {
	entries map[string][]Entry
	order   []string
	labels  map[key]string
}

// Load builds a codebook from a data-dictionary table. Duplicate codes or
// labels within a variable, and code-values text without "=", are errors.
func Load(t *sheet.Table) (*Codebook, error) {
	if missing := t.Missing(ColFieldName, ColCodeValues); len(missing) > 0 {
		return nil, eris.Errorf("codebook: data dictionary missing columns %v", missing)
	}

	cb := &Codebook{
		entries: make(map[string][]Entry),
		labels:  make(map[key]string),
	}
	seenLabel := make(map[key]int)

	var variable string
	for i := range t.Rows {
		row := t.SourceRows[i]
		if name := t.Value(i, ColFieldName); name != "" {
			variable = name
		}

		text := t.Value(i, ColCodeValues)
		if text == "" || strings.Contains(text, freeValueMarker) {
			continue
		}
		if variable == "" {
			return nil, eris.Errorf("codebook: row %d: code values %q before any field name", row, text)
		}

		code, label, ok := strings.Cut(text, "=")
		if !ok {
			return nil, eris.Errorf("codebook: row %d: variable %s: code values %q has no \"=\"", row, variable, text)
		}
		code = NormalizeCode(code)
		label = strings.TrimSpace(label)

		k := key{variable: variable, code: code}
		if prev, dup := cb.labels[k]; dup {
			return nil, eris.Errorf("codebook: row %d: variable %s: duplicate code %q (already %q)", row, variable, code, prev)
		}
		lk := key{variable: variable, code: label}
		if prevRow, dup := seenLabel[lk]; dup {
			return nil, eris.Errorf("codebook: row %d: variable %s: label %q repeats row %d", row, variable, label, prevRow)
		}
		seenLabel[lk] = row

		if _, known := cb.entries[variable]; !known {
			cb.order = append(cb.order, variable)
		}
		cb.entries[variable] = append(cb.entries[variable], Entry{
			Variable: variable,
			Code:     code,
			Label:    label,
			Row:      row,
		})
		cb.labels[k] = label
	}

	return cb, nil
}

// Lookup returns the label for a raw code of variable.
func (cb *Codebook) Lookup(variable, code string) (string, bool) {
	l, ok := cb.labels[key{variable: variable, code: NormalizeCode(code)}]
	return l, ok
}

// Entries returns the entries of variable in data-dictionary order.
func (cb *Codebook) Entries(variable string) []Entry {
	out := make([]Entry, len(cb.entries[variable]))
	copy(out, cb.entries[variable])
	return out
}

// Labels returns the labels of variable in data-dictionary order.
func (cb *Codebook) Labels(variable string) []string {
	es := cb.entries[variable]
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Label
	}
	return out
}

// Has reports whether variable has at least one entry.
func (cb *Codebook) Has(variable string) bool {
	return len(cb.entries[variable]) > 0
}

// Variables returns variable names in first-seen order.
func (cb *Codebook) Variables() []string {
	out := make([]string, len(cb.order))
	copy(out, cb.order)
	return out
}

// Len returns the total number of entries.
func (cb *Codebook) Len() int { return len(cb.labels) }

// NormalizeCode trims a raw code and renders integral numbers without a
// fractional part, so "3", " 3" and "3.0" match the same entry.
func NormalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
