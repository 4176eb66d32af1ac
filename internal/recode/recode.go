// Package recode turns raw survey codes into ordered categorical labels.
package recode

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/obsprep/internal/codebook"
	"github.com/sells-group/obsprep/internal/frame"
)

// ErrUnknownVariable is returned when the codebook has no entries for a variable.
var ErrUnknownVariable = eris.New("recode: variable has no codebook entries")

// Result is a recoded column plus how many non-null inputs had no label.
type Result struct {
	Column   *frame.Categorical
	Unmapped int
}

// Recode maps each value of col through the codebook entries of variable.
// Category order follows the codebook's row order for the variable.
// Values with no entry become null; respondents may skip any question.
func Recode(col *frame.Strings, cb *codebook.Codebook, variable string) (*Result, error) {
	if cb == nil || !cb.Has(variable) {
		return nil, eris.Wrapf(ErrUnknownVariable, "recode: %s", variable)
	}

	out, err := frame.NewCategorical(cb.Labels(variable), col.Len())
	if err != nil {
		return nil, eris.Wrapf(err, "recode: %s", variable)
	}

	res := &Result{Column: out}
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Get(i)
		if !ok {
			continue
		}
		label, found := cb.Lookup(variable, v)
		if !found {
			res.Unmapped++
			continue
		}
		out.Set(i, label)
	}
	return res, nil
}
