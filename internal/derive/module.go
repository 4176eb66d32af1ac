// Package derive holds the field derivation modules. Each module turns raw
// survey columns into one derived feature table keyed by respondent ID.
package derive

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/obsprep/internal/codebook"
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/routes"
	"github.com/sells-group/obsprep/internal/survey"
)

// Input is everything a module may read. Results holds the raw string
// columns under their export names, indexed by respondent ID.
type Input struct {
	Results  *frame.Table
	Variant  survey.Variant
	Codebook *codebook.Codebook
	Routes   *routes.Table

	// Quality collects data-quality issues. May be nil.
	Quality *Quality
}

// Column returns the raw string column that plays role r.
func (in *Input) Column(r survey.Role) (*frame.Strings, error) {
	name, ok := in.Variant.Schema.Column(r)
	if !ok {
		return nil, eris.Errorf("derive: survey %s has no column for %s", in.Variant.Year, r)
	}
	col, err := in.Results.Strings(name)
	if err != nil {
		return nil, eris.Wrapf(err, "derive: column for %s", r)
	}
	return col, nil
}

// ID returns the respondent ID of row i.
func (in *Input) ID(i int) string { return in.Results.Index[i] }

// Len returns the number of respondents.
func (in *Input) Len() int { return in.Results.Len() }

func (in *Input) newTable() *frame.Table {
	return frame.New(in.Results.IndexName, in.Results.Index)
}

// Module derives one feature group.
type Module interface {
	// Name is the group name; it prefixes the module's columns in the
	// combined table and names its output file.
	Name() string

	// Roles lists the raw columns the module reads.
	Roles() []survey.Role

	// Derive computes the module's table. It has exactly one row per
	// respondent, in the order of in.Results.
	Derive(in *Input) (*frame.Table, error)
}
