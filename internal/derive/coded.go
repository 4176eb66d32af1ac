package derive

import (
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/recode"
	"github.com/sells-group/obsprep/internal/survey"
)

// CodedField is one output column recoded from a raw code column through
// the codebook variable the survey variant assigns to Role.
type CodedField struct {
	Column string
	Role   survey.Role
}

// CodedModule recodes one or more raw code columns into labelled,
// ordered categorical columns. The fields are independent of each other.
type CodedModule struct {
	name   string
	fields []CodedField
}

// NewCodedModule creates a codebook-driven module.
func NewCodedModule(name string, fields ...CodedField) *CodedModule {
	return &CodedModule{name: name, fields: fields}
}

// IncomeModule derives the household income bracket.
func IncomeModule() *CodedModule {
	return NewCodedModule("income", CodedField{Column: "hh_income", Role: survey.RoleIncome})
}

// EmploymentModule derives the respondent's employment status and the
// number of employed household members.
func EmploymentModule() *CodedModule {
	return NewCodedModule("employment",
		CodedField{Column: "employment_status", Role: survey.RoleEmployment},
		CodedField{Column: "hh_employed", Role: survey.RoleHHEmployed},
	)
}

// StudentModule derives student status.
func StudentModule() *CodedModule {
	return NewCodedModule("student", CodedField{Column: "student_status", Role: survey.RoleStudent})
}

func (m *CodedModule) Name() string { return m.name }

func (m *CodedModule) Roles() []survey.Role {
	out := make([]survey.Role, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Role
	}
	return out
}

func (m *CodedModule) Derive(in *Input) (*frame.Table, error) {
	out := in.newTable()
	for _, f := range m.fields {
		raw, err := in.Column(f.Role)
		if err != nil {
			return nil, err
		}
		variable, err := in.Variant.Variable(f.Role)
		if err != nil {
			return nil, err
		}
		res, err := recode.Recode(raw, in.Codebook, variable)
		if err != nil {
			return nil, err
		}

		if res.Unmapped > 0 {
			t := newTally(m.name, "code not in codebook for "+variable)
			for i := 0; i < raw.Len(); i++ {
				if !raw.IsNull(i) && res.Column.IsNull(i) {
					t.add(in.ID(i))
				}
			}
			t.flush(in.Quality)
		}

		if err := out.Add(f.Column, res.Column); err != nil {
			return nil, err
		}
	}
	return out, nil
}
