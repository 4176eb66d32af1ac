package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/obsprep/internal/codebook"
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/routes"
	"github.com/sells-group/obsprep/internal/sheet"
	"github.com/sells-group/obsprep/internal/survey"
)

// results builds a raw results table from ids and role-keyed columns.
func results(t *testing.T, v survey.Variant, ids []string, cols map[survey.Role][]string) *frame.Table {
	t.Helper()
	tbl := frame.New("ID", ids)
	for role, values := range cols {
		name, ok := v.Schema.Column(role)
		require.True(t, ok, "role %s", role)
		require.NoError(t, tbl.Add(name, frame.StringsOf(values)))
	}
	return tbl
}

func variant(t *testing.T, y survey.Year) survey.Variant {
	t.Helper()
	v, err := survey.VariantFor(y)
	require.NoError(t, err)
	return v
}

func routeTable(t *testing.T) *routes.Table {
	t.Helper()
	ref, err := sheet.NewTable([][]string{
		{routes.ColRouteName, routes.ColMode},
		{"7000", "10"},
		{"510000", "5"},
		{"235000", "6"},
		{"99000", "42"},
	})
	require.NoError(t, err)
	rt, err := routes.Build(ref)
	require.NoError(t, err)
	return rt
}

func testCodebook(t *testing.T) *codebook.Codebook {
	t.Helper()
	dict, err := sheet.NewTable([][]string{
		{codebook.ColFieldName, codebook.ColDescription, codebook.ColCodeValues},
		{"INCOME", "Income", "1 = Under $15,000"},
		{"INCOME", "", "2 = $15,000 - $49,999"},
		{"INCOME", "", "3 = $50,000 or more"},
		{"EMPLOYMENT_STATUS", "Employment", "1 = Employed full-time"},
		{"EMPLOYMENT_STATUS", "", "2 = Not employed"},
		{"EMPLOYED_IN_HH", "Workers", "0 = None"},
		{"EMPLOYED_IN_HH", "", "1 = One"},
		{"EMPLOYED_IN_HH", "", "2 = Two or more"},
		{"STUDENT_STATUS", "Student", "1 = Not a student"},
		{"STUDENT_STATUS", "", "2 = Full time"},
	})
	require.NoError(t, err)
	cb, err := codebook.Load(dict)
	require.NoError(t, err)
	return cb
}

func label(t *testing.T, tbl *frame.Table, col string, i int) (string, bool) {
	t.Helper()
	c, ok := tbl.Column(col)
	require.True(t, ok, "column %s", col)
	cat, ok := c.(*frame.Categorical)
	require.True(t, ok, "column %s is %T", col, c)
	return cat.Label(i)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"route", "age", "income", "employment", "student", "access_egress", "weight"}, r.Names())

	for _, y := range survey.Years() {
		mods, err := r.Select(variant(t, y).Modules)
		require.NoError(t, err)
		assert.NotEmpty(t, mods)
	}

	_, err := r.Get("nope")
	assert.Error(t, err)
	_, err = r.Select([]string{"age", "age"})
	assert.Error(t, err)
}

func TestRouteModule_2023(t *testing.T) {
	v := variant(t, survey.Year2023)
	q := &Quality{}
	in := &Input{
		Results: results(t, v, []string{"a", "b", "c", "d", "e", "f"}, map[survey.Role][]string{
			survey.RoleRoute: {"MTS_Route_7_NB", "MTS_Route_Blue_SB", "MTS_Route_777_NB", "garbage", "", "MTS_Route_99_EB"},
		}),
		Variant: v,
		Routes:  routeTable(t),
		Quality: q,
	}

	out, err := (&RouteModule{}).Derive(in)
	require.NoError(t, err)
	require.Equal(t, 6, out.Len())
	assert.Equal(t, []string{"route", "mode"}, out.Names())

	c, _ := out.Column("route")
	num := c.(*frame.Ints)
	n, ok := num.Get(1)
	assert.True(t, ok)
	assert.Equal(t, int64(510), n)

	m, ok := label(t, out, "mode", 0)
	assert.True(t, ok)
	assert.Equal(t, "Local", m)
	m, ok = label(t, out, "mode", 1)
	assert.True(t, ok)
	assert.Equal(t, "LRT", m)

	// Unmatched route: number kept, mode null under the 2023 policy.
	n, ok = num.Get(2)
	assert.True(t, ok)
	assert.Equal(t, int64(777), n)
	_, ok = label(t, out, "mode", 2)
	assert.False(t, ok)

	// Garbage token and empty token: both null.
	assert.True(t, num.IsNull(3))
	assert.True(t, num.IsNull(4))

	// Route with an unmapped reference code has no mode.
	_, ok = label(t, out, "mode", 5)
	assert.False(t, ok)

	issues := q.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "unparsable route token", issues[0].Kind)
	assert.Equal(t, 1, issues[0].Count)
	assert.Equal(t, []string{"d"}, issues[0].Samples)
	assert.Equal(t, 2, issues[1].Count)
}

func TestRouteModule_2015UnmatchedIsLocal(t *testing.T) {
	v := variant(t, survey.Year2015)
	in := &Input{
		Results: results(t, v, []string{"1", "2"}, map[survey.Role][]string{
			survey.RoleRoute: {"1235A", "1444B"},
		}),
		Variant: v,
		Routes:  routeTable(t),
	}
	out, err := (&RouteModule{}).Derive(in)
	require.NoError(t, err)

	m, ok := label(t, out, "mode", 0)
	assert.True(t, ok)
	assert.Equal(t, "Rapid", m)
	m, ok = label(t, out, "mode", 1)
	assert.True(t, ok)
	assert.Equal(t, "Local", m)
}

func TestRouteModule_StrictFails(t *testing.T) {
	v := variant(t, survey.Year2023)
	v.StrictRoutes = true
	in := &Input{
		Results: results(t, v, []string{"a"}, map[survey.Role][]string{survey.RoleRoute: {"bad"}}),
		Variant: v,
		Routes:  routeTable(t),
	}
	_, err := (&RouteModule{}).Derive(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "respondent a")
}

func TestRouteModule_OverridesApply(t *testing.T) {
	v := variant(t, survey.Year2023)
	in := &Input{
		Results: results(t, v, []string{"a", "b"}, map[survey.Role][]string{
			survey.RoleRoute: {"MTS_Route_280_NB", "MTS_Route_651_SB"},
		}),
		Variant: v,
		Routes:  routeTable(t),
	}
	out, err := (&RouteModule{}).Derive(in)
	require.NoError(t, err)
	m, _ := label(t, out, "mode", 0)
	assert.Equal(t, "Express", m)
	m, _ = label(t, out, "mode", 1)
	assert.Equal(t, "Local", m)
}

func TestAgeModule(t *testing.T) {
	v := variant(t, survey.Year2023)
	q := &Quality{}
	in := &Input{
		Results: results(t, v, []string{"a", "b", "c", "d", "e", "f"}, map[survey.Role][]string{
			survey.RoleYearBorn:  {"1990", "2020", "1990.0", "abc", "1950", "2030"},
			survey.RoleCompleted: {"2023-06-01", "2023-01-01", "not a date", "2023-01-01", "6/1/2023", "2023-01-01"},
		}),
		Variant: v,
		Quality: q,
	}
	out, err := (&AgeModule{}).Derive(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "age_category", "age_yas"}, out.Names())

	c, _ := out.Column("age")
	age := c.(*frame.Ints)

	a, ok := age.Get(0)
	require.True(t, ok)
	assert.Equal(t, int64(33), a)
	band, _ := label(t, out, "age_category", 0)
	assert.Equal(t, "25-34", band)
	yas, _ := label(t, out, "age_yas", 0)
	assert.Equal(t, "Adult", yas)

	a, ok = age.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), a)
	band, _ = label(t, out, "age_category", 1)
	assert.Equal(t, "Under 5", band)
	yas, _ = label(t, out, "age_yas", 1)
	assert.Equal(t, "Youth", yas)

	assert.True(t, age.IsNull(2), "bad date")
	assert.True(t, age.IsNull(3), "bad year born")

	a, _ = age.Get(4)
	assert.Equal(t, int64(73), a)
	yas, _ = label(t, out, "age_yas", 4)
	assert.Equal(t, "Senior", yas)

	// Negative age passes through unclamped: no fine band, still Youth.
	a, ok = age.Get(5)
	require.True(t, ok)
	assert.Equal(t, int64(-7), a)
	_, ok = label(t, out, "age_category", 5)
	assert.False(t, ok)
	yas, ok = label(t, out, "age_yas", 5)
	require.True(t, ok)
	assert.Equal(t, "Youth", yas)

	kinds := map[string]int{}
	for _, is := range q.Issues() {
		kinds[is.Kind] = is.Count
	}
	assert.Equal(t, map[string]int{
		"unparsable year born":       1,
		"unparsable completion date": 1,
		"negative age":               1,
	}, kinds)
	assert.Equal(t, 3, q.Total())
}

func TestParseYearBorn(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1990", 1990, true},
		{" 1990 ", 1990, true},
		{"1990.0", 1990, true},
		{"1990.7", 1990, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseYearBorn(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseSurveyDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2023-06-01", "2023-06-01", true},
		{"2023-06-01 14:22:05", "2023-06-01", true},
		{"2023-06-01T14:22:05", "2023-06-01", true},
		{"6/1/2023", "2023-06-01", true},
		{"06/01/2023", "2023-06-01", true},
		{"6/1/2023 14:22", "2023-06-01", true},
		{"6/1/2023 2:22:05 PM", "2023-06-01", true},
		{"6/1/15", "2015-06-01", true},
		{"45078", "2023-06-01", true},
		{"45078.5", "2023-06-01", true},
		{"12", "", false},
		{"", "", false},
		{"June first", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSurveyDate(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.Format("2006-01-02"), "input %q", tt.in)
		}
	}
}

func TestAge(t *testing.T) {
	assert.Equal(t, 33, Age(1990, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, Age(2020, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCodedModules(t *testing.T) {
	v := variant(t, survey.Year2023)
	q := &Quality{}
	in := &Input{
		Results: results(t, v, []string{"a", "b", "c"}, map[survey.Role][]string{
			survey.RoleIncome:     {"3", "1.0", "9"},
			survey.RoleEmployment: {"1", "", "2"},
			survey.RoleHHEmployed: {"0", "2", "1"},
			survey.RoleStudent:    {"2", "1", ""},
		}),
		Variant:  v,
		Codebook: testCodebook(t),
		Quality:  q,
	}

	inc, err := IncomeModule().Derive(in)
	require.NoError(t, err)
	l, ok := label(t, inc, "hh_income", 0)
	assert.True(t, ok)
	assert.Equal(t, "$50,000 or more", l)
	l, _ = label(t, inc, "hh_income", 1)
	assert.Equal(t, "Under $15,000", l)
	_, ok = label(t, inc, "hh_income", 2)
	assert.False(t, ok, "unmapped code is null")

	c, _ := inc.Column("hh_income")
	assert.Equal(t, []string{"Under $15,000", "$15,000 - $49,999", "$50,000 or more"}, c.(*frame.Categorical).Categories)

	emp, err := EmploymentModule().Derive(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"employment_status", "hh_employed"}, emp.Names())
	_, ok = label(t, emp, "employment_status", 1)
	assert.False(t, ok)
	l, _ = label(t, emp, "hh_employed", 1)
	assert.Equal(t, "Two or more", l)

	stu, err := StudentModule().Derive(in)
	require.NoError(t, err)
	l, _ = label(t, stu, "student_status", 0)
	assert.Equal(t, "Full time", l)

	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "income", issues[0].Module)
	assert.Equal(t, []string{"c"}, issues[0].Samples)
}

func TestCodedModule_UnknownVariable(t *testing.T) {
	v := variant(t, survey.Year2023)
	v.Variables = map[survey.Role]string{survey.RoleIncome: "HOUSEHOLD_INCOME"}
	in := &Input{
		Results:  results(t, v, []string{"a"}, map[survey.Role][]string{survey.RoleIncome: {"1"}}),
		Variant:  v,
		Codebook: testCodebook(t),
	}
	_, err := IncomeModule().Derive(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOUSEHOLD_INCOME")
}

func TestAccessEgressModule(t *testing.T) {
	v := variant(t, survey.Year2023)
	q := &Quality{}
	in := &Input{
		Results: results(t, v, []string{"a", "b", "c", "d"}, map[survey.Role][]string{
			survey.RoleOrigin:      {"Drove alone and parked", "Other", "Teleported", "E-scooter (shared)"},
			survey.RoleDestination: {"Walk", "Refused/No Answer", "", "Refused/No Answer"},
		}),
		Variant: v,
		Quality: q,
	}
	out, err := (&AccessEgressModule{}).Derive(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"access_mode", "egress_mode", "access_mode_abm"}, out.Names())

	l, _ := label(t, out, "access_mode_abm", 0)
	assert.Equal(t, "PNR to transit", l)

	l, ok := label(t, out, "access_mode", 1)
	assert.True(t, ok)
	assert.Equal(t, "Other", l)
	_, ok = label(t, out, "access_mode_abm", 1)
	assert.False(t, ok, "Other has no model category")

	_, ok = label(t, out, "access_mode", 2)
	assert.False(t, ok)

	l, _ = label(t, out, "access_mode_abm", 3)
	assert.Equal(t, "Micromobility to transit", l)

	l, ok = label(t, out, "egress_mode", 1)
	assert.True(t, ok)
	assert.Equal(t, "Refused/No Answer", l)

	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "access answer not in list", issues[0].Kind)
}

func TestAccessModes_AllMapped(t *testing.T) {
	assert.Len(t, AccessModes, 17)
	assert.Len(t, EgressModes, 18)
	for _, a := range AccessModes {
		_, ok := ABMAccessMode(a)
		assert.Equal(t, a != "Other", ok, a)
	}
	_, ok := ABMAccessMode("Refused/No Answer")
	assert.False(t, ok)
}

func TestWeightModule(t *testing.T) {
	v := variant(t, survey.Year2015)
	q := &Quality{}
	in := &Input{
		Results: results(t, v, []string{"a", "b", "c"}, map[survey.Role][]string{
			survey.RoleUnlinkedWeight: {"1.2345", "x", ""},
			survey.RoleLinkedWeight:   {"0.5", "2", "1e2"},
		}),
		Variant: v,
		Quality: q,
	}
	out, err := (&WeightModule{}).Derive(in)
	require.NoError(t, err)

	c, _ := out.Column("unlinked_weight")
	u := c.(*frame.Floats)
	w, ok := u.Get(0)
	assert.True(t, ok)
	assert.Equal(t, 1.2345, w)
	assert.True(t, u.IsNull(1))
	assert.True(t, u.IsNull(2))

	c, _ = out.Column("linked_weight")
	l := c.(*frame.Floats)
	w, _ = l.Get(2)
	assert.Equal(t, 100.0, w)

	// Only the non-numeric value is an issue; empty is silently null.
	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Count)
	assert.Equal(t, []string{"b"}, issues[0].Samples)
}

func TestParseWeight(t *testing.T) {
	w, ok := ParseWeight(" 0.731 ")
	assert.True(t, ok)
	assert.Equal(t, 0.731, w)

	for _, s := range []string{"", "abc", "NaN", "Inf"} {
		_, ok := ParseWeight(s)
		assert.False(t, ok, s)
	}
}

func TestTally_SamplesCapped(t *testing.T) {
	q := &Quality{}
	tl := newTally("m", "k")
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		tl.add(id)
	}
	tl.flush(q)
	newTally("m", "empty").flush(q)

	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, 7, issues[0].Count)
	assert.Len(t, issues[0].Samples, maxSamples)
}
