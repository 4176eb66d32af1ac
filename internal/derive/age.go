package derive

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/survey"
)

// AgeModule derives respondent age and its fine and Youth/Adult/Senior bands.
type AgeModule struct{}

func (m *AgeModule) Name() string { return "age" }

func (m *AgeModule) Roles() []survey.Role {
	return []survey.Role{survey.RoleYearBorn, survey.RoleCompleted}
}

func (m *AgeModule) Derive(in *Input) (*frame.Table, error) {
	born, err := in.Column(survey.RoleYearBorn)
	if err != nil {
		return nil, err
	}
	completed, err := in.Column(survey.RoleCompleted)
	if err != nil {
		return nil, err
	}

	n := in.Len()
	age := frame.NewInts(n)
	fine, err := frame.NewCategorical(survey.BandLabels(in.Variant.AgeBands), n)
	if err != nil {
		return nil, err
	}
	yas, err := frame.NewCategorical(survey.BandLabels(in.Variant.YASBands), n)
	if err != nil {
		return nil, err
	}

	badBorn := newTally(m.Name(), "unparsable year born")
	badDate := newTally(m.Name(), "unparsable completion date")
	negative := newTally(m.Name(), "negative age")
	for i := 0; i < n; i++ {
		b, bok := born.Get(i)
		d, dok := completed.Get(i)
		if !bok || !dok {
			continue
		}
		year, ok := ParseYearBorn(b)
		if !ok {
			badBorn.add(in.ID(i))
			continue
		}
		when, ok := ParseSurveyDate(d)
		if !ok {
			badDate.add(in.ID(i))
			continue
		}

		a := Age(year, when)
		age.Set(i, int64(a))
		if a < 0 {
			// Still under the first YAS bound; no fine band starts below 0.
			negative.add(in.ID(i))
			if len(in.Variant.YASBands) > 0 {
				yas.Set(i, in.Variant.YASBands[0].Label)
			}
			continue
		}
		if label, ok := survey.BandFor(in.Variant.AgeBands, a); ok {
			fine.Set(i, label)
		}
		if label, ok := survey.BandFor(in.Variant.YASBands, a); ok {
			yas.Set(i, label)
		}
	}
	badBorn.flush(in.Quality)
	badDate.flush(in.Quality)
	negative.flush(in.Quality)

	out := in.newTable()
	if err := out.Add("age", age); err != nil {
		return nil, err
	}
	if err := out.Add("age_category", fine); err != nil {
		return nil, err
	}
	if err := out.Add("age_yas", yas); err != nil {
		return nil, err
	}
	return out, nil
}

// Age is the completion year minus the birth year. It is not clamped;
// implausible values are left for analysts to see.
func Age(yearBorn int, completed time.Time) int {
	return completed.Year() - yearBorn
}

// ParseYearBorn coerces a raw birth year to an integer, truncating any
// fraction ("1990.0" → 1990).
func ParseYearBorn(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06",
	"01-02-2006",
	"01-02-06",
}

// Spreadsheet serial day numbers count from 1899-12-30. Values outside
// [minSerial, maxSerial] (1927-05-18 .. 9999-12-31) are not treated as dates.
const (
	minSerial = 10000
	maxSerial = 2958465
)

var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseSurveyDate parses a completion date in any of the layouts found in
// survey exports, or a spreadsheet serial day number.
func ParseSurveyDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minSerial && f <= maxSerial {
		days := int(math.Floor(f))
		return serialEpoch.AddDate(0, 0, days), true
	}
	return time.Time{}, false
}
