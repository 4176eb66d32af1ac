// Package survey describes the per-year variants of the on-board survey:
// raw column names, codebook variables, route token format, age bands and
// the policy for routes missing from the lookup table.
package survey

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// Year selects a survey variant.
type Year int

const (
	Year2015 Year = 2015
	Year2023 Year = 2023
)

// String returns the survey year.
func (y Year) String() string { return strconv.Itoa(int(y)) }

// ParseYear converts "2015" or "2023" into a Year.
func ParseYear(s string) (Year, error) {
	switch s {
	case "2015":
		return Year2015, nil
	case "2023":
		return Year2023, nil
	default:
		return 0, eris.Errorf("unknown survey year: %q (valid: 2015, 2023)", s)
	}
}

// Years returns the supported survey years.
func Years() []Year { return []Year{Year2015, Year2023} }

// UnmatchedRoute decides the mode of a route absent from the lookup table.
type UnmatchedRoute int

const (
	// UnmatchedNull leaves the mode null.
	UnmatchedNull UnmatchedRoute = iota
	// UnmatchedLocal assumes a local bus; historic route numbers are not in
	// the current reference file.
	UnmatchedLocal
)

func (u UnmatchedRoute) String() string {
	if u == UnmatchedLocal {
		return "local"
	}
	return "null"
}

// Variant is the full per-year configuration of the extraction pipeline.
type Variant struct {
	Year           Year
	Schema         Schema
	Variables      map[Role]string // codebook variable per coded role
	ParseRoute     RouteParser
	UnmatchedRoute UnmatchedRoute
	StrictRoutes   bool
	AgeBands       []AgeBand
	YASBands       []AgeBand
	Modules        []string // derivation modules enabled for the year, in output order
}

// VariantFor returns the built-in variant of a survey year.
func VariantFor(y Year) (Variant, error) {
	switch y {
	case Year2015:
		return Variant{
			Year: Year2015,
			Schema: Schema{
				RoleID:             "ID",
				RoleRoute:          "ROUTE_SURVEYED_CODE",
				RoleYearBorn:       "YEAR_OF_BIRTH",
				RoleCompleted:      "DATE",
				RoleUnlinkedWeight: "UNLINKED_WEIGHT_FACTOR",
				RoleLinkedWeight:   "FACTOR_TO_EXPAND_TO_LINKED_TRIPS",
			},
			ParseRoute:     ParseRoute2015,
			UnmatchedRoute: UnmatchedLocal,
			AgeBands:       FineAgeBands(),
			YASBands:       YASBands(),
			Modules:        []string{"route", "age", "weight"},
		}, nil
	case Year2023:
		return Variant{
			Year: Year2023,
			Schema: Schema{
				RoleID:             "ID",
				RoleRoute:          "ROUTE_DIRECTION[Code]",
				RoleYearBorn:       "YEAR_BORN",
				RoleCompleted:      "DATE_COMPLETED",
				RoleIncome:         "INCOME[Code]",
				RoleEmployment:     "EMPLOYMENT_STATUS[Code]",
				RoleHHEmployed:     "EMPLOYED_IN_HH[Code]",
				RoleStudent:        "STUDENT_STATUS[Code]",
				RoleOrigin:         "ORIGIN_TRANSPORT",
				RoleDestination:    "DESTIN_TRANSPORT",
				RoleUnlinkedWeight: "UNLINKED_WGHT_FCTR",
				RoleLinkedWeight:   "LINKED_WGHT_FCTR",
			},
			Variables: map[Role]string{
				RoleIncome:     "INCOME",
				RoleEmployment: "EMPLOYMENT_STATUS",
				RoleHHEmployed: "EMPLOYED_IN_HH",
				RoleStudent:    "STUDENT_STATUS",
			},
			ParseRoute:     ParseRoute2023,
			UnmatchedRoute: UnmatchedNull,
			AgeBands:       FineAgeBands(),
			YASBands:       YASBands(),
			Modules:        []string{"route", "age", "income", "employment", "student", "access_egress", "weight"},
		}, nil
	default:
		return Variant{}, eris.Errorf("no survey variant for year %d", int(y))
	}
}

// Variable returns the codebook variable for a coded role.
func (v Variant) Variable(r Role) (string, error) {
	name, ok := v.Variables[r]
	if !ok || name == "" {
		return "", eris.Errorf("survey %s: no codebook variable for %s", v.Year, r)
	}
	return name, nil
}

// WithAgeBands replaces the fine age bands after validating them.
func (v Variant) WithAgeBands(bands []AgeBand) (Variant, error) {
	if err := ValidateBands(bands); err != nil {
		return v, eris.Wrapf(err, "survey %s: age bands", v.Year)
	}
	v.AgeBands = bands
	return v, nil
}

// OutputName is the base name of the combined output table.
func (v Variant) OutputName() string { return "obs" + v.Year.String() }
