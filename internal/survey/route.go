package survey

import (
	"regexp"
	"strconv"
	"strings"
)

// RouteParser extracts the route number from a raw route-direction token.
// It reports false when the token does not match the year's format.
type RouteParser func(token string) (int, bool)

var (
	route2015   = regexp.MustCompile(`^.([0-9]{3})`)
	routeNumber = regexp.MustCompile(`^[0-9]+$`)

	// Trolley lines are coded by color in the 2023 export.
	lineColors = strings.NewReplacer(
		"Blue", "510",
		"Orange", "520",
		"Green", "530",
	)
)

// ParseRoute2015 reads characters 2-4 of ROUTE_SURVEYED_CODE as the route number.
func ParseRoute2015(token string) (int, bool) {
	m := route2015.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseRoute2023 reads the third underscore-delimited segment of
// ROUTE_DIRECTION[Code], after mapping trolley line colors to route numbers.
func ParseRoute2023(token string) (int, bool) {
	parts := strings.Split(lineColors.Replace(strings.TrimSpace(token)), "_")
	if len(parts) < 3 || !routeNumber.MatchString(parts[2]) {
		return 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false
	}
	return n, true
}
