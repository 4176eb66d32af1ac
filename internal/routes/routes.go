// Package routes builds the route number → transit mode lookup table.
package routes

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/sheet"
)

// Reference-file headers.
const (
	ColRouteName = "Route_Name"
	ColMode      = "Mode"
)

// suffixLen is the width of the filler suffix on every reference route name.
const suffixLen = 3

var routePrefix = regexp.MustCompile(`^[0-9]+$`)

// Route is one row of the lookup table. Known is false when the reference
// file carried a mode code outside the mapping.
type Route struct {
	Number int
	Mode   Mode
	Known  bool
}

// Overrides are routes missing from, or wrong in, the reference file. They
// always win over reference rows.
var Overrides = []Route{
	{Number: 651, Mode: Local, Known: true},
	{Number: 652, Mode: Local, Known: true},
	{Number: 280, Mode: Express, Known: true},
	{Number: 888, Mode: Local, Known: true},
	{Number: 891, Mode: Local, Known: true},
	{Number: 892, Mode: Local, Known: true},
	{Number: 950, Mode: Express, Known: true},
}

// Unmapped records a reference row whose mode code has no mapping.
type Unmapped struct {
	Row       int
	RouteName string
	Code      string
}

// Table is the route-mode lookup, sorted by route number.
type Table struct {
	routes   []Route
	byNumber map[int]int

	// Unmapped lists reference rows whose mode code is outside the mapping.
	Unmapped []Unmapped
}

// Build derives the lookup from a routes reference table and applies Overrides.
// A route name that does not reduce to a number after stripping its suffix is
// a broken input contract and fails the build.
func Build(t *sheet.Table) (*Table, error) {
	if missing := t.Missing(ColRouteName, ColMode); len(missing) > 0 {
		return nil, eris.Errorf("routes: reference file missing columns %v", missing)
	}
	log := zap.L().With(zap.String("component", "routes"))

	type pair struct {
		number int
		mode   Mode
		known  bool
	}
	var pairs []pair
	seen := make(map[pair]bool)
	tbl := &Table{}

	for i := range t.Rows {
		row := t.SourceRows[i]
		name := t.Value(i, ColRouteName)
		number, err := ParseRouteName(name)
		if err != nil {
			return nil, eris.Wrapf(err, "routes: row %d", row)
		}

		code := t.Value(i, ColMode)
		p := pair{number: number}
		if c, ok := parseCode(code); ok {
			p.mode, p.known = ModeForCode(c)
		}
		if !p.known {
			tbl.Unmapped = append(tbl.Unmapped, Unmapped{Row: row, RouteName: name, Code: code})
		}

		if seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}

	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].number < pairs[b].number })

	byNumber := make(map[int]Route)
	var numbers []int
	for _, p := range pairs {
		cur, exists := byNumber[p.number]
		switch {
		case !exists:
			numbers = append(numbers, p.number)
			byNumber[p.number] = Route{Number: p.number, Mode: p.mode, Known: p.known}
		case !cur.Known && p.known:
			byNumber[p.number] = Route{Number: p.number, Mode: p.mode, Known: true}
		case cur.Known && p.known && cur.Mode != p.mode:
			log.Debug("route has several modes, keeping first",
				zap.Int("route", p.number),
				zap.String("kept", cur.Mode.String()),
				zap.String("dropped", p.mode.String()),
			)
		}
	}

	for _, o := range Overrides {
		if _, exists := byNumber[o.Number]; !exists {
			numbers = append(numbers, o.Number)
		}
		byNumber[o.Number] = o
	}

	sort.Ints(numbers)
	tbl.routes = make([]Route, len(numbers))
	tbl.byNumber = make(map[int]int, len(numbers))
	for i, n := range numbers {
		tbl.routes[i] = byNumber[n]
		tbl.byNumber[n] = i
	}

	if len(tbl.Unmapped) > 0 {
		codes := make([]string, 0, len(tbl.Unmapped))
		for _, u := range tbl.Unmapped {
			codes = append(codes, u.Code)
		}
		log.Warn("reference routes with unmapped mode codes",
			zap.Int("count", len(tbl.Unmapped)),
			zap.Strings("codes", codes),
		)
	}

	return tbl, nil
}

// ParseRouteName strips the 3-character filler suffix from a reference
// route name and parses the remaining prefix as the route number.
func ParseRouteName(name string) (int, error) {
	name = strings.TrimSpace(name)
	if len(name) <= suffixLen {
		return 0, eris.Errorf("route name %q is too short for a %d-character suffix", name, suffixLen)
	}
	prefix := name[:len(name)-suffixLen]
	if !routePrefix.MatchString(prefix) {
		return 0, eris.Errorf("route name %q: prefix %q is not a route number", name, prefix)
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, eris.Wrapf(err, "route name %q", name)
	}
	return n, nil
}

// parseCode accepts integral mode codes written as "10" or "10.0".
func parseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Lookup returns the mode of a route. It reports false for routes not in
// the table and for routes whose mode is unknown.
func (t *Table) Lookup(number int) (Mode, bool) {
	i, ok := t.byNumber[number]
	if !ok || !t.routes[i].Known {
		return 0, false
	}
	return t.routes[i].Mode, true
}

// Routes returns the table rows sorted by route number.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }

// Frame renders the table as route (int) and mode (ordered categorical) columns.
func (t *Table) Frame() (*frame.Table, error) {
	index := make([]string, len(t.routes))
	number := frame.NewInts(len(t.routes))
	mode, err := frame.NewCategorical(Categories(), len(t.routes))
	if err != nil {
		return nil, err
	}
	for i, r := range t.routes {
		index[i] = strconv.Itoa(r.Number)
		number.Set(i, int64(r.Number))
		if r.Known {
			mode.Set(i, r.Mode.String())
		}
	}

	out := frame.New("", index)
	if err := out.Add("route", number); err != nil {
		return nil, err
	}
	if err := out.Add("mode", mode); err != nil {
		return nil, err
	}
	return out, nil
}
