package derive

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/routes"
	"github.com/sells-group/obsprep/internal/survey"
)

// RouteModule derives the surveyed route number and its transit mode.
type RouteModule struct{}

func (m *RouteModule) Name() string { return "route" }

func (m *RouteModule) Roles() []survey.Role { return []survey.Role{survey.RoleRoute} }

func (m *RouteModule) Derive(in *Input) (*frame.Table, error) {
	if in.Routes == nil {
		return nil, eris.New("derive: route: no route table")
	}
	if in.Variant.ParseRoute == nil {
		return nil, eris.Errorf("derive: route: survey %s has no route parser", in.Variant.Year)
	}
	raw, err := in.Column(survey.RoleRoute)
	if err != nil {
		return nil, err
	}

	n := in.Len()
	number := frame.NewInts(n)
	mode, err := frame.NewCategorical(routes.Categories(), n)
	if err != nil {
		return nil, err
	}

	badToken := newTally(m.Name(), "unparsable route token")
	unmatched := newTally(m.Name(), "route not in lookup table")
	for i := 0; i < n; i++ {
		token, ok := raw.Get(i)
		if !ok {
			continue
		}
		route, ok := in.Variant.ParseRoute(token)
		if !ok {
			if in.Variant.StrictRoutes {
				return nil, eris.Errorf("derive: route: respondent %s: unparsable route token %q", in.ID(i), token)
			}
			badToken.add(in.ID(i))
			continue
		}
		number.Set(i, int64(route))

		md, found := in.Routes.Lookup(route)
		if !found {
			unmatched.add(in.ID(i))
			if in.Variant.UnmatchedRoute != survey.UnmatchedLocal {
				continue
			}
			md = routes.Local
		}
		mode.Set(i, md.String())
	}
	badToken.flush(in.Quality)
	unmatched.flush(in.Quality)

	out := in.newTable()
	if err := out.Add("route", number); err != nil {
		return nil, err
	}
	if err := out.Add("mode", mode); err != nil {
		return nil, err
	}
	return out, nil
}
