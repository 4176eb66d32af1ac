package derive

import (
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/survey"
)

// AccessModes are the answers to "how did you get to the first bus or train",
// in questionnaire order.
var AccessModes = []string{
	"Walk",
	"Wheelchair",
	"Bike (personal)",
	"E-Bike (personal)",
	"E-Bike (shared)",
	"Skateboard",
	"E-scooter (personal)",
	"E-scooter (shared)",
	"Uber, Lyft, etc. (private)",
	"Uber, Lyft, etc. (pool or shared)",
	"Taxi",
	"Was dropped off by someone",
	"Drove alone and parked",
	"Drove or rode with others and parked",
	"Electric vehicle shuttle",
	"Other shuttle",
	"Other",
}

// EgressModes are the answers to the destination-side question. It allows
// a non-response, which the origin question does not.
var EgressModes = []string{
	"Walk",
	"Wheelchair",
	"Bike (personal)",
	"E-Bike (personal)",
	"E-Bike (shared)",
	"Skateboard",
	"E-scooter (personal)",
	"E-scooter (shared)",
	"Uber, Lyft, etc. (private)",
	"Uber, Lyft, etc. (pool or shared)",
	"Taxi",
	"Be picked up by someone",
	"Get in a parked vehicle & drive alone",
	"Get in a parked vehicle & drive/ride w/others",
	"Electric vehicle shuttle",
	"Other shuttle",
	"Other",
	"Refused/No Answer",
}

// ABMAccessModes are the activity-based model's access categories, in rank order.
var ABMAccessModes = []string{
	"Walk to transit",
	"Bike to transit",
	"Micromobility to transit",
	"PNR to transit",
	"KNR to transit",
	"TNC to transit",
}

// abmAccess maps an access answer to its model category. "Other" has no
// model category and maps to null.
var abmAccess = map[string]string{
	"Walk":                                 "Walk to transit",
	"Wheelchair":                           "Walk to transit",
	"Bike (personal)":                      "Bike to transit",
	"E-Bike (personal)":                    "Micromobility to transit",
	"E-Bike (shared)":                      "Micromobility to transit",
	"Skateboard":                           "Walk to transit",
	"E-scooter (personal)":                 "Micromobility to transit",
	"E-scooter (shared)":                   "Micromobility to transit",
	"Uber, Lyft, etc. (private)":           "TNC to transit",
	"Uber, Lyft, etc. (pool or shared)":    "TNC to transit",
	"Taxi":                                 "TNC to transit",
	"Was dropped off by someone":           "KNR to transit",
	"Drove alone and parked":               "PNR to transit",
	"Drove or rode with others and parked": "PNR to transit",
	"Electric vehicle shuttle":             "TNC to transit",
	"Other shuttle":                        "TNC to transit",
}

// ABMAccessMode returns the model category of an access answer.
func ABMAccessMode(access string) (string, bool) {
	abm, ok := abmAccess[access]
	return abm, ok
}

// AccessEgressModule derives the first-mile and last-mile modes and the
// model access category.
type AccessEgressModule struct{}

func (m *AccessEgressModule) Name() string { return "access_egress" }

func (m *AccessEgressModule) Roles() []survey.Role {
	return []survey.Role{survey.RoleOrigin, survey.RoleDestination}
}

func (m *AccessEgressModule) Derive(in *Input) (*frame.Table, error) {
	origin, err := in.Column(survey.RoleOrigin)
	if err != nil {
		return nil, err
	}
	destination, err := in.Column(survey.RoleDestination)
	if err != nil {
		return nil, err
	}

	access, err := m.categorize(in, origin, AccessModes, "access answer not in list")
	if err != nil {
		return nil, err
	}
	egress, err := m.categorize(in, destination, EgressModes, "egress answer not in list")
	if err != nil {
		return nil, err
	}

	abm, err := frame.NewCategorical(ABMAccessModes, in.Len())
	if err != nil {
		return nil, err
	}
	for i := 0; i < in.Len(); i++ {
		a, ok := access.Label(i)
		if !ok {
			continue
		}
		if c, ok := ABMAccessMode(a); ok {
			abm.Set(i, c)
		}
	}

	out := in.newTable()
	if err := out.Add("access_mode", access); err != nil {
		return nil, err
	}
	if err := out.Add("egress_mode", egress); err != nil {
		return nil, err
	}
	if err := out.Add("access_mode_abm", abm); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *AccessEgressModule) categorize(in *Input, raw *frame.Strings, categories []string, issue string) (*frame.Categorical, error) {
	col, err := frame.NewCategorical(categories, raw.Len())
	if err != nil {
		return nil, err
	}
	t := newTally(m.Name(), issue)
	for i := 0; i < raw.Len(); i++ {
		v, ok := raw.Get(i)
		if !ok {
			continue
		}
		if !col.Set(i, v) {
			t.add(in.ID(i))
		}
	}
	t.flush(in.Quality)
	return col, nil
}
