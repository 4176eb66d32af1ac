package survey

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Role is the part a raw survey column plays, independent of its name in a
// given year's export.
type Role string

const (
	RoleID             Role = "id"
	RoleRoute          Role = "route"
	RoleYearBorn       Role = "year_born"
	RoleCompleted      Role = "completed"
	RoleIncome         Role = "income"
	RoleEmployment     Role = "employment"
	RoleHHEmployed     Role = "hh_employed"
	RoleStudent        Role = "student"
	RoleOrigin         Role = "origin_transport"
	RoleDestination    Role = "destination_transport"
	RoleUnlinkedWeight Role = "unlinked_weight"
	RoleLinkedWeight   Role = "linked_weight"
)

// Schema maps roles to the raw column names of one survey year.
type Schema map[Role]string

// Column returns the raw column name of a role.
func (s Schema) Column(r Role) (string, bool) {
	name, ok := s[r]
	return name, ok && name != ""
}

// Require checks that every role is mapped and its column is present.
// has reports whether the loaded header contains a column. All missing
// columns are listed in one error so schema drift is visible at once.
func (s Schema) Require(has func(string) bool, roles ...Role) error {
	var unmapped []string
	var missing []string
	for _, r := range roles {
		name, ok := s.Column(r)
		if !ok {
			unmapped = append(unmapped, string(r))
			continue
		}
		if !has(name) {
			missing = append(missing, name)
		}
	}
	if len(unmapped) > 0 {
		sort.Strings(unmapped)
		return eris.Errorf("schema: roles without a column mapping: %v", unmapped)
	}
	if len(missing) > 0 {
		return eris.Errorf("schema: results missing columns %v", missing)
	}
	return nil
}
