package derive

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/survey"
)

// WeightModule derives the unlinked and linked expansion factors.
type WeightModule struct{}

func (m *WeightModule) Name() string { return "weight" }

func (m *WeightModule) Roles() []survey.Role {
	return []survey.Role{survey.RoleUnlinkedWeight, survey.RoleLinkedWeight}
}

func (m *WeightModule) Derive(in *Input) (*frame.Table, error) {
	out := in.newTable()
	for _, f := range []struct {
		column string
		role   survey.Role
	}{
		{"unlinked_weight", survey.RoleUnlinkedWeight},
		{"linked_weight", survey.RoleLinkedWeight},
	} {
		raw, err := in.Column(f.role)
		if err != nil {
			return nil, err
		}
		col := frame.NewFloats(raw.Len())
		t := newTally(m.Name(), "non-numeric "+f.column)
		for i := 0; i < raw.Len(); i++ {
			s, ok := raw.Get(i)
			if !ok || strings.TrimSpace(s) == "" {
				continue
			}
			w, ok := ParseWeight(s)
			if !ok {
				t.add(in.ID(i))
				continue
			}
			col.Set(i, w)
		}
		t.flush(in.Quality)
		if err := out.Add(f.column, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParseWeight parses a weight factor. NaN and infinities are rejected.
func ParseWeight(s string) (float64, bool) {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, false
	}
	return w, true
}
