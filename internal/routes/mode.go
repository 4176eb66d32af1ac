package routes

import (
	"github.com/rotisserie/eris"
)

// Mode is a transit service tier. The constant order is the category rank.
type Mode int8

const (
	Local Mode = iota
	Rapid
	Express
	LRT
	CommuterRail
)

var modeNames = [...]string{"Local", "Rapid", "Express", "LRT", "Commuter Rail"}

// String returns the category label.
func (m Mode) String() string {
	if m < Local || m > CommuterRail {
		return "unknown"
	}
	return modeNames[m]
}

// ParseMode converts a category label into a Mode.
func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if n == s {
			return Mode(i), nil
		}
	}
	return 0, eris.Errorf("unknown mode: %q", s)
}

// Categories returns the mode labels in rank order.
func Categories() []string {
	out := make([]string, len(modeNames))
	copy(out, modeNames[:])
	return out
}

// modeCodes is the ABM transit-line mode code mapping.
var modeCodes = map[int]Mode{
	4:  CommuterRail, // coaster
	5:  LRT,          // sprinter/trolley
	6:  Rapid,
	7:  Rapid,
	8:  Express, // premium express
	9:  Express,
	10: Local,
}

// ModeForCode maps a numeric reference-file mode code to a Mode.
func ModeForCode(code int) (Mode, bool) {
	m, ok := modeCodes[code]
	return m, ok
}
