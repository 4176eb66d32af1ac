package survey

import (
	"github.com/rotisserie/eris"
)

// AgeBand covers ages from Min up to the next band's Min. The last band is open-ended.
type AgeBand struct {
	Label string `yaml:"label" mapstructure:"label" validate:"required"`
	Min   int    `yaml:"min" mapstructure:"min" validate:"gte=0"`
}

// FineAgeBands returns the 11-category household travel survey age bands.
func FineAgeBands() []AgeBand {
	return []AgeBand{
		{Label: "Under 5", Min: 0},
		{Label: "5-15", Min: 5},
		{Label: "16-17", Min: 16},
		{Label: "18-24", Min: 18},
		{Label: "25-34", Min: 25},
		{Label: "35-44", Min: 35},
		{Label: "45-54", Min: 45},
		{Label: "55-64", Min: 55},
		{Label: "65-74", Min: 65},
		{Label: "75-84", Min: 75},
		{Label: "85 or Older", Min: 85},
	}
}

// YASBands returns the Youth/Adult/Senior grouping.
func YASBands() []AgeBand {
	return []AgeBand{
		{Label: "Youth", Min: 0},
		{Label: "Adult", Min: 18},
		{Label: "Senior", Min: 65},
	}
}

// BandLabels returns the labels of bands in order.
func BandLabels(bands []AgeBand) []string {
	out := make([]string, len(bands))
	for i, b := range bands {
		out[i] = b.Label
	}
	return out
}

// BandFor returns the label of the band containing age. Ages below the first
// band have no band.
func BandFor(bands []AgeBand, age int) (string, bool) {
	label, ok := "", false
	for _, b := range bands {
		if age < b.Min {
			break
		}
		label, ok = b.Label, true
	}
	return label, ok
}

// ValidateBands requires at least one band, unique non-empty labels, and
// strictly increasing lower bounds.
func ValidateBands(bands []AgeBand) error {
	if len(bands) == 0 {
		return eris.New("no bands")
	}
	labels := make(map[string]bool, len(bands))
	for i, b := range bands {
		if b.Label == "" {
			return eris.Errorf("band %d has no label", i)
		}
		if labels[b.Label] {
			return eris.Errorf("duplicate band label %q", b.Label)
		}
		labels[b.Label] = true
		if i > 0 && b.Min <= bands[i-1].Min {
			return eris.Errorf("band %q starts at %d, not after %q (%d)", b.Label, b.Min, bands[i-1].Label, bands[i-1].Min)
		}
	}
	return nil
}
