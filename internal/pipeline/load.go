package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/obsprep/internal/codebook"
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/routes"
	"github.com/sells-group/obsprep/internal/sheet"
)

// LoadRoutes builds the route-mode table from the routes reference file.
func LoadRoutes(path string) (*routes.Table, error) {
	t, err := sheet.ReadFile(path, "")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read routes")
	}
	rt, err := routes.Build(t)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: build routes from %s", path)
	}
	return rt, nil
}

// LoadCodebook reads the data dictionary sheet.
func LoadCodebook(path, sheetName string) (*codebook.Codebook, error) {
	t, err := sheet.ReadFile(path, sheetName)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read data dictionary")
	}
	cb, err := codebook.Load(t)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load codebook from %s", path)
	}
	return cb, nil
}

// ResultsFrame converts the raw results sheet into a string table indexed
// by respondent ID. Every other column is kept under its export name.
// Respondent IDs must be present and unique.
func ResultsFrame(t *sheet.Table, idColumn string) (*frame.Table, error) {
	if missing := t.Missing(idColumn); len(missing) > 0 {
		return nil, eris.Errorf("pipeline: results have no %s column", idColumn)
	}

	index := make([]string, t.Len())
	seen := make(map[string]int, t.Len())
	for i := range index {
		id := t.Value(i, idColumn)
		if id == "" {
			return nil, eris.Errorf("pipeline: results row %d has no %s", t.SourceRows[i], idColumn)
		}
		if first, dup := seen[id]; dup {
			return nil, eris.Errorf("pipeline: %s %q on rows %d and %d", idColumn, id, first, t.SourceRows[i])
		}
		seen[id] = t.SourceRows[i]
		index[i] = id
	}

	out := frame.New(idColumn, index)
	for c, name := range t.Header {
		if name == "" || name == idColumn {
			continue
		}
		if _, dup := out.Column(name); dup {
			zap.L().With(zap.String("component", "pipeline")).Warn("duplicate results column ignored",
				zap.String("column", name), zap.Int("position", c+1))
			continue
		}
		values := make([]string, t.Len())
		for i, row := range t.Rows {
			if c < len(row) {
				values[i] = strings.TrimSpace(row[c])
			}
		}
		if err := out.Add(name, frame.StringsOf(values)); err != nil {
			return nil, eris.Wrap(err, "pipeline: results frame")
		}
	}
	return out, nil
}
